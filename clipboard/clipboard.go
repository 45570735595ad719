// Package clipboard copies text to and reads text from the system clipboard
// by shelling out to the platform's clipboard tool.
package clipboard

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// DefaultTimeout bounds each tool attempt.
const DefaultTimeout = 3 * time.Second

// ErrUnavailable means no clipboard tool worked on this machine.
var ErrUnavailable = errors.New("clipboard unavailable")

type tool struct {
	name     string
	args     []string
	platform string // "" matches any platform
}

var copyTools = []tool{
	{name: "pbcopy", platform: "darwin"},
	{name: "wl-copy", platform: "linux"},
	{name: "xclip", args: []string{"-selection", "clipboard"}, platform: "linux"},
	{name: "clip.exe"},
	{name: "powershell", args: []string{"-NoProfile", "-Command", "Set-Clipboard"}, platform: "windows"},
}

var pasteTools = []tool{
	{name: "pbpaste", platform: "darwin"},
	{name: "wl-paste", args: []string{"--no-newline"}, platform: "linux"},
	{name: "xclip", args: []string{"-selection", "clipboard", "-o"}, platform: "linux"},
	{name: "powershell", args: []string{"-NoProfile", "-Command", "Get-Clipboard"}, platform: "windows"},
}

// lookPath is swapped out in tests.
var lookPath = exec.LookPath

// Copy writes text to the clipboard using the first tool that succeeds.
func Copy(ctx context.Context, text string) error {
	for _, t := range applicable(copyTools) {
		if run(ctx, t, strings.NewReader(text), nil) == nil {
			return nil
		}
	}
	return ErrUnavailable
}

// Paste reads the clipboard using the first tool that succeeds.
func Paste(ctx context.Context) (string, error) {
	for _, t := range applicable(pasteTools) {
		var out bytes.Buffer
		if run(ctx, t, nil, &out) == nil {
			return out.String(), nil
		}
	}
	return "", ErrUnavailable
}

func applicable(tools []tool) []tool {
	var out []tool
	for _, t := range tools {
		if t.platform != "" && t.platform != runtime.GOOS {
			continue
		}
		if _, err := lookPath(t.name); err != nil {
			continue
		}
		out = append(out, t)
	}
	return out
}

func run(ctx context.Context, t tool, stdin *strings.Reader, stdout *bytes.Buffer) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.name, t.args...)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	if stdout != nil {
		cmd.Stdout = stdout
	}
	return cmd.Run()
}
