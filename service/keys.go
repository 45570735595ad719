package service

import "strings"

// keyLabels maps lower-cased key names to the labels drawn on the virtual keyboard.
var keyLabels = map[string]string{
	"space":      "SPACE",
	"control":    "CTRL",
	"return":     "ENTER",
	"escape":     "ESC",
	"delete":     "DEL",
	"insert":     "INS",
	"arrowup":    "UP",
	"arrowdown":  "DOWN",
	"arrowleft":  "LEFT",
	"arrowright": "RIGHT",
	"pageup":     "PGUP",
	"pagedown":   "PGDN",
}

// CanonicalKeyLabel returns the visualizer label for a raw key name.
// A literal space is the space bar; empty input yields "".
func CanonicalKeyLabel(raw string) string {
	if raw == "" {
		return ""
	}
	if raw == " " {
		return "SPACE"
	}
	name := strings.TrimSpace(raw)
	if label, ok := keyLabels[strings.ToLower(name)]; ok {
		return label
	}
	return strings.ToUpper(name)
}
