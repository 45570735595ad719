// Package generator turns natural-language prompts into candidate macro
// action lists using a hosted text-generation service.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrMissingCredential is returned before any request is made when no API key is configured.
	ErrMissingCredential = errors.New("generator: no API key configured")
	// ErrMalformedResponse means the service answered with something other than the expected JSON object.
	ErrMalformedResponse = errors.New("generator: malformed response")
)

// Result holds the two candidate sequences exactly as the service returned
// them. They still need to go through the normalizer.
type Result struct {
	MainSequence    json.RawMessage `json:"mainSequence"`
	ReleaseSequence json.RawMessage `json:"releaseSequence"`
}

// Generator produces candidate action lists from a prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (*Result, error)
}

// Config selects a provider.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// New builds the configured provider. An empty API key is accepted; the
// provider then fails every Generate call with ErrMissingCredential.
func New(cfg Config) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "gemini", "google":
		return NewGeminiProvider(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case "anthropic", "claude":
		return NewAnthropicProvider(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	case "openai":
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("generator: unknown provider %q", cfg.Provider)
	}
}

// systemInstruction describes the action grammar the normalizer accepts.
const systemInstruction = `You write input macros for a keyboard and mouse macro editor.
Reply with a single JSON object: {"mainSequence": [...], "releaseSequence": [...]}.
mainSequence runs when the trigger key is pressed; releaseSequence runs when it is released and is usually empty.
Each element is an action object with a "type" of CLICK, DELAY, MOVE, KEY or SCROLL.
- CLICK: "button" is left, right or middle; "actionState" is click, down or up.
- KEY: "key" is a key name such as "a", "Control", "ArrowUp", "Space"; "actionState" is click, down or up.
- DELAY: "duration" is the wait in milliseconds.
- MOVE: "x" and "y" are integers; "absolute" true moves to the point, false moves by the offset.
- SCROLL: "scrollAmount" is positive to scroll up and negative to scroll down.
To hold a key or button, emit a down action, then a DELAY with the hold time, then an up action.
Do not add any text outside the JSON object.`

// ParseResponse extracts the two sequences from the service's reply text.
// Markdown code fences are tolerated; a missing or non-array sequence is empty.
func ParseResponse(text string) (*Result, error) {
	text = stripCodeFence(text)
	if !gjson.Valid(text) {
		return nil, fmt.Errorf("%w: not JSON", ErrMalformedResponse)
	}
	doc := gjson.Parse(text)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: expected an object", ErrMalformedResponse)
	}
	return &Result{
		MainSequence:    arrayOrEmpty(doc.Get("mainSequence")),
		ReleaseSequence: arrayOrEmpty(doc.Get("releaseSequence")),
	}, nil
}

func arrayOrEmpty(r gjson.Result) json.RawMessage {
	if !r.IsArray() {
		return json.RawMessage("[]")
	}
	return json.RawMessage(r.Raw)
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:] // drop the language tag line
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
