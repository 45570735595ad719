package generator

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiProvider asks Gemini for JSON output constrained by a response schema.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(apiKey, model, baseURL string) (*GeminiProvider, error) {
	if model == "" {
		model = defaultGeminiModel
	}
	p := &GeminiProvider{model: model}
	if apiKey == "" {
		return p, nil
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}
	p.client = client
	return p, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (*Result, error) {
	if p.client == nil {
		return nil, ErrMissingCredential
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		},
		ResponseMIMEType: "application/json",
		ResponseSchema:   geminiResponseSchema(),
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), config)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return ParseResponse(resp.Text())
}

func geminiResponseSchema() *genai.Schema {
	action := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"type":         {Type: genai.TypeString, Enum: []string{"CLICK", "DELAY", "MOVE", "KEY", "SCROLL"}},
			"actionState":  {Type: genai.TypeString, Enum: []string{"click", "down", "up"}},
			"button":       {Type: genai.TypeString, Enum: []string{"left", "right", "middle"}},
			"duration":     {Type: genai.TypeInteger},
			"x":            {Type: genai.TypeInteger},
			"y":            {Type: genai.TypeInteger},
			"absolute":     {Type: genai.TypeBoolean},
			"key":          {Type: genai.TypeString},
			"scrollAmount": {Type: genai.TypeInteger},
		},
		Required: []string{"type"},
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"mainSequence":    {Type: genai.TypeArray, Items: action},
			"releaseSequence": {Type: genai.TypeArray, Items: action},
		},
		Required: []string{"mainSequence", "releaseSequence"},
	}
}
