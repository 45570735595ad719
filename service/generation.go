package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"macrostudio/generator"
	"macrostudio/models"

	"github.com/tidwall/gjson"
)

// GenerationService appends prompt-generated actions to the active macro.
type GenerationService struct {
	gen   generator.Generator
	store *MacroStore
}

func NewGenerationService(gen generator.Generator, store *MacroStore) *GenerationService {
	return &GenerationService{gen: gen, store: store}
}

// Generate asks the generator for both sequences, normalizes them and appends
// them to the active macro. On any error the store is left untouched.
func (g *GenerationService) Generate(ctx context.Context, prompt string) (main, release []models.Action, err error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, nil, fmt.Errorf("prompt is empty: %w", ErrInvalidInput)
	}
	if g.gen == nil {
		return nil, nil, generator.ErrMissingCredential
	}
	if _, err := g.store.Active(); err != nil {
		return nil, nil, err
	}

	log.Printf("🤖 Generating actions with %s", g.gen.Name())
	res, err := g.gen.Generate(ctx, prompt)
	if err != nil {
		log.Printf("Generation failed: %v", err)
		return nil, nil, err
	}

	main = Normalize(gjson.ParseBytes(res.MainSequence))
	release = Normalize(gjson.ParseBytes(res.ReleaseSequence))
	if err := g.store.AppendActions(ctx, main, release); err != nil {
		return nil, nil, err
	}
	log.Printf("Generated %d main and %d release actions", len(main), len(release))
	return main, release, nil
}
