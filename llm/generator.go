package llm

import (
	"context"
	"strings"

	"github.com/eidoslabs/eidos/types"
)

// Generator binds a provider to a fixed model and temperature so pipeline
// stages can request text without carrying request plumbing.
type Generator struct {
	provider    Provider
	model       string
	temperature float32
}

// NewGenerator creates a Generator for the given model.
func NewGenerator(provider Provider, model string, temperature float32) *Generator {
	return &Generator{provider: provider, model: model, temperature: temperature}
}

// Model returns the bound model id.
func (g *Generator) Model() string { return g.model }

// Provider returns the underlying provider.
func (g *Generator) Provider() Provider { return g.provider }

// Text performs a completion and returns the trimmed reply content.
// An empty reply surfaces ErrGenerationFailed.
func (g *Generator) Text(ctx context.Context, messages []Message) (string, error) {
	resp, err := g.provider.Completion(ctx, &ChatRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: g.temperature,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", types.NewError(types.ErrGenerationFailed, "provider returned an empty reply")
	}
	return text, nil
}
