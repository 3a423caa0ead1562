package dialogue

import (
	"context"

	"go.uber.org/zap"

	"github.com/eidoslabs/eidos/llm"
	"github.com/eidoslabs/eidos/structured"
	"github.com/eidoslabs/eidos/types"
)

// RouteStage decides, per turn, whether retrieval is needed. One
// structured call on the helper model; a reply that does not conform to
// the RouteResult schema surfaces as a schema violation, never as a
// silent default route.
type RouteStage struct {
	output *structured.Output[types.RouteResult]
	logger *zap.Logger
}

// NewRouteStage builds the routing stage on the given provider and model.
func NewRouteStage(provider llm.Provider, model string, temperature float32, logger *zap.Logger) (*RouteStage, error) {
	output, err := structured.New[types.RouteResult](provider, model, temperature)
	if err != nil {
		return nil, err
	}
	return &RouteStage{
		output: output,
		logger: logger.With(zap.String("stage", "route")),
	}, nil
}

// Decide classifies the latest user message.
func (s *RouteStage) Decide(ctx context.Context, message string) (*types.RouteResult, error) {
	messages := []llm.Message{
		llm.NewSystemMessage(routeInstruction),
		llm.NewUserMessage(message),
	}
	result, err := s.output.Generate(ctx, messages)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("route decided",
		zap.String("decision", string(result.Decision)),
		zap.String("explanation", result.Explanation))
	return result, nil
}
