package dialogue

import (
	"context"

	"go.uber.org/zap"

	"github.com/eidoslabs/eidos/llm"
	"github.com/eidoslabs/eidos/types"
)

// ExpandStage rewrites the raw user message into a retrieval-optimized
// query, using the conversation to resolve pronouns and implicit
// references. Pure text generation on the helper model, no side effects.
type ExpandStage struct {
	gen    *llm.Generator
	logger *zap.Logger
}

// NewExpandStage builds the query-expansion stage.
func NewExpandStage(gen *llm.Generator, logger *zap.Logger) *ExpandStage {
	return &ExpandStage{
		gen:    gen,
		logger: logger.With(zap.String("stage", "expand")),
	}
}

// Expand rewrites message into a standalone retrieval query.
func (s *ExpandStage) Expand(ctx context.Context, turns []types.Turn, message string) (string, error) {
	query, err := s.gen.Text(ctx, buildMessages(expandInstruction, turns, message))
	if err != nil {
		return "", err
	}
	s.logger.Debug("query expanded", zap.String("query", query))
	return query, nil
}
