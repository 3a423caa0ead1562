package dialogue

import (
	"context"

	"go.uber.org/zap"

	"github.com/eidoslabs/eidos/retrieval"
)

// ContextStage retrieves passages for an expanded query and formats them
// into a single context block. Retrieval failures are fatal to the turn:
// once the route opted into retrieval, no empty context is substituted.
type ContextStage struct {
	retriever retrieval.Retriever
	logger    *zap.Logger
}

// NewContextStage builds the context-assembly stage.
func NewContextStage(retriever retrieval.Retriever, logger *zap.Logger) *ContextStage {
	return &ContextStage{
		retriever: retriever,
		logger:    logger.With(zap.String("stage", "context")),
	}
}

// Assemble retrieves and formats context for the query. An empty passage
// list is a valid outcome and yields the empty string.
func (s *ContextStage) Assemble(ctx context.Context, query string) (string, error) {
	passages, err := s.retriever.Retrieve(ctx, query)
	if err != nil {
		return "", err
	}
	s.logger.Debug("context assembled", zap.Int("passages", len(passages)))
	return FormatContext(passages), nil
}
