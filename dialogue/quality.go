package dialogue

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eidoslabs/eidos/llm"
	"github.com/eidoslabs/eidos/structured"
	"github.com/eidoslabs/eidos/types"
)

// QualityStage classifies the logical quality of the user's statement,
// conditioned on the conversation and any retrieved context.
type QualityStage struct {
	output *structured.Output[types.QualityResult]
	logger *zap.Logger
}

// NewQualityStage builds the quality-assessment stage on the main model.
func NewQualityStage(provider llm.Provider, model string, temperature float32, logger *zap.Logger) (*QualityStage, error) {
	output, err := structured.New[types.QualityResult](provider, model, temperature)
	if err != nil {
		return nil, err
	}
	return &QualityStage{
		output: output,
		logger: logger.With(zap.String("stage", "quality")),
	}, nil
}

// Assess classifies message against the conversation and contextBlock.
// contextBlock may be empty when no retrieval was performed.
func (s *QualityStage) Assess(ctx context.Context, turns []types.Turn, message, contextBlock string) (*types.QualityResult, error) {
	system := qualityInstruction
	if contextBlock != "" {
		system += "\n\n" + contextBlock
	}
	result, err := s.output.Generate(ctx, buildMessages(system, turns, message))
	if err != nil {
		return nil, err
	}
	s.logger.Debug("statement assessed",
		zap.String("classification", string(result.Classification)),
		zap.String("type", string(result.Type)))
	return result, nil
}

// Summary renders a QualityResult as the human-readable sentence fed
// into response synthesis. Pure function of its input.
func Summary(q types.QualityResult) string {
	verdict := "consistent"
	if !q.IsConsistent() {
		verdict = "inconsistent"
	}
	s := fmt.Sprintf("The statement is logically %s.", verdict)
	if q.Explanation != "" {
		s += " " + q.Explanation
	}
	return s
}
