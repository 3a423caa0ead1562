package dialogue

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/eidoslabs/eidos/llm"
	"github.com/eidoslabs/eidos/types"
)

// SynthesisStage produces the agent's reply in two sequential calls on
// the main model: a follow-up question conditioned on the quality
// classification, then an answer that embeds that question. The answer
// call always runs after and incorporates the question output.
type SynthesisStage struct {
	gen    *llm.Generator
	system string
	logger *zap.Logger
}

// NewSynthesisStage builds the synthesis stage. system is the joined
// role, topic and style instruction.
func NewSynthesisStage(gen *llm.Generator, system string, logger *zap.Logger) *SynthesisStage {
	return &SynthesisStage{
		gen:    gen,
		system: system,
		logger: logger.With(zap.String("stage", "synthesis")),
	}
}

// Respond generates the follow-up question and the final answer for the
// turn. contextBlock may be empty.
func (s *SynthesisStage) Respond(ctx context.Context, turns []types.Turn, message string, quality types.QualityResult, contextBlock string) (question, answer string, err error) {
	summary := Summary(quality)

	instruction := consistentQuestionInstruction
	if !quality.IsConsistent() {
		instruction = inconsistentQuestionInstruction
	}

	question, err = s.gen.Text(ctx, buildMessages(
		s.stageSystem(contextBlock, summary, instruction), turns, message))
	if err != nil {
		return "", "", err
	}

	answer, err = s.gen.Text(ctx, buildMessages(
		s.stageSystem(contextBlock, summary, fmt.Sprintf(answerInstructionTemplate, question)),
		turns, message))
	if err != nil {
		return "", "", err
	}

	s.logger.Debug("response synthesized",
		zap.Int("question_len", len(question)),
		zap.Int("answer_len", len(answer)))
	return question, answer, nil
}

func (s *SynthesisStage) stageSystem(contextBlock, summary, instruction string) string {
	parts := []string{s.system}
	if contextBlock != "" {
		parts = append(parts, contextBlock)
	}
	parts = append(parts, summary, instruction)
	return strings.Join(parts, "\n\n")
}
