package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eidoslabs/eidos/llm"
	"github.com/eidoslabs/eidos/testutil"
	"github.com/eidoslabs/eidos/testutil/mocks"
	"github.com/eidoslabs/eidos/types"
)

func TestExpandStage(t *testing.T) {
	t.Run("returns the rewritten query", func(t *testing.T) {
		provider := mocks.NewMockProvider().
			WithReplies("Descartes cogito argument certainty of self")
		stage := NewExpandStage(llm.NewGenerator(provider, "helper-model", 0), zap.NewNop())

		query, err := stage.Expand(testutil.TestContext(t), nil, "What did he mean by that?")
		require.NoError(t, err)

		assert.Equal(t, "Descartes cogito argument certainty of self", query)
	})

	t.Run("prompt replays history before the message", func(t *testing.T) {
		provider := mocks.NewMockProvider().WithReplies("some query")
		stage := NewExpandStage(llm.NewGenerator(provider, "helper-model", 0), zap.NewNop())

		turns := []types.Turn{
			types.NewAgentTurn("Hello!", ""),
			types.NewUserTurn("Tell me about Descartes."),
		}
		_, err := stage.Expand(testutil.TestContext(t), turns, "What did he mean?")
		require.NoError(t, err)

		req := provider.LastCall()
		require.NotNil(t, req)
		require.Len(t, req.Messages, 4)
		assert.Contains(t, req.Messages[0].Content, expandInstruction)
		assert.Equal(t, llm.RoleAssistant, req.Messages[1].Role)
		assert.Equal(t, "Tell me about Descartes.", req.Messages[2].Content)
		assert.Equal(t, "What did he mean?", req.Messages[3].Content)
	})

	t.Run("generation failure propagates", func(t *testing.T) {
		provider := mocks.NewMockProvider().
			WithError(types.NewError(types.ErrUpstreamError, "boom"))
		stage := NewExpandStage(llm.NewGenerator(provider, "helper-model", 0), zap.NewNop())

		_, err := stage.Expand(testutil.TestContext(t), nil, "anything")
		require.Error(t, err)
		assert.True(t, types.IsCode(err, types.ErrUpstreamError))
	})
}
