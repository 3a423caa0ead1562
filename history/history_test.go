package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eidoslabs/eidos/types"
)

func TestHistory(t *testing.T) {
	t.Run("greeting is first and context-free", func(t *testing.T) {
		h := NewWithGreeting("Hello, I'm Eidos! What belief shall we examine today?")

		require.Equal(t, 1, h.Len())
		turns := h.Turns()
		assert.Equal(t, types.SpeakerAgent, turns[0].Speaker)
		assert.False(t, turns[0].HasContext())
	})

	t.Run("snapshot is isolated from later appends", func(t *testing.T) {
		h := NewWithGreeting("hi")
		snapshot := h.Turns()

		h.Append(types.NewUserTurn("I think therefore I am"))
		assert.Len(t, snapshot, 1)
		assert.Equal(t, 2, h.Len())

		// Mutating the snapshot must not leak into the history.
		snapshot[0].Message = "tampered"
		fresh := h.Turns()
		assert.Equal(t, "hi", fresh[0].Message)
	})

	t.Run("records round-trip through FromRecords", func(t *testing.T) {
		h := NewWithGreeting("greeting")
		h.Append(types.NewUserTurn("a statement with \"quotes\"\nand newlines"))
		h.Append(types.NewAgentTurn("an answer", "Document 1:\n\n\"\"\"\npassage\n\"\"\""))

		records, err := h.Records()
		require.NoError(t, err)

		rebuilt, err := FromRecords(records)
		require.NoError(t, err)
		assert.Equal(t, h.Turns(), rebuilt.Turns())
	})

	t.Run("corrupt record aborts the load", func(t *testing.T) {
		records := []types.TurnRecord{
			{Role: "agent", Payload: []byte(`{"message":"hi"}`)},
			{Role: "user", Payload: []byte(`{"message":`)},
		}
		_, err := FromRecords(records)
		require.Error(t, err)
		assert.True(t, types.IsCode(err, types.ErrHistoryCorrupt))
	})

	t.Run("last turn", func(t *testing.T) {
		h := New()
		_, ok := h.Last()
		assert.False(t, ok)

		h.Append(types.NewUserTurn("x"))
		last, ok := h.Last()
		require.True(t, ok)
		assert.Equal(t, "x", last.Message)
	})
}

func TestPromptTokens(t *testing.T) {
	h := NewWithGreeting("Hello! What shall we discuss?")
	h.Append(types.NewUserTurn("I believe that no argument is ever complete."))
	h.Append(types.NewAgentTurn("Why do you believe that?", "Document 1:\n\n\"\"\"\nInfinite regress.\n\"\"\""))

	tokens := h.PromptTokens("gpt-4o")
	assert.Greater(t, tokens, 0)

	// Unknown models fall back to the default encoding, not zero.
	fallback := h.PromptTokens("some-unknown-model")
	assert.Greater(t, fallback, 0)

	// Growth is monotone in appended turns.
	h.Append(types.NewUserTurn("Another statement to push the estimate up."))
	assert.Greater(t, h.PromptTokens("gpt-4o"), tokens)
}
