package dialogue

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eidoslabs/eidos/config"
	"github.com/eidoslabs/eidos/llm"
	"github.com/eidoslabs/eidos/retrieval"
	"github.com/eidoslabs/eidos/types"
)

func TestFormatContext(t *testing.T) {
	t.Run("three passages keep retrieval order", func(t *testing.T) {
		passages := []retrieval.Passage{
			{ID: "a", Content: "first passage"},
			{ID: "b", Content: "second passage"},
			{ID: "c", Content: "third passage"},
		}

		block := FormatContext(passages)

		assert.True(t, strings.HasPrefix(block, contextHeader))
		assert.Equal(t, 3, strings.Count(block, "Document "))
		assert.Equal(t, 6, strings.Count(block, `"""`))

		first := strings.Index(block, "first passage")
		second := strings.Index(block, "second passage")
		third := strings.Index(block, "third passage")
		assert.True(t, first < second && second < third)
	})

	t.Run("single passage", func(t *testing.T) {
		block := FormatContext([]retrieval.Passage{{Content: "only one"}})

		assert.Contains(t, block, "Document 1:")
		assert.Contains(t, block, "\"\"\"\nonly one\n\"\"\"")
		assert.NotContains(t, block, "Document 2:")
	})

	t.Run("empty passages yield the no-context sentinel", func(t *testing.T) {
		assert.Equal(t, "", FormatContext(nil))
		assert.Equal(t, "", FormatContext([]retrieval.Passage{}))
	})

	t.Run("passage content survives verbatim", func(t *testing.T) {
		content := "line one\nline two with \"quotes\"\n\ttabbed"
		block := FormatContext([]retrieval.Passage{{Content: content}})

		assert.Contains(t, block, content)
	})
}

func TestSystemInstruction(t *testing.T) {
	t.Run("joins role topic and style", func(t *testing.T) {
		cfg := config.DialogueConfig{
			TopicInstruction: "Discuss epistemology.",
			StyleInstruction: "Keep replies short.",
		}

		system := systemInstruction(&cfg)

		assert.Contains(t, system, roleInstruction)
		assert.Contains(t, system, "Discuss epistemology.")
		assert.Contains(t, system, "Keep replies short.")
	})

	t.Run("empty steering parts are skipped", func(t *testing.T) {
		system := systemInstruction(&config.DialogueConfig{})

		assert.Equal(t, roleInstruction, system)
	})
}

func TestHistoryMessages(t *testing.T) {
	turns := []types.Turn{
		types.NewAgentTurn("Hello!", ""),
		types.NewUserTurn("I think therefore I am."),
		types.NewAgentTurn("What do you mean by thinking?", "some context"),
	}

	messages := historyMessages(turns)

	require.Len(t, messages, 3)
	assert.Equal(t, llm.RoleAssistant, messages[0].Role)
	assert.Equal(t, llm.RoleUser, messages[1].Role)
	assert.Equal(t, llm.RoleAssistant, messages[2].Role)

	// Only the message text is replayed, never the retrieved context.
	assert.Equal(t, "What do you mean by thinking?", messages[2].Content)
	assert.NotContains(t, messages[2].Content, "some context")
}

func TestBuildMessages(t *testing.T) {
	turns := []types.Turn{
		types.NewAgentTurn("Hello!", ""),
		types.NewUserTurn("First question."),
	}

	messages := buildMessages("system text", turns, "latest message")

	require.Len(t, messages, 4)
	assert.Equal(t, llm.RoleSystem, messages[0].Role)
	assert.Equal(t, "system text", messages[0].Content)
	assert.Equal(t, llm.RoleUser, messages[3].Role)
	assert.Equal(t, "latest message", messages[3].Content)
}
