package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eidoslabs/eidos/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()

	t.Run("round-trips the envelope exactly", func(t *testing.T) {
		store := newTestStore(t)

		turns := []types.Turn{
			types.NewAgentTurn("Hello, I'm Eidos!", ""),
			types.NewUserTurn("Multi-line\nstatement with \"embedded\" quotes and \"\"\" delimiters"),
			types.NewAgentTurn("A reply", "Document 1:\n\n\"\"\"\nCogito ergo sum.\n\"\"\"\n\nDocument 2:\n\n\"\"\"\nKnow thyself.\n\"\"\""),
		}
		require.NoError(t, store.AppendTurns(ctx, "s1", turns))

		loaded, err := store.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, turns, loaded.Turns())
	})

	t.Run("appends continue the sequence", func(t *testing.T) {
		store := newTestStore(t)

		require.NoError(t, store.AppendTurns(ctx, "s1", []types.Turn{
			types.NewAgentTurn("greeting", ""),
		}))
		require.NoError(t, store.AppendTurns(ctx, "s1", []types.Turn{
			types.NewUserTurn("first"),
			types.NewAgentTurn("second", ""),
		}))

		loaded, err := store.Load(ctx, "s1")
		require.NoError(t, err)
		require.Equal(t, 3, loaded.Len())
		turns := loaded.Turns()
		assert.Equal(t, "greeting", turns[0].Message)
		assert.Equal(t, "first", turns[1].Message)
		assert.Equal(t, "second", turns[2].Message)
	})

	t.Run("sessions are isolated", func(t *testing.T) {
		store := newTestStore(t)

		require.NoError(t, store.AppendTurns(ctx, "a", []types.Turn{types.NewUserTurn("for a")}))
		require.NoError(t, store.AppendTurns(ctx, "b", []types.Turn{types.NewUserTurn("for b")}))

		loaded, err := store.Load(ctx, "a")
		require.NoError(t, err)
		require.Equal(t, 1, loaded.Len())
		turns := loaded.Turns()
		assert.Equal(t, "for a", turns[0].Message)
	})

	t.Run("missing session loads empty", func(t *testing.T) {
		store := newTestStore(t)

		loaded, err := store.Load(ctx, "nope")
		require.NoError(t, err)
		assert.Equal(t, 0, loaded.Len())
	})

	t.Run("corrupt stored payload is fatal", func(t *testing.T) {
		store := newTestStore(t)

		require.NoError(t, store.db.Create(&turnRow{
			SessionID: "bad", Seq: 0, Role: "user", Payload: `{"message":`,
		}).Error)

		_, err := store.Load(ctx, "bad")
		require.Error(t, err)
		assert.True(t, types.IsCode(err, types.ErrHistoryCorrupt))
	})

	t.Run("empty append is a no-op", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.AppendTurns(ctx, "s", nil))
	})
}
