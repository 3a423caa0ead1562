package dialogue

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eidoslabs/eidos/config"
	"github.com/eidoslabs/eidos/history"
	"github.com/eidoslabs/eidos/testutil"
	"github.com/eidoslabs/eidos/testutil/mocks"
	"github.com/eidoslabs/eidos/types"
	"github.com/eidoslabs/eidos/websearch"
)

const (
	routeHistoryReply   = `{"decision":"history_only","explanation":"conversation suffices"}`
	routeRetrievalReply = `{"decision":"retrieval","explanation":"claims need sources"}`
	qualityOKReply      = `{"classification":"consistent","explanation":"sound"}`
)

func testConfig(maxTurns int) *config.Config {
	cfg := config.Default()
	cfg.Dialogue.MaxTurns = maxTurns
	return cfg
}

// historyOnlyTurn scripts one turn answered from history alone:
// route, quality, question, answer.
func historyOnlyTurn(answer string) []string {
	return []string{routeHistoryReply, qualityOKReply, "a question", answer}
}

// retrievalTurn scripts one turn through the retrieval path:
// route, expanded query, quality, question, answer.
func retrievalTurn(answer string) []string {
	return []string{routeRetrievalReply, "expanded query", qualityOKReply, "a question", answer}
}

// wrapUpReplies scripts the three wrap-up generations.
func wrapUpReplies() []string {
	return []string{wrapSummaryReply, wrapAdviceReply, wrapQueriesReply}
}

func TestSessionGreeting(t *testing.T) {
	session, err := NewSession(testConfig(10), Deps{
		Provider:  mocks.NewMockProvider(),
		Retriever: mocks.NewMockRetriever(),
	})
	require.NoError(t, err)

	assert.Equal(t, StateGreeting, session.State())
	assert.Equal(t, 0, session.TurnCount())
	assert.NotEmpty(t, session.ID())

	turns := session.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, types.SpeakerAgent, turns[0].Speaker)
	assert.Equal(t, session.Greeting(), turns[0].Message)
	assert.False(t, turns[0].HasContext())
}

func TestSessionHistoryOnlyTurn(t *testing.T) {
	provider := mocks.NewMockProvider().WithReplies(historyOnlyTurn("the answer")...)
	retriever := mocks.NewMockRetriever().WithDocuments("should never be used")
	session, err := NewSession(testConfig(10), Deps{Provider: provider, Retriever: retriever})
	require.NoError(t, err)

	out, err := session.HandleTurn(testutil.TestContext(t), "I think therefore I am")
	require.NoError(t, err)

	assert.Equal(t, types.RouteHistoryOnly, out.Route)
	assert.Equal(t, "the answer", out.Message)
	assert.Empty(t, out.Context)
	assert.Nil(t, out.Bundle)

	// Retrieval was never consulted.
	assert.Equal(t, 0, retriever.CallCount())

	// History grew by exactly the user and agent turns.
	turns := session.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, types.SpeakerUser, turns[1].Speaker)
	assert.Equal(t, "I think therefore I am", turns[1].Message)
	assert.Equal(t, types.SpeakerAgent, turns[2].Speaker)
	assert.False(t, turns[2].HasContext())

	assert.Equal(t, StateActive, session.State())
	assert.Equal(t, 1, session.TurnCount())
}

func TestSessionRetrievalTurn(t *testing.T) {
	provider := mocks.NewMockProvider().WithReplies(retrievalTurn("grounded answer")...)
	retriever := mocks.NewMockRetriever().WithDocuments("passage one", "passage two", "passage three")
	session, err := NewSession(testConfig(10), Deps{Provider: provider, Retriever: retriever})
	require.NoError(t, err)

	out, err := session.HandleTurn(testutil.TestContext(t), "The soul is immortal.")
	require.NoError(t, err)

	assert.Equal(t, types.RouteRetrieval, out.Route)
	assert.Equal(t, 3, strings.Count(out.Context, "Document "))
	assert.Less(t, strings.Index(out.Context, "passage one"), strings.Index(out.Context, "passage two"))
	assert.Less(t, strings.Index(out.Context, "passage two"), strings.Index(out.Context, "passage three"))

	// The store was queried with the expanded query, not the raw message.
	assert.Equal(t, []string{"expanded query"}, retriever.Queries())

	turns := session.Turns()
	require.Len(t, turns, 3)
	assert.True(t, turns[2].HasContext())
	assert.Equal(t, out.Context, turns[2].Context)
}

func TestSessionStageFailureLeavesHistoryUnchanged(t *testing.T) {
	tests := []struct {
		name    string
		replies []string
		failAt  int
	}{
		{"route fails", nil, 1},
		{"quality fails", []string{routeHistoryReply}, 2},
		{"question fails", []string{routeHistoryReply, qualityOKReply}, 3},
		{"answer fails", []string{routeHistoryReply, qualityOKReply, "a question"}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := mocks.NewMockProvider().
				WithReplies(tt.replies...).
				WithFailAt(tt.failAt)
			session, err := NewSession(testConfig(10), Deps{
				Provider:  provider,
				Retriever: mocks.NewMockRetriever(),
			})
			require.NoError(t, err)

			_, err = session.HandleTurn(testutil.TestContext(t), "a statement")
			require.Error(t, err)

			assert.Len(t, session.Turns(), 1)
			assert.Equal(t, 0, session.TurnCount())
			assert.Equal(t, StateGreeting, session.State())
		})
	}
}

func TestSessionRetrievalFailureIsFatalToTurn(t *testing.T) {
	provider := mocks.NewMockProvider().
		WithReplies(routeRetrievalReply, "expanded query")
	retriever := mocks.NewMockRetriever().
		WithError(types.NewError(types.ErrRetrievalUnavailable, "store down"))
	session, err := NewSession(testConfig(10), Deps{Provider: provider, Retriever: retriever})
	require.NoError(t, err)

	_, err = session.HandleTurn(testutil.TestContext(t), "The soul is immortal.")
	require.Error(t, err)

	assert.True(t, types.IsCode(err, types.ErrRetrievalUnavailable))
	assert.Len(t, session.Turns(), 1)
}

func TestSessionRetrievalDisabled(t *testing.T) {
	cfg := testConfig(10)
	cfg.Retrieval.Enabled = false

	// No route call is scripted: the route stage is skipped entirely.
	provider := mocks.NewMockProvider().
		WithReplies(qualityOKReply, "a question", "the answer")
	session, err := NewSession(cfg, Deps{Provider: provider})
	require.NoError(t, err)

	out, err := session.HandleTurn(testutil.TestContext(t), "a statement")
	require.NoError(t, err)

	assert.Equal(t, types.RouteHistoryOnly, out.Route)
	assert.Equal(t, 3, provider.CallCount())
}

func TestSessionWrapUpBoundary(t *testing.T) {
	cfg := testConfig(2)
	replies := historyOnlyTurn("first answer")
	replies = append(replies, historyOnlyTurn("second answer")...)
	replies = append(replies, wrapUpReplies()...)

	provider := mocks.NewMockProvider().WithReplies(replies...)
	searcher := mocks.NewMockSearcher().
		WithDefaultResults(websearch.Result{Title: "Foundationalism", Link: "https://plato.stanford.edu/entries/foundational/"})
	session, err := NewSession(cfg, Deps{
		Provider:  provider,
		Retriever: mocks.NewMockRetriever(),
		Searcher:  searcher,
	})
	require.NoError(t, err)

	ctx := testutil.TestContext(t)

	out, err := session.HandleTurn(ctx, "first")
	require.NoError(t, err)
	assert.Nil(t, out.Bundle)
	assert.Equal(t, StateActive, session.State())

	// The turn that reaches the limit computes the bundle exactly once.
	out, err = session.HandleTurn(ctx, "second")
	require.NoError(t, err)
	require.NotNil(t, out.Bundle)
	assert.Equal(t, StateWrappedUp, session.State())
	assert.NotEmpty(t, out.Bundle.Summary)
	assert.NotEmpty(t, out.Bundle.ImprovementAreas)
	assert.Equal(t, out.Bundle, session.Bundle())

	callsAfterWrapUp := provider.CallCount()
	turnsAfterWrapUp := len(session.Turns())

	// A further call is rejected with no side effects.
	_, err = session.HandleTurn(ctx, "third")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrSessionClosed))
	assert.Equal(t, callsAfterWrapUp, provider.CallCount())
	assert.Len(t, session.Turns(), turnsAfterWrapUp)
}

func TestSessionWrapUpFailureStillClosesSession(t *testing.T) {
	cfg := testConfig(1)
	replies := historyOnlyTurn("only answer")
	replies = append(replies, "not valid json")

	provider := mocks.NewMockProvider().WithReplies(replies...)
	session, err := NewSession(cfg, Deps{
		Provider:  provider,
		Retriever: mocks.NewMockRetriever(),
	})
	require.NoError(t, err)

	out, err := session.HandleTurn(testutil.TestContext(t), "a statement")
	require.Error(t, err)

	// The turn itself committed before the wrap-up failed.
	require.NotNil(t, out)
	assert.Equal(t, "only answer", out.Message)
	assert.Nil(t, out.Bundle)
	assert.Len(t, session.Turns(), 3)
	assert.Equal(t, StateWrappedUp, session.State())
	assert.Nil(t, session.Bundle())

	// The terminal state holds: no retry of the wrap-up.
	_, err = session.HandleTurn(testutil.TestContext(t), "again")
	assert.True(t, types.IsCode(err, types.ErrSessionClosed))
}

func TestSessionHistoryGrowsByTwoPerTurn(t *testing.T) {
	replies := historyOnlyTurn("one")
	replies = append(replies, historyOnlyTurn("two")...)
	replies = append(replies, historyOnlyTurn("three")...)

	provider := mocks.NewMockProvider().WithReplies(replies...)
	session, err := NewSession(testConfig(10), Deps{
		Provider:  provider,
		Retriever: mocks.NewMockRetriever(),
	})
	require.NoError(t, err)

	ctx := testutil.TestContext(t)
	for i, msg := range []string{"first", "second", "third"} {
		before := len(session.Turns())
		_, err := session.HandleTurn(ctx, msg)
		require.NoError(t, err)
		assert.Equal(t, before+2, len(session.Turns()))
		assert.Equal(t, i+1, session.TurnCount())
	}
}

func TestSessionPersistsTurns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.NewSQLiteStore(path, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	provider := mocks.NewMockProvider().WithReplies(historyOnlyTurn("persisted answer")...)
	session, err := NewSession(testConfig(10), Deps{
		Provider:  provider,
		Retriever: mocks.NewMockRetriever(),
		Store:     store,
	})
	require.NoError(t, err)

	ctx := testutil.TestContext(t)
	_, err = session.HandleTurn(ctx, "a statement")
	require.NoError(t, err)

	loaded, err := store.Load(ctx, session.ID())
	require.NoError(t, err)

	turns := loaded.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, session.Greeting(), turns[0].Message)
	assert.Equal(t, "a statement", turns[1].Message)
	assert.Equal(t, "persisted answer", turns[2].Message)
}

func TestResumeSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.NewSQLiteStore(path, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	cfg := testConfig(10)
	ctx := testutil.TestContext(t)

	provider := mocks.NewMockProvider().WithReplies(historyOnlyTurn("first answer")...)
	original, err := NewSession(cfg, Deps{
		Provider:  provider,
		Retriever: mocks.NewMockRetriever(),
		Store:     store,
	})
	require.NoError(t, err)
	_, err = original.HandleTurn(ctx, "opening statement")
	require.NoError(t, err)

	resumed, err := ResumeSession(ctx, cfg, Deps{
		Provider:  mocks.NewMockProvider().WithReplies(historyOnlyTurn("second answer")...),
		Retriever: mocks.NewMockRetriever(),
		Store:     store,
	}, original.ID())
	require.NoError(t, err)

	assert.Equal(t, original.ID(), resumed.ID())
	assert.Equal(t, 1, resumed.TurnCount())
	assert.Equal(t, StateActive, resumed.State())
	assert.Len(t, resumed.Turns(), 3)

	out, err := resumed.HandleTurn(ctx, "continuing")
	require.NoError(t, err)
	assert.Equal(t, "second answer", out.Message)
	assert.Len(t, resumed.Turns(), 5)
}

func TestResumeSessionRejectsPartialHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.NewSQLiteStore(path, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	// A user turn without its agent reply never commits, so an even
	// record count means the store holds a half-written exchange.
	ctx := testutil.TestContext(t)
	require.NoError(t, store.AppendTurns(ctx, "torn-session", []types.Turn{
		types.NewAgentTurn("greeting", ""),
		types.NewUserTurn("dangling statement"),
	}))

	_, err = ResumeSession(ctx, testConfig(10), Deps{
		Provider: mocks.NewMockProvider(),
		Store:    store,
	}, "torn-session")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrHistoryCorrupt))
}

func TestResumeSessionRequiresStore(t *testing.T) {
	_, err := ResumeSession(testutil.TestContext(t), testConfig(10), Deps{
		Provider: mocks.NewMockProvider(),
	}, "some-id")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrInvalidConfig))
}
