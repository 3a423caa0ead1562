package dialogue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eidoslabs/eidos/config"
	"github.com/eidoslabs/eidos/history"
	"github.com/eidoslabs/eidos/internal/metrics"
	"github.com/eidoslabs/eidos/llm"
	"github.com/eidoslabs/eidos/retrieval"
	"github.com/eidoslabs/eidos/types"
	"github.com/eidoslabs/eidos/websearch"
)

// State is the session lifecycle state.
type State string

const (
	// StateGreeting means the greeting is emitted and no user turn has
	// completed yet.
	StateGreeting State = "greeting"
	// StateActive means at least one turn completed and the limit is not
	// yet reached.
	StateActive State = "active"
	// StateWrappedUp is terminal. Further turn input is rejected.
	StateWrappedUp State = "wrapped_up"
)

// Deps are the collaborators a session runs against. Provider and Logger
// are required; Retriever, Searcher, Store and Metrics are optional.
type Deps struct {
	Provider  llm.Provider
	Retriever retrieval.Retriever
	Searcher  websearch.Searcher
	Store     history.Store
	Metrics   *metrics.Collector
	Logger    *zap.Logger
}

// TurnOutput is the result of one completed turn.
type TurnOutput struct {
	// Message is the agent's final answer.
	Message string
	// Context is the raw retrieved-passage block, empty when the turn
	// was answered from history alone.
	Context string
	// Question is the Socratic follow-up embedded in the answer.
	Question string
	// Route records which path the turn took.
	Route types.RouteDecision
	// Quality is the logical assessment of the user's statement.
	Quality *types.QualityResult
	// Bundle is non-nil only for the turn that reached the limit.
	Bundle *types.WrapUpBundle
}

// Session is the aggregate driving one conversation: configuration,
// history, counters and the stage pipeline. One turn at a time; sessions
// are independent units of concurrency.
type Session struct {
	id     string
	cfg    *config.Config
	hist   *history.History
	logger *zap.Logger

	route   *RouteStage
	expand  *ExpandStage
	context *ContextStage
	quality *QualityStage
	synth   *SynthesisStage
	wrapUp  *WrapUpStage

	store   history.Store
	metrics *metrics.Collector

	state     State
	turnCount int
	bundle    *types.WrapUpBundle

	// pendingPersist holds turns not yet flushed to the store.
	pendingPersist []types.Turn
}

// NewSession constructs a session, emits the greeting turn and enters
// the Greeting state.
func NewSession(cfg *config.Config, deps Deps) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	logger = logger.With(zap.String("session_id", id))

	s := &Session{
		id:     id,
		cfg:    cfg,
		hist:   history.NewWithGreeting(cfg.Dialogue.Greeting),
		logger: logger,

		store:   deps.Store,
		metrics: deps.Metrics,
		state:   StateGreeting,
	}
	if err := s.buildStages(deps); err != nil {
		return nil, err
	}

	greeting, _ := s.hist.Last()
	s.pendingPersist = append(s.pendingPersist, greeting)

	logger.Info("session started", zap.Int("max_turns", cfg.Dialogue.MaxTurns))
	return s, nil
}

// ResumeSession rebuilds a session from its persisted history. The store
// is required; a stored turn that fails to decode aborts the resume, and
// so does an even-length history, which can only come from a partially
// written exchange. A resumed session that already wrapped up rejects
// further turns but reports Bundle() == nil: the bundle itself is not
// persisted.
func ResumeSession(ctx context.Context, cfg *config.Config, deps Deps, sessionID string) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Store == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "resume requires a history store")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("session_id", sessionID))

	hist, err := deps.Store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	freshGreeting := hist.Len() == 0
	if freshGreeting {
		hist = history.NewWithGreeting(cfg.Dialogue.Greeting)
	}
	// A committed session is the greeting plus user+agent pairs, so a
	// well-formed history always has odd length.
	if hist.Len()%2 == 0 {
		return nil, types.NewError(types.ErrHistoryCorrupt,
			fmt.Sprintf("persisted history has even length %d, an exchange was partially written", hist.Len()))
	}

	s := &Session{
		id:     sessionID,
		cfg:    cfg,
		hist:   hist,
		logger: logger,

		store:   deps.Store,
		metrics: deps.Metrics,
	}
	if err := s.buildStages(deps); err != nil {
		return nil, err
	}

	s.turnCount = (hist.Len() - 1) / 2
	switch {
	case s.turnCount >= cfg.Dialogue.MaxTurns:
		s.state = StateWrappedUp
	case s.turnCount > 0:
		s.state = StateActive
	default:
		s.state = StateGreeting
	}
	if freshGreeting {
		if greeting, ok := hist.Last(); ok {
			s.pendingPersist = append(s.pendingPersist, greeting)
		}
	}

	logger.Info("session resumed",
		zap.Int("turn_count", s.turnCount), zap.String("state", string(s.state)))
	return s, nil
}

func (s *Session) buildStages(deps Deps) error {
	cfg := s.cfg
	helper := llm.NewGenerator(deps.Provider, cfg.LLM.Helper, cfg.LLM.Temperature)
	main := llm.NewGenerator(deps.Provider, cfg.LLM.Main, cfg.LLM.Temperature)

	route, err := NewRouteStage(deps.Provider, cfg.LLM.Helper, cfg.LLM.Temperature, s.logger)
	if err != nil {
		return err
	}
	quality, err := NewQualityStage(deps.Provider, cfg.LLM.Main, cfg.LLM.Temperature, s.logger)
	if err != nil {
		return err
	}
	wrapUp, err := NewWrapUpStage(deps.Provider, cfg.LLM.Main, cfg.LLM.Temperature,
		deps.Searcher, cfg.Dialogue.MaxReadings, s.logger)
	if err != nil {
		return err
	}

	s.route = route
	s.expand = NewExpandStage(helper, s.logger)
	s.quality = quality
	s.synth = NewSynthesisStage(main, systemInstruction(&cfg.Dialogue), s.logger)
	s.wrapUp = wrapUp
	if deps.Retriever != nil && cfg.Retrieval.Enabled {
		s.context = NewContextStage(deps.Retriever, s.logger)
	}
	return nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// TurnCount returns the number of completed turns.
func (s *Session) TurnCount() int { return s.turnCount }

// Turns returns a snapshot of the conversation.
func (s *Session) Turns() []types.Turn { return s.hist.Turns() }

// Greeting returns the opening agent message.
func (s *Session) Greeting() string { return s.cfg.Dialogue.Greeting }

// Bundle returns the wrap-up artifacts, nil until the session wraps up.
func (s *Session) Bundle() *types.WrapUpBundle { return s.bundle }

// HandleTurn runs the full pipeline for one user message. History grows
// by exactly the user and agent turns, and only when every stage
// succeeded; a failed stage leaves the session unchanged. The turn that
// reaches the configured limit additionally computes the wrap-up bundle
// and closes the session; if that computation fails the completed turn
// is still returned alongside the error.
func (s *Session) HandleTurn(ctx context.Context, message string) (*TurnOutput, error) {
	if s.state == StateWrappedUp {
		return nil, types.NewError(types.ErrSessionClosed, "session has wrapped up")
	}

	// Stages read a consistent pre-turn snapshot.
	turns := s.hist.Turns()

	route, err := s.decideRoute(ctx, message)
	if err != nil {
		return nil, err
	}

	var contextBlock string
	if route.NeedsRetrieval() {
		contextBlock, err = s.assembleContext(ctx, turns, message)
		if err != nil {
			return nil, err
		}
	}

	quality, err := s.assessQuality(ctx, turns, message, contextBlock)
	if err != nil {
		return nil, err
	}

	question, answer, err := s.synthesize(ctx, turns, message, *quality, contextBlock)
	if err != nil {
		return nil, err
	}

	s.commitTurn(ctx, message, answer, contextBlock, route.Decision)

	out := &TurnOutput{
		Message:  answer,
		Context:  contextBlock,
		Question: question,
		Route:    route.Decision,
		Quality:  quality,
	}

	if s.turnCount >= s.cfg.Dialogue.MaxTurns {
		bundle, err := s.computeWrapUp(ctx)
		if err != nil {
			return out, err
		}
		out.Bundle = bundle
	}
	return out, nil
}

func (s *Session) decideRoute(ctx context.Context, message string) (*types.RouteResult, error) {
	if s.context == nil {
		// Retrieval is off; every turn is answered from history alone.
		return &types.RouteResult{
			Decision:    types.RouteHistoryOnly,
			Explanation: "retrieval disabled",
		}, nil
	}
	start := time.Now()
	route, err := s.route.Decide(ctx, message)
	s.recordStage("route", start, err)
	return route, err
}

func (s *Session) assembleContext(ctx context.Context, turns []types.Turn, message string) (string, error) {
	start := time.Now()
	query, err := s.expand.Expand(ctx, turns, message)
	s.recordStage("expand", start, err)
	if err != nil {
		return "", err
	}

	start = time.Now()
	block, err := s.context.Assemble(ctx, query)
	s.recordStage("context", start, err)
	return block, err
}

func (s *Session) assessQuality(ctx context.Context, turns []types.Turn, message, contextBlock string) (*types.QualityResult, error) {
	start := time.Now()
	quality, err := s.quality.Assess(ctx, turns, message, contextBlock)
	s.recordStage("quality", start, err)
	return quality, err
}

func (s *Session) synthesize(ctx context.Context, turns []types.Turn, message string, quality types.QualityResult, contextBlock string) (string, string, error) {
	start := time.Now()
	question, answer, err := s.synth.Respond(ctx, turns, message, quality, contextBlock)
	s.recordStage("synthesis", start, err)
	return question, answer, err
}

// commitTurn appends the user and agent turns, advances the counters and
// flushes persistence. Runs only after every stage succeeded.
func (s *Session) commitTurn(ctx context.Context, message, answer, contextBlock string, route types.RouteDecision) {
	userTurn := types.NewUserTurn(message)
	agentTurn := types.NewAgentTurn(answer, contextBlock)
	s.hist.Append(userTurn)
	s.hist.Append(agentTurn)
	s.pendingPersist = append(s.pendingPersist, userTurn, agentTurn)
	s.flushPersist(ctx)

	s.turnCount++
	s.state = StateActive

	if s.metrics != nil {
		s.metrics.RecordTurnCompleted(string(route))
	}
	s.observePromptGrowth()
}

func (s *Session) flushPersist(ctx context.Context) {
	if s.store == nil || len(s.pendingPersist) == 0 {
		return
	}
	if err := s.store.AppendTurns(ctx, s.id, s.pendingPersist); err != nil {
		s.logger.Warn("history persistence failed", zap.Error(err))
	}
	s.pendingPersist = s.pendingPersist[:0]
}

// observePromptGrowth estimates the prompt footprint of the history.
// There is no eviction; the budget only triggers a warning.
func (s *Session) observePromptGrowth() {
	budget := s.cfg.Dialogue.PromptTokenBudget
	if budget <= 0 && s.metrics == nil {
		return
	}
	tokens := s.hist.PromptTokens(s.cfg.LLM.Main)
	if s.metrics != nil {
		s.metrics.RecordPromptTokens(s.id, tokens)
	}
	if budget > 0 && tokens > budget {
		s.logger.Warn("history exceeds prompt token budget",
			zap.Int("tokens", tokens), zap.Int("budget", budget))
	}
}

// computeWrapUp builds the bundle exactly once and closes the session.
// The state transition happens before the computation so a failure can
// never trigger a second attempt.
func (s *Session) computeWrapUp(ctx context.Context) (*types.WrapUpBundle, error) {
	s.state = StateWrappedUp

	start := time.Now()
	bundle, err := s.wrapUp.Build(ctx, s.hist.Turns())
	s.recordStage("wrapup", start, err)
	if s.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		s.metrics.RecordWrapUp(status)
	}
	if err != nil {
		s.logger.Error("wrap-up failed", zap.Error(err))
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordReadings("web_search", len(bundle.Readings))
	}

	s.bundle = bundle
	s.logger.Info("session wrapped up", zap.Int("turns", s.turnCount))
	return bundle, nil
}

func (s *Session) recordStage(stage string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordStageExecution(stage, status, time.Since(start))
}
