// Package history maintains the structured conversation history: an
// append-only ordered log of turns with a lossless wire envelope and an
// optional sqlite-backed store.
package history

import (
	"github.com/eidoslabs/eidos/types"
)

// History is the append-only conversation log. Insertion order is
// conversation order and is replayed verbatim into every generation call.
// Exactly one writer (the turn handler) appends; stages read snapshots.
type History struct {
	turns []types.Turn
}

// New creates an empty history.
func New() *History {
	return &History{}
}

// NewWithGreeting creates a history whose first entry is the agent
// greeting with empty context.
func NewWithGreeting(greeting string) *History {
	h := New()
	h.Append(types.NewAgentTurn(greeting, ""))
	return h
}

// FromRecords rebuilds a history from stored envelopes. A record that
// fails to decode aborts the whole load with HISTORY_CORRUPT: skipping it
// would desynchronize role alternation.
func FromRecords(records []types.TurnRecord) (*History, error) {
	h := New()
	for _, rec := range records {
		turn, err := types.DecodeTurn(rec)
		if err != nil {
			return nil, err
		}
		h.Append(turn)
	}
	return h, nil
}

// Append adds a turn to the log.
func (h *History) Append(turn types.Turn) {
	h.turns = append(h.turns, turn)
}

// Len returns the number of turns.
func (h *History) Len() int {
	return len(h.turns)
}

// Turns returns a snapshot copy of the log. Mutating the snapshot never
// affects the history.
func (h *History) Turns() []types.Turn {
	out := make([]types.Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Last returns the most recent turn, if any.
func (h *History) Last() (types.Turn, bool) {
	if len(h.turns) == 0 {
		return types.Turn{}, false
	}
	return h.turns[len(h.turns)-1], true
}

// Records encodes the full log into wire envelopes.
func (h *History) Records() ([]types.TurnRecord, error) {
	out := make([]types.TurnRecord, 0, len(h.turns))
	for _, turn := range h.turns {
		rec, err := turn.Encode()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
