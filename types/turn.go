// Package types provides core types used across the eidos engine.
// This package has ZERO dependencies on other eidos packages to avoid
// circular imports. All other packages should import types from here.
package types

import (
	"encoding/json"
	"fmt"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// Valid reports whether the speaker is one of the known roles.
func (s Speaker) Valid() bool {
	return s == SpeakerUser || s == SpeakerAgent
}

// Turn is one role-tagged message plus the retrieved context that backed it.
// Turns are immutable once appended to a history; Context is empty when no
// retrieval was performed for the turn.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Message string  `json:"message"`
	Context string  `json:"context,omitempty"`
}

// NewUserTurn creates a user turn. User turns never carry context.
func NewUserTurn(message string) Turn {
	return Turn{Speaker: SpeakerUser, Message: message}
}

// NewAgentTurn creates an agent turn with optional retrieved context.
func NewAgentTurn(message, context string) Turn {
	return Turn{Speaker: SpeakerAgent, Message: message, Context: context}
}

// HasContext reports whether retrieval backed this turn.
func (t Turn) HasContext() bool { return t.Context != "" }

// turnPayload is the JSON body of the wire envelope. Context is omitted
// entirely when empty so that "no retrieval" round-trips as absence.
type turnPayload struct {
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
}

// TurnRecord is the durable wire envelope for a turn: the role plus a
// JSON-encoded payload holding message and optional context. Any
// persistence layer must round-trip this envelope exactly.
type TurnRecord struct {
	Role    string          `json:"role"`
	Payload json.RawMessage `json:"payload"`
}

// Encode serializes the turn into its wire envelope.
func (t Turn) Encode() (TurnRecord, error) {
	if !t.Speaker.Valid() {
		return TurnRecord{}, NewError(ErrHistoryCorrupt, fmt.Sprintf("unknown speaker %q", t.Speaker))
	}
	payload, err := json.Marshal(turnPayload{Message: t.Message, Context: t.Context})
	if err != nil {
		return TurnRecord{}, NewError(ErrHistoryCorrupt, "encode turn payload").WithCause(err)
	}
	return TurnRecord{Role: string(t.Speaker), Payload: payload}, nil
}

// DecodeTurn parses a wire envelope back into a Turn. A payload that fails
// to decode surfaces ErrHistoryCorrupt; callers must treat that as fatal
// for the session rather than skip the record, since skipping would
// desynchronize role alternation.
func DecodeTurn(rec TurnRecord) (Turn, error) {
	speaker := Speaker(rec.Role)
	if !speaker.Valid() {
		return Turn{}, NewError(ErrHistoryCorrupt, fmt.Sprintf("unknown role %q in stored turn", rec.Role))
	}
	var payload turnPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return Turn{}, NewError(ErrHistoryCorrupt, "decode turn payload").WithCause(err)
	}
	return Turn{Speaker: speaker, Message: payload.Message, Context: payload.Context}, nil
}
