package protocol

import (
	"encoding/json"
	"time"
)

// Inbound message types pushed by the lobby broadcaster.
const (
	TypeSnapshot                = "snapshot"
	TypeParticipantJoined       = "participant_joined"
	TypeParticipantLeft         = "participant_left"
	TypeParticipantReadyChanged = "participant_ready_changed"
	TypeSessionStarted          = "session_started"
	TypeSessionCompleted        = "session_completed"
	TypeSessionClosed           = "session_closed"
	TypeError                   = "error"
	TypePong                    = "pong"
)

// Outbound command actions.
const (
	ActionStartTest   = "start_test"
	ActionKickStudent = "kick_student"
	ActionCloseLobby  = "close_lobby"
	ActionReady       = "ready"
	ActionNotReady    = "not_ready"
	ActionLeave       = "leave"
	ActionPing        = "ping"
)

// Envelope is the raw inbound frame shape: a type tag, a type-dependent data
// object, and an ISO-8601 timestamp.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// Message is a decoded inbound frame. Exactly one payload field is non-nil,
// matching Type; pong and unrecognized types carry no payload.
type Message struct {
	Type      string
	Timestamp time.Time

	Snapshot    *Snapshot
	Participant *ParticipantInfo
	ReadyChange *ReadyChange
	Started     *SessionStarted
	Completed   *SessionCompleted
	Closed      *SessionClosed
	Error       *ErrorInfo
}

// Known reports whether the message type is part of the lobby wire contract.
// Unknown types are kept so the caller can log them before dropping.
func (m *Message) Known() bool {
	switch m.Type {
	case TypeSnapshot, TypeParticipantJoined, TypeParticipantLeft,
		TypeParticipantReadyChanged, TypeSessionStarted, TypeSessionCompleted,
		TypeSessionClosed, TypeError, TypePong:
		return true
	}
	return false
}

// Snapshot is the full-state payload. Applying it replaces the local session
// view; student_count is informational only and re-derived locally.
type Snapshot struct {
	ProjectID    string            `json:"project_id"`
	Status       string            `json:"status"`
	Students     []ParticipantInfo `json:"students"`
	StudentCount int               `json:"student_count"`
	MaxStudents  int               `json:"max_students"`
}

// ParticipantInfo is the wire shape shared by snapshot entries and the
// participant_joined/participant_left payloads. participant_left may carry
// only the user id plus a prejoined display name.
type ParticipantInfo struct {
	UserID    string `json:"user_id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Status    string `json:"status,omitempty"`
	JoinedAt  string `json:"joined_at,omitempty"`
	Name      string `json:"name,omitempty"`
}

// ReadyChange flips one participant's readiness.
type ReadyChange struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// SessionStarted announces the synchronized test start.
type SessionStarted struct {
	ProjectID string `json:"project_id"`
	StartedAt string `json:"started_at"`
}

// SessionCompleted marks the session as finished.
type SessionCompleted struct {
	ProjectID string `json:"project_id"`
}

// SessionClosed tells clients the lobby is being torn down.
type SessionClosed struct {
	Reason string `json:"reason,omitempty"`
}

// ErrorInfo is a server-reported error surfaced to subscribers; it never
// changes local state.
type ErrorInfo struct {
	Message string `json:"message"`
}

// Command is the outbound frame shape: an action tag plus action-specific
// fields flattened into the same object.
type Command struct {
	Action string `json:"action"`
	UserID string `json:"user_id,omitempty"`
}
