// Package events fans derived domain events out to any number of subscribers
// per named channel. Emission is synchronous and follows message-processing
// order; nothing is buffered across disconnects.
package events

import (
	"time"

	"github.com/edustream/lobbyclient/lobby"
)

// Channel names, one per domain event.
const (
	ChannelParticipantJoined       = "participant_joined"
	ChannelParticipantLeft         = "participant_left"
	ChannelParticipantReadyChanged = "participant_ready_changed"
	ChannelSessionStarted          = "session_started"
	ChannelSessionCompleted        = "session_completed"
	ChannelSessionClosed           = "session_closed"
	ChannelError                   = "error"
)

// Event is a derived domain event delivered to subscribers of its channel.
type Event interface {
	Channel() string
}

// ParticipantJoined carries the upserted participant.
type ParticipantJoined struct {
	Participant lobby.Participant
}

func (ParticipantJoined) Channel() string { return ChannelParticipantJoined }

// ParticipantLeft carries the removed participant's id and display name.
type ParticipantLeft struct {
	UserID string
	Name   string
}

func (ParticipantLeft) Channel() string { return ChannelParticipantLeft }

// ParticipantReadyChanged carries the participant's new readiness.
type ParticipantReadyChanged struct {
	UserID    string
	Readiness lobby.Readiness
}

func (ParticipantReadyChanged) Channel() string { return ChannelParticipantReadyChanged }

// SessionStarted announces the synchronized test start.
type SessionStarted struct {
	ProjectID string
	StartedAt time.Time
}

func (SessionStarted) Channel() string { return ChannelSessionStarted }

// SessionCompleted marks the session as finished.
type SessionCompleted struct {
	ProjectID string
}

func (SessionCompleted) Channel() string { return ChannelSessionCompleted }

// SessionClosed reports the lobby teardown reason. The client forces a local
// disconnect right after emitting it.
type SessionClosed struct {
	Reason string
}

func (SessionClosed) Channel() string { return ChannelSessionClosed }

// Error surfaces a server-reported or connection-level failure.
type Error struct {
	Message string
}

func (Error) Channel() string { return ChannelError }
