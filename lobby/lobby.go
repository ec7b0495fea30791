// Package lobby holds the domain model for a test lobby: the session, its
// participants, and the roles that gate what each connected actor may do.
package lobby

import (
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
)

// Role is the fixed capability class of the local actor. It is set when a
// client is constructed and never changes for the lifetime of that client.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// ParseRole converts a string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleTeacher:
		return RoleTeacher, nil
	case RoleStudent:
		return RoleStudent, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// SessionStatus is the lifecycle phase of a lobby session. It only moves
// forward: waiting -> active -> completed.
type SessionStatus string

const (
	StatusWaiting   SessionStatus = "waiting"
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
)

// rank orders statuses so regressions can be detected.
func (s SessionStatus) rank() int {
	switch s {
	case StatusWaiting:
		return 0
	case StatusActive:
		return 1
	case StatusCompleted:
		return 2
	default:
		return -1
	}
}

// CanAdvanceTo reports whether moving from s to next respects the forward-only
// lifecycle.
func (s SessionStatus) CanAdvanceTo(next SessionStatus) bool {
	return next.rank() >= s.rank()
}

// Readiness is a participant's self-reported state while the lobby waits.
type Readiness string

const (
	ReadinessWaiting Readiness = "waiting"
	ReadinessReady   Readiness = "ready"
)

// Participant is a student present in the lobby, keyed by UserID.
type Participant struct {
	UserID    string
	FirstName string
	LastName  string
	Email     string
	Readiness Readiness
	JoinedAt  time.Time
}

// FullName returns the display name for the participant.
func (p Participant) FullName() string {
	switch {
	case p.FirstName == "" && p.LastName == "":
		return p.UserID
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

// Session is the canonical local view of one lobby. Participants is keyed by
// user id; the student count is always derived from it, never stored.
type Session struct {
	ProjectID    string
	Status       SessionStatus
	MaxStudents  int
	Participants map[string]Participant
}

// NewSession returns an empty waiting session.
func NewSession() Session {
	return Session{
		Status:       StatusWaiting,
		Participants: make(map[string]Participant),
	}
}

// StudentCount is the cardinality of the participant set.
func (s Session) StudentCount() int {
	return len(s.Participants)
}

// ReadyCount returns how many participants have flagged themselves ready.
func (s Session) ReadyCount() int {
	return lo.CountBy(lo.Values(s.Participants), func(p Participant) bool {
		return p.Readiness == ReadinessReady
	})
}

// Students returns the participants ordered by join time, then user id for
// deterministic output when timestamps collide.
func (s Session) Students() []Participant {
	students := lo.Values(s.Participants)
	sort.Slice(students, func(i, j int) bool {
		if !students[i].JoinedAt.Equal(students[j].JoinedAt) {
			return students[i].JoinedAt.Before(students[j].JoinedAt)
		}
		return students[i].UserID < students[j].UserID
	})
	return students
}

// Clone returns a deep copy so callers can never mutate the canonical state.
func (s Session) Clone() Session {
	out := s
	out.Participants = make(map[string]Participant, len(s.Participants))
	for id, p := range s.Participants {
		out.Participants[id] = p
	}
	return out
}
