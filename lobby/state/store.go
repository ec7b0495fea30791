// Package state holds the canonical local view of one lobby session. The
// store is mutated exclusively by applying decoded messages; everything else
// sees read-only copies.
package state

import (
	"log/slog"
	"sync"

	"github.com/edustream/lobbyclient/lobby"
	"github.com/edustream/lobbyclient/lobby/events"
	"github.com/edustream/lobbyclient/lobby/protocol"
)

// Store applies inbound lobby messages to a Session and reports the derived
// domain events. External readers get deep copies via Session and change
// notifications via Subscribe; only the owning dispatcher calls Apply.
type Store struct {
	log *slog.Logger

	mu        sync.RWMutex
	session   lobby.Session
	nextID    int
	listeners []listener
}

type listener struct {
	id int
	fn func(lobby.Session)
}

// NewStore returns a store holding an empty waiting session.
func NewStore(log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{log: log, session: lobby.NewSession()}
}

// Session returns a deep copy of the current session view.
func (s *Store) Session() lobby.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Clone()
}

// Subscribe registers a listener invoked with a fresh copy after every state
// change. Returns the unsubscribe function.
func (s *Store) Subscribe(fn func(lobby.Session)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Apply mutates the session according to the message type and returns the
// domain events the dispatcher should emit. Messages that change nothing
// (unknown participant, pong, unrecognized type) return no events.
func (s *Store) Apply(msg *protocol.Message) []events.Event {
	s.mu.Lock()

	var evts []events.Event
	changed := false

	switch msg.Type {
	case protocol.TypeSnapshot:
		changed = s.applySnapshot(msg.Snapshot)

	case protocol.TypeParticipantJoined:
		p := participantFromWire(*msg.Participant)
		s.session.Participants[p.UserID] = p
		evts = append(evts, events.ParticipantJoined{Participant: p})
		changed = true

	case protocol.TypeParticipantLeft:
		p, ok := s.session.Participants[msg.Participant.UserID]
		if !ok {
			break
		}
		delete(s.session.Participants, msg.Participant.UserID)
		name := msg.Participant.Name
		if name == "" {
			name = p.FullName()
		}
		evts = append(evts, events.ParticipantLeft{UserID: p.UserID, Name: name})
		changed = true

	case protocol.TypeParticipantReadyChanged:
		p, ok := s.session.Participants[msg.ReadyChange.UserID]
		if !ok {
			s.log.Warn("ready change for unknown participant",
				"user_id", msg.ReadyChange.UserID)
			break
		}
		p.Readiness = readinessFromWire(msg.ReadyChange.Status)
		s.session.Participants[p.UserID] = p
		evts = append(evts, events.ParticipantReadyChanged{UserID: p.UserID, Readiness: p.Readiness})
		changed = true

	case protocol.TypeSessionStarted:
		s.advanceStatus(lobby.StatusActive)
		evts = append(evts, events.SessionStarted{
			ProjectID: msg.Started.ProjectID,
			StartedAt: protocol.ParseTime(msg.Started.StartedAt),
		})
		changed = true

	case protocol.TypeSessionCompleted:
		s.advanceStatus(lobby.StatusCompleted)
		evts = append(evts, events.SessionCompleted{ProjectID: msg.Completed.ProjectID})
		changed = true

	case protocol.TypeSessionClosed:
		// State stays as-is; the client forces the disconnect after emitting.
		evts = append(evts, events.SessionClosed{Reason: msg.Closed.Reason})

	case protocol.TypeError:
		evts = append(evts, events.Error{Message: msg.Error.Message})

	case protocol.TypePong:
		// Keepalive ack.

	default:
		s.log.Debug("ignoring unrecognized message type", "type", msg.Type)
	}

	var snapshot lobby.Session
	var listeners []listener
	if changed {
		snapshot = s.session.Clone()
		listeners = append(listeners[:0:0], s.listeners...)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l.fn(snapshot)
	}
	return evts
}

// applySnapshot replaces the whole session view. The forward-only status
// invariant still holds: a snapshot that would move the status backward keeps
// the current status and logs the discrepancy.
func (s *Store) applySnapshot(snap *protocol.Snapshot) bool {
	next := lobby.Session{
		ProjectID:    snap.ProjectID,
		Status:       lobby.SessionStatus(snap.Status),
		MaxStudents:  snap.MaxStudents,
		Participants: make(map[string]lobby.Participant, len(snap.Students)),
	}
	for _, info := range snap.Students {
		if info.UserID == "" {
			s.log.Warn("snapshot entry missing user_id, skipping")
			continue
		}
		next.Participants[info.UserID] = participantFromWire(info)
	}
	if !s.session.Status.CanAdvanceTo(next.Status) {
		s.log.Warn("snapshot would regress session status, keeping current",
			"current", s.session.Status, "snapshot", next.Status)
		next.Status = s.session.Status
	}
	s.session = next
	return true
}

func (s *Store) advanceStatus(next lobby.SessionStatus) {
	if !s.session.Status.CanAdvanceTo(next) {
		s.log.Warn("refusing session status regression",
			"current", s.session.Status, "next", next)
		return
	}
	s.session.Status = next
}

func participantFromWire(info protocol.ParticipantInfo) lobby.Participant {
	return lobby.Participant{
		UserID:    info.UserID,
		FirstName: info.FirstName,
		LastName:  info.LastName,
		Email:     info.Email,
		Readiness: readinessFromWire(info.Status),
		JoinedAt:  protocol.ParseTime(info.JoinedAt),
	}
}

func readinessFromWire(status string) lobby.Readiness {
	if status == string(lobby.ReadinessReady) {
		return lobby.ReadinessReady
	}
	return lobby.ReadinessWaiting
}
