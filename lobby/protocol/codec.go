// Package protocol defines the lobby wire contract: the inbound
// {type, data, timestamp} envelope, the typed payloads behind each message
// type, and the outbound {action, ...} command shape.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// timestampLayouts covers RFC 3339 plus the zone-less ISO-8601 variants the
// broadcaster emits (datetime.utcnow().isoformat() has no offset).
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// Parse decodes a raw inbound frame into a typed Message. It has no side
// effects: a malformed envelope or payload yields only an error, leaving the
// caller free to log and drop the frame.
func Parse(raw []byte) (*Message, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return nil, errors.New("envelope missing type")
	}

	msg := &Message{Type: env.Type, Timestamp: ParseTime(env.Timestamp)}
	data := env.Data
	if len(data) == 0 {
		data = []byte("{}")
	}

	var err error
	switch env.Type {
	case TypeSnapshot:
		msg.Snapshot = &Snapshot{}
		err = json.Unmarshal(data, msg.Snapshot)
	case TypeParticipantJoined, TypeParticipantLeft:
		msg.Participant = &ParticipantInfo{}
		if err = json.Unmarshal(data, msg.Participant); err == nil && msg.Participant.UserID == "" {
			err = fmt.Errorf("%s payload missing user_id", env.Type)
		}
	case TypeParticipantReadyChanged:
		msg.ReadyChange = &ReadyChange{}
		if err = json.Unmarshal(data, msg.ReadyChange); err == nil && msg.ReadyChange.UserID == "" {
			err = errors.New("ready change payload missing user_id")
		}
	case TypeSessionStarted:
		msg.Started = &SessionStarted{}
		err = json.Unmarshal(data, msg.Started)
	case TypeSessionCompleted:
		msg.Completed = &SessionCompleted{}
		err = json.Unmarshal(data, msg.Completed)
	case TypeSessionClosed:
		msg.Closed = &SessionClosed{}
		err = json.Unmarshal(data, msg.Closed)
	case TypeError:
		msg.Error = &ErrorInfo{}
		err = json.Unmarshal(data, msg.Error)
	case TypePong:
		// Keepalive ack, no payload.
	default:
		// Unrecognized type: returned as-is so the caller can log and ignore
		// it without breaking on future server additions.
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return msg, nil
}

// EncodeCommand serializes an outbound command.
func EncodeCommand(cmd Command) ([]byte, error) {
	if cmd.Action == "" {
		return nil, errors.New("command missing action")
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode %s command: %w", cmd.Action, err)
	}
	return payload, nil
}

// ParseTime parses a broadcaster timestamp, tolerating both RFC 3339 and
// zone-less ISO-8601 forms. The zero time is returned when nothing matches;
// timestamps are informational and never drive state transitions.
func ParseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
