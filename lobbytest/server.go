// Package lobbytest provides an in-process fake of the lobby broadcaster for
// integration tests: it accepts the same websocket endpoint as the real
// server, records every command frame a client sends, and lets tests push
// scripted messages or force specific close codes.
package lobbytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/edustream/lobbyclient/lobby/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the fake broadcaster. Zero connections are fine; tests usually
// connect a client and then script pushes through the accepted Conn.
type Server struct {
	httpSrv *httptest.Server

	mu       sync.Mutex
	commands []protocol.Command
	accepted chan *Conn

	// AutoPong controls whether inbound ping actions get a pong reply, as the
	// real broadcaster does. On by default.
	AutoPong bool
}

// Conn is one accepted client connection.
type Conn struct {
	ID        string
	SessionID string
	Role      string
	Token     string

	ws      *websocket.Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	commands []protocol.Command
}

// NewServer starts the fake broadcaster on an httptest listener.
func NewServer() *Server {
	s := &Server{
		accepted: make(chan *Conn, 16),
		AutoPong: true,
	}
	s.httpSrv = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the websocket base URL (ws://...).
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.httpSrv.URL, "http")
}

// Close shuts the listener down and drops all live connections.
func (s *Server) Close() {
	s.httpSrv.Close()
}

// WaitConn blocks until the next client connection is accepted.
func (s *Server) WaitConn(timeout time.Duration) (*Conn, error) {
	select {
	case c := <-s.accepted:
		return c, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("no client connected within %v", timeout)
	}
}

// Commands returns a copy of every command received across all connections.
func (s *Server) Commands() []protocol.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Command(nil), s.commands...)
}

// CommandCount returns how many command frames have arrived so far.
func (s *Server) CommandCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.commands)
}

// handle accepts /ws/lobby/{session}/{role}?token=... and pumps inbound
// frames into the command log until the connection dies.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 4 || parts[0] != "ws" || parts[1] != "lobby" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	conn := &Conn{
		ID:        uuid.NewString(),
		SessionID: parts[2],
		Role:      parts[3],
		Token:     token,
		ws:        ws,
	}
	s.accepted <- conn

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var cmd protocol.Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			continue
		}
		s.mu.Lock()
		s.commands = append(s.commands, cmd)
		s.mu.Unlock()
		conn.mu.Lock()
		conn.commands = append(conn.commands, cmd)
		conn.mu.Unlock()

		if cmd.Action == protocol.ActionPing && s.AutoPong {
			_ = conn.Push(protocol.TypePong, struct{}{})
		}
	}
}

// Commands returns a copy of the commands received on this connection.
func (c *Conn) Commands() []protocol.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Command(nil), c.commands...)
}

// Push sends one enveloped message to the client.
func (c *Conn) Push(msgType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(protocol.Envelope{
		Type:      msgType,
		Data:      payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, frame)
}

// PushRaw sends an arbitrary text frame, malformed ones included.
func (c *Conn) PushRaw(raw string) error {
	return c.write(websocket.TextMessage, []byte(raw))
}

// CloseWith sends a close frame with the given code, then drops the
// underlying connection.
func (c *Conn) CloseWith(code int, reason string) {
	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.writeMu.Unlock()
	_ = c.ws.Close()
}

// Drop severs the connection without a close frame; clients see this as an
// abnormal close.
func (c *Conn) Drop() {
	_ = c.ws.Close()
}

func (c *Conn) write(messageType int, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(3 * time.Second))
	return c.ws.WriteMessage(messageType, payload)
}
