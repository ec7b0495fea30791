package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"github.com/edustream/lobbyclient/api"
	"github.com/edustream/lobbyclient/lobby"
	"github.com/edustream/lobbyclient/lobby/events"
	"github.com/edustream/lobbyclient/lobby/protocol"
	"github.com/edustream/lobbyclient/lobby/state"
)

// State is the ephemeral connection state. It is owned by the client and is
// never part of the session view.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

// Sentinel errors surfaced by the public API. Nothing here panics across the
// boundary; callers inspect returned errors or subscribe to the error channel.
var (
	ErrMissingToken   = errors.New("no auth token available")
	ErrRoleViolation  = errors.New("command not permitted for role")
	ErrNotConnected   = errors.New("not connected to a lobby")
	ErrConnectAborted = errors.New("connect aborted by disconnect")
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	defaultHeartbeatInterval = 30 * time.Second
	defaultBackoffBase       = 1000 * time.Millisecond
	defaultMaxAttempts       = 5

	// maxBackoffShift bounds the doubling ceiling so a large attempt count
	// cannot overflow time.Duration.
	maxBackoffShift = 16
)

// Config carries the construction-time settings for a lobby client. Role is
// fixed for the lifetime of the client.
type Config struct {
	// BaseURL is the websocket endpoint base, e.g. "ws://localhost:8000".
	BaseURL string

	// Role gates which outbound commands the gateway accepts.
	Role lobby.Role

	// Tokens supplies the bearer token appended to the lobby URL. Connect
	// fails before opening any transport when no token is available.
	Tokens api.TokenProvider

	// HeartbeatInterval is the app-level ping period. Defaults to 30s.
	HeartbeatInterval time.Duration

	// BackoffBase is the delay before reconnect attempt 1; attempt n waits
	// BackoffBase * 2^(n-1). Defaults to 1s.
	BackoffBase time.Duration

	// MaxReconnectAttempts bounds automatic reconnects after an abnormal
	// close. Defaults to 5. Once exhausted an explicit Connect is required.
	MaxReconnectAttempts int

	Logger    *slog.Logger
	Scheduler Scheduler
	Dialer    *websocket.Dialer
}

// Client maintains one logical lobby connection: transport lifecycle with
// reconnect-with-backoff, the canonical session view, the keepalive, the
// role-gated command gateway, and the domain-event surface.
type Client struct {
	id        string
	cfg       Config
	log       *slog.Logger
	sched     Scheduler
	dialer    *websocket.Dialer
	store     *state.Store
	emitter   *events.Emitter
	keepalive *keepAlive
	backoff   *backoff.Backoff

	// writeMu serializes frame writes; gorilla permits one concurrent writer.
	writeMu sync.Mutex

	mu        sync.Mutex
	connState State
	conn      *websocket.Conn
	sessionID string
	gen       int
	reconnect Timer
}

// New validates the config, fills defaults, and returns a disconnected client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("client: BaseURL is required")
	}
	if _, err := lobby.ParseRole(string(cfg.Role)); err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = defaultMaxAttempts
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = NewScheduler()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}

	shift := cfg.MaxReconnectAttempts - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}

	log := cfg.Logger.With("component", "lobby_client", "role", cfg.Role)
	c := &Client{
		id:        uuid.NewString(),
		cfg:       cfg,
		log:       log,
		sched:     cfg.Scheduler,
		dialer:    cfg.Dialer,
		store:     state.NewStore(log),
		emitter:   events.NewEmitter(),
		connState: StateDisconnected,
		backoff: &backoff.Backoff{
			Min:    cfg.BackoffBase,
			Max:    cfg.BackoffBase << shift,
			Factor: 2,
		},
	}
	c.keepalive = newKeepAlive(cfg.Scheduler, cfg.HeartbeatInterval, c.Ping, log)
	return c, nil
}

// ID is the unique id of this client instance.
func (c *Client) ID() string { return c.id }

// Role returns the fixed role of the local actor.
func (c *Client) Role() lobby.Role { return c.cfg.Role }

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connState
}

// SessionID returns the session targeted by the last Connect call.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Session returns a read-only copy of the current lobby view.
func (c *Client) Session() lobby.Session {
	return c.store.Session()
}

// On subscribes a handler to a named event channel and returns its
// unsubscribe function.
func (c *Client) On(channel string, fn events.Handler) func() {
	return c.emitter.Subscribe(channel, fn)
}

// SubscribeState registers a listener called with a fresh session copy after
// every state change.
func (c *Client) SubscribeState(fn func(lobby.Session)) func() {
	return c.store.Subscribe(fn)
}

// Connect opens the lobby websocket for the given session. It is a no-op
// when already connected or connecting. Without a token it fails before any
// transport is opened, leaving the client in the error state. A dial failure
// still schedules background reconnects before returning the error.
func (c *Client) Connect(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	switch c.connState {
	case StateConnected, StateConnecting:
		c.mu.Unlock()
		return nil
	}
	token := c.token()
	if token == "" {
		c.connState = StateError
		c.mu.Unlock()
		c.log.Error("connect refused, no auth token available")
		return ErrMissingToken
	}
	c.sessionID = sessionID
	c.connState = StateConnecting
	c.backoff.Reset()
	c.mu.Unlock()

	return c.dial(ctx, sessionID, token)
}

// Disconnect tears the connection down from any state: it cancels a pending
// reconnect, stops the keepalive, closes the transport with the normal
// closure code, and leaves the client disconnected. Safe to call repeatedly.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.gen++ // orphan any in-flight read loop
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	conn := c.conn
	c.conn = nil
	c.connState = StateDisconnected
	c.mu.Unlock()

	c.keepalive.stop()
	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = conn.Close()
		c.log.Info("lobby disconnected")
	}
}

// dial opens the transport and, on success, starts the read loop and the
// keepalive. On failure it records the error state and schedules a reconnect
// if attempts remain.
func (c *Client) dial(ctx context.Context, sessionID, token string) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.lobbyURL(sessionID, token), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.mu.Lock()
		if c.connState != StateDisconnected {
			c.connState = StateError
		}
		c.mu.Unlock()
		c.log.Warn("lobby dial failed", "session_id", sessionID, "err", err)
		c.scheduleReconnect()
		return fmt.Errorf("dial lobby %s: %w", sessionID, err)
	}

	c.mu.Lock()
	if c.connState == StateDisconnected {
		// Disconnect raced the dial; drop the fresh connection.
		c.mu.Unlock()
		conn.Close()
		return ErrConnectAborted
	}
	c.gen++
	gen := c.gen
	c.conn = conn
	c.connState = StateConnected
	c.backoff.Reset()
	c.mu.Unlock()

	c.keepalive.start()
	go c.readLoop(conn, gen)
	c.log.Info("lobby connected", "session_id", sessionID)
	return nil
}

// readLoop pumps inbound frames into the dispatcher until the transport
// errors out. gen ties the loop to the connection that spawned it so a stale
// loop cannot disturb a newer connection.
func (c *Client) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(gen, err)
			return
		}
		c.dispatch(raw)
	}
}

// dispatch parses one inbound frame, applies it to the store, emits the
// derived events, and enforces the forced disconnect on session_closed.
// Malformed frames are logged and dropped; they never touch state or the
// connection.
func (c *Client) dispatch(raw []byte) {
	msg, err := protocol.Parse(raw)
	if err != nil {
		c.log.Warn("dropping malformed lobby frame", "err", err)
		return
	}
	if !msg.Known() {
		c.log.Debug("ignoring unrecognized message type", "type", msg.Type)
		return
	}

	for _, ev := range c.store.Apply(msg) {
		c.emitter.Emit(ev)
	}

	if msg.Type == protocol.TypeSessionClosed {
		c.log.Info("session closed by server", "reason", msg.Closed.Reason)
		c.Disconnect()
	}
}

// handleReadError classifies a transport loss. Normal closure ends the
// connection quietly; anything else is reconnect-eligible.
func (c *Client) handleReadError(gen int, err error) {
	c.mu.Lock()
	if gen != c.gen || c.connState == StateDisconnected {
		// Superseded by an explicit disconnect or a newer connection.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	if closeStatus(err) == websocket.CloseNormalClosure {
		c.connState = StateDisconnected
		c.mu.Unlock()
		c.keepalive.stop()
		c.log.Info("lobby connection closed by server")
		return
	}
	c.connState = StateError
	c.mu.Unlock()

	c.keepalive.stop()
	c.log.Warn("lobby connection lost", "err", err)
	c.scheduleReconnect()
}

// scheduleReconnect arms the next backoff attempt, or gives up once attempts
// are exhausted. The attempt counter was reset on the last successful open.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.connState == StateDisconnected {
		c.mu.Unlock()
		return
	}
	if int(c.backoff.Attempt()) >= c.cfg.MaxReconnectAttempts {
		c.connState = StateDisconnected
		c.mu.Unlock()
		c.log.Error("reconnect attempts exhausted", "attempts", c.cfg.MaxReconnectAttempts)
		c.emitter.Emit(events.Error{Message: "reconnect attempts exhausted"})
		return
	}
	delay := c.backoff.Duration()
	attempt := int(c.backoff.Attempt())
	c.connState = StateConnecting
	c.reconnect = c.sched.After(delay, c.retryDial)
	c.mu.Unlock()

	c.log.Info("reconnect scheduled", "attempt", attempt, "delay", delay)
}

// retryDial runs when a backoff timer fires. A disconnect issued during the
// wait has already flipped the state and cancelled the timer, so a stale
// firing is a no-op.
func (c *Client) retryDial() {
	c.mu.Lock()
	c.reconnect = nil
	if c.connState != StateConnecting {
		c.mu.Unlock()
		return
	}
	sessionID := c.sessionID
	token := c.token()
	c.mu.Unlock()

	if token == "" {
		c.mu.Lock()
		c.connState = StateError
		c.mu.Unlock()
		c.log.Error("reconnect refused, no auth token available")
		c.emitter.Emit(events.Error{Message: "no auth token available for reconnect"})
		return
	}
	// dial schedules the next attempt itself on failure.
	if err := c.dial(context.Background(), sessionID, token); err == nil {
		// Liveness probe on the fresh transport; the server pushes a snapshot
		// on every accepted connection, so no state request is needed.
		_ = c.Ping()
	}
}

func (c *Client) token() string {
	if c.cfg.Tokens == nil {
		return ""
	}
	return c.cfg.Tokens.Token()
}

func (c *Client) lobbyURL(sessionID, token string) string {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	return fmt.Sprintf("%s/ws/lobby/%s/%s?token=%s",
		base, url.PathEscape(sessionID), c.cfg.Role, url.QueryEscape(token))
}

// closeStatus extracts the close code from a read error, or -1 when the
// transport dropped without a close frame (always abnormal).
func closeStatus(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return -1
}
