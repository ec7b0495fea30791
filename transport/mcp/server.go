package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/edustream/lobbyclient/api"
	"github.com/edustream/lobbyclient/client"
	"github.com/edustream/lobbyclient/config"
	"github.com/edustream/lobbyclient/lobby"
)

// ClientFactory builds a lobby client for the given role. Swappable in tests.
type ClientFactory func(role lobby.Role) (*client.Client, error)

// Server exposes lobby operations as MCP tools so an agent can join a lobby,
// watch its state, and drive the role-gated commands.
type Server struct {
	mcpServer *server.MCPServer
	log       *slog.Logger
	newClient ClientFactory

	mu      sync.Mutex
	clients map[string]*client.Client // keyed by session id
}

// NewServer wires the MCP tool surface on top of lobby clients built from cfg.
func NewServer(cfg *config.Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		log:     log,
		clients: make(map[string]*client.Client),
		newClient: func(role lobby.Role) (*client.Client, error) {
			return client.New(client.Config{
				BaseURL:              cfg.WSBaseURL,
				Role:                 role,
				Tokens:               api.StaticToken(cfg.Token),
				HeartbeatInterval:    cfg.HeartbeatInterval,
				BackoffBase:          cfg.BackoffBase,
				MaxReconnectAttempts: cfg.MaxReconnectAttempts,
				Logger:               log,
			})
		},
	}
	s.initMCPServer()
	return s
}

// NewServerWithFactory is NewServer with a custom client factory, for tests.
func NewServerWithFactory(factory ClientFactory, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		log:       log,
		clients:   make(map[string]*client.Client),
		newClient: factory,
	}
	s.initMCPServer()
	return s
}

// ServeStdio blocks serving MCP over stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// MCPServer returns the underlying server for embedding into other transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) initMCPServer() {
	s.mcpServer = server.NewMCPServer(
		"EduStream Lobby",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`EduStream Lobby - MCP Interface

Join a test lobby as teacher or student and coordinate the session start.

AVAILABLE TOOLS:
- join_lobby: Connect to a lobby for a session id, as teacher or student
- leave_lobby: Disconnect from a lobby
- lobby_state: Show the current lobby view (status, participants, readiness)
- list_lobbies: List lobbies this server is connected to
- set_ready: Toggle the local student's readiness (student role)
- start_test: Start the test for everyone (teacher role)
- kick_student: Remove a student from the lobby (teacher role)
- close_lobby: Tear the lobby down for all participants (teacher role)

Commands are role-gated: a student connection cannot start the test and a
teacher connection cannot flag itself ready.`),
	)
	s.registerTools()
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "join_lobby",
		Description: "Connect to a test lobby for a session id, as teacher or student",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Project/session id of the lobby",
				},
				"role": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"teacher", "student"},
					"description": "Role to join with",
				},
			},
			Required: []string{"session_id", "role"},
		},
	}, s.handleJoinLobby)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "leave_lobby",
		Description: "Disconnect from a lobby",
		InputSchema: sessionIDSchema(),
	}, s.handleLeaveLobby)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "lobby_state",
		Description: "Show the current lobby view: status, participants, readiness",
		InputSchema: sessionIDSchema(),
	}, s.handleLobbyState)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_lobbies",
		Description: "List lobbies this server is connected to",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleListLobbies)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "set_ready",
		Description: "Set the local student's readiness (student role)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session id of a joined lobby",
				},
				"ready": map[string]interface{}{
					"type":        "boolean",
					"description": "true for ready, false for not ready",
				},
			},
			Required: []string{"session_id", "ready"},
		},
	}, s.handleSetReady)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "start_test",
		Description: "Start the test for all participants (teacher role)",
		InputSchema: sessionIDSchema(),
	}, s.handleStartTest)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "kick_student",
		Description: "Remove a student from the lobby (teacher role)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session id of a joined lobby",
				},
				"user_id": map[string]interface{}{
					"type":        "string",
					"description": "User id of the student to remove",
				},
			},
			Required: []string{"session_id", "user_id"},
		},
	}, s.handleKickStudent)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "close_lobby",
		Description: "Tear the lobby down for all participants (teacher role)",
		InputSchema: sessionIDSchema(),
	}, s.handleCloseLobby)
}

func sessionIDSchema() mcp.ToolInputSchema {
	return mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"session_id": map[string]interface{}{
				"type":        "string",
				"description": "Session id of a joined lobby",
			},
		},
		Required: []string{"session_id"},
	}
}

// Tool handlers

func (s *Server) handleJoinLobby(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	sessionID, _ := args["session_id"].(string)
	roleArg, _ := args["role"].(string)

	role, err := lobby.ParseRole(roleArg)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.mu.Lock()
	c, ok := s.clients[sessionID]
	if !ok {
		c, err = s.newClient(role)
		if err != nil {
			s.mu.Unlock()
			return mcp.NewToolResultError(err.Error()), nil
		}
		s.clients[sessionID] = c
	}
	s.mu.Unlock()

	if ok && c.Role() != role {
		return mcp.NewToolResultError(fmt.Sprintf(
			"already joined %s as %s; leave_lobby first to switch roles", sessionID, c.Role())), nil
	}

	if err := c.Connect(ctx, sessionID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Joined lobby %s as %s\n\n%s",
		sessionID, role, formatSession(c))), nil
}

func (s *Server) handleLeaveLobby(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, sessionID, errResult := s.lookup(request)
	if errResult != nil {
		return errResult, nil
	}

	// Students announce their departure so the roster updates immediately.
	if c.Role() == lobby.RoleStudent {
		_ = c.Leave()
	}
	c.Disconnect()

	// Delete by the requested id: a client whose Connect never succeeded has
	// no recorded session id of its own.
	s.mu.Lock()
	delete(s.clients, sessionID)
	s.mu.Unlock()

	return mcp.NewToolResultText(fmt.Sprintf("Left lobby %s", sessionID)), nil
}

func (s *Server) handleLobbyState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, _, errResult := s.lookup(request)
	if errResult != nil {
		return errResult, nil
	}
	return mcp.NewToolResultText(formatSession(c)), nil
}

func (s *Server) handleListLobbies(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)

	if len(ids) == 0 {
		return mcp.NewToolResultText("Not connected to any lobby"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Connected lobbies (%d):\n", len(ids))
	for _, id := range ids {
		s.mu.Lock()
		c := s.clients[id]
		s.mu.Unlock()
		fmt.Fprintf(&b, "- %s (role: %s, connection: %s)\n", id, c.Role(), c.State())
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleSetReady(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, _, errResult := s.lookup(request)
	if errResult != nil {
		return errResult, nil
	}
	args := request.Params.Arguments.(map[string]interface{})
	ready, _ := args["ready"].(bool)

	var err error
	if ready {
		err = c.Ready()
	} else {
		err = c.NotReady()
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Readiness set to %v", ready)), nil
}

func (s *Server) handleStartTest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, _, errResult := s.lookup(request)
	if errResult != nil {
		return errResult, nil
	}
	if err := c.StartTest(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Test start requested"), nil
}

func (s *Server) handleKickStudent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, _, errResult := s.lookup(request)
	if errResult != nil {
		return errResult, nil
	}
	args := request.Params.Arguments.(map[string]interface{})
	userID, _ := args["user_id"].(string)

	if err := c.KickStudent(userID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Kick requested for %s", userID)), nil
}

func (s *Server) handleCloseLobby(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, _, errResult := s.lookup(request)
	if errResult != nil {
		return errResult, nil
	}
	if err := c.CloseLobby(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Lobby close requested"), nil
}

// lookup resolves the session_id argument to a joined client.
func (s *Server) lookup(request mcp.CallToolRequest) (*client.Client, string, *mcp.CallToolResult) {
	args := request.Params.Arguments.(map[string]interface{})
	sessionID, _ := args["session_id"].(string)

	s.mu.Lock()
	c, ok := s.clients[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, sessionID, mcp.NewToolResultError(fmt.Sprintf("not joined to lobby %q; use join_lobby first", sessionID))
	}
	return c, sessionID, nil
}

// formatSession renders the lobby view for tool output.
func formatSession(c *client.Client) string {
	session := c.Session()

	var b strings.Builder
	fmt.Fprintf(&b, "Lobby %s\n", c.SessionID())
	fmt.Fprintf(&b, "Connection: %s\n", c.State())
	fmt.Fprintf(&b, "Status: %s\n", session.Status)
	fmt.Fprintf(&b, "Students: %d/%d (%d ready)\n",
		session.StudentCount(), session.MaxStudents, session.ReadyCount())
	for _, p := range session.Students() {
		fmt.Fprintf(&b, "- %s (%s) %s\n", p.FullName(), p.UserID, p.Readiness)
	}
	return b.String()
}
