package mcp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/edustream/lobbyclient/api"
	"github.com/edustream/lobbyclient/client"
	"github.com/edustream/lobbyclient/lobby"
	"github.com/edustream/lobbyclient/lobby/protocol"
	"github.com/edustream/lobbyclient/lobbytest"
)

func newTestServer(t *testing.T, srv *lobbytest.Server) *Server {
	t.Helper()
	return NewServerWithFactory(func(role lobby.Role) (*client.Client, error) {
		c, err := client.New(client.Config{
			BaseURL: srv.URL(),
			Role:    role,
			Tokens:  api.StaticToken("tok-123"),
		})
		if err != nil {
			return nil, err
		}
		t.Cleanup(c.Disconnect)
		return c, nil
	}, nil)
}

func callTool(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return tc.Text
}

func TestJoinLobbyAndState(t *testing.T) {
	srv := lobbytest.NewServer()
	defer srv.Close()
	s := newTestServer(t, srv)
	ctx := context.Background()

	res, err := s.handleJoinLobby(ctx, callTool("join_lobby", map[string]interface{}{
		"session_id": "sess-1",
		"role":       "teacher",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, textOf(t, res), "Joined lobby sess-1 as teacher")

	conn, err := srv.WaitConn(time.Second)
	require.NoError(t, err)
	require.Equal(t, "teacher", conn.Role)

	require.NoError(t, conn.Push(protocol.TypeSnapshot, protocol.Snapshot{
		ProjectID: "P1",
		Status:    "waiting",
		Students: []protocol.ParticipantInfo{
			{UserID: "u1", FirstName: "Ada", Status: "ready"},
			{UserID: "u2", FirstName: "Grace"},
		},
		MaxStudents: 30,
	}))

	require.Eventually(t, func() bool {
		res, err := s.handleLobbyState(ctx, callTool("lobby_state", map[string]interface{}{
			"session_id": "sess-1",
		}))
		require.NoError(t, err)
		return strings.Contains(textOf(t, res), "Students: 2/30 (1 ready)")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestJoinLobbyRejectsBadRole(t *testing.T) {
	srv := lobbytest.NewServer()
	defer srv.Close()
	s := newTestServer(t, srv)

	res, err := s.handleJoinLobby(context.Background(), callTool("join_lobby", map[string]interface{}{
		"session_id": "sess-1",
		"role":       "admin",
	}))
	require.NoError(t, err)
	require.True(t, res.IsError)
}

func TestToolsRequireJoinedLobby(t *testing.T) {
	srv := lobbytest.NewServer()
	defer srv.Close()
	s := newTestServer(t, srv)

	res, err := s.handleLobbyState(context.Background(), callTool("lobby_state", map[string]interface{}{
		"session_id": "nope",
	}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Contains(t, textOf(t, res), "join_lobby first")
}

func TestRoleGatedTools(t *testing.T) {
	srv := lobbytest.NewServer()
	defer srv.Close()
	s := newTestServer(t, srv)
	ctx := context.Background()

	res, err := s.handleJoinLobby(ctx, callTool("join_lobby", map[string]interface{}{
		"session_id": "sess-1",
		"role":       "student",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	_, err = srv.WaitConn(time.Second)
	require.NoError(t, err)

	res, err = s.handleStartTest(ctx, callTool("start_test", map[string]interface{}{
		"session_id": "sess-1",
	}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Contains(t, textOf(t, res), "not permitted")

	// The rejection never produced a frame.
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 0, srv.CommandCount())
}

func TestSetReadyAndLeave(t *testing.T) {
	srv := lobbytest.NewServer()
	defer srv.Close()
	s := newTestServer(t, srv)
	ctx := context.Background()

	_, err := s.handleJoinLobby(ctx, callTool("join_lobby", map[string]interface{}{
		"session_id": "sess-1",
		"role":       "student",
	}))
	require.NoError(t, err)
	conn, err := srv.WaitConn(time.Second)
	require.NoError(t, err)

	res, err := s.handleSetReady(ctx, callTool("set_ready", map[string]interface{}{
		"session_id": "sess-1",
		"ready":      true,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, textOf(t, res), "true")

	res, err = s.handleLeaveLobby(ctx, callTool("leave_lobby", map[string]interface{}{
		"session_id": "sess-1",
	}))
	require.NoError(t, err)
	require.Contains(t, textOf(t, res), "Left lobby sess-1")

	require.Eventually(t, func() bool {
		cmds := conn.Commands()
		return len(cmds) == 2 &&
			cmds[0].Action == protocol.ActionReady &&
			cmds[1].Action == protocol.ActionLeave
	}, 2*time.Second, 10*time.Millisecond)

	res, err = s.handleListLobbies(ctx, callTool("list_lobbies", nil))
	require.NoError(t, err)
	require.Contains(t, textOf(t, res), "Not connected to any lobby")
}

func TestLeaveAfterFailedJoinAllowsRejoin(t *testing.T) {
	srv := lobbytest.NewServer()
	defer srv.Close()

	// No token: every Connect fails before opening any transport.
	s := NewServerWithFactory(func(role lobby.Role) (*client.Client, error) {
		return client.New(client.Config{
			BaseURL: srv.URL(),
			Role:    role,
			Tokens:  api.StaticToken(""),
		})
	}, nil)
	ctx := context.Background()

	res, err := s.handleJoinLobby(ctx, callTool("join_lobby", map[string]interface{}{
		"session_id": "sess-1",
		"role":       "teacher",
	}))
	require.NoError(t, err)
	require.True(t, res.IsError)

	res, err = s.handleLeaveLobby(ctx, callTool("leave_lobby", map[string]interface{}{
		"session_id": "sess-1",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, textOf(t, res), "Left lobby sess-1")

	s.mu.Lock()
	_, still := s.clients["sess-1"]
	s.mu.Unlock()
	require.False(t, still, "leave_lobby must drop the registry entry for the requested session")

	// A rejoin with a different role gets a fresh client instead of the
	// role-switch refusal.
	res, err = s.handleJoinLobby(ctx, callTool("join_lobby", map[string]interface{}{
		"session_id": "sess-1",
		"role":       "student",
	}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.NotContains(t, textOf(t, res), "leave_lobby first")
}

func TestListLobbies(t *testing.T) {
	srv := lobbytest.NewServer()
	defer srv.Close()
	s := newTestServer(t, srv)
	ctx := context.Background()

	_, err := s.handleJoinLobby(ctx, callTool("join_lobby", map[string]interface{}{
		"session_id": "sess-1",
		"role":       "teacher",
	}))
	require.NoError(t, err)

	res, err := s.handleListLobbies(ctx, callTool("list_lobbies", nil))
	require.NoError(t, err)
	out := textOf(t, res)
	require.Contains(t, out, "Connected lobbies (1)")
	require.Contains(t, out, "sess-1 (role: teacher, connection: connected)")
}
