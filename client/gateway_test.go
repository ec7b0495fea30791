package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edustream/lobbyclient/lobby"
	"github.com/edustream/lobbyclient/lobby/protocol"
	"github.com/edustream/lobbyclient/lobbytest"
)

func TestGatewayRejectsWrongRole(t *testing.T) {
	srv := lobbytest.NewServer()
	defer srv.Close()
	sched := &fakeScheduler{}

	student := newTestClient(t, srv.URL(), lobby.RoleStudent, sched)
	require.NoError(t, student.Connect(context.Background(), "sess-1"))
	_, err := srv.WaitConn(time.Second)
	require.NoError(t, err)

	require.ErrorIs(t, student.StartTest(), ErrRoleViolation)
	require.ErrorIs(t, student.KickStudent("u1"), ErrRoleViolation)
	require.ErrorIs(t, student.CloseLobby(), ErrRoleViolation)

	teacher := newTestClient(t, srv.URL(), lobby.RoleTeacher, sched)
	require.NoError(t, teacher.Connect(context.Background(), "sess-1"))
	_, err = srv.WaitConn(time.Second)
	require.NoError(t, err)

	require.ErrorIs(t, teacher.Ready(), ErrRoleViolation)
	require.ErrorIs(t, teacher.NotReady(), ErrRoleViolation)
	require.ErrorIs(t, teacher.Leave(), ErrRoleViolation)

	// Rejections happen before any network I/O: nothing reached the server.
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 0, srv.CommandCount())
}

func TestGatewayRejectsWhenNotConnected(t *testing.T) {
	sched := &fakeScheduler{}
	c := newTestClient(t, "ws://localhost:8000", lobby.RoleTeacher, sched)

	require.ErrorIs(t, c.StartTest(), ErrNotConnected)
	require.ErrorIs(t, c.Ping(), ErrNotConnected)
}

func TestGatewayKickStudentRequiresUserID(t *testing.T) {
	sched := &fakeScheduler{}
	c := newTestClient(t, "ws://localhost:8000", lobby.RoleTeacher, sched)

	require.Error(t, c.KickStudent(""))
}

func TestGatewayTransmitsTeacherCommands(t *testing.T) {
	srv := lobbytest.NewServer()
	defer srv.Close()
	sched := &fakeScheduler{}
	c := newTestClient(t, srv.URL(), lobby.RoleTeacher, sched)

	require.NoError(t, c.Connect(context.Background(), "sess-1"))
	conn, err := srv.WaitConn(time.Second)
	require.NoError(t, err)

	require.NoError(t, c.StartTest())
	require.NoError(t, c.KickStudent("u1"))
	require.NoError(t, c.CloseLobby())
	require.NoError(t, c.Ping())

	require.Eventually(t, func() bool { return len(conn.Commands()) == 4 },
		2*time.Second, 10*time.Millisecond)

	cmds := conn.Commands()
	require.Equal(t, protocol.Command{Action: protocol.ActionStartTest}, cmds[0])
	require.Equal(t, protocol.Command{Action: protocol.ActionKickStudent, UserID: "u1"}, cmds[1])
	require.Equal(t, protocol.Command{Action: protocol.ActionCloseLobby}, cmds[2])
	require.Equal(t, protocol.Command{Action: protocol.ActionPing}, cmds[3])
}

func TestGatewayTransmitsStudentCommands(t *testing.T) {
	srv := lobbytest.NewServer()
	defer srv.Close()
	sched := &fakeScheduler{}
	c := newTestClient(t, srv.URL(), lobby.RoleStudent, sched)

	require.NoError(t, c.Connect(context.Background(), "sess-1"))
	conn, err := srv.WaitConn(time.Second)
	require.NoError(t, err)

	require.NoError(t, c.Ready())
	require.NoError(t, c.NotReady())
	require.NoError(t, c.Leave())

	require.Eventually(t, func() bool { return len(conn.Commands()) == 3 },
		2*time.Second, 10*time.Millisecond)

	cmds := conn.Commands()
	require.Equal(t, protocol.ActionReady, cmds[0].Action)
	require.Equal(t, protocol.ActionNotReady, cmds[1].Action)
	require.Equal(t, protocol.ActionLeave, cmds[2].Action)
}
