package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edustream/lobbyclient/lobby"
	"github.com/edustream/lobbyclient/lobby/protocol"
)

// requiredRole maps each outbound action to the role allowed to send it. The
// empty role means any actor may send the action.
var requiredRole = map[string]lobby.Role{
	protocol.ActionStartTest:   lobby.RoleTeacher,
	protocol.ActionKickStudent: lobby.RoleTeacher,
	protocol.ActionCloseLobby:  lobby.RoleTeacher,
	protocol.ActionReady:       lobby.RoleStudent,
	protocol.ActionNotReady:    lobby.RoleStudent,
	protocol.ActionLeave:       lobby.RoleStudent,
	protocol.ActionPing:        "",
}

// StartTest asks the server to begin the test for everyone. Teacher only.
func (c *Client) StartTest() error {
	return c.send(protocol.Command{Action: protocol.ActionStartTest})
}

// KickStudent removes a student from the lobby. Teacher only.
func (c *Client) KickStudent(userID string) error {
	if userID == "" {
		return errors.New("kick_student requires a user id")
	}
	return c.send(protocol.Command{Action: protocol.ActionKickStudent, UserID: userID})
}

// CloseLobby tears the lobby down for all participants. Teacher only.
func (c *Client) CloseLobby() error {
	return c.send(protocol.Command{Action: protocol.ActionCloseLobby})
}

// Ready flags the local student as ready.
func (c *Client) Ready() error {
	return c.send(protocol.Command{Action: protocol.ActionReady})
}

// NotReady clears the local student's ready flag.
func (c *Client) NotReady() error {
	return c.send(protocol.Command{Action: protocol.ActionNotReady})
}

// Leave withdraws the local student from the lobby.
func (c *Client) Leave() error {
	return c.send(protocol.Command{Action: protocol.ActionLeave})
}

// Ping sends the keepalive action. Any role.
func (c *Client) Ping() error {
	return c.send(protocol.Command{Action: protocol.ActionPing})
}

// send validates the command against the local role and connection state,
// then writes it exactly once. Rejections happen before any network I/O and
// there is no automatic retry; resending is the caller's responsibility.
func (c *Client) send(cmd protocol.Command) error {
	role, ok := requiredRole[cmd.Action]
	if !ok {
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
	if role != "" && role != c.cfg.Role {
		c.log.Warn("command rejected for role", "action", cmd.Action, "requires", role)
		return fmt.Errorf("%s: %w", cmd.Action, ErrRoleViolation)
	}

	c.mu.Lock()
	conn := c.conn
	st := c.connState
	c.mu.Unlock()
	if st != StateConnected || conn == nil {
		c.log.Warn("command dropped while not connected", "action", cmd.Action, "state", st)
		return fmt.Errorf("%s: %w", cmd.Action, ErrNotConnected)
	}

	payload, err := protocol.EncodeCommand(cmd)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write %s: %w", cmd.Action, err)
	}
	return nil
}
