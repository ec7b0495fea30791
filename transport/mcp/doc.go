// Package mcp exposes the lobby client over the Model Context Protocol.
//
// The package implements:
//   - An MCP server whose tools wrap one lobby client per joined session
//   - Role-aware command execution (teacher vs student tools)
//   - Stdio transport for local MCP clients
//
// MCP Tools:
//
//   - join_lobby: connect to a lobby for a session id, as teacher or student
//   - leave_lobby: disconnect (students announce their departure first)
//   - lobby_state: render the current session view
//   - list_lobbies: enumerate joined lobbies
//   - set_ready: toggle the local student's readiness
//   - start_test: start the test for everyone (teacher)
//   - kick_student: remove a student (teacher)
//   - close_lobby: tear the lobby down (teacher)
//
// Role gating happens inside the lobby client, so a tool invoked with the
// wrong role returns the client's rejection without any network traffic.
package mcp
