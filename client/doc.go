// Package client implements the lobby websocket client: connection lifecycle
// with reconnect-with-backoff, an app-level keepalive, a role-gated command
// gateway, and a subscribable view of the session state.
//
// One Client owns one logical connection per (session, actor) pair. All state
// mutation funnels through a single dispatch path; readers only ever see
// copies. Disconnect is the sole cancellation primitive and always cancels
// pending reconnect and keepalive timers.
package client
