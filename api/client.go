// Package api is the thin REST collaborator client: it carries the bearer
// token used by both REST calls and the lobby websocket, and fetches the
// pre-socket lobby snapshot. Token issuance lives elsewhere.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/edustream/lobbyclient/lobby/protocol"
)

// TokenProvider supplies the current bearer token. An empty string means no
// token is available.
type TokenProvider interface {
	Token() string
}

// StaticToken is a TokenProvider for a fixed token.
type StaticToken string

// Token implements TokenProvider.
func (t StaticToken) Token() string { return string(t) }

// Client calls the EduStream REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider
}

// NewClient creates a REST client for the given base URL, e.g.
// "http://localhost:8000".
func NewClient(baseURL string, tokens TokenProvider) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		tokens: tokens,
	}
}

// LobbySnapshot fetches the current lobby state for a project before the
// websocket is opened. The payload matches the snapshot message shape.
func (c *Client) LobbySnapshot(ctx context.Context, projectID string) (*protocol.Snapshot, error) {
	var snap protocol.Snapshot
	if err := c.get(ctx, "/api/v1/projects/"+projectID+"/lobby", &snap); err != nil {
		return nil, fmt.Errorf("lobby snapshot for %s: %w", projectID, err)
	}
	return &snap, nil
}

// get performs an authorized GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
