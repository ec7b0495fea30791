// Package config loads client settings from the environment.
package config

import (
	"fmt"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
)

// Config holds everything the CLI and MCP entrypoints need to build a lobby
// client. Values come from the environment; main loads .env first.
type Config struct {
	// WSBaseURL is the websocket base, e.g. ws://localhost:8000.
	WSBaseURL string `env:"LOBBY_WS_URL,default=ws://localhost:8000" validate:"required"`

	// APIBaseURL is the REST base used for the pre-socket snapshot.
	APIBaseURL string `env:"LOBBY_API_URL,default=http://localhost:8000" validate:"required,url"`

	// Token is the bearer token for both REST and websocket auth. It may be
	// empty here and supplied per-invocation instead.
	Token string `env:"LOBBY_TOKEN"`

	HeartbeatInterval    time.Duration `env:"LOBBY_HEARTBEAT_INTERVAL,default=30s"`
	BackoffBase          time.Duration `env:"LOBBY_BACKOFF_BASE,default=1s"`
	MaxReconnectAttempts int           `env:"LOBBY_MAX_RECONNECT_ATTEMPTS,default=5" validate:"gte=1"`

	LogLevel string `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`
}

// Load reads and validates the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
