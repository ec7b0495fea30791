// Command lobbyctl joins an EduStream test lobby from the terminal.
//
// It supports three modes:
//  1. "watch" – join as the teacher: stream lobby events and state changes
//  2. "join"  – join as a student, optionally flagging ready immediately
//  3. "mcp"   – run an MCP stdio server exposing the lobby tools to agents
//
// Configuration comes from the environment (a .env file is honored); the
// token can be overridden per invocation with --token.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/edustream/lobbyclient/api"
	"github.com/edustream/lobbyclient/client"
	"github.com/edustream/lobbyclient/config"
	"github.com/edustream/lobbyclient/lobby"
	"github.com/edustream/lobbyclient/lobby/events"
	mcptransport "github.com/edustream/lobbyclient/transport/mcp"
)

const (
	Version = "1.0.0"
	AppName = "EduStream Lobby CLI"
)

func main() {
	// Load .env if present; a missing file is fine.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
	}

	cmd := &cli.Command{
		Name:    "lobbyctl",
		Usage:   "join and coordinate an EduStream test lobby",
		Version: Version,
		Commands: []*cli.Command{
			{
				Name:  "watch",
				Usage: "join a lobby as the teacher and stream events",
				Flags: []cli.Flag{
					sessionFlag(), tokenFlag(),
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runLobby(ctx, cmd, lobby.RoleTeacher, false)
				},
			},
			{
				Name:  "join",
				Usage: "join a lobby as a student",
				Flags: []cli.Flag{
					sessionFlag(), tokenFlag(),
					&cli.BoolFlag{
						Name:  "ready",
						Usage: "flag ready immediately after joining",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runLobby(ctx, cmd, lobby.RoleStudent, cmd.Bool("ready"))
				},
			},
			{
				Name:  "mcp",
				Usage: "run an MCP stdio server exposing the lobby tools",
				Flags: []cli.Flag{tokenFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, log, err := setup(cmd)
					if err != nil {
						return err
					}
					log.Info("starting MCP stdio server", "app", AppName, "version", Version)
					return mcptransport.NewServer(cfg, log).ServeStdio()
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func sessionFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "session",
		Usage:    "project/session id of the lobby",
		Required: true,
	}
}

func tokenFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "token",
		Usage: "bearer token (overrides LOBBY_TOKEN)",
	}
}

// setup loads config, applies flag overrides, and builds the logger.
func setup(cmd *cli.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if token := cmd.String("token"); token != "" {
		cfg.Token = token
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	return cfg, log, nil
}

// runLobby connects with the given role and streams events until the session
// closes or the process is interrupted.
func runLobby(ctx context.Context, cmd *cli.Command, role lobby.Role, flagReady bool) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	sessionID := cmd.String("session")
	tokens := api.StaticToken(cfg.Token)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Best-effort pre-socket snapshot over REST; the websocket pushes the
	// authoritative one right after connect.
	rest := api.NewClient(cfg.APIBaseURL, tokens)
	if snap, err := rest.LobbySnapshot(ctx, sessionID); err != nil {
		log.Warn("pre-socket lobby snapshot unavailable", "err", err)
	} else {
		fmt.Printf("Lobby %s: %s, %d/%d students\n",
			snap.ProjectID, snap.Status, len(snap.Students), snap.MaxStudents)
	}

	c, err := client.New(client.Config{
		BaseURL:              cfg.WSBaseURL,
		Role:                 role,
		Tokens:               tokens,
		HeartbeatInterval:    cfg.HeartbeatInterval,
		BackoffBase:          cfg.BackoffBase,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		Logger:               log,
	})
	if err != nil {
		return err
	}

	done := make(chan struct{})
	subscribeAll(c, done)

	if err := c.Connect(ctx, sessionID); err != nil {
		return err
	}
	defer c.Disconnect()

	if flagReady {
		if err := c.Ready(); err != nil {
			log.Warn("could not flag ready", "err", err)
		}
	}

	select {
	case <-ctx.Done():
		log.Info("interrupted, leaving lobby")
		if role == lobby.RoleStudent {
			_ = c.Leave()
		}
	case <-done:
	}
	return nil
}

// subscribeAll prints every domain event and closes done when the session
// ends.
func subscribeAll(c *client.Client, done chan struct{}) {
	c.On(events.ChannelParticipantJoined, func(ev events.Event) {
		e := ev.(events.ParticipantJoined)
		fmt.Printf("+ %s joined (%d in lobby)\n", e.Participant.FullName(), c.Session().StudentCount())
	})
	c.On(events.ChannelParticipantLeft, func(ev events.Event) {
		e := ev.(events.ParticipantLeft)
		fmt.Printf("- %s left (%d in lobby)\n", e.Name, c.Session().StudentCount())
	})
	c.On(events.ChannelParticipantReadyChanged, func(ev events.Event) {
		e := ev.(events.ParticipantReadyChanged)
		fmt.Printf("~ %s is now %s\n", e.UserID, e.Readiness)
	})
	c.On(events.ChannelSessionStarted, func(ev events.Event) {
		e := ev.(events.SessionStarted)
		fmt.Printf("Test started for project %s\n", e.ProjectID)
	})
	c.On(events.ChannelSessionCompleted, func(ev events.Event) {
		e := ev.(events.SessionCompleted)
		fmt.Printf("Test completed for project %s\n", e.ProjectID)
	})
	c.On(events.ChannelSessionClosed, func(ev events.Event) {
		e := ev.(events.SessionClosed)
		fmt.Printf("Lobby closed: %s\n", e.Reason)
		close(done)
	})
	c.On(events.ChannelError, func(ev events.Event) {
		e := ev.(events.Error)
		fmt.Printf("Error: %s\n", e.Message)
	})
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
