package client

import (
	"log/slog"
	"sync"
	"time"
)

// keepAlive issues the app-level ping on a fixed interval while the
// connection is up. It is started on every successful open and stopped the
// moment the connection leaves the connected state, so it never runs across
// a reconnect wait.
type keepAlive struct {
	sched    Scheduler
	interval time.Duration
	send     func() error
	log      *slog.Logger

	mu      sync.Mutex
	running bool
	timer   Timer
}

func newKeepAlive(sched Scheduler, interval time.Duration, send func() error, log *slog.Logger) *keepAlive {
	return &keepAlive{sched: sched, interval: interval, send: send, log: log}
}

func (k *keepAlive) start() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.running {
		return
	}
	k.running = true
	k.timer = k.sched.After(k.interval, k.tick)
}

func (k *keepAlive) stop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.running = false
	if k.timer != nil {
		k.timer.Stop()
		k.timer = nil
	}
}

// tick re-arms first, then sends outside the lock; the ping path takes the
// client's own locks.
func (k *keepAlive) tick() {
	k.mu.Lock()
	if !k.running {
		k.mu.Unlock()
		return
	}
	k.timer = k.sched.After(k.interval, k.tick)
	k.mu.Unlock()

	if err := k.send(); err != nil {
		k.log.Warn("keepalive ping failed", "err", err)
	}
}
