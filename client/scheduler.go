package client

import "time"

// Scheduler abstracts one-shot timer creation so reconnect backoff and the
// keepalive interval can be driven by a deterministic fake in tests.
type Scheduler interface {
	After(d time.Duration, fn func()) Timer
}

// Timer is a cancellable pending callback. Stop reports whether the callback
// was prevented from running.
type Timer interface {
	Stop() bool
}

// NewScheduler returns the wall-clock Scheduler used in production.
func NewScheduler() Scheduler {
	return clockScheduler{}
}

type clockScheduler struct{}

func (clockScheduler) After(d time.Duration, fn func()) Timer {
	return clockTimer{t: time.AfterFunc(d, fn)}
}

type clockTimer struct {
	t *time.Timer
}

func (t clockTimer) Stop() bool {
	return t.t.Stop()
}
