package events

import "sync"

// Handler receives every event emitted on the channel it subscribed to.
type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

// Emitter dispatches events to subscribers of the matching channel. Any
// number of subscribers may listen on one channel; handlers run synchronously
// in subscription order on the emitting goroutine.
type Emitter struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]subscription
}

// NewEmitter returns an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[string][]subscription)}
}

// Subscribe registers a handler on a channel and returns its unsubscribe
// function. Unsubscribing twice is harmless.
func (e *Emitter) Subscribe(channel string, fn Handler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.subs[channel] = append(e.subs[channel], subscription{id: id, fn: fn})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		subs := e.subs[channel]
		for i, s := range subs {
			if s.id == id {
				e.subs[channel] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers the event to every subscriber of its channel.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	subs := e.subs[ev.Channel()]
	e.mu.RUnlock()

	for _, s := range subs {
		s.fn(ev)
	}
}
