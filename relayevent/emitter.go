package relayevent

import (
	"sync"

	"go.uber.org/atomic"
)

// DefaultQueueSize is the event queue capacity used when none is given.
const DefaultQueueSize = 256

// Sender is the sending side of the event channel.
type Sender interface {
	Emit(Event) error
}

// Stats holds emitter delivery statistics.
type Stats struct {
	Delivered int64
	Dropped   int64
}

// Emitter is a bounded channel of events from the relay manager to the
// forwarding engine. Emit never blocks: an event that does not fit is a
// delivery failure and the event is dropped.
type Emitter struct {
	mtx    sync.RWMutex
	closed bool
	queue  chan Event

	delivered atomic.Int64
	dropped   atomic.Int64
}

var _ Sender = &Emitter{}

// NewEmitter returns an emitter buffering up to size events. A non positive
// size selects the default.
func NewEmitter(size int) *Emitter {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Emitter{
		queue: make(chan Event, size),
	}
}

// Emit hands ev to the receiver. On error the event is not delivered and the
// caller keeps no reference to it.
func (e *Emitter) Emit(ev Event) error {
	if ev.Payload == nil || ev.Type != ev.Payload.EventType() {
		e.dropped.Inc()
		return ErrInvalidEvent
	}
	e.mtx.RLock()
	defer e.mtx.RUnlock()
	if e.closed {
		e.dropped.Inc()
		return ErrEmitterClosed
	}
	select {
	case e.queue <- ev:
		e.delivered.Inc()
		return nil
	default:
		e.dropped.Inc()
		return ErrDeliveryFailed
	}
}

// Events returns the receiving side of the channel. It is closed by Close.
func (e *Emitter) Events() <-chan Event {
	return e.queue
}

// Close stops accepting events and closes the receiving channel, events
// already queued remain readable.
func (e *Emitter) Close() {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.queue)
}

// Stats returns a copy of the delivery statistics.
func (e *Emitter) Stats() Stats {
	return Stats{
		Delivered: e.delivered.Load(),
		Dropped:   e.dropped.Load(),
	}
}
