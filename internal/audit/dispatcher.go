package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher decouples authentication requests from the sink: Emit hands the
// event to a buffered channel and a single worker goroutine forwards it, so
// a slow sink never sits on the request path. The backpressure policy is all
// or nothing: DropIfFull discards and counts, otherwise Emit waits for room.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool

	events  chan Event
	quit    chan struct{}
	stopped chan struct{}

	mu      sync.RWMutex
	closing bool

	closeOnce sync.Once
	dropped   atomic.Uint64
}

// NewDispatcher returns nil when auditing is disabled; a nil *Dispatcher is
// safe to use and drops everything silently.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}

	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		events:     make(chan Event, size),
		quit:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	go d.forward()
	return d
}

// forward is the single consumer. It ranges until the channel is closed, so
// events buffered before shutdown still reach the sink.
func (d *Dispatcher) forward() {
	defer close(d.stopped)
	for event := range d.events {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit enqueues one event. With DropIfFull a full buffer discards the event
// and bumps the drop counter; without it, Emit blocks until the worker makes
// room, ctx is cancelled, or the dispatcher shuts down. Emitting after Close
// is a no-op.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}

	// The read lock keeps the events channel open for the duration of the
	// send: Close cannot flip closing until every in-flight Emit returns.
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closing {
		return
	}

	if d.dropIfFull {
		select {
		case d.events <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.events <- event:
	case <-ctx.Done():
	case <-d.quit:
	}
}

// Close stops intake, waits for buffered events to reach the sink, and
// returns. Safe to call repeatedly and concurrently with Emit.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		// Unblock pending sends before taking the write lock, or a full
		// buffer would deadlock shutdown.
		close(d.quit)
		d.mu.Lock()
		d.closing = true
		d.mu.Unlock()
		close(d.events)
	})
	<-d.stopped
}

// Dropped reports how many events were discarded due to backpressure.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
