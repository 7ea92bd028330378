package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// MaxBatch caps the events handed to a [BatchSink] in one call. Values
	// below 2 deliver one event at a time.
	MaxBatch int
}

// BatchSink is a [Sink] that can take several events in one call, e.g. to
// write them with a single syscall. The slice is reused after the call
// returns and must not be retained.
type BatchSink interface {
	Sink
	EmitBatch(ctx context.Context, events []Event)
}

// Dispatcher queues events from request goroutines and hands them to a sink
// from a single relay goroutine. Whatever is already queued when the relay
// wakes up is delivered together. A nil *Dispatcher is valid and drops
// everything.
type Dispatcher struct {
	queue      chan Event
	stop       chan struct{}
	stopped    chan struct{}
	stopOnce   sync.Once
	dropIfFull bool
	maxBatch   int
	deliver    func(ctx context.Context, batch []Event)
	dropped    atomic.Uint64
}

// NewDispatcher starts the relay goroutine. It returns nil when cfg is
// disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.MaxBatch < 1 {
		cfg.MaxBatch = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		queue:      make(chan Event, cfg.BufferSize),
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
		maxBatch:   cfg.MaxBatch,
		deliver:    deliveryFor(sink),
	}
	go d.run()
	return d
}

func deliveryFor(sink Sink) func(context.Context, []Event) {
	if bs, ok := sink.(BatchSink); ok {
		return func(ctx context.Context, batch []Event) {
			if len(batch) == 1 {
				bs.Emit(ctx, batch[0])
				return
			}
			bs.EmitBatch(ctx, batch)
		}
	}
	return func(ctx context.Context, batch []Event) {
		for _, e := range batch {
			sink.Emit(ctx, e)
		}
	}
}

func (d *Dispatcher) run() {
	defer close(d.stopped)
	ctx := context.Background()
	batch := make([]Event, 0, d.maxBatch)

	for {
		select {
		case e := <-d.queue:
			batch = d.fill(append(batch[:0], e))
			d.deliver(ctx, batch)
		case <-d.stop:
			for {
				batch = d.fill(batch[:0])
				if len(batch) == 0 {
					return
				}
				d.deliver(ctx, batch)
			}
		}
	}
}

// fill tops batch up from the queue without waiting.
func (d *Dispatcher) fill(batch []Event) []Event {
	for len(batch) < d.maxBatch {
		select {
		case e := <-d.queue:
			batch = append(batch, e)
		default:
			return batch
		}
	}
	return batch
}

// Emit queues event, stamping it with the current time when it has none.
// With DropIfFull a full queue counts a drop instead of blocking; otherwise
// Emit waits for room, ctx or Close. Events emitted after Close are ignored.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.stopping() {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.stop:
	}
}

func (d *Dispatcher) stopping() bool {
	select {
	case <-d.stop:
		return true
	default:
		return false
	}
}

// Close stops intake, delivers everything still queued and waits for the
// relay to exit. It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() { close(d.stop) })
	<-d.stopped
}

// Dropped reports how many events were discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
