package events

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

// Sink receives dispatched events on the dispatcher goroutine.
type Sink[E any] interface {
	Deliver(ctx context.Context, event E)
}

// Dispatcher asynchronously forwards events to a sink in submission order.
type Dispatcher[E any] struct {
	cfg       Config
	sink      Sink[E]
	ch        chan E
	done      chan struct{}
	wg        sync.WaitGroup
	delivered atomic.Uint64
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once

	// ctx is handed to the sink; Abort cancels it.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewDispatcher starts a dispatcher. It returns nil when cfg is disabled or
// sink is nil; every method is safe on a nil *Dispatcher.
func NewDispatcher[E any](cfg Config, sink Sink[E]) *Dispatcher[E] {
	if !cfg.Enabled || sink == nil {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}

	d := &Dispatcher[E]{
		cfg:  cfg,
		sink: sink,
		ch:   make(chan E, cfg.BufferSize),
		done: make(chan struct{}),
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher[E]) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher[E]) deliver(event E) {
	d.sink.Deliver(d.ctx, event)
	d.delivered.Add(1)
}

// Emit enqueues event. With DropIfFull it never blocks and counts a drop
// when the buffer is full; otherwise it waits for room, ctx or Close.
// It reports whether the event was enqueued.
func (d *Dispatcher[E]) Emit(ctx context.Context, event E) bool {
	if d == nil || d.closed.Load() {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
			return true
		case <-d.done:
			return false
		default:
			d.dropped.Add(1)
			return false
		}
	}

	select {
	case d.ch <- event:
		return true
	default:
	}
	select {
	case d.ch <- event:
		return true
	case <-ctx.Done():
		d.dropped.Add(1)
		return false
	case <-d.done:
		return false
	}
}

// Abort cancels the context passed to the sink, so a sink that honors it
// stops waiting on its consumer. Events it then refuses are lost.
func (d *Dispatcher[E]) Abort() {
	if d == nil {
		return
	}
	d.cancel()
}

// Close stops intake and drains buffered events before returning.
func (d *Dispatcher[E]) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
		d.cancel()
	})
}

func (d *Dispatcher[E]) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *Dispatcher[E]) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
