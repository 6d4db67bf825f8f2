package accountflow

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/accountflow/internal/events"
)

// Engine owns the collaborators, output dispatcher and metrics shared by the
// orchestrators it creates. Build one with New().Build().
type Engine struct {
	config  Config
	logger  *zap.Logger
	metrics *Metrics
	events  *events.Dispatcher[Output]
	now     func() time.Time

	gateway AuthGateway
	store   ProfileStore
	orphans OrphanRecorder

	mu       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup

	// relay bounds waits on the output dispatcher; Close cancels it.
	relay     context.Context
	stopRelay context.CancelFunc
}

// NewAccountOrchestrator returns an orchestrator with its own in-flight slot.
func (e *Engine) NewAccountOrchestrator() *AccountOrchestrator {
	if e == nil {
		return nil
	}
	return &AccountOrchestrator{
		runner:  newRunner(e, "account"),
		gateway: e.gateway,
		store:   e.store,
		orphans: e.orphans,
	}
}

// NewSessionOrchestrator returns an orchestrator with its own in-flight slot.
func (e *Engine) NewSessionOrchestrator() *SessionOrchestrator {
	if e == nil {
		return nil
	}
	return &SessionOrchestrator{
		runner:  newRunner(e, "session"),
		gateway: e.gateway,
		store:   e.store,
	}
}

// Close rejects new submissions, waits for in-flight ones to deliver their
// outputs, then drains the output dispatcher. It does not wait on an
// OutputSink that stopped accepting outputs: outputs still waiting for room
// are dropped. Those refused by the dispatcher count in EventsDropped.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	if e.stopRelay != nil {
		e.stopRelay()
	}
	e.events.Abort()
	e.inflight.Wait()
	e.events.Close()
	_ = e.logger.Sync()
}

// EventsDropped returns the number of outputs not relayed to the OutputSink.
func (e *Engine) EventsDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.events.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

func (e *Engine) track() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrEngineClosed
	}
	e.inflight.Add(1)
	return nil
}

func (e *Engine) untrack() {
	e.inflight.Done()
}

func (e *Engine) emit(out Output) {
	if e.events == nil {
		return
	}
	if !e.events.Emit(e.relay, out) {
		e.logger.Warn("output not relayed to sink",
			zap.String("submission_id", out.SubmissionID),
			zap.String("flow", string(out.Flow)),
		)
	}
}
