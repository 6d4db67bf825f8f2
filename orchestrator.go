package accountflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MrEthical07/accountflow/internal/flows"
)

// runner is the submission plumbing shared by both orchestrators: admission,
// one goroutine per accepted submission, the single-output channel, sink
// relay, logging and latency metrics.
type runner struct {
	engine  *Engine
	gate    *submissionGate
	timeout time.Duration
	logger  *zap.Logger
}

func newRunner(e *Engine, component string) runner {
	return runner{
		engine:  e,
		gate:    newSubmissionGate(e.config.Submission),
		timeout: e.config.Submission.Timeout,
		logger:  e.logger.With(zap.String("component", component)),
	}
}

type work func(ctx context.Context, log *zap.Logger) Output

// start admits a submission and runs w on its own goroutine. The returned
// channel yields exactly one Output and is then closed. The in-flight slot is
// released before the Output is sent. Admission errors are
// returned synchronously and produce no Output.
func (r *runner) start(ctx context.Context, flow Flow, latency MetricID, w work) (<-chan Output, error) {
	if r == nil || r.engine == nil {
		return nil, ErrEngineNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}
	e := r.engine

	if err := e.track(); err != nil {
		return nil, err
	}
	if err := r.gate.acquire(ctx); err != nil {
		e.untrack()
		switch err {
		case ErrSubmissionInFlight:
			e.metrics.Inc(MetricSubmissionInFlightRejected)
		case ErrSubmissionRateLimited:
			e.metrics.Inc(MetricSubmissionRateLimited)
		}
		r.logger.Debug("submission not accepted", zap.String("flow", string(flow)), zap.Error(err))
		return nil, err
	}

	id := uuid.NewString()
	log := r.logger.With(zap.String("flow", string(flow)), zap.String("submission_id", id))
	ch := make(chan Output, 1)

	go func() {
		defer e.untrack()
		defer close(ch)

		runCtx := ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}

		started := time.Now()
		out := w(runCtx, log)
		out.SubmissionID = id
		out.Flow = flow
		out.CompletedAt = e.now()
		if latency < metricIDCount {
			e.metrics.Observe(latency, time.Since(started))
		}

		logOutcome(log, out)
		// The slot frees before delivery so a caller can resubmit as soon
		// as it has the output.
		r.gate.release()
		ch <- out
		e.emit(out)
	}()

	return ch, nil
}

// wait blocks for the single output of an accepted submission.
func wait(ch <-chan Output, err error) (Output, error) {
	if err != nil {
		return Output{}, err
	}
	return <-ch, nil
}

func transitionLogger(log *zap.Logger) func(from, to flows.State) {
	return func(from, to flows.State) {
		log.Debug("state transition",
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
}

func logOutcome(log *zap.Logger, out Output) {
	fields := []zap.Field{}
	if out.IdentityID != "" {
		fields = append(fields, zap.String("identity_id", out.IdentityID.String()))
	}
	if out.Result.OK() {
		log.Info("submission succeeded", fields...)
		return
	}
	fields = append(fields,
		zap.String("error_kind", ErrorCode(out.Result.Err())),
		zap.Bool("orphaned", out.Orphaned),
		zap.Bool("session_established", out.SessionEstablished),
	)
	log.Warn("submission failed", fields...)
}

func normalizeAuth(err error) error {
	if err == nil {
		return nil
	}
	return AsAuthError(err)
}

func normalizePersistence(err error) error {
	if err == nil {
		return nil
	}
	return AsPersistenceError(err)
}
