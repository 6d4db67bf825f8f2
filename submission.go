package accountflow

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// submissionGate admits at most one submission at a time and optionally
// throttles admissions with a token bucket.
type submissionGate struct {
	policy  ConcurrencyPolicy
	slot    *semaphore.Weighted
	limiter *rate.Limiter
}

func newSubmissionGate(cfg SubmissionConfig) *submissionGate {
	g := &submissionGate{
		policy: cfg.Policy,
		slot:   semaphore.NewWeighted(1),
	}
	if cfg.RateLimit > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	return g
}

// acquire takes the in-flight slot. A rejected or throttled submission
// leaves the slot free. The caller must call release after a nil return.
func (g *submissionGate) acquire(ctx context.Context) error {
	switch g.policy {
	case QueueConcurrent:
		if err := g.slot.Acquire(ctx, 1); err != nil {
			return err
		}
	default:
		if !g.slot.TryAcquire(1) {
			return ErrSubmissionInFlight
		}
	}

	if g.limiter != nil && !g.limiter.Allow() {
		g.slot.Release(1)
		return ErrSubmissionRateLimited
	}
	return nil
}

func (g *submissionGate) release() {
	g.slot.Release(1)
}
