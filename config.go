package accountflow

import (
	"errors"
	"math"
	"time"
)

// Config controls submission handling, output delivery and metrics.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Submission SubmissionConfig
	Events     EventsConfig
	Metrics    MetricsConfig
}

/*
====================================
SUBMISSION CONFIG
====================================
*/

// ConcurrencyPolicy decides what happens to a submission made while another
// one is in flight on the same orchestrator.
type ConcurrencyPolicy int

const (
	// RejectConcurrent fails the second submission with ErrSubmissionInFlight.
	RejectConcurrent ConcurrencyPolicy = iota
	// QueueConcurrent makes the second submission wait until the first completes.
	QueueConcurrent
)

func (p ConcurrencyPolicy) String() string {
	switch p {
	case RejectConcurrent:
		return "reject"
	case QueueConcurrent:
		return "queue"
	default:
		return "unknown"
	}
}

// SubmissionConfig defines per-orchestrator acceptance rules.
type SubmissionConfig struct {
	Policy ConcurrencyPolicy
	// RateLimit is the sustained submissions per second. Zero disables throttling.
	RateLimit float64
	RateBurst int
	// Timeout bounds one whole submission. Zero means the caller's context only.
	Timeout time.Duration
}

/*
====================================
EVENTS CONFIG
====================================
*/

// EventsConfig controls relaying of terminal outputs to the configured OutputSink.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull trades exactly-once sink delivery for never blocking a
	// submission on a slow sink.
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used when Builder.WithConfig is not called.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Submission: SubmissionConfig{
			Policy: RejectConcurrent,
		},
		Events: EventsConfig{
			Enabled:    true,
			BufferSize: 64,
			DropIfFull: false,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting in c.
func (c *Config) Validate() error {
	switch c.Submission.Policy {
	case RejectConcurrent, QueueConcurrent:
	default:
		return errors.New("Submission Policy is invalid")
	}
	if c.Submission.RateLimit < 0 || math.IsNaN(c.Submission.RateLimit) || math.IsInf(c.Submission.RateLimit, 0) {
		return errors.New("Submission RateLimit must be a finite value >= 0")
	}
	if c.Submission.RateLimit > 0 && c.Submission.RateBurst < 1 {
		return errors.New("Submission RateBurst must be >= 1 when RateLimit is set")
	}
	if c.Submission.RateBurst < 0 {
		return errors.New("Submission RateBurst must be >= 0")
	}
	if c.Submission.Timeout < 0 {
		return errors.New("Submission Timeout must be >= 0")
	}

	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events BufferSize must be > 0 when Events are enabled")
	}
	if c.Events.BufferSize < 0 {
		return errors.New("Events BufferSize must be >= 0")
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}
	return nil
}
