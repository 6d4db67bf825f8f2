package accountflow

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/accountflow/internal/events"
)

// Builder assembles an Engine. A Builder can be built once.
type Builder struct {
	config Config

	gateway AuthGateway
	store   ProfileStore
	orphans OrphanRecorder
	sink    OutputSink
	logger  *zap.Logger
	clock   func() time.Time

	built bool
}

func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithAuthGateway sets the identity backend. Required.
func (b *Builder) WithAuthGateway(g AuthGateway) *Builder {
	b.gateway = g
	return b
}

// WithProfileStore sets the profile backend. Required.
func (b *Builder) WithProfileStore(s ProfileStore) *Builder {
	b.store = s
	return b
}

func (b *Builder) WithOrphanRecorder(r OrphanRecorder) *Builder {
	b.orphans = r
	return b
}

// WithOutputSink relays every terminal Output to sink when Events are enabled.
func (b *Builder) WithOutputSink(sink OutputSink) *Builder {
	b.sink = sink
	return b
}

func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock overrides the time source used for CompletedAt and DetectedAt.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithConcurrencyPolicy(p ConcurrencyPolicy) *Builder {
	b.config.Submission.Policy = p
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.gateway == nil {
		return nil, errors.New("auth gateway required")
	}
	if b.store == nil {
		return nil, errors.New("profile store required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	var sink events.Sink[Output]
	if b.sink != nil {
		sink = b.sink
	}

	e := &Engine{
		config:  cfg,
		logger:  logger.Named("accountflow"),
		metrics: NewMetrics(cfg.Metrics),
		events: events.NewDispatcher(events.Config{
			Enabled:    cfg.Events.Enabled,
			BufferSize: cfg.Events.BufferSize,
			DropIfFull: cfg.Events.DropIfFull,
		}, sink),
		now:     clock,
		gateway: b.gateway,
		store:   b.store,
		orphans: b.orphans,
	}

	e.relay, e.stopRelay = context.WithCancel(context.Background())

	b.built = true
	return e, nil
}
