package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/accountflow"
	"github.com/MrEthical07/accountflow/internal/logging"
	"github.com/MrEthical07/accountflow/metrics/export/internaldefs"
	"github.com/MrEthical07/accountflow/metrics/export/prometheus"
	"github.com/MrEthical07/accountflow/provider/gormstore"
	"github.com/MrEthical07/accountflow/provider/memory"
	"github.com/MrEthical07/accountflow/provider/redisstore"
)

func main() {
	cfg, err := load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, flush := logging.Build(logging.Options{
		Level: cfg.Log.Level,
		JSON:  cfg.Log.JSON,
		Rotate: logging.FileRotate{
			Enable:     cfg.Log.File != "",
			Filename:   cfg.Log.File,
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
	})
	defer flush()

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("load test failed", zap.Error(err))
		flush()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config, logger *zap.Logger) error {
	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.close()

	inner, err := memory.NewGateway()
	if err != nil {
		return fmt.Errorf("auth gateway: %w", err)
	}
	var gateway accountflow.AuthGateway = inner
	if backend.redis != nil && cfg.Guard.MaxAttempts > 0 {
		gateway, err = redisstore.NewSignInGuard(inner, backend.redis, cfg.Redis.Prefix, redisstore.GuardConfig{
			MaxAttempts: cfg.Guard.MaxAttempts,
			Window:      cfg.Guard.Window,
			Logger:      logger,
		})
		if err != nil {
			return fmt.Errorf("sign-in guard: %w", err)
		}
		logger.Info("sign-in guard enabled", zap.Int("max_attempts", cfg.Guard.MaxAttempts))
	}

	var sink accountflow.OutputSink = accountflow.NoOpSink{}
	if cfg.Outputs != "" {
		f, err := os.Create(cfg.Outputs)
		if err != nil {
			return fmt.Errorf("open outputs file: %w", err)
		}
		defer f.Close()
		sink = accountflow.NewJSONWriterSink(f)
	}

	engineCfg := accountflow.DefaultConfig()
	engineCfg.Submission.Timeout = cfg.Timeout
	engineCfg.Events.BufferSize = 1024
	engineCfg.Metrics.EnableLatencyHistograms = true
	policy := accountflow.RejectConcurrent
	if cfg.Policy == "queue" {
		policy = accountflow.QueueConcurrent
	}

	b := accountflow.New().
		WithConfig(engineCfg).
		WithConcurrencyPolicy(policy).
		WithAuthGateway(gateway).
		WithProfileStore(backend.store).
		WithOutputSink(sink).
		WithLogger(logger)
	if backend.orphans != nil {
		b.WithOrphanRecorder(backend.orphans)
	}
	engine, err := b.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	exporter := prometheus.NewExporter(engine)
	if cfg.Metrics.Addr != "" {
		stop, err := serveMetrics(cfg.Metrics.Addr, exporter, logger)
		if err != nil {
			return err
		}
		defer func() {
			if cfg.Metrics.Linger > 0 {
				logger.Info("metrics still served", zap.Duration("linger", cfg.Metrics.Linger))
				time.Sleep(cfg.Metrics.Linger)
			}
			stop()
		}()
	}

	logger.Info("load test starting",
		zap.String("store", cfg.Store),
		zap.Int("accounts", cfg.Accounts),
		zap.Int("concurrency", cfg.Concurrency),
		zap.Stringer("policy", policy),
	)

	seedStart := time.Now()
	creds, createStats := runCreatePhase(ctx, engine, cfg.Accounts, cfg.Concurrency)
	logger.Info("accounts created", zap.Int("accounts", len(creds)), zap.Duration("took", time.Since(seedStart).Round(time.Millisecond)))
	if len(creds) == 0 {
		return errors.New("no account could be created")
	}

	signInStats := runSignInPhase(ctx, engine, creds, cfg.Ops, cfg.Concurrency)
	burst := runBurstPhase(ctx, engine, cfg.Bursts)

	engine.Close()

	fmt.Println("---- results ----")
	printStats("create", createStats)
	printStats("sign-in", signInStats)
	fmt.Printf("bursts: submitted=%d accepted=%d rejected=%d\n", burst.submitted, burst.accepted, burst.rejected)
	printCounters(os.Stdout, engine.MetricsSnapshot(), engine.EventsDropped())

	if backend.orphans != nil {
		if n, err := backend.orphans.Count(ctx); err == nil && n > 0 {
			logger.Warn("orphaned identities pending", zap.Int64("count", n))
		}
	}
	return nil
}

type backend struct {
	store   accountflow.ProfileStore
	orphans *redisstore.OrphanLedger
	redis   redis.UniversalClient
	close   func()
}

func openBackend(ctx context.Context, cfg *Config, logger *zap.Logger) (*backend, error) {
	switch cfg.Store {
	case "memory":
		return &backend{store: memory.NewStore(), close: func() {}}, nil

	case "postgres":
		db, err := gormstore.Open(gormstore.Opts{
			DSN:          cfg.Postgres.DSN,
			MaxOpenConns: cfg.Postgres.MaxOpenConns,
			LogLevel:     cfg.Postgres.LogLevel,
		})
		if err != nil {
			return nil, err
		}
		store := gormstore.New(db)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate profiles: %w", err)
		}
		logger.Info("using postgres profile store")
		return &backend{store: store, close: func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}}, nil
	}

	addr := cfg.Redis.Addr
	closeFns := []func(){}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start miniredis: %w", err)
		}
		addr = mr.Addr()
		closeFns = append(closeFns, mr.Close)
		logger.Info("using miniredis", zap.String("addr", addr))
	} else {
		logger.Info("using redis", zap.String("addr", addr))
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		for _, fn := range closeFns {
			fn()
		}
		return nil, fmt.Errorf("%w: %v", redisstore.ErrRedisUnavailable, err)
	}
	return &backend{
		store:   redisstore.NewProfileStore(client, cfg.Redis.Prefix),
		orphans: redisstore.NewOrphanLedger(client, cfg.Redis.Prefix),
		redis:   client,
		close: func() {
			_ = client.Close()
			for _, fn := range closeFns {
				fn()
			}
		},
	}, nil
}

func serveMetrics(addr string, exporter *prometheus.Exporter, logger *zap.Logger) (func(), error) {
	handler, err := exporter.Handler()
	if err != nil {
		return nil, fmt.Errorf("metrics handler: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func printCounters(w io.Writer, s accountflow.MetricsSnapshot, dropped uint64) {
	for _, def := range internaldefs.CounterDefs {
		if v := s.Counters[def.ID]; v > 0 {
			fmt.Fprintf(w, "%s %d\n", def.Name, v)
		}
	}
	fmt.Fprintf(w, "%s %d\n", internaldefs.EventsDroppedName, dropped)
}
