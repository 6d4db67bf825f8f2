package main

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Redis struct {
	Addr   string `mapstructure:"addr"`
	Prefix string `mapstructure:"prefix"`
}

type Postgres struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

// Guard bounds failed sign-ins per email. It needs the redis store;
// MaxAttempts 0 disables it.
type Guard struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Window      time.Duration `mapstructure:"window"`
}

type Log struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
	File  string `mapstructure:"file"`
}

type Metrics struct {
	Addr   string        `mapstructure:"addr"`
	Linger time.Duration `mapstructure:"linger"`
}

type Config struct {
	Store       string        `mapstructure:"store"` // memory / redis / postgres
	Accounts    int           `mapstructure:"accounts"`
	Concurrency int           `mapstructure:"concurrency"`
	Ops         int           `mapstructure:"ops"`
	Bursts      int           `mapstructure:"bursts"`
	Policy      string        `mapstructure:"policy"` // reject / queue
	Timeout     time.Duration `mapstructure:"timeout"`
	Outputs     string        `mapstructure:"outputs"`

	Redis    Redis    `mapstructure:"redis"`
	Postgres Postgres `mapstructure:"postgres"`
	Guard    Guard    `mapstructure:"guard"`
	Log      Log      `mapstructure:"log"`
	Metrics  Metrics  `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store", "redis")
	v.SetDefault("accounts", 500)
	v.SetDefault("concurrency", 32)
	v.SetDefault("ops", 5000)
	v.SetDefault("bursts", 200)
	v.SetDefault("policy", "reject")
	v.SetDefault("timeout", 5*time.Second)
	v.SetDefault("outputs", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.prefix", "af-load")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_open_conns", 20)
	v.SetDefault("postgres.log_level", "warn")
	v.SetDefault("guard.max_attempts", 5)
	v.SetDefault("guard.window", 15*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.linger", time.Duration(0))
}

// load resolves settings from defaults, an optional YAML file,
// ACCOUNTFLOW_* environment variables and explicitly set flags, in
// increasing precedence.
func load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("accountflow-loadtest", flag.ContinueOnError)
	var (
		path        = fs.String("config", "", "optional YAML config file")
		store       = fs.String("store", "", "profile store: memory, redis or postgres")
		accounts    = fs.Int("accounts", 0, "number of accounts to create")
		concurrency = fs.Int("concurrency", 0, "number of concurrent workers")
		ops         = fs.Int("ops", 0, "sign-in operations")
		bursts      = fs.Int("bursts", 0, "double-submit bursts")
		policy      = fs.String("policy", "", "concurrent submit policy: reject or queue")
		redisAddr   = fs.String("redis-addr", "", "redis address; miniredis is used when empty")
		pgDSN       = fs.String("postgres-dsn", "", "postgres DSN for the postgres store")
		logLevel    = fs.String("log-level", "", "log level")
		metricsAddr = fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("ACCOUNTFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if *path != "" {
		v.SetConfigFile(*path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "store":
			v.Set("store", *store)
		case "accounts":
			v.Set("accounts", *accounts)
		case "concurrency":
			v.Set("concurrency", *concurrency)
		case "ops":
			v.Set("ops", *ops)
		case "bursts":
			v.Set("bursts", *bursts)
		case "policy":
			v.Set("policy", *policy)
		case "redis-addr":
			v.Set("redis.addr", *redisAddr)
		case "postgres-dsn":
			v.Set("postgres.dsn", *pgDSN)
		case "log-level":
			v.Set("log.level", *logLevel)
		case "metrics-addr":
			v.Set("metrics.addr", *metricsAddr)
		}
	})

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.Accounts <= 0 || c.Concurrency <= 0 || c.Ops < 0 || c.Bursts < 0 {
		return errors.New("accounts and concurrency must be > 0; ops and bursts must be >= 0")
	}
	switch c.Store {
	case "memory", "redis":
	case "postgres":
		if c.Postgres.DSN == "" {
			return errors.New("postgres store requires postgres.dsn")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.Guard.MaxAttempts < 0 {
		return errors.New("guard.max_attempts must be >= 0")
	}
	if c.Guard.MaxAttempts > 0 && c.Guard.Window <= 0 {
		return errors.New("guard.window must be > 0 when the guard is enabled")
	}
	switch c.Policy {
	case "reject", "queue":
	default:
		return fmt.Errorf("unknown policy %q", c.Policy)
	}
	return nil
}
