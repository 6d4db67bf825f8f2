package rate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds fixed-window tuning.
type Config struct {
	// Prefix namespaces the counter keys, e.g. "af:signin".
	Prefix      string
	MaxAttempts int
	Window      time.Duration
}

// Window counts attempts per subject in Redis fixed windows. Subjects are
// hashed before use in keys, so raw emails never reach Redis.
type Window struct {
	redis  redis.UniversalClient
	config Config
}

func New(redisClient redis.UniversalClient, cfg Config) (*Window, error) {
	if redisClient == nil {
		return nil, errors.New("rate: redis client is nil")
	}
	if cfg.MaxAttempts < 1 {
		return nil, errors.New("rate: MaxAttempts must be >= 1")
	}
	if cfg.Window <= 0 {
		return nil, errors.New("rate: Window must be > 0")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "rl"
	}
	return &Window{redis: redisClient, config: cfg}, nil
}

// Take atomically counts one attempt and reports ErrRateLimited, with the
// new count, when it goes past MaxAttempts. A refused attempt stays counted
// until Release or Reset.
func (w *Window) Take(ctx context.Context, subject string) (int64, error) {
	count, err := w.Hit(ctx, subject)
	if err != nil {
		return 0, err
	}
	if count > int64(w.config.MaxAttempts) {
		return count, ErrRateLimited
	}
	return count, nil
}

// releaseScript decrements a live counter and never creates or negates one.
var releaseScript = redis.NewScript(`
local n = tonumber(redis.call("GET", KEYS[1]) or "0")
if n > 0 then
  return redis.call("DECR", KEYS[1])
end
return 0
`)

// Release gives back one attempt taken with Take.
func (w *Window) Release(ctx context.Context, subject string) error {
	if err := releaseScript.Run(ctx, w.redis, []string{w.key(subject)}).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Hit records one attempt and returns the count in the current window.
func (w *Window) Hit(ctx context.Context, subject string) (int64, error) {
	key := w.key(subject)
	count, err := w.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := w.redis.Expire(ctx, key, w.config.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}

func (w *Window) Reset(ctx context.Context, subject string) error {
	if err := w.redis.Del(ctx, w.key(subject)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the count in the current window. Missing keys count as zero.
func (w *Window) Attempts(ctx context.Context, subject string) (int, error) {
	count, err := w.redis.Get(ctx, w.key(subject)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (w *Window) key(subject string) string {
	return w.config.Prefix + ":" + HashSubject(subject)
}

// HashSubject normalizes subject (trimmed, lower-cased) and returns its
// hex SHA-256.
func HashSubject(subject string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(subject))))
	return hex.EncodeToString(sum[:])
}
