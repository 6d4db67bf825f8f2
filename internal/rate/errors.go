package rate

import "errors"

var (
	// ErrRateLimited reports a subject that has used its attempt budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps any Redis command failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
