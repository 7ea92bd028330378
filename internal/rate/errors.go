package rate

import "errors"

var (
	// ErrRateLimited reports that the caller exhausted the current window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
