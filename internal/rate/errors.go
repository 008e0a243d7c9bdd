package rate

import "errors"

var (
	// ErrRateLimited is returned when the recipient's send budget is spent.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
