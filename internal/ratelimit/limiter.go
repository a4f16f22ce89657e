// Package ratelimit caps how many charges a user may request per window.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrLimitExceeded is returned together with a non-nil Result when the key
// has used up its window.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// Result describes the window after a check. Rejected attempts are not counted.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter records one attempt for key if fewer than limit were accepted in
// the trailing window.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}
