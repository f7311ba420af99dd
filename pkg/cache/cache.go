package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotHeld is returned when a lease is released by someone who no longer owns it.
var ErrNotHeld = errors.New("lease not held")

// Locker hands out short-lived exclusive leases on a key.
type Locker interface {
	// Acquire returns a token when the lease was obtained, or ok=false when someone else holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}
