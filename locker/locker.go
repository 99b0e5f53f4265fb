package locker

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidLockerKey = errors.New("invalid locker key")
	ErrLockNotAcquired  = errors.New("lock not acquired")
)

// Unlocker releases a held lock. Releasing an already expired lock is not
// an error.
type Unlocker func(ctx context.Context) error

// Locker is a cross-process mutex keyed by name.
type Locker interface {
	// Lock waits, retrying, until key is free.
	Lock(ctx context.Context, key string, opts ...LockerOption) (Unlocker, error)
	// TryLock makes a single attempt.
	TryLock(ctx context.Context, key string, opts ...LockerOption) (Unlocker, error)
}

type LockerOptions struct {
	expiry     time.Duration
	retryDelay time.Duration
	retries    int
}

type LockerOption func(*LockerOptions)

// WithExpiry bounds how long a lock is held if its owner never unlocks.
func WithExpiry(expiry time.Duration) LockerOption {
	return func(o *LockerOptions) {
		o.expiry = expiry
	}
}

func WithRetryDelay(retryDelay time.Duration) LockerOption {
	return func(o *LockerOptions) {
		o.retryDelay = retryDelay
	}
}

func WithRetries(retries int) LockerOption {
	return func(o *LockerOptions) {
		o.retries = retries
	}
}
