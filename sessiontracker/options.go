package sessiontracker

import (
	"time"

	"go.uber.org/zap"
)

// Option configures the Tracker.
type Option func(*Tracker)

// WithL1TTL sets how long an unchanged activity is trusted from the
// in-process tier. Default: 5 minutes.
func WithL1TTL(d time.Duration) Option {
	return func(t *Tracker) {
		t.l1TTL = d
	}
}

// WithL1Size sets the in-process tier capacity in bytes.
func WithL1Size(size int) Option {
	return func(t *Tracker) {
		t.l1Size = size
	}
}

// WithRedisKeyPrefix sets the prefix for redis hash keys.
// Default: "redis-auth:activity:".
func WithRedisKeyPrefix(p string) Option {
	return func(t *Tracker) {
		t.redisKeyPrefix = p
	}
}

// WithL2TTL sets the time-to-live for redis entries. Default: 30 days.
func WithL2TTL(d time.Duration) Option {
	return func(t *Tracker) {
		t.l2TTL = d
	}
}

func WithLogger(lg *zap.Logger) Option {
	return func(t *Tracker) {
		if lg != nil {
			t.lg = lg
		}
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}
