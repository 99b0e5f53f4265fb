package locker

import (
	"context"
	"errors"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultKeyPrefix = "redis-auth:lock:"

type Option func(*redisLocker)

func WithLogger(lg *zap.Logger) Option {
	return func(l *redisLocker) {
		if lg != nil {
			l.lg = lg
		}
	}
}

func WithKeyPrefix(prefix string) Option {
	return func(l *redisLocker) {
		l.keyPrefix = prefix
	}
}

// WithDefaults replaces the per-call defaults.
func WithDefaults(opts ...LockerOption) Option {
	return func(l *redisLocker) {
		for _, opt := range opts {
			opt(l.options)
		}
	}
}

type redisLocker struct {
	lg        *zap.Logger
	rs        *redsync.Redsync
	keyPrefix string
	options   *LockerOptions
}

func getDefaultOptions() *LockerOptions {
	return &LockerOptions{
		expiry:     30 * time.Second,
		retryDelay: 200 * time.Millisecond,
		retries:    10,
	}
}

// NewRedisLocker builds a redsync locker on an existing client. The client
// stays owned by the caller.
func NewRedisLocker(client goredislib.UniversalClient, opts ...Option) Locker {
	l := &redisLocker{
		lg:        zap.L(),
		rs:        redsync.New(goredis.NewPool(client)),
		keyPrefix: DefaultKeyPrefix,
		options:   getDefaultOptions(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func createUnlocker(mutex *redsync.Mutex, lg *zap.Logger, key string) Unlocker {
	return func(ctx context.Context) error {
		ok, err := mutex.UnlockContext(ctx)
		if err != nil {
			var taken *redsync.ErrTaken
			if errors.As(err, &taken) || errors.Is(err, redsync.ErrLockAlreadyExpired) {
				lg.Debug("lock already released", zap.String("key", key))
				return nil
			}
			lg.Error("failed to unlock", zap.String("key", key), zap.Error(err))
			return err
		}
		if !ok {
			lg.Debug("lock already released", zap.String("key", key))
			return nil
		}
		lg.Debug("lock released", zap.String("key", key))
		return nil
	}
}

func (l *redisLocker) Lock(ctx context.Context, key string, opts ...LockerOption) (Unlocker, error) {
	options := *l.options
	for _, opt := range opts {
		opt(&options)
	}
	return l.acquire(ctx, key,
		redsync.WithExpiry(options.expiry),
		redsync.WithRetryDelay(options.retryDelay),
		redsync.WithTries(max(options.retries, 1)),
	)
}

func (l *redisLocker) TryLock(ctx context.Context, key string, opts ...LockerOption) (Unlocker, error) {
	options := *l.options
	for _, opt := range opts {
		opt(&options)
	}
	return l.acquire(ctx, key,
		redsync.WithExpiry(options.expiry),
		redsync.WithTries(1),
	)
}

func (l *redisLocker) acquire(ctx context.Context, key string, opts ...redsync.Option) (Unlocker, error) {
	if key == "" {
		return nil, ErrInvalidLockerKey
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	mutex := l.rs.NewMutex(l.keyPrefix+key, opts...)
	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed) {
			l.lg.Debug("failed to acquire lock", zap.String("key", key), zap.Error(err))
			return nil, ErrLockNotAcquired
		}
		l.lg.Error("error acquiring lock", zap.String("key", key), zap.Error(err))
		return nil, err
	}

	l.lg.Debug("lock acquired", zap.String("key", key))
	return createUnlocker(mutex, l.lg, key), nil
}
