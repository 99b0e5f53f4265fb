package autoconfig

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/infigaming-com/go-authredis/cache"
	"github.com/infigaming-com/go-authredis/config"
	"github.com/infigaming-com/go-authredis/locker"
	"github.com/infigaming-com/go-authredis/observability/metrics"
	"github.com/infigaming-com/go-authredis/redismanager"
	"github.com/infigaming-com/go-authredis/security"
	"github.com/infigaming-com/go-authredis/session"
)

const DefaultWarmUpTimeout = 5 * time.Second

type (
	RedisManagerFactory    func(cfg config.RedisManagerConfig) (redismanager.Manager, error)
	SessionStoreFactory    func(m redismanager.Manager, cfg config.SessionStoreConfig) (session.Store, error)
	CacheManagerFactory    func(m redismanager.Manager, cfg config.CacheConfig) (cache.Manager, error)
	SessionManagerFactory  func(store session.Store, m redismanager.Manager) (security.SessionManager, error)
	SecurityManagerFactory func(realms []security.Realm, sm security.SessionManager, cm cache.Manager) (security.SecurityManager, error)

	// WarmUpFunc checks a freshly built default redis manager before it is
	// handed to anything else.
	WarmUpFunc func(ctx context.Context, m redismanager.Manager) error
)

type Option func(*options)

type options struct {
	lg            *zap.Logger
	hook          metrics.Hook
	warmUpTimeout time.Duration
	warmUp        WarmUpFunc
	realms        []security.Realm

	sessionManagerOpts  []security.SessionManagerOption
	securityManagerOpts []security.SecurityManagerOption

	redisManagerFactory    RedisManagerFactory
	sessionStoreFactory    SessionStoreFactory
	cacheManagerFactory    CacheManagerFactory
	sessionManagerFactory  SessionManagerFactory
	securityManagerFactory SecurityManagerFactory
}

func WithLogger(lg *zap.Logger) Option {
	return func(o *options) {
		if lg != nil {
			o.lg = lg
		}
	}
}

func WithMetrics(hook metrics.Hook) Option {
	return func(o *options) {
		if hook != nil {
			o.hook = hook
		}
	}
}

// WithWarmUpTimeout bounds the startup ping of the default redis manager.
// Zero skips the ping. Default: 5s.
func WithWarmUpTimeout(d time.Duration) Option {
	return func(o *options) {
		o.warmUpTimeout = d
	}
}

func WithWarmUp(fn WarmUpFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.warmUp = fn
		}
	}
}

// WithRealms adds realms for the default security manager. Install uses
// these; Compose also takes them from Provided.
func WithRealms(realms ...security.Realm) Option {
	return func(o *options) {
		o.realms = append(o.realms, realms...)
	}
}

func WithSessionManagerOptions(opts ...security.SessionManagerOption) Option {
	return func(o *options) {
		o.sessionManagerOpts = append(o.sessionManagerOpts, opts...)
	}
}

func WithSecurityManagerOptions(opts ...security.SecurityManagerOption) Option {
	return func(o *options) {
		o.securityManagerOpts = append(o.securityManagerOpts, opts...)
	}
}

func WithRedisManagerFactory(f RedisManagerFactory) Option {
	return func(o *options) {
		if f != nil {
			o.redisManagerFactory = f
		}
	}
}

func WithSessionStoreFactory(f SessionStoreFactory) Option {
	return func(o *options) {
		if f != nil {
			o.sessionStoreFactory = f
		}
	}
}

func WithCacheManagerFactory(f CacheManagerFactory) Option {
	return func(o *options) {
		if f != nil {
			o.cacheManagerFactory = f
		}
	}
}

func WithSessionManagerFactory(f SessionManagerFactory) Option {
	return func(o *options) {
		if f != nil {
			o.sessionManagerFactory = f
		}
	}
}

func WithSecurityManagerFactory(f SecurityManagerFactory) Option {
	return func(o *options) {
		if f != nil {
			o.securityManagerFactory = f
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		lg:            zap.L(),
		hook:          metrics.Noop(),
		warmUpTimeout: DefaultWarmUpTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.warmUp == nil {
		o.warmUp = func(ctx context.Context, m redismanager.Manager) error {
			if o.warmUpTimeout <= 0 {
				return nil
			}
			return redismanager.WarmUp(ctx, o.lg, m, o.warmUpTimeout)
		}
	}
	if o.redisManagerFactory == nil {
		o.redisManagerFactory = func(cfg config.RedisManagerConfig) (redismanager.Manager, error) {
			return redismanager.Resolve(cfg, redismanager.WithLogger(o.lg))
		}
	}
	if o.sessionStoreFactory == nil {
		o.sessionStoreFactory = func(m redismanager.Manager, cfg config.SessionStoreConfig) (session.Store, error) {
			return session.Assemble(m, cfg, session.WithLogger(o.lg), session.WithMetrics(o.hook)), nil
		}
	}
	if o.cacheManagerFactory == nil {
		o.cacheManagerFactory = func(m redismanager.Manager, cfg config.CacheConfig) (cache.Manager, error) {
			return cache.Assemble(m, cfg, cache.WithLogger(o.lg), cache.WithMetrics(o.hook)), nil
		}
	}
	if o.sessionManagerFactory == nil {
		o.sessionManagerFactory = func(store session.Store, m redismanager.Manager) (security.SessionManager, error) {
			smOpts := []security.SessionManagerOption{security.WithSessionLogger(o.lg)}
			if m != nil {
				smOpts = append(smOpts, security.WithLocker(locker.NewRedisLocker(m.Client(), locker.WithLogger(o.lg))))
			}
			return security.NewSessionManager(store, append(smOpts, o.sessionManagerOpts...)...), nil
		}
	}
	if o.securityManagerFactory == nil {
		o.securityManagerFactory = func(realms []security.Realm, sm security.SessionManager, cm cache.Manager) (security.SecurityManager, error) {
			secOpts := append([]security.SecurityManagerOption{security.WithSecurityLogger(o.lg)}, o.securityManagerOpts...)
			return security.NewSecurityManager(realms, sm, cm, secOpts...), nil
		}
	}
	return o
}
