package autoconfig

import (
	"context"

	"go.uber.org/zap"

	"github.com/infigaming-com/go-authredis/config"
	"github.com/infigaming-com/go-authredis/redismanager"
)

// Compose resolves every role: a component the host provided always wins,
// anything missing is built from cfg. The redis manager is only built, and
// warmed up, when a default session store or cache manager needs it.
//
// On error no components are returned and a redis manager built here is
// closed. With the module disabled only host components are returned.
func Compose(ctx context.Context, cfg *config.Config, provided Provided, opts ...Option) (*Components, error) {
	o := newOptions(opts)
	if cfg == nil {
		cfg = &config.Config{}
	}

	c := &Components{
		RedisManager:    provided.RedisManager,
		SessionStore:    provided.SessionStore,
		CacheManager:    provided.CacheManager,
		SessionManager:  provided.SessionManager,
		SecurityManager: provided.SecurityManager,
		Sources:         make(map[Role]Source, len(Roles)),
	}
	for _, role := range Roles {
		if c.Get(role) != nil {
			c.Sources[role] = SourceHost
			o.lg.Info("using host provided component", zap.String("role", string(role)))
		}
	}

	if !cfg.IsEnabled() {
		o.lg.Info("redis auth disabled, only host components are used")
		return c, nil
	}

	var built redismanager.Manager
	fail := func(role Role, err error) (*Components, error) {
		if built != nil {
			if cerr := built.Close(); cerr != nil {
				o.lg.Warn("failed to close redis manager", zap.Error(cerr))
			}
		}
		o.lg.Error("failed to compose redis auth components", zap.String("role", string(role)), zap.Error(err))
		return nil, err
	}

	if c.RedisManager == nil && (c.SessionStore == nil || c.CacheManager == nil) {
		m, err := o.redisManagerFactory(cfg.RedisManager)
		if err != nil {
			return fail(RoleRedisManager, err)
		}
		built = m
		if err := o.warmUp(ctx, m); err != nil {
			return fail(RoleRedisManager, err)
		}
		c.RedisManager = m
		c.Sources[RoleRedisManager] = SourceDefault
	}

	if c.SessionStore == nil {
		store, err := o.sessionStoreFactory(c.RedisManager, cfg.SessionStore)
		if err != nil {
			return fail(RoleSessionStore, err)
		}
		c.SessionStore = store
		c.Sources[RoleSessionStore] = SourceDefault
	}

	if c.CacheManager == nil {
		cm, err := o.cacheManagerFactory(c.RedisManager, cfg.Cache)
		if err != nil {
			return fail(RoleCacheManager, err)
		}
		c.CacheManager = cm
		c.Sources[RoleCacheManager] = SourceDefault
	}

	if c.SessionManager == nil {
		sm, err := o.sessionManagerFactory(c.SessionStore, c.RedisManager)
		if err != nil {
			return fail(RoleSessionManager, err)
		}
		c.SessionManager = sm
		c.Sources[RoleSessionManager] = SourceDefault
	}

	if c.SecurityManager == nil {
		realms := append(provided.Realms[:len(provided.Realms):len(provided.Realms)], o.realms...)
		if len(realms) == 0 {
			o.lg.Warn("no realms configured, every login will be rejected")
		}
		secm, err := o.securityManagerFactory(realms, c.SessionManager, c.CacheManager)
		if err != nil {
			return fail(RoleSecurityManager, err)
		}
		c.SecurityManager = secm
		c.Sources[RoleSecurityManager] = SourceDefault
	}

	fields := make([]zap.Field, 0, len(c.Sources))
	for _, role := range Roles {
		if src, ok := c.Sources[role]; ok {
			fields = append(fields, zap.String(string(role), string(src)))
		}
	}
	o.lg.Info("composed redis auth components", fields...)
	return c, nil
}
