package autoconfig

import (
	"context"
	"fmt"
	"sync"

	"github.com/infigaming-com/go-authredis/cache"
	"github.com/infigaming-com/go-authredis/config"
	"github.com/infigaming-com/go-authredis/redismanager"
	"github.com/infigaming-com/go-authredis/security"
	"github.com/infigaming-com/go-authredis/session"
)

// Registry answers lookup-by-role for hosts whose DI framework pulls
// components one at a time. Composition runs once, on the first lookup, and
// every later lookup sees the same result.
type Registry struct {
	once    sync.Once
	compose func() (*Components, error)

	components *Components
	err        error
}

func NewRegistry(ctx context.Context, cfg *config.Config, provided Provided, opts ...Option) *Registry {
	return &Registry{
		compose: func() (*Components, error) {
			return Compose(ctx, cfg, provided, opts...)
		},
	}
}

func (r *Registry) Components() (*Components, error) {
	r.once.Do(func() {
		r.components, r.err = r.compose()
	})
	return r.components, r.err
}

// Lookup returns the component for role. ok is false when the role was
// left empty, which only happens with the module disabled or for the redis
// manager when no default needed one.
func (r *Registry) Lookup(role Role) (component any, ok bool, err error) {
	c, err := r.Components()
	if err != nil {
		return nil, false, err
	}
	component = c.Get(role)
	return component, component != nil, nil
}

func lookup[T any](r *Registry, role Role) (T, error) {
	var zero T
	v, ok, err := r.Lookup(role)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrNotRegistered, role)
	}
	return v.(T), nil
}

func (r *Registry) RedisManager() (redismanager.Manager, error) {
	return lookup[redismanager.Manager](r, RoleRedisManager)
}

func (r *Registry) SessionStore() (session.Store, error) {
	return lookup[session.Store](r, RoleSessionStore)
}

func (r *Registry) CacheManager() (cache.Manager, error) {
	return lookup[cache.Manager](r, RoleCacheManager)
}

func (r *Registry) SessionManager() (security.SessionManager, error) {
	return lookup[security.SessionManager](r, RoleSessionManager)
}

func (r *Registry) SecurityManager() (security.SecurityManager, error) {
	return lookup[security.SecurityManager](r, RoleSecurityManager)
}
