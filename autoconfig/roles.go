package autoconfig

import (
	"github.com/infigaming-com/go-authredis/cache"
	"github.com/infigaming-com/go-authredis/redismanager"
	"github.com/infigaming-com/go-authredis/security"
	"github.com/infigaming-com/go-authredis/session"
)

// Role is one replaceable component slot.
type Role string

const (
	RoleRedisManager    Role = "redis-manager"
	RoleSessionStore    Role = "session-store"
	RoleCacheManager    Role = "cache-manager"
	RoleSessionManager  Role = "session-manager"
	RoleSecurityManager Role = "security-manager"
)

// Roles lists every role in resolution order.
var Roles = []Role{
	RoleRedisManager,
	RoleSessionStore,
	RoleCacheManager,
	RoleSessionManager,
	RoleSecurityManager,
}

// Source records who supplied the component for a role.
type Source string

const (
	SourceHost    Source = "host"
	SourceDefault Source = "default"
)

// Provided holds the components the host registered itself. Nil fields are
// filled with defaults.
type Provided struct {
	RedisManager    redismanager.Manager
	SessionStore    session.Store
	CacheManager    cache.Manager
	SessionManager  security.SessionManager
	SecurityManager security.SecurityManager

	// Realms feed the default security manager.
	Realms []security.Realm
}

// Components is the resolved set. RedisManager stays nil when the host
// supplied every component that would have needed one.
type Components struct {
	RedisManager    redismanager.Manager
	SessionStore    session.Store
	CacheManager    cache.Manager
	SessionManager  security.SessionManager
	SecurityManager security.SecurityManager

	Sources map[Role]Source
}

// Get returns the component for role, or nil.
func (c *Components) Get(role Role) any {
	switch role {
	case RoleRedisManager:
		if c.RedisManager != nil {
			return c.RedisManager
		}
	case RoleSessionStore:
		if c.SessionStore != nil {
			return c.SessionStore
		}
	case RoleCacheManager:
		if c.CacheManager != nil {
			return c.CacheManager
		}
	case RoleSessionManager:
		if c.SessionManager != nil {
			return c.SessionManager
		}
	case RoleSecurityManager:
		if c.SecurityManager != nil {
			return c.SecurityManager
		}
	}
	return nil
}

func (c *Components) Source(role Role) (Source, bool) {
	s, ok := c.Sources[role]
	return s, ok
}

// Close releases the redis manager if it was built here. Host components
// are left alone.
func (c *Components) Close() error {
	if c.RedisManager != nil && c.Sources[RoleRedisManager] == SourceDefault {
		return c.RedisManager.Close()
	}
	return nil
}
