package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/infigaming-com/go-authredis/config"
	"github.com/infigaming-com/go-authredis/observability/metrics"
	"github.com/infigaming-com/go-authredis/redismanager"
)

const (
	DefaultPrincipalIDFieldName = "id"
	DefaultKeyPrefix            = "redis-auth:cache:"

	// NeverExpire stores entries without a TTL.
	NeverExpire = -1
)

type Option func(*RedisManager)

func WithPrincipalIDFieldName(name string) Option {
	return func(m *RedisManager) {
		m.principalIDFieldName = name
	}
}

// WithExpire sets the entry TTL in seconds. Values <= 0 never expire.
func WithExpire(seconds int) Option {
	return func(m *RedisManager) {
		m.expire = seconds
	}
}

func WithKeyPrefix(prefix string) Option {
	return func(m *RedisManager) {
		m.keyPrefix = prefix
	}
}

func WithLogger(lg *zap.Logger) Option {
	return func(m *RedisManager) {
		if lg != nil {
			m.lg = lg
		}
	}
}

func WithMetrics(hook metrics.Hook) Option {
	return func(m *RedisManager) {
		if hook != nil {
			m.hook = hook
		}
	}
}

// RedisManager is the cache manager backed by a redis handle. Caches it
// returns carry no state of their own, so GetCache is cheap.
type RedisManager struct {
	m    redismanager.Manager
	lg   *zap.Logger
	hook metrics.Hook

	principalIDFieldName string
	expire               int
	keyPrefix            string
}

var _ Manager = (*RedisManager)(nil)

func NewRedisManager(m redismanager.Manager, opts ...Option) *RedisManager {
	rm := &RedisManager{
		m:                    m,
		lg:                   zap.L(),
		hook:                 metrics.Noop(),
		principalIDFieldName: DefaultPrincipalIDFieldName,
		expire:               NeverExpire,
		keyPrefix:            DefaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(rm)
	}
	return rm
}

// Assemble builds a cache manager on m, overriding the built-in defaults only
// with the fields present in cfg. Options given here are applied after cfg.
func Assemble(m redismanager.Manager, cfg config.CacheConfig, opts ...Option) *RedisManager {
	var fromCfg []Option
	if v, ok := cfg.PrincipalIDFieldName.Get(); ok {
		fromCfg = append(fromCfg, WithPrincipalIDFieldName(v))
	}
	if v, ok := cfg.Expire.Get(); ok {
		fromCfg = append(fromCfg, WithExpire(v))
	}
	if v, ok := cfg.KeyPrefix.Get(); ok {
		fromCfg = append(fromCfg, WithKeyPrefix(v))
	}
	return NewRedisManager(m, append(fromCfg, opts...)...)
}

func (rm *RedisManager) Manager() redismanager.Manager {
	return rm.m
}

func (rm *RedisManager) PrincipalIDFieldName() string {
	return rm.principalIDFieldName
}

func (rm *RedisManager) Expire() int {
	return rm.expire
}

func (rm *RedisManager) KeyPrefix() string {
	return rm.keyPrefix
}

func (rm *RedisManager) GetCache(name string) (Cache, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidCacheName
	}
	return &redisCache{rm: rm, name: name}, nil
}

type redisCache struct {
	rm   *RedisManager
	name string
}

func (c *redisCache) Name() string {
	return c.name
}

func (c *redisCache) namespace() string {
	return c.rm.keyPrefix + c.name + ":"
}

func (c *redisCache) key(key any) (string, error) {
	id, err := PrincipalID(key, c.rm.principalIDFieldName)
	if err != nil {
		return "", err
	}
	return c.namespace() + id, nil
}

func (c *redisCache) ttl() time.Duration {
	if c.rm.expire <= 0 {
		return 0
	}
	return time.Duration(c.rm.expire) * time.Second
}

func (c *redisCache) Get(ctx context.Context, key any) ([]byte, error) {
	k, err := c.key(key)
	if err != nil {
		return nil, err
	}
	data, err := c.rm.m.Get(ctx, k)
	if err != nil {
		if errors.Is(err, redismanager.ErrKeyNotFound) {
			c.rm.hook.OnCacheLookup(ctx, c.name, false)
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", k, err)
	}
	c.rm.hook.OnCacheLookup(ctx, c.name, true)
	return data, nil
}

func (c *redisCache) Put(ctx context.Context, key any, value []byte) error {
	k, err := c.key(key)
	if err != nil {
		return err
	}
	if err := c.rm.m.Set(ctx, k, value, c.ttl()); err != nil {
		return fmt.Errorf("failed to set %s: %w", k, err)
	}
	return nil
}

func (c *redisCache) Remove(ctx context.Context, key any) error {
	k, err := c.key(key)
	if err != nil {
		return err
	}
	return c.rm.m.Del(ctx, k)
}

func (c *redisCache) Clear(ctx context.Context) error {
	keys, err := c.rm.m.Keys(ctx, c.namespace()+"*")
	if err != nil {
		return fmt.Errorf("failed to list cache %s: %w", c.name, err)
	}
	if err := c.rm.m.Del(ctx, keys...); err != nil {
		return err
	}
	c.rm.lg.Debug("cleared cache", zap.String("cache", c.name), zap.Int("keys", len(keys)))
	return nil
}

func (c *redisCache) Size(ctx context.Context) (int64, error) {
	return c.rm.m.DBSize(ctx, c.namespace()+"*")
}

func (c *redisCache) Keys(ctx context.Context) ([]string, error) {
	keys, err := c.rm.m.Keys(ctx, c.namespace()+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to list cache %s: %w", c.name, err)
	}
	ns := c.namespace()
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, ns))
	}
	return ids, nil
}

func (c *redisCache) Values(ctx context.Context) ([][]byte, error) {
	keys, err := c.rm.m.Keys(ctx, c.namespace()+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to list cache %s: %w", c.name, err)
	}
	values := make([][]byte, 0, len(keys))
	for _, k := range keys {
		data, err := c.rm.m.Get(ctx, k)
		if err != nil {
			if errors.Is(err, redismanager.ErrKeyNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to get %s: %w", k, err)
		}
		values = append(values, data)
	}
	return values, nil
}
