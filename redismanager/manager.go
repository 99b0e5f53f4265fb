package redismanager

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/infigaming-com/go-authredis/config"
	"github.com/infigaming-com/go-authredis/errors"
)

var ErrKeyNotFound = stderrors.New("key not found")

const defaultScanCount = 100

// Manager is the client handle shared by the session store and the cache.
// Implementations must be safe for concurrent use.
type Manager interface {
	Topology() config.DeployMode
	Settings() Settings
	Client() redis.UniversalClient

	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	DBSize(ctx context.Context, pattern string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

type Option func(*options)

type options struct {
	lg        *zap.Logger
	scanCount int64
}

func WithLogger(lg *zap.Logger) Option {
	return func(o *options) {
		if lg != nil {
			o.lg = lg
		}
	}
}

// WithScanCount sets the COUNT hint used when scanning keys. Default: 100.
func WithScanCount(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.scanCount = n
		}
	}
}

// Resolve picks the topology variant named by cfg, starts from its defaults,
// applies only the fields that are present and returns the manager. No
// network I/O happens here; see WarmUp.
func Resolve(cfg config.RedisManagerConfig, opts ...Option) (Manager, error) {
	o := &options{lg: zap.L(), scanCount: defaultScanCount}
	for _, opt := range opts {
		opt(o)
	}

	p, err := resolveParams(cfg)
	if err != nil {
		return nil, err
	}

	s := p.settings()
	o.lg.Info("resolved redis manager",
		zap.String("topology", string(s.Topology)),
		zap.Strings("addrs", s.Addrs),
		zap.String("master_name", s.MasterName),
		zap.Int("database", s.Database),
	)

	return &manager{
		settings:  s,
		client:    p.newClient(),
		scanCount: o.scanCount,
	}, nil
}

// ResolveSettings returns the effective settings Resolve would use, without
// creating a client.
func ResolveSettings(cfg config.RedisManagerConfig) (Settings, error) {
	p, err := resolveParams(cfg)
	if err != nil {
		return Settings{}, err
	}
	return p.settings(), nil
}

func resolveParams(cfg config.RedisManagerConfig) (params, error) {
	var p params
	switch mode := cfg.Mode(); mode {
	case config.Standalone:
		sp := DefaultStandaloneParams()
		p = &sp
	case config.Sentinel:
		sp := DefaultSentinelParams()
		p = &sp
	case config.Cluster:
		cp := DefaultClusterParams()
		p = &cp
	default:
		return nil, errors.Configuration("unrecognized deploy mode %q", mode).
			WithDetails(map[string]any{"supported": []config.DeployMode{config.Standalone, config.Sentinel, config.Cluster}})
	}

	if err := p.apply(cfg); err != nil {
		return nil, err
	}
	return p, nil
}

type manager struct {
	settings  Settings
	client    redis.UniversalClient
	scanCount int64
}

func (m *manager) Topology() config.DeployMode {
	return m.settings.Topology
}

func (m *manager) Settings() Settings {
	s := m.settings
	s.Addrs = append([]string(nil), m.settings.Addrs...)
	return s
}

func (m *manager) Client() redis.UniversalClient {
	return m.client
}

func (m *manager) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := m.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return data, nil
}

// Set stores value under key; a ttl <= 0 stores without expiry.
func (m *manager) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return m.client.Set(ctx, key, value, ttl).Err()
}

// Del removes keys one command each so cluster slots never cross.
func (m *manager) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := m.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Del(ctx, key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

func (m *manager) Keys(ctx context.Context, pattern string) ([]string, error) {
	cc, ok := m.client.(*redis.ClusterClient)
	if !ok {
		return scanAll(ctx, m.client, pattern, m.scanCount)
	}

	var (
		mu   sync.Mutex
		keys []string
	)
	err := cc.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
		found, err := scanAll(ctx, node, pattern, m.scanCount)
		if err != nil {
			return err
		}
		mu.Lock()
		keys = append(keys, found...)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Uniq(keys), nil
}

func (m *manager) DBSize(ctx context.Context, pattern string) (int64, error) {
	keys, err := m.Keys(ctx, pattern)
	if err != nil {
		return 0, err
	}
	return int64(len(keys)), nil
}

func (m *manager) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

func (m *manager) Close() error {
	return m.client.Close()
}

func scanAll(ctx context.Context, c redis.Cmdable, pattern string, count int64) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := c.Scan(ctx, cursor, pattern, count).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan %q: %w", pattern, err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			break
		}
		cursor = next
	}
	return lo.Uniq(keys), nil
}
