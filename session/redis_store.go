package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/infigaming-com/go-authredis/config"
	"github.com/infigaming-com/go-authredis/observability/metrics"
	"github.com/infigaming-com/go-authredis/redismanager"
	"github.com/infigaming-com/go-authredis/uid"
)

const (
	DefaultKeyPrefix = "redis-auth:session:"

	// DefaultExpire makes the redis TTL follow each session's own timeout.
	DefaultExpire = -2
	// NoExpire stores sessions without a TTL.
	NoExpire = -1

	DefaultInMemoryTimeout = 0
)

type Option func(*RedisStore)

// WithExpire sets the TTL in seconds, or DefaultExpire / NoExpire.
func WithExpire(seconds int) Option {
	return func(s *RedisStore) {
		s.expire = seconds
	}
}

func WithKeyPrefix(prefix string) Option {
	return func(s *RedisStore) {
		s.keyPrefix = prefix
	}
}

// WithInMemoryTimeout enables the in-memory tier for d. Zero disables it.
func WithInMemoryTimeout(d time.Duration) Option {
	return func(s *RedisStore) {
		if d < 0 {
			d = 0
		}
		s.inMemoryTimeout = d
	}
}

func WithMemorySize(bytes int) Option {
	return func(s *RedisStore) {
		if bytes > 0 {
			s.memorySize = bytes
		}
	}
}

func WithLogger(lg *zap.Logger) Option {
	return func(s *RedisStore) {
		if lg != nil {
			s.lg = lg
		}
	}
}

func WithMetrics(hook metrics.Hook) Option {
	return func(s *RedisStore) {
		if hook != nil {
			s.hook = hook
		}
	}
}

func WithIDGenerator(g uid.Generator) Option {
	return func(s *RedisStore) {
		if g != nil {
			s.ids = g
		}
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *RedisStore) {
		if now != nil {
			s.now = now
		}
	}
}

// RedisStore keeps JSON encoded sessions under keyPrefix+id.
type RedisStore struct {
	m    redismanager.Manager
	lg   *zap.Logger
	hook metrics.Hook
	ids  uid.Generator
	now  func() time.Time

	keyPrefix       string
	expire          int
	inMemoryTimeout time.Duration
	memorySize      int
	memory          *memoryTier

	warnOnce sync.Once
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(m redismanager.Manager, opts ...Option) *RedisStore {
	s := &RedisStore{
		m:               m,
		lg:              zap.L(),
		hook:            metrics.Noop(),
		ids:             uid.NewUUIDV7(),
		now:             time.Now,
		keyPrefix:       DefaultKeyPrefix,
		expire:          DefaultExpire,
		inMemoryTimeout: DefaultInMemoryTimeout,
		memorySize:      DefaultMemorySize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.inMemoryTimeout > 0 {
		s.memory = newMemoryTier(s.memorySize, s.inMemoryTimeout)
	}
	return s
}

// Assemble builds a store on m, overriding the built-in defaults only with
// the fields present in cfg. Options given here are applied after cfg.
func Assemble(m redismanager.Manager, cfg config.SessionStoreConfig, opts ...Option) *RedisStore {
	var fromCfg []Option
	if v, ok := cfg.Expire.Get(); ok {
		fromCfg = append(fromCfg, WithExpire(v))
	}
	if v, ok := cfg.KeyPrefix.Get(); ok {
		fromCfg = append(fromCfg, WithKeyPrefix(v))
	}
	if v, ok := cfg.SessionInMemoryTimeout.Get(); ok {
		fromCfg = append(fromCfg, WithInMemoryTimeout(time.Duration(v)*time.Millisecond))
	}
	return NewRedisStore(m, append(fromCfg, opts...)...)
}

func (s *RedisStore) Manager() redismanager.Manager {
	return s.m
}

func (s *RedisStore) KeyPrefix() string {
	return s.keyPrefix
}

func (s *RedisStore) Expire() int {
	return s.expire
}

func (s *RedisStore) InMemoryTimeout() time.Duration {
	return s.inMemoryTimeout
}

func (s *RedisStore) Create(ctx context.Context, sess *Session) (string, error) {
	if sess == nil {
		return "", ErrInvalidSession
	}
	if sess.ID == "" {
		id, err := s.ids.New()
		if err != nil {
			return "", fmt.Errorf("failed to generate session id: %w", err)
		}
		sess.ID = id
	}
	if _, err := s.save(ctx, sess); err != nil {
		return "", err
	}
	s.hook.OnSessionWrite(ctx, "create")
	return sess.ID, nil
}

func (s *RedisStore) Read(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}

	if s.memory != nil {
		if data, ok := s.memory.get(id, s.now()); ok {
			if sess, err := decode(data); err == nil {
				s.hook.OnSessionRead(ctx, metrics.SourceMemory)
				return sess, nil
			}
			s.memory.del(id)
		}
	}

	data, err := s.m.Get(ctx, s.key(id))
	if err != nil {
		if errors.Is(err, redismanager.ErrKeyNotFound) {
			s.hook.OnSessionRead(ctx, metrics.SourceMiss)
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}

	sess, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	s.hook.OnSessionRead(ctx, metrics.SourceRedis)

	if s.memory != nil {
		if err := s.memory.set(id, data, s.now()); err != nil {
			s.lg.Debug("failed to hold session in memory", zap.String("session_id", id), zap.Error(err))
		}
	}
	return sess, nil
}

func (s *RedisStore) Update(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidSession
	}
	if !sess.IsValid(s.now()) {
		if s.memory != nil {
			s.memory.del(sess.ID)
		}
		return nil
	}
	data, err := s.save(ctx, sess)
	if err != nil {
		if s.memory != nil {
			s.memory.del(sess.ID)
		}
		return err
	}
	s.hook.OnSessionWrite(ctx, "update")

	if s.memory != nil {
		if err := s.memory.set(sess.ID, data, s.now()); err != nil {
			s.memory.del(sess.ID)
			s.lg.Debug("failed to hold session in memory", zap.String("session_id", sess.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidSession
	}
	if s.memory != nil {
		s.memory.del(id)
	}
	if err := s.m.Del(ctx, s.key(id)); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	s.hook.OnSessionWrite(ctx, "delete")
	return nil
}

// ActiveSessions returns every session stored under the key prefix. Entries
// that vanish or fail to decode mid-scan are skipped.
func (s *RedisStore) ActiveSessions(ctx context.Context) ([]*Session, error) {
	keys, err := s.m.Keys(ctx, s.keyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]*Session, 0, len(keys))
	for _, key := range keys {
		data, err := s.m.Get(ctx, key)
		if err != nil {
			if errors.Is(err, redismanager.ErrKeyNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		sess, err := decode(data)
		if err != nil {
			s.lg.Warn("skipping undecodable session", zap.String("key", key), zap.Error(err))
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// ClearMemory drops everything held by the in-memory tier.
func (s *RedisStore) ClearMemory() {
	if s.memory != nil {
		s.memory.clear()
	}
}

func (s *RedisStore) key(id string) string {
	return s.keyPrefix + id
}

func (s *RedisStore) save(ctx context.Context, sess *Session) ([]byte, error) {
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session %s: %w", sess.ID, err)
	}
	if err := s.m.Set(ctx, s.key(sess.ID), data, s.ttl(sess)); err != nil {
		return nil, fmt.Errorf("failed to save session %s: %w", sess.ID, err)
	}
	return data, nil
}

func (s *RedisStore) ttl(sess *Session) time.Duration {
	switch {
	case s.expire == DefaultExpire:
		if sess.Timeout <= 0 {
			return 0
		}
		return sess.Timeout
	case s.expire <= 0:
		return 0
	}

	ttl := time.Duration(s.expire) * time.Second
	if sess.Timeout > 0 && ttl < sess.Timeout {
		s.warnOnce.Do(func() {
			s.lg.Warn("session store expire is shorter than the session timeout",
				zap.Duration("expire", ttl),
				zap.Duration("session_timeout", sess.Timeout),
			)
		})
	}
	return ttl
}

func decode(data []byte) (*Session, error) {
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}
	if sess.ID == "" {
		return nil, ErrCorruptSession
	}
	return &sess, nil
}
