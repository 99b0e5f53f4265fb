package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/infigaming-com/go-authredis/config"
	"github.com/infigaming-com/go-authredis/observability/metrics"
	"github.com/infigaming-com/go-authredis/redismanager"
	"github.com/infigaming-com/go-authredis/uid"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingHook struct {
	mu     sync.Mutex
	reads  map[string]int
	writes map[string]int
}

func newRecordingHook() *recordingHook {
	return &recordingHook{reads: map[string]int{}, writes: map[string]int{}}
}

func (h *recordingHook) OnSessionRead(_ context.Context, source string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reads[source]++
}

func (h *recordingHook) OnSessionWrite(_ context.Context, op string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writes[op]++
}

func (h *recordingHook) OnCacheLookup(context.Context, string, bool) {}

var _ metrics.Hook = (*recordingHook)(nil)

func setupManager(t *testing.T) (*miniredis.Miniredis, redismanager.Manager) {
	t.Helper()
	mr := miniredis.RunT(t)
	m, err := redismanager.Resolve(
		config.RedisManagerConfig{Host: config.Some(mr.Addr())},
		redismanager.WithLogger(zap.NewNop()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return mr, m
}

func TestNewRedisStoreDefaults(t *testing.T) {
	_, m := setupManager(t)
	s := NewRedisStore(m)

	assert.Equal(t, DefaultKeyPrefix, s.KeyPrefix())
	assert.Equal(t, DefaultExpire, s.Expire())
	assert.Equal(t, time.Duration(0), s.InMemoryTimeout())
	assert.Same(t, m, s.Manager())
	assert.Nil(t, s.memory)
}

func TestAssemble(t *testing.T) {
	_, m := setupManager(t)

	tests := []struct {
		name       string
		cfg        config.SessionStoreConfig
		wantPrefix string
		wantExpire int
		wantMemory time.Duration
	}{
		{
			name:       "all absent keeps defaults",
			wantPrefix: DefaultKeyPrefix,
			wantExpire: DefaultExpire,
		},
		{
			name:       "expire only",
			cfg:        config.SessionStoreConfig{Expire: config.Some(600)},
			wantPrefix: DefaultKeyPrefix,
			wantExpire: 600,
		},
		{
			name:       "key prefix only",
			cfg:        config.SessionStoreConfig{KeyPrefix: config.Some("app:sess:")},
			wantPrefix: "app:sess:",
			wantExpire: DefaultExpire,
		},
		{
			name:       "in-memory timeout only",
			cfg:        config.SessionStoreConfig{SessionInMemoryTimeout: config.Some(int64(1500))},
			wantPrefix: DefaultKeyPrefix,
			wantExpire: DefaultExpire,
			wantMemory: 1500 * time.Millisecond,
		},
		{
			name:       "explicit zero expire is kept",
			cfg:        config.SessionStoreConfig{Expire: config.Some(0)},
			wantPrefix: DefaultKeyPrefix,
			wantExpire: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Assemble(m, tt.cfg)
			assert.Equal(t, tt.wantPrefix, s.KeyPrefix())
			assert.Equal(t, tt.wantExpire, s.Expire())
			assert.Equal(t, tt.wantMemory, s.InMemoryTimeout())
			assert.Equal(t, tt.wantMemory > 0, s.memory != nil)
		})
	}

	t.Run("caller options win over config", func(t *testing.T) {
		s := Assemble(m, config.SessionStoreConfig{KeyPrefix: config.Some("cfg:")}, WithKeyPrefix("opt:"))
		assert.Equal(t, "opt:", s.KeyPrefix())
	})
}

func TestAssembleDoesNoIO(t *testing.T) {
	mr, m := setupManager(t)
	before := mr.CommandCount()
	Assemble(m, config.SessionStoreConfig{SessionInMemoryTimeout: config.Some(int64(1000))})
	assert.Equal(t, before, mr.CommandCount())
}

func TestCreateAndRead(t *testing.T) {
	mr, m := setupManager(t)
	clk := newClock()
	hook := newRecordingHook()
	s := NewRedisStore(m,
		WithNowFunc(clk.Now),
		WithMetrics(hook),
		WithIDGenerator(uid.Func(func() (string, error) { return "abc", nil })),
	)
	ctx := context.Background()

	sess := New("10.0.0.9", 30*time.Minute, clk.Now())
	sess.SetAttribute("principal", "alice")

	id, err := s.Create(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "abc", id)
	assert.Equal(t, "abc", sess.ID)
	assert.True(t, mr.Exists(DefaultKeyPrefix+"abc"))
	assert.Equal(t, 30*time.Minute, mr.TTL(DefaultKeyPrefix+"abc"))

	got, err := s.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.ID)
	assert.Equal(t, "10.0.0.9", got.Host)
	assert.Equal(t, 30*time.Minute, got.Timeout)
	assert.True(t, got.StartTimestamp.Equal(sess.StartTimestamp))
	principal, ok := got.Attribute("principal")
	assert.True(t, ok)
	assert.Equal(t, "alice", principal)

	assert.Equal(t, 1, hook.writes["create"])
	assert.Equal(t, 1, hook.reads[metrics.SourceRedis])
}

func TestCreateGeneratesID(t *testing.T) {
	_, m := setupManager(t)
	s := NewRedisStore(m)

	id, err := s.Create(context.Background(), New("", time.Minute, time.Now()))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = s.Create(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestExpireRules(t *testing.T) {
	tests := []struct {
		name    string
		expire  int
		timeout time.Duration
		wantTTL time.Duration
	}{
		{name: "follow session timeout", expire: DefaultExpire, timeout: 10 * time.Minute, wantTTL: 10 * time.Minute},
		{name: "follow zero timeout", expire: DefaultExpire, timeout: 0, wantTTL: 0},
		{name: "no expire", expire: NoExpire, timeout: 10 * time.Minute, wantTTL: 0},
		{name: "explicit seconds", expire: 3600, timeout: 10 * time.Minute, wantTTL: time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr, m := setupManager(t)
			s := NewRedisStore(m, WithExpire(tt.expire))

			id, err := s.Create(context.Background(), New("", tt.timeout, time.Now()))
			require.NoError(t, err)
			assert.Equal(t, tt.wantTTL, mr.TTL(DefaultKeyPrefix+id))
		})
	}
}

func TestExpireShorterThanTimeoutWarnsOnce(t *testing.T) {
	_, m := setupManager(t)
	core, logs := observer.New(zapcore.WarnLevel)
	s := NewRedisStore(m, WithExpire(60), WithLogger(zap.New(core)))

	for i := 0; i < 3; i++ {
		_, err := s.Create(context.Background(), New("", 30*time.Minute, time.Now()))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, logs.FilterMessage("session store expire is shorter than the session timeout").Len())
}

func TestReadMissingAndCorrupt(t *testing.T) {
	mr, m := setupManager(t)
	hook := newRecordingHook()
	s := NewRedisStore(m, WithMetrics(hook))
	ctx := context.Background()

	_, err := s.Read(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 1, hook.reads[metrics.SourceMiss])

	_, err = s.Read(ctx, "")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, mr.Set(DefaultKeyPrefix+"bad", "not json"))
	_, err = s.Read(ctx, "bad")
	assert.ErrorIs(t, err, ErrCorruptSession)
}

func TestUpdate(t *testing.T) {
	_, m := setupManager(t)
	clk := newClock()
	s := NewRedisStore(m, WithNowFunc(clk.Now))
	ctx := context.Background()

	sess := New("", time.Hour, clk.Now())
	id, err := s.Create(ctx, sess)
	require.NoError(t, err)

	clk.Advance(time.Minute)
	sess.Touch(clk.Now())
	sess.SetAttribute("k", "v")
	require.NoError(t, s.Update(ctx, sess))

	got, err := s.Read(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.LastAccessTime.Equal(clk.Now()))
	v, _ := got.Attribute("k")
	assert.Equal(t, "v", v)

	t.Run("stopped session is not written", func(t *testing.T) {
		sess.Stop(clk.Now())
		sess.SetAttribute("k", "changed")
		require.NoError(t, s.Update(ctx, sess))

		got, err := s.Read(ctx, id)
		require.NoError(t, err)
		assert.False(t, got.IsStopped())
		v, _ := got.Attribute("k")
		assert.Equal(t, "v", v)
	})

	t.Run("invalid input", func(t *testing.T) {
		assert.ErrorIs(t, s.Update(ctx, nil), ErrInvalidSession)
		assert.ErrorIs(t, s.Update(ctx, &Session{}), ErrInvalidSession)
	})
}

func TestDelete(t *testing.T) {
	mr, m := setupManager(t)
	s := NewRedisStore(m)
	ctx := context.Background()

	id, err := s.Create(ctx, New("", time.Hour, time.Now()))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, id))
	assert.False(t, mr.Exists(DefaultKeyPrefix+id))
	_, err = s.Read(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.ErrorIs(t, s.Delete(ctx, ""), ErrInvalidSession)
}

func TestActiveSessions(t *testing.T) {
	mr, m := setupManager(t)
	s := NewRedisStore(m, WithKeyPrefix("app:"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Create(ctx, New("", time.Hour, time.Now()))
		require.NoError(t, err)
	}
	require.NoError(t, mr.Set("app:broken", "{"))
	require.NoError(t, mr.Set("other:key", "x"))

	sessions, err := s.ActiveSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 3)
}

func TestInMemoryTier(t *testing.T) {
	mr, m := setupManager(t)
	clk := newClock()
	hook := newRecordingHook()
	s := NewRedisStore(m,
		WithInMemoryTimeout(time.Second),
		WithNowFunc(clk.Now),
		WithMetrics(hook),
	)
	ctx := context.Background()

	id, err := s.Create(ctx, New("", time.Hour, clk.Now()))
	require.NoError(t, err)

	_, err = s.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, hook.reads[metrics.SourceRedis])

	mr.Del(DefaultKeyPrefix + id)

	clk.Advance(500 * time.Millisecond)
	got, err := s.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, 1, hook.reads[metrics.SourceMemory])

	clk.Advance(600 * time.Millisecond)
	_, err = s.Read(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestInMemoryTierInvalidation(t *testing.T) {
	_, m := setupManager(t)
	clk := newClock()
	s := NewRedisStore(m, WithInMemoryTimeout(time.Minute), WithNowFunc(clk.Now))
	ctx := context.Background()

	sess := New("", time.Hour, clk.Now())
	id, err := s.Create(ctx, sess)
	require.NoError(t, err)
	_, err = s.Read(ctx, id)
	require.NoError(t, err)

	sess.SetAttribute("role", "admin")
	require.NoError(t, s.Update(ctx, sess))

	got, err := s.Read(ctx, id)
	require.NoError(t, err)
	role, _ := got.Attribute("role")
	assert.Equal(t, "admin", role)

	require.NoError(t, s.Delete(ctx, id))
	_, err = s.Read(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
