package autoconfig

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/infigaming-com/go-authredis/config"
	"github.com/infigaming-com/go-authredis/errors"
	"github.com/infigaming-com/go-authredis/redismanager"
	"github.com/infigaming-com/go-authredis/session"
)

func TestContainerRegisterResolve(t *testing.T) {
	c := NewContainer()
	store := &stubStore{}

	require.NoError(t, c.Register(RoleSessionStore, store))
	assert.ErrorIs(t, c.Register(RoleSessionStore, &stubStore{}), ErrAlreadyRegistered)
	assert.Error(t, c.Register(RoleCacheManager, nil))

	v, err := c.Resolve(RoleSessionStore)
	require.NoError(t, err)
	assert.Same(t, store, v)

	_, err = c.Resolve(RoleCacheManager)
	assert.ErrorIs(t, err, ErrNotRegistered)

	assert.Equal(t, []Role{RoleSessionStore}, c.Roles())
}

func TestInstallRegistersOnlyEmptyRoles(t *testing.T) {
	_, cfg := miniredisConfig(t)
	c := NewContainer()
	store := &stubStore{}
	require.NoError(t, c.Register(RoleSessionStore, store))

	comps, err := Install(context.Background(), c, cfg, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = comps.Close() })

	assert.ElementsMatch(t, Roles, c.Roles())

	v, err := c.Resolve(RoleSessionStore)
	require.NoError(t, err)
	assert.Same(t, store, v)

	v, err = c.Resolve(RoleRedisManager)
	require.NoError(t, err)
	assert.Same(t, comps.RedisManager, v)
}

func TestInstallIsIdempotent(t *testing.T) {
	_, cfg := miniredisConfig(t)
	c := NewContainer()
	p := &factoryCounter{}

	first, err := Install(context.Background(), c, cfg, p.options()...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Close() })

	snapshot := make(map[Role]any)
	for _, role := range c.Roles() {
		v, err := c.Resolve(role)
		require.NoError(t, err)
		snapshot[role] = v
	}

	second, err := Install(context.Background(), c, cfg, p.options()...)
	require.NoError(t, err)

	assert.Equal(t, 1, p.factoryCalls)
	assert.Equal(t, 1, p.warmUpCalls)
	for _, role := range Roles {
		src, _ := second.Source(role)
		assert.Equal(t, SourceHost, src, role)
	}

	assert.Len(t, c.Roles(), len(snapshot))
	for role, want := range snapshot {
		got, err := c.Resolve(role)
		require.NoError(t, err)
		assert.Same(t, want, got, role)
	}
}

func TestInstallDisabled(t *testing.T) {
	c := NewContainer()
	comps, err := Install(context.Background(), c, &config.Config{Enabled: config.Some(false)}, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	assert.Empty(t, comps.Sources)
	assert.Empty(t, c.Roles())
}

func TestInstallRejectsWrongType(t *testing.T) {
	c := NewContainer()
	require.NoError(t, c.Register(RoleSessionStore, "not a store"))

	_, err := Install(context.Background(), c, &config.Config{}, WithLogger(zap.NewNop()))
	assert.ErrorIs(t, err, errors.ErrConfiguration)
	assert.Equal(t, []Role{RoleSessionStore}, c.Roles())
}

type closeFailingManager struct{ redismanager.Manager }

func (m *closeFailingManager) Close() error {
	_ = m.Manager.Close()
	return stderrors.New("close failed")
}

func TestInstallRegistrationConflict(t *testing.T) {
	_, cfg := miniredisConfig(t)
	c := NewContainer()
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := context.Background()

	var built *closeFailingManager
	_, err := Install(ctx, c, cfg,
		WithLogger(zap.New(core)),
		WithWarmUpTimeout(0),
		WithRedisManagerFactory(func(cfg config.RedisManagerConfig) (redismanager.Manager, error) {
			m, err := redismanager.Resolve(cfg, redismanager.WithLogger(zap.NewNop()))
			if err != nil {
				return nil, err
			}
			built = &closeFailingManager{Manager: m}
			return built, nil
		}),
		WithSessionStoreFactory(func(m redismanager.Manager, cfg config.SessionStoreConfig) (session.Store, error) {
			// another caller wins the role while composition is running
			if err := c.Register(RoleSessionStore, &stubStore{}); err != nil {
				return nil, err
			}
			return session.Assemble(m, cfg), nil
		}),
	)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.Equal(t, []Role{RoleSessionStore}, c.Roles())

	require.NotNil(t, built)
	assert.Error(t, built.Ping(ctx), "default manager is closed")

	closeLogs := logs.FilterMessage("failed to close redis manager")
	require.Equal(t, 1, closeLogs.Len())
	assert.Equal(t, zapcore.WarnLevel, closeLogs.All()[0].Level)
	assert.Equal(t, 1, logs.FilterMessage("failed to register redis auth components").Len())
}
