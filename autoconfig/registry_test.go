package autoconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/infigaming-com/go-authredis/config"
	"github.com/infigaming-com/go-authredis/errors"
	"github.com/infigaming-com/go-authredis/redismanager"
	"github.com/infigaming-com/go-authredis/session"
)

func TestRegistryComposesOnce(t *testing.T) {
	_, cfg := miniredisConfig(t)
	p := &factoryCounter{}
	storeBuilds := 0
	opts := append(p.options(), WithSessionStoreFactory(
		func(m redismanager.Manager, cfg config.SessionStoreConfig) (session.Store, error) {
			storeBuilds++
			return session.Assemble(m, cfg), nil
		}))

	r := NewRegistry(context.Background(), cfg, Provided{}, opts...)
	assert.Equal(t, 0, p.factoryCalls, "nothing is built before the first lookup")

	for i := 0; i < 3; i++ {
		for _, role := range Roles {
			v, ok, err := r.Lookup(role)
			require.NoError(t, err)
			assert.True(t, ok, role)
			assert.NotNil(t, v)
		}
	}
	assert.Equal(t, 1, p.factoryCalls)
	assert.Equal(t, 1, p.warmUpCalls)
	assert.Equal(t, 1, storeBuilds)

	comps, err := r.Components()
	require.NoError(t, err)
	t.Cleanup(func() { _ = comps.Close() })

	m, err := r.RedisManager()
	require.NoError(t, err)
	assert.Same(t, comps.RedisManager, m)

	store, err := r.SessionStore()
	require.NoError(t, err)
	assert.Same(t, comps.SessionStore, store)

	cm, err := r.CacheManager()
	require.NoError(t, err)
	assert.Same(t, comps.CacheManager, cm)

	sm, err := r.SessionManager()
	require.NoError(t, err)
	assert.Same(t, comps.SessionManager, sm)

	secm, err := r.SecurityManager()
	require.NoError(t, err)
	assert.Same(t, comps.SecurityManager, secm)
}

func TestRegistryPropagatesError(t *testing.T) {
	cfg := &config.Config{RedisManager: config.RedisManagerConfig{
		DeployMode: config.Some(config.DeployMode("replica-set")),
	}}
	r := NewRegistry(context.Background(), cfg, Provided{}, WithLogger(zap.NewNop()))

	_, _, err := r.Lookup(RoleSessionStore)
	assert.ErrorIs(t, err, errors.ErrConfiguration)
	_, err = r.SecurityManager()
	assert.ErrorIs(t, err, errors.ErrConfiguration)
}

func TestRegistryEmptyRole(t *testing.T) {
	r := NewRegistry(context.Background(), &config.Config{Enabled: config.Some(false)},
		Provided{SecurityManager: &stubSecurityManager{}}, WithLogger(zap.NewNop()))

	_, ok, err := r.Lookup(RoleSessionStore)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.SessionStore()
	assert.ErrorIs(t, err, ErrNotRegistered)

	secm, err := r.SecurityManager()
	require.NoError(t, err)
	assert.IsType(t, &stubSecurityManager{}, secm)
}
