package authz

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: srv.Addr()})
}

func TestCachedStoreServesRoleFromCache(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	role, err := store.CreateRole(ctx, CreateRoleInput{Name: "Accountant", Level: 30})
	require.NoError(t, err)

	cached := NewCachedStore(store, newTestRedis(t), 0)

	first, err := cached.GetRole(ctx, role.ID)
	require.NoError(t, err)
	require.Equal(t, role.Name, first.Name)

	// Mutate the backing store; the cache still serves the old snapshot.
	require.NoError(t, store.SetRoleActive(ctx, role.ID, false))
	second, err := cached.GetRole(ctx, role.ID)
	require.NoError(t, err)
	require.True(t, second.Active)

	require.NoError(t, cached.Invalidate(ctx))
	third, err := cached.GetRole(ctx, role.ID)
	require.NoError(t, err)
	require.False(t, third.Active)
}

func TestCachedStoreNeverCachesBindings(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	roleA, err := store.CreateRole(ctx, CreateRoleInput{Name: "Manager", Level: 20})
	require.NoError(t, err)
	roleB, err := store.CreateRole(ctx, CreateRoleInput{Name: "Viewer", Level: 90})
	require.NoError(t, err)
	_, err = store.UpsertBinding(ctx, 7, roleA.ID)
	require.NoError(t, err)

	cached := NewCachedStore(store, newTestRedis(t), 0)

	binding, err := cached.GetBinding(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, roleA.ID, binding.RoleID)

	// A reassignment is visible immediately, no invalidation needed.
	_, err = store.UpsertBinding(ctx, 7, roleB.ID)
	require.NoError(t, err)
	binding, err = cached.GetBinding(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, roleB.ID, binding.RoleID)
}

func TestCachedStorePassesThroughNotFound(t *testing.T) {
	store := newMemStore()
	cached := NewCachedStore(store, newTestRedis(t), 0)
	ctx := context.Background()

	_, err := cached.GetRole(ctx, 1)
	require.ErrorIs(t, err, ErrRoleNotFound)
	_, err = cached.GetModuleByKey(ctx, "payables")
	require.ErrorIs(t, err, ErrModuleNotFound)
	_, err = cached.GetEntry(ctx, 1, 1)
	require.ErrorIs(t, err, ErrEntryNotFound)
}
