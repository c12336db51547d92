package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateRoleValidation(t *testing.T) {
	store := newMemStore()
	registry := NewRegistry(store, store)
	ctx := context.Background()

	_, err := registry.CreateRole(ctx, CreateRoleInput{Name: "  ", Level: 10})
	require.Error(t, err)

	_, err = registry.CreateRole(ctx, CreateRoleInput{Name: "Manager", Level: -1})
	require.Error(t, err)

	role, err := registry.CreateRole(ctx, CreateRoleInput{Name: "  Manager  ", Level: 20})
	require.NoError(t, err)
	require.Equal(t, "Manager", role.Name)
	require.True(t, role.Active)
}

func TestCreateRoleSingleSuperAdmin(t *testing.T) {
	store := newMemStore()
	registry := NewRegistry(store, store)
	ctx := context.Background()

	_, err := registry.CreateRole(ctx, CreateRoleInput{Name: "Administrator", Level: 0, IsSuperAdmin: true})
	require.NoError(t, err)

	_, err = registry.CreateRole(ctx, CreateRoleInput{Name: "Root", Level: 0, IsSuperAdmin: true})
	require.ErrorIs(t, err, ErrSuperAdminExists)
}

func TestCreateModuleNormalizesKey(t *testing.T) {
	store := newMemStore()
	registry := NewRegistry(store, store)
	ctx := context.Background()

	module, err := registry.CreateModule(ctx, CreateModuleInput{Key: "  Payables "})
	require.NoError(t, err)
	require.Equal(t, "payables", module.Key)
	require.Equal(t, "payables", module.DisplayName)

	_, err = registry.CreateModule(ctx, CreateModuleInput{Key: "payables"})
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestDeleteRoleBlockedByEntries(t *testing.T) {
	store := newMemStore()
	registry := NewRegistry(store, store)
	matrix := NewMatrix(store, store, store)
	ctx := context.Background()

	role, err := registry.CreateRole(ctx, CreateRoleInput{Name: "Accountant", Level: 30})
	require.NoError(t, err)
	module, err := registry.CreateModule(ctx, CreateModuleInput{Key: "invoices"})
	require.NoError(t, err)
	_, err = matrix.UpsertEntry(ctx, role.ID, module.ID, Capabilities{CanRead: true})
	require.NoError(t, err)

	require.ErrorIs(t, registry.DeleteRole(ctx, role.ID), ErrEntriesExist)
	require.ErrorIs(t, registry.DeleteModule(ctx, module.ID), ErrEntriesExist)

	require.NoError(t, matrix.DeleteEntry(ctx, role.ID, module.ID))
	require.NoError(t, registry.DeleteRole(ctx, role.ID))
	require.NoError(t, registry.DeleteModule(ctx, module.ID))
}

func TestUpsertEntryRequiresBothReferences(t *testing.T) {
	store := newMemStore()
	registry := NewRegistry(store, store)
	matrix := NewMatrix(store, store, store)
	ctx := context.Background()

	role, err := registry.CreateRole(ctx, CreateRoleInput{Name: "Operator", Level: 40})
	require.NoError(t, err)

	_, err = matrix.UpsertEntry(ctx, role.ID, 999, Capabilities{CanRead: true})
	require.ErrorIs(t, err, ErrModuleNotFound)

	_, err = matrix.UpsertEntry(ctx, 999, 1, Capabilities{CanRead: true})
	require.ErrorIs(t, err, ErrRoleNotFound)
}

func TestUpsertEntryLastWriteWins(t *testing.T) {
	store := newMemStore()
	registry := NewRegistry(store, store)
	matrix := NewMatrix(store, store, store)
	ctx := context.Background()

	role, err := registry.CreateRole(ctx, CreateRoleInput{Name: "Operator", Level: 40})
	require.NoError(t, err)
	module, err := registry.CreateModule(ctx, CreateModuleInput{Key: "clients"})
	require.NoError(t, err)

	_, err = matrix.UpsertEntry(ctx, role.ID, module.ID, Capabilities{CanRead: true, CanCreate: true})
	require.NoError(t, err)
	entry, err := matrix.UpsertEntry(ctx, role.ID, module.ID, Capabilities{CanRead: true})
	require.NoError(t, err)
	require.False(t, entry.CanCreate, "the full tuple is replaced, not merged")

	entries, err := matrix.ListEntriesForRole(ctx, role.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
