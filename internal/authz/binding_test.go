package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func seedRoleCatalog(t *testing.T, store *memStore) map[string]Role {
	t.Helper()
	ctx := context.Background()
	catalog := make(map[string]Role)
	for _, input := range []CreateRoleInput{
		{Name: "Administrator", Level: 0, IsSuperAdmin: true},
		{Name: "Manager", Level: 20},
		{Name: "Accountant", Level: 30},
		{Name: "Operator", Level: 40},
		{Name: "Viewer", Level: 90},
	} {
		role, err := store.CreateRole(ctx, input)
		require.NoError(t, err)
		catalog[role.Name] = role
	}
	return catalog
}

func TestBindAssignsAndAudits(t *testing.T) {
	store := newMemStore()
	catalog := seedRoleCatalog(t, store)
	audit := &memAudit{}
	bindings := NewBindings(store, store, audit, nil)
	ctx := context.Background()

	binding, err := bindings.Bind(ctx, 1, 10, catalog["Accountant"].ID)
	require.NoError(t, err)
	require.Equal(t, catalog["Accountant"].ID, binding.RoleID)

	require.Len(t, audit.records, 1)
	require.Equal(t, "role.assign", audit.records[0].action)
	require.Equal(t, "10", audit.records[0].entityID)
}

func TestBindUnknownRole(t *testing.T) {
	store := newMemStore()
	seedRoleCatalog(t, store)
	bindings := NewBindings(store, store, nil, nil)

	_, err := bindings.Bind(context.Background(), 1, 10, 999)
	require.ErrorIs(t, err, ErrRoleNotFound)
}

func TestMigrateExactLabel(t *testing.T) {
	store := newMemStore()
	catalog := seedRoleCatalog(t, store)
	audit := &memAudit{}
	bindings := NewBindings(store, store, audit, nil)
	ctx := context.Background()

	roleID, err := bindings.MigrateLegacyLabel(ctx, 1, 10, "Accounting")
	require.NoError(t, err)
	require.Equal(t, catalog["Accountant"].ID, roleID)

	require.Len(t, audit.records, 1)
	require.Equal(t, "role.migrate", audit.records[0].action)
	require.Equal(t, "Accounting", audit.records[0].meta["from_label"])
	require.Equal(t, string(MatchExact), audit.records[0].meta["match"])
}

func TestMigrateFuzzyLabel(t *testing.T) {
	store := newMemStore()
	catalog := seedRoleCatalog(t, store)
	audit := &memAudit{}
	bindings := NewBindings(store, store, audit, nil)
	ctx := context.Background()

	// "site manager" is not an exact label but contains "manager".
	roleID, err := bindings.MigrateLegacyLabel(ctx, 1, 10, "site manager")
	require.NoError(t, err)
	require.Equal(t, catalog["Manager"].ID, roleID)
	require.Equal(t, string(MatchFuzzy), audit.records[0].meta["match"])
}

func TestMigrateFuzzyPrefersMostPrivileged(t *testing.T) {
	store := newMemStore()
	catalog := seedRoleCatalog(t, store)
	audit := &memAudit{}
	bindings := NewBindings(store, store, audit, nil)
	ctx := context.Background()

	// "admin" matches both Admin and Administrator labels; both point
	// at the same role here, but an ambiguous label must always pick
	// the lowest level (most privileged) candidate deterministically.
	roleID, err := bindings.MigrateLegacyLabel(ctx, 1, 10, "ADMIN")
	require.NoError(t, err)
	require.Equal(t, catalog["Administrator"].ID, roleID)
}

func TestMigrateUnmatchedLabelFallsBack(t *testing.T) {
	store := newMemStore()
	catalog := seedRoleCatalog(t, store)
	audit := &memAudit{}
	bindings := NewBindings(store, store, audit, nil)
	ctx := context.Background()

	roleID, err := bindings.MigrateLegacyLabel(ctx, 1, 10, "Jefe de Obra")
	require.NoError(t, err)
	require.Equal(t, catalog["Viewer"].ID, roleID, "fallback is the least privileged active role")
	require.Equal(t, string(MatchFallback), audit.records[0].meta["match"])
}

func TestMigrateEmptyLabelFallsBack(t *testing.T) {
	store := newMemStore()
	catalog := seedRoleCatalog(t, store)
	bindings := NewBindings(store, store, nil, nil)

	roleID, err := bindings.MigrateLegacyLabel(context.Background(), 1, 10, "   ")
	require.NoError(t, err)
	require.Equal(t, catalog["Viewer"].ID, roleID)
}

func TestMigrateSkipsInactiveRoles(t *testing.T) {
	store := newMemStore()
	catalog := seedRoleCatalog(t, store)
	bindings := NewBindings(store, store, nil, nil)
	ctx := context.Background()

	require.NoError(t, store.SetRoleActive(ctx, catalog["Viewer"].ID, false))

	roleID, err := bindings.MigrateLegacyLabel(ctx, 1, 10, "unrecognised")
	require.NoError(t, err)
	require.Equal(t, catalog["Operator"].ID, roleID, "inactive roles never absorb fallbacks")
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := newMemStore()
	catalog := seedRoleCatalog(t, store)
	audit := &memAudit{}
	bindings := NewBindings(store, store, audit, nil)
	ctx := context.Background()

	first, err := bindings.MigrateLegacyLabel(ctx, 1, 10, "Accountant")
	require.NoError(t, err)
	second, err := bindings.MigrateLegacyLabel(ctx, 1, 10, "Accountant")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Len(t, audit.records, 1, "rerun must not write a second audit row")
	require.Equal(t, catalog["Accountant"].ID, first)
}

func TestMigrateKeepsExplicitBinding(t *testing.T) {
	store := newMemStore()
	catalog := seedRoleCatalog(t, store)
	audit := &memAudit{}
	bindings := NewBindings(store, store, audit, nil)
	ctx := context.Background()

	_, err := bindings.Bind(ctx, 1, 10, catalog["Manager"].ID)
	require.NoError(t, err)

	roleID, err := bindings.MigrateLegacyLabel(ctx, 1, 10, "Viewer")
	require.NoError(t, err)
	require.Equal(t, catalog["Manager"].ID, roleID, "existing binding wins over the legacy label")
	require.Len(t, audit.records, 1, "only the original assign is audited")
}

func TestMigrateNoActiveRoles(t *testing.T) {
	store := newMemStore()
	bindings := NewBindings(store, store, nil, nil)

	_, err := bindings.MigrateLegacyLabel(context.Background(), 1, 10, "anything")
	require.ErrorIs(t, err, ErrNoFallbackRole)
}
