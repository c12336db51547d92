package authz

import (
	"context"
)

// Matrix manages the sparse (role, module) permission table. Absence of
// an entry is equivalent to NoCapabilities: deny by default.
type Matrix struct {
	roles   RoleStore
	modules ModuleStore
	entries EntryStore
}

// NewMatrix constructs a Matrix over the given stores.
func NewMatrix(roles RoleStore, modules ModuleStore, entries EntryStore) *Matrix {
	return &Matrix{roles: roles, modules: modules, entries: entries}
}

// GetEntry fetches the entry for (roleID, moduleID). Returns
// ErrEntryNotFound when absent; callers treat that as NoCapabilities.
func (m *Matrix) GetEntry(ctx context.Context, roleID, moduleID int64) (PermissionEntry, error) {
	return m.entries.GetEntry(ctx, roleID, moduleID)
}

// UpsertEntry writes the full capability tuple for (roleID, moduleID).
// Last write wins; both references must exist. Idempotent.
func (m *Matrix) UpsertEntry(ctx context.Context, roleID, moduleID int64, caps Capabilities) (PermissionEntry, error) {
	if _, err := m.roles.GetRole(ctx, roleID); err != nil {
		return PermissionEntry{}, err
	}
	if _, err := m.modules.GetModule(ctx, moduleID); err != nil {
		return PermissionEntry{}, err
	}
	return m.entries.UpsertEntry(ctx, roleID, moduleID, caps)
}

// DeleteEntry removes the entry for (roleID, moduleID), reverting the
// pair to deny by default.
func (m *Matrix) DeleteEntry(ctx context.Context, roleID, moduleID int64) error {
	return m.entries.DeleteEntry(ctx, roleID, moduleID)
}

// ListEntriesForRole returns every entry granted to a role.
func (m *Matrix) ListEntriesForRole(ctx context.Context, roleID int64) ([]PermissionEntry, error) {
	if _, err := m.roles.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	return m.entries.ListEntriesForRole(ctx, roleID)
}
