package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrSuperAdminExists rejects a second super admin role. Exactly one
// role may bypass the permission matrix.
var ErrSuperAdminExists = errors.New("authz: a super admin role already exists")

// Registry is the canonical catalog of roles and modules. Role and
// module identities are immutable once referenced by a permission
// entry; retiring one means creating a replacement and deactivating
// the old record, never renaming in place.
type Registry struct {
	roles   RoleStore
	modules ModuleStore
}

// NewRegistry constructs a Registry over the given stores.
func NewRegistry(roles RoleStore, modules ModuleStore) *Registry {
	return &Registry{roles: roles, modules: modules}
}

// GetRole fetches a role by ID.
func (r *Registry) GetRole(ctx context.Context, id int64) (Role, error) {
	return r.roles.GetRole(ctx, id)
}

// GetModule fetches a module by its immutable key.
func (r *Registry) GetModule(ctx context.Context, key string) (Module, error) {
	return r.modules.GetModuleByKey(ctx, strings.TrimSpace(key))
}

// ListRoles returns all roles ordered by privilege level.
func (r *Registry) ListRoles(ctx context.Context) ([]Role, error) {
	return r.roles.ListRoles(ctx)
}

// ListModules returns all modules ordered by key.
func (r *Registry) ListModules(ctx context.Context) ([]Module, error) {
	return r.modules.ListModules(ctx)
}

// CreateRole inserts a new role. Configuration-integrity violations
// (blank name, negative level, second super admin) fail here, at write
// time, never at resolve time.
func (r *Registry) CreateRole(ctx context.Context, input CreateRoleInput) (Role, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	if input.Name == "" {
		return Role{}, errors.New("authz: role name required")
	}
	if input.Level < 0 {
		return Role{}, fmt.Errorf("authz: role level must be non-negative, got %d", input.Level)
	}
	if input.IsSuperAdmin {
		existing, err := r.roles.ListRoles(ctx)
		if err != nil {
			return Role{}, err
		}
		for _, role := range existing {
			if role.IsSuperAdmin {
				return Role{}, ErrSuperAdminExists
			}
		}
	}
	return r.roles.CreateRole(ctx, input)
}

// CreateModule inserts a new module.
func (r *Registry) CreateModule(ctx context.Context, input CreateModuleInput) (Module, error) {
	input.Key = strings.TrimSpace(strings.ToLower(input.Key))
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	if input.Key == "" {
		return Module{}, errors.New("authz: module key required")
	}
	if input.DisplayName == "" {
		input.DisplayName = input.Key
	}
	return r.modules.CreateModule(ctx, input)
}

// DeactivateRole flags a role inactive. Subjects bound to it resolve
// to deny until reassigned.
func (r *Registry) DeactivateRole(ctx context.Context, id int64) error {
	return r.roles.SetRoleActive(ctx, id, false)
}

// ActivateRole flags a role active again.
func (r *Registry) ActivateRole(ctx context.Context, id int64) error {
	return r.roles.SetRoleActive(ctx, id, true)
}

// DeleteRole removes a role. Deletion is rejected with ErrEntriesExist
// while permission entries still reference the role.
func (r *Registry) DeleteRole(ctx context.Context, id int64) error {
	return r.roles.DeleteRole(ctx, id)
}

// DeleteModule removes a module under the same referential rule.
func (r *Registry) DeleteModule(ctx context.Context, id int64) error {
	return r.modules.DeleteModule(ctx, id)
}
