package authz

import (
	"context"
	"errors"
)

// ResolverStore is the read-only snapshot the resolver consults.
type ResolverStore interface {
	GetBinding(ctx context.Context, userID int64) (UserRoleBinding, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	GetModuleByKey(ctx context.Context, key string) (Module, error)
	GetEntry(ctx context.Context, roleID, moduleID int64) (PermissionEntry, error)
}

// Resolver answers "can subject X do action A on module M". It is a
// pure function of the store snapshot: identical inputs against an
// unchanged snapshot always yield the identical decision. Denial is
// returned as a Decision, never as an error; errors mean the backing
// store failed.
type Resolver struct {
	store ResolverStore
}

// NewResolver constructs a Resolver.
func NewResolver(store ResolverStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve walks binding -> role -> module -> entry -> capability.
func (r *Resolver) Resolve(ctx context.Context, subjectID int64, moduleKey string, action Action) (Decision, error) {
	binding, err := r.store.GetBinding(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrBindingNotFound) {
			// An unbound user never inherits anything, least of all
			// super admin.
			return Denied(ReasonNoRole), nil
		}
		return Decision{}, err
	}

	role, err := r.store.GetRole(ctx, binding.RoleID)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return Denied(ReasonNoRole), nil
		}
		return Decision{}, err
	}
	if !role.Active {
		return Denied(ReasonRoleInactive), nil
	}

	// Super admin bypasses the matrix entirely, entry or no entry.
	if role.IsSuperAdmin {
		return Allowed(), nil
	}

	module, err := r.store.GetModuleByKey(ctx, moduleKey)
	if err != nil {
		if errors.Is(err, ErrModuleNotFound) {
			return Denied(ReasonModuleUnknown), nil
		}
		return Decision{}, err
	}

	entry, err := r.store.GetEntry(ctx, role.ID, module.ID)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return Denied(ReasonNoPermissionEntry), nil
		}
		return Decision{}, err
	}

	if !entry.Allows(action) {
		return Denied(ReasonActionDenied), nil
	}
	return Allowed(), nil
}
