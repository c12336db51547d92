package authz

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors surfaced by the stores.
var (
	ErrRoleNotFound    = errors.New("authz: role not found")
	ErrModuleNotFound  = errors.New("authz: module not found")
	ErrEntryNotFound   = errors.New("authz: permission entry not found")
	ErrBindingNotFound = errors.New("authz: user role binding not found")
	ErrDuplicate       = errors.New("authz: duplicate record")
	ErrEntriesExist    = errors.New("authz: permission entries still reference this record")
)

// RoleStore persists roles.
type RoleStore interface {
	GetRole(ctx context.Context, id int64) (Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, input CreateRoleInput) (Role, error)
	SetRoleActive(ctx context.Context, id int64, active bool) error
	DeleteRole(ctx context.Context, id int64) error
}

// ModuleStore persists modules.
type ModuleStore interface {
	GetModule(ctx context.Context, id int64) (Module, error)
	GetModuleByKey(ctx context.Context, key string) (Module, error)
	ListModules(ctx context.Context) ([]Module, error)
	CreateModule(ctx context.Context, input CreateModuleInput) (Module, error)
	DeleteModule(ctx context.Context, id int64) error
}

// EntryStore persists permission entries.
type EntryStore interface {
	GetEntry(ctx context.Context, roleID, moduleID int64) (PermissionEntry, error)
	UpsertEntry(ctx context.Context, roleID, moduleID int64, caps Capabilities) (PermissionEntry, error)
	DeleteEntry(ctx context.Context, roleID, moduleID int64) error
	ListEntriesForRole(ctx context.Context, roleID int64) ([]PermissionEntry, error)
}

// BindingStore persists user role bindings.
type BindingStore interface {
	GetBinding(ctx context.Context, userID int64) (UserRoleBinding, error)
	UpsertBinding(ctx context.Context, userID, roleID int64) (UserRoleBinding, error)
}

// Store aggregates every authz persistence concern.
type Store interface {
	RoleStore
	ModuleStore
	EntryStore
	BindingStore
}

// CreateRoleInput carries role creation fields.
type CreateRoleInput struct {
	Name         string
	Level        int
	Description  string
	IsSuperAdmin bool
}

// CreateModuleInput carries module creation fields.
type CreateModuleInput struct {
	Key              string
	DisplayName      string
	RequiresApproval bool
}

type pgStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PostgreSQL backed Store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

var _ Store = (*pgStore)(nil)

const roleColumns = `id, name, level, description, is_super_admin, active, created_at, updated_at`

func (s *pgStore) GetRole(ctx context.Context, id int64) (Role, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	return scanRole(row)
}

func (s *pgStore) GetRoleByName(ctx context.Context, name string) (Role, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name)
	return scanRole(row)
}

func (s *pgStore) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY level, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *pgStore) CreateRole(ctx context.Context, input CreateRoleInput) (Role, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO roles (name, level, description, is_super_admin, active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING `+roleColumns,
		input.Name, input.Level, input.Description, input.IsSuperAdmin)
	role, err := scanRole(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, ErrDuplicate
		}
		return Role{}, err
	}
	return role, nil
}

func (s *pgStore) SetRoleActive(ctx context.Context, id int64, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE roles SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}

func (s *pgStore) DeleteRole(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrEntriesExist
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}

const moduleColumns = `id, key, display_name, requires_approval, created_at`

func (s *pgStore) GetModule(ctx context.Context, id int64) (Module, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+moduleColumns+` FROM modules WHERE id = $1`, id)
	return scanModule(row)
}

func (s *pgStore) GetModuleByKey(ctx context.Context, key string) (Module, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+moduleColumns+` FROM modules WHERE key = $1`, key)
	return scanModule(row)
}

func (s *pgStore) ListModules(ctx context.Context) ([]Module, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+moduleColumns+` FROM modules ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var modules []Module
	for rows.Next() {
		module, err := scanModule(rows)
		if err != nil {
			return nil, err
		}
		modules = append(modules, module)
	}
	return modules, rows.Err()
}

func (s *pgStore) CreateModule(ctx context.Context, input CreateModuleInput) (Module, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO modules (key, display_name, requires_approval)
		VALUES ($1, $2, $3)
		RETURNING `+moduleColumns,
		input.Key, input.DisplayName, input.RequiresApproval)
	module, err := scanModule(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Module{}, ErrDuplicate
		}
		return Module{}, err
	}
	return module, nil
}

func (s *pgStore) DeleteModule(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM modules WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrEntriesExist
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrModuleNotFound
	}
	return nil
}

const entryColumns = `role_id, module_id, can_read, can_create, can_update, can_delete, can_export, can_approve, updated_at`

func (s *pgStore) GetEntry(ctx context.Context, roleID, moduleID int64) (PermissionEntry, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM permission_entries WHERE role_id = $1 AND module_id = $2`, roleID, moduleID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PermissionEntry{}, ErrEntryNotFound
		}
		return PermissionEntry{}, err
	}
	return entry, nil
}

func (s *pgStore) UpsertEntry(ctx context.Context, roleID, moduleID int64, caps Capabilities) (PermissionEntry, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO permission_entries (role_id, module_id, can_read, can_create, can_update, can_delete, can_export, can_approve)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (role_id, module_id) DO UPDATE SET
			can_read = EXCLUDED.can_read,
			can_create = EXCLUDED.can_create,
			can_update = EXCLUDED.can_update,
			can_delete = EXCLUDED.can_delete,
			can_export = EXCLUDED.can_export,
			can_approve = EXCLUDED.can_approve,
			updated_at = NOW()
		RETURNING `+entryColumns,
		roleID, moduleID, caps.CanRead, caps.CanCreate, caps.CanUpdate, caps.CanDelete, caps.CanExport, caps.CanApprove)
	return scanEntry(row)
}

func (s *pgStore) DeleteEntry(ctx context.Context, roleID, moduleID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM permission_entries WHERE role_id = $1 AND module_id = $2`, roleID, moduleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (s *pgStore) ListEntriesForRole(ctx context.Context, roleID int64) ([]PermissionEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+entryColumns+` FROM permission_entries WHERE role_id = $1 ORDER BY module_id`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []PermissionEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *pgStore) GetBinding(ctx context.Context, userID int64) (UserRoleBinding, error) {
	var b UserRoleBinding
	err := s.pool.QueryRow(ctx, `SELECT user_id, role_id, created_at, updated_at FROM user_role_bindings WHERE user_id = $1`, userID).
		Scan(&b.UserID, &b.RoleID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRoleBinding{}, ErrBindingNotFound
		}
		return UserRoleBinding{}, err
	}
	return b, nil
}

func (s *pgStore) UpsertBinding(ctx context.Context, userID, roleID int64) (UserRoleBinding, error) {
	var b UserRoleBinding
	err := s.pool.QueryRow(ctx, `
		INSERT INTO user_role_bindings (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET role_id = EXCLUDED.role_id, updated_at = NOW()
		RETURNING user_id, role_id, created_at, updated_at`, userID, roleID).
		Scan(&b.UserID, &b.RoleID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return UserRoleBinding{}, err
	}
	return b, nil
}

func scanRole(row pgx.Row) (Role, error) {
	var r Role
	err := row.Scan(&r.ID, &r.Name, &r.Level, &r.Description, &r.IsSuperAdmin, &r.Active, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrRoleNotFound
		}
		return Role{}, err
	}
	return r, nil
}

func scanModule(row pgx.Row) (Module, error) {
	var m Module
	err := row.Scan(&m.ID, &m.Key, &m.DisplayName, &m.RequiresApproval, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Module{}, ErrModuleNotFound
		}
		return Module{}, err
	}
	return m, nil
}

func scanEntry(row pgx.Row) (PermissionEntry, error) {
	var e PermissionEntry
	err := row.Scan(&e.RoleID, &e.ModuleID, &e.CanRead, &e.CanCreate, &e.CanUpdate, &e.CanDelete, &e.CanExport, &e.CanApprove, &e.UpdatedAt)
	if err != nil {
		return PermissionEntry{}, err
	}
	return e, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
