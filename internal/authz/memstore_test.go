package authz

import (
	"context"
	"sort"
	"time"

	"github.com/meridian-bms/meridian-bms/internal/shared"
)

type entryKey struct {
	roleID   int64
	moduleID int64
}

// memStore is the in-memory Store used across the package tests.
type memStore struct {
	nextRoleID   int64
	nextModuleID int64
	roles        map[int64]Role
	modules      map[int64]Module
	entries      map[entryKey]PermissionEntry
	bindings     map[int64]UserRoleBinding
}

func newMemStore() *memStore {
	return &memStore{
		roles:    make(map[int64]Role),
		modules:  make(map[int64]Module),
		entries:  make(map[entryKey]PermissionEntry),
		bindings: make(map[int64]UserRoleBinding),
	}
}

func (m *memStore) GetRole(_ context.Context, id int64) (Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return Role{}, ErrRoleNotFound
	}
	return role, nil
}

func (m *memStore) GetRoleByName(_ context.Context, name string) (Role, error) {
	for _, role := range m.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return Role{}, ErrRoleNotFound
}

func (m *memStore) ListRoles(_ context.Context) ([]Role, error) {
	out := make([]Role, 0, len(m.roles))
	for _, role := range m.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memStore) CreateRole(_ context.Context, input CreateRoleInput) (Role, error) {
	for _, role := range m.roles {
		if role.Name == input.Name {
			return Role{}, ErrDuplicate
		}
	}
	m.nextRoleID++
	role := Role{
		ID:           m.nextRoleID,
		Name:         input.Name,
		Level:        input.Level,
		Description:  input.Description,
		IsSuperAdmin: input.IsSuperAdmin,
		Active:       true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.roles[role.ID] = role
	return role, nil
}

func (m *memStore) SetRoleActive(_ context.Context, id int64, active bool) error {
	role, ok := m.roles[id]
	if !ok {
		return ErrRoleNotFound
	}
	role.Active = active
	m.roles[id] = role
	return nil
}

func (m *memStore) DeleteRole(_ context.Context, id int64) error {
	if _, ok := m.roles[id]; !ok {
		return ErrRoleNotFound
	}
	for key := range m.entries {
		if key.roleID == id {
			return ErrEntriesExist
		}
	}
	delete(m.roles, id)
	return nil
}

func (m *memStore) GetModule(_ context.Context, id int64) (Module, error) {
	module, ok := m.modules[id]
	if !ok {
		return Module{}, ErrModuleNotFound
	}
	return module, nil
}

func (m *memStore) GetModuleByKey(_ context.Context, key string) (Module, error) {
	for _, module := range m.modules {
		if module.Key == key {
			return module, nil
		}
	}
	return Module{}, ErrModuleNotFound
}

func (m *memStore) ListModules(_ context.Context) ([]Module, error) {
	out := make([]Module, 0, len(m.modules))
	for _, module := range m.modules {
		out = append(out, module)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memStore) CreateModule(_ context.Context, input CreateModuleInput) (Module, error) {
	for _, module := range m.modules {
		if module.Key == input.Key {
			return Module{}, ErrDuplicate
		}
	}
	m.nextModuleID++
	module := Module{
		ID:               m.nextModuleID,
		Key:              input.Key,
		DisplayName:      input.DisplayName,
		RequiresApproval: input.RequiresApproval,
		CreatedAt:        time.Now(),
	}
	m.modules[module.ID] = module
	return module, nil
}

func (m *memStore) DeleteModule(_ context.Context, id int64) error {
	if _, ok := m.modules[id]; !ok {
		return ErrModuleNotFound
	}
	for key := range m.entries {
		if key.moduleID == id {
			return ErrEntriesExist
		}
	}
	delete(m.modules, id)
	return nil
}

func (m *memStore) GetEntry(_ context.Context, roleID, moduleID int64) (PermissionEntry, error) {
	entry, ok := m.entries[entryKey{roleID, moduleID}]
	if !ok {
		return PermissionEntry{}, ErrEntryNotFound
	}
	return entry, nil
}

func (m *memStore) UpsertEntry(_ context.Context, roleID, moduleID int64, caps Capabilities) (PermissionEntry, error) {
	entry := PermissionEntry{
		RoleID:       roleID,
		ModuleID:     moduleID,
		Capabilities: caps,
		UpdatedAt:    time.Now(),
	}
	m.entries[entryKey{roleID, moduleID}] = entry
	return entry, nil
}

func (m *memStore) DeleteEntry(_ context.Context, roleID, moduleID int64) error {
	key := entryKey{roleID, moduleID}
	if _, ok := m.entries[key]; !ok {
		return ErrEntryNotFound
	}
	delete(m.entries, key)
	return nil
}

func (m *memStore) ListEntriesForRole(_ context.Context, roleID int64) ([]PermissionEntry, error) {
	out := make([]PermissionEntry, 0)
	for key, entry := range m.entries {
		if key.roleID == roleID {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModuleID < out[j].ModuleID })
	return out, nil
}

func (m *memStore) GetBinding(_ context.Context, userID int64) (UserRoleBinding, error) {
	binding, ok := m.bindings[userID]
	if !ok {
		return UserRoleBinding{}, ErrBindingNotFound
	}
	return binding, nil
}

func (m *memStore) UpsertBinding(_ context.Context, userID, roleID int64) (UserRoleBinding, error) {
	binding := UserRoleBinding{
		UserID:    userID,
		RoleID:    roleID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if existing, ok := m.bindings[userID]; ok {
		binding.CreatedAt = existing.CreatedAt
	}
	m.bindings[userID] = binding
	return binding, nil
}

var _ Store = (*memStore)(nil)

// memAudit captures audit records for assertions.
type memAudit struct {
	records []auditRecord
}

type auditRecord struct {
	actorID  int64
	action   string
	entity   string
	entityID string
	meta     map[string]any
}

func (a *memAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.records = append(a.records, auditRecord{
		actorID:  log.ActorID,
		action:   log.Action,
		entity:   log.Entity,
		entityID: log.EntityID,
		meta:     log.Meta,
	})
	return nil
}

var _ shared.AuditRecorder = (*memAudit)(nil)
