package users

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-bms/meridian-bms/internal/authz"
)

type memUsers struct {
	nextID     int64
	users      map[int64]User
	hasBinding func(userID int64) bool
}

func newMemUsers() *memUsers {
	return &memUsers{
		users:      make(map[int64]User),
		hasBinding: func(int64) bool { return false },
	}
}

func (m *memUsers) GetUser(_ context.Context, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (m *memUsers) ListUsers(_ context.Context) ([]User, error) {
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *memUsers) ListUnmigrated(_ context.Context) ([]User, error) {
	out := make([]User, 0)
	for _, u := range m.users {
		if u.Active && u.LegacyRole != "" && !m.hasBinding(u.ID) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memUsers) CreateUser(_ context.Context, email, name, passwordHash string) (User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return User{}, ErrDuplicateEmail
		}
	}
	m.nextID++
	u := User{
		ID:           m.nextID,
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Active:       true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *memUsers) SetActive(_ context.Context, id int64, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.Active = active
	m.users[id] = u
	return nil
}

var _ Repository = (*memUsers)(nil)

// memRoles and memBindings are the minimal authz stores the bindings
// service needs.
type memRoles struct {
	roles map[int64]authz.Role
}

func (m *memRoles) GetRole(_ context.Context, id int64) (authz.Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return authz.Role{}, authz.ErrRoleNotFound
	}
	return role, nil
}

func (m *memRoles) GetRoleByName(_ context.Context, name string) (authz.Role, error) {
	for _, role := range m.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return authz.Role{}, authz.ErrRoleNotFound
}

func (m *memRoles) ListRoles(_ context.Context) ([]authz.Role, error) {
	out := make([]authz.Role, 0, len(m.roles))
	for _, role := range m.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRoles) CreateRole(_ context.Context, input authz.CreateRoleInput) (authz.Role, error) {
	id := int64(len(m.roles) + 1)
	role := authz.Role{ID: id, Name: input.Name, Level: input.Level, IsSuperAdmin: input.IsSuperAdmin, Active: true}
	m.roles[id] = role
	return role, nil
}

func (m *memRoles) SetRoleActive(_ context.Context, id int64, active bool) error {
	role, ok := m.roles[id]
	if !ok {
		return authz.ErrRoleNotFound
	}
	role.Active = active
	m.roles[id] = role
	return nil
}

func (m *memRoles) DeleteRole(_ context.Context, id int64) error {
	delete(m.roles, id)
	return nil
}

var _ authz.RoleStore = (*memRoles)(nil)

type memBindings struct {
	bindings map[int64]authz.UserRoleBinding
}

func (m *memBindings) GetBinding(_ context.Context, userID int64) (authz.UserRoleBinding, error) {
	binding, ok := m.bindings[userID]
	if !ok {
		return authz.UserRoleBinding{}, authz.ErrBindingNotFound
	}
	return binding, nil
}

func (m *memBindings) UpsertBinding(_ context.Context, userID, roleID int64) (authz.UserRoleBinding, error) {
	binding := authz.UserRoleBinding{UserID: userID, RoleID: roleID}
	m.bindings[userID] = binding
	return binding, nil
}

var _ authz.BindingStore = (*memBindings)(nil)

type memNotifier struct {
	sent []string
	err  error
}

func (n *memNotifier) NotifyRoleChange(_ context.Context, email, roleName string) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, email+":"+roleName)
	return nil
}

type fixture struct {
	repo         *memUsers
	roleStore    *memRoles
	bindingStore *memBindings
	notifier     *memNotifier
	service      *Service
	roles        map[string]authz.Role
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemUsers()
	roleStore := &memRoles{roles: make(map[int64]authz.Role)}
	bindingStore := &memBindings{bindings: make(map[int64]authz.UserRoleBinding)}
	repo.hasBinding = func(userID int64) bool {
		_, ok := bindingStore.bindings[userID]
		return ok
	}

	ctx := context.Background()
	roles := make(map[string]authz.Role)
	for _, input := range []authz.CreateRoleInput{
		{Name: "Administrator", Level: 0, IsSuperAdmin: true},
		{Name: "Accountant", Level: 30},
		{Name: "Viewer", Level: 90},
	} {
		role, err := roleStore.CreateRole(ctx, input)
		require.NoError(t, err)
		roles[role.Name] = role
	}

	bindings := authz.NewBindings(roleStore, bindingStore, nil, nil)
	registry := authz.NewRegistry(roleStore, nil)
	notifier := &memNotifier{}
	return &fixture{
		repo:         repo,
		roleStore:    roleStore,
		bindingStore: bindingStore,
		notifier:     notifier,
		service:      NewService(repo, bindings, registry, notifier),
		roles:        roles,
	}
}

func TestOnboardHashesPasswordAndBindsRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.service.Onboard(ctx, 1, OnboardInput{
		Email:    "  Maria@Meridian.Local ",
		Name:     "Maria Fuentes",
		Password: "correct horse",
		RoleID:   f.roles["Accountant"].ID,
	})
	require.NoError(t, err)
	require.Equal(t, "maria@meridian.local", user.Email)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct horse")))

	binding, ok := f.bindingStore.bindings[user.ID]
	require.True(t, ok)
	require.Equal(t, f.roles["Accountant"].ID, binding.RoleID)
}

func TestOnboardValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Onboard(ctx, 1, OnboardInput{Email: "", Password: "longenough", RoleID: 1})
	require.Error(t, err)
	_, err = f.service.Onboard(ctx, 1, OnboardInput{Email: "a@b.c", Password: "short", RoleID: 1})
	require.Error(t, err)
}

func TestReassignNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.service.Onboard(ctx, 1, OnboardInput{
		Email: "maria@meridian.local", Name: "Maria", Password: "correct horse", RoleID: f.roles["Viewer"].ID,
	})
	require.NoError(t, err)

	require.NoError(t, f.service.Reassign(ctx, 1, user.ID, f.roles["Accountant"].ID))
	require.Equal(t, f.roles["Accountant"].ID, f.bindingStore.bindings[user.ID].RoleID)
	require.Equal(t, []string{"maria@meridian.local:Accountant"}, f.notifier.sent)
}

func TestReassignNotificationFailureKeepsBinding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.service.Onboard(ctx, 1, OnboardInput{
		Email: "maria@meridian.local", Name: "Maria", Password: "correct horse", RoleID: f.roles["Viewer"].ID,
	})
	require.NoError(t, err)

	f.notifier.err = context.DeadlineExceeded
	require.NoError(t, f.service.Reassign(ctx, 1, user.ID, f.roles["Accountant"].ID))
	require.Equal(t, f.roles["Accountant"].ID, f.bindingStore.bindings[user.ID].RoleID)
}

func TestMigrateLegacySweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Three pre-migration accounts with only legacy labels.
	for i, label := range []string{"accounting", "Jefe de Obra", "Admin"} {
		user, err := f.repo.CreateUser(ctx, "legacy"+string(rune('a'+i))+"@meridian.local", "Legacy", "x")
		require.NoError(t, err)
		u := f.repo.users[user.ID]
		u.LegacyRole = label
		f.repo.users[user.ID] = u
	}

	migrated, err := f.service.MigrateLegacy(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 3, migrated)

	require.Equal(t, f.roles["Accountant"].ID, f.bindingStore.bindings[1].RoleID)
	require.Equal(t, f.roles["Viewer"].ID, f.bindingStore.bindings[2].RoleID, "unmatched label falls back to least privilege")
	require.Equal(t, f.roles["Administrator"].ID, f.bindingStore.bindings[3].RoleID)

	// Rerun is a no-op: everyone already holds a binding.
	migrated, err = f.service.MigrateLegacy(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 0, migrated)
}

func TestMigrateLegacySkipsInactiveUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.repo.CreateUser(ctx, "gone@meridian.local", "Gone", "x")
	require.NoError(t, err)
	u := f.repo.users[user.ID]
	u.LegacyRole = "Viewer"
	f.repo.users[user.ID] = u
	require.NoError(t, f.repo.SetActive(ctx, user.ID, false))

	migrated, err := f.service.MigrateLegacy(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 0, migrated)
}
