package users

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-bms/meridian-bms/internal/authz"
)

// Notifier delivers role-change notifications out of band.
type Notifier interface {
	NotifyRoleChange(ctx context.Context, email, roleName string) error
}

// Service orchestrates account management. Role assignment always goes
// through authz.Bindings so every user holds exactly one role.
type Service struct {
	repo     Repository
	bindings *authz.Bindings
	registry *authz.Registry
	notifier Notifier
}

// NewService constructs a Service. notifier may be nil.
func NewService(repo Repository, bindings *authz.Bindings, registry *authz.Registry, notifier Notifier) *Service {
	return &Service{repo: repo, bindings: bindings, registry: registry, notifier: notifier}
}

// Get fetches one user.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// Onboard creates an account and binds its initial role.
func (s *Service) Onboard(ctx context.Context, actorID int64, input OnboardInput) (User, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	input.Name = strings.TrimSpace(input.Name)
	if input.Email == "" {
		return User{}, errors.New("users: email required")
	}
	if len(input.Password) < 8 {
		return User{}, errors.New("users: password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user, err := s.repo.CreateUser(ctx, input.Email, input.Name, string(hash))
	if err != nil {
		return User{}, err
	}

	if _, err := s.bindings.Bind(ctx, actorID, user.ID, input.RoleID); err != nil {
		return User{}, err
	}
	return user, nil
}

// Reassign moves a user to a different role and notifies them.
func (s *Service) Reassign(ctx context.Context, actorID, userID, roleID int64) error {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	role, err := s.registry.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if _, err := s.bindings.Bind(ctx, actorID, userID, roleID); err != nil {
		return err
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyRoleChange(ctx, user.Email, role.Name); err != nil {
			// Notification failure never rolls back the assignment.
			return nil
		}
	}
	return nil
}

// Deactivate disables an account.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.repo.SetActive(ctx, id, false)
}

// MigrateLegacy runs legacy-label migration for every active user that
// still lacks a binding. Returns the number of users migrated.
func (s *Service) MigrateLegacy(ctx context.Context, actorID int64) (int, error) {
	pending, err := s.repo.ListUnmigrated(ctx)
	if err != nil {
		return 0, err
	}
	migrated := 0
	for _, user := range pending {
		if _, err := s.bindings.MigrateLegacyLabel(ctx, actorID, user.ID, user.LegacyRole); err != nil {
			return migrated, err
		}
		migrated++
	}
	return migrated, nil
}
