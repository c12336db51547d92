package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-bms/meridian-bms/internal/shared"
	"github.com/meridian-bms/meridian-bms/internal/users"
)

// Service wraps authentication business rules. It yields the stable
// subject identifier the authorization resolver consumes; identity
// issuance beyond email/password is out of scope here.
type Service struct {
	repo users.Repository
}

// NewService constructs a new Service.
func NewService(repo users.Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (users.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if !user.Active {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return users.User{}, shared.ErrInvalidCredentials
	}
	return user, nil
}
