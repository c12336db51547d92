package users

import "time"

// User is an account that authenticates against this backend.
// LegacyRole is the historical free-text label from the previous
// system; it is read-only data consumed once by role migration and
// never consulted by authorization.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	LegacyRole   string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OnboardInput carries the fields required to create an account.
type OnboardInput struct {
	Email    string
	Name     string
	Password string
	RoleID   int64
}
