package user

import (
	"time"

	"github.com/google/uuid"
)

// User represents a row in the users table.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	IsApproved   bool
	// IsAdmin is the legacy admin flag. Holding the "admin" role grants the same access.
	IsAdmin   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanLogin reports whether the account may authenticate.
func (u *User) CanLogin() bool {
	return u.IsActive && u.IsApproved
}
