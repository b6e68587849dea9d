package registration

import (
	"time"

	"github.com/google/uuid"
)

// Invite represents a row in the invites table.
type Invite struct {
	ID          uuid.UUID
	Code        string
	CreatedByID *uuid.UUID
	UsedByID    *uuid.UUID
	ExpiresAt   *time.Time
	IsUsed      bool
	CreatedAt   time.Time
	UsedAt      *time.Time
}

// Usable reports whether the invite can still admit a registration at now.
// An invite without an expiry never expires.
func (i *Invite) Usable(now time.Time) bool {
	if i.IsUsed {
		return false
	}
	return i.ExpiresAt == nil || now.Before(*i.ExpiresAt)
}

// Request is a self-service registration attempt.
type Request struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	InviteCode      string
}

// Status describes what the registration page may offer.
type Status struct {
	RegistrationEnabled bool `json:"registration_enabled"`
	// RequireApproval is false when the supplied invite is valid.
	RequireApproval bool `json:"require_approval"`
	InviteRequired  bool `json:"invite_required"`
	InviteValid     bool `json:"invite_valid"`
}
