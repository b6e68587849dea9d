package registration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kubarr/kubarr/internal/user"
)

// ErrInviteNotFound is returned when an invite record is not found.
var ErrInviteNotFound = errors.New("invite not found")

// ErrInviteUsed is returned when deleting an invite that was already consumed.
var ErrInviteUsed = errors.New("invite has already been used")

// Repository provides operations on invites and the transactional user
// creation they guard.
type Repository interface {
	CreateInvite(ctx context.Context, inv *Invite) error
	GetInviteByCode(ctx context.Context, code string) (*Invite, error)
	ListInvites(ctx context.Context) ([]Invite, error)
	DeleteInvite(ctx context.Context, id uuid.UUID) error

	// CreateUser inserts u and grants it defaultRole. When inviteCode is
	// non-empty the invite row is locked, re-checked against now and marked
	// used by u in the same transaction; an unusable invite yields
	// ErrInvalidInvite and nothing is written.
	CreateUser(ctx context.Context, u *user.User, defaultRole, inviteCode string, now time.Time) error
}
