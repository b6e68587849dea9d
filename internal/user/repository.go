package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when a user record is not found.
var ErrUserNotFound = errors.New("user not found")

// ErrDuplicateUser is returned when the username or email is already taken.
var ErrDuplicateUser = errors.New("username or email already exists")

// ErrAlreadyApproved is returned when rejecting a user that was already approved.
var ErrAlreadyApproved = errors.New("user is already approved")

// Repository provides operations on the users table.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]User, error)
	ListPending(ctx context.Context) ([]User, error)
	SetApproved(ctx context.Context, id uuid.UUID, approved bool) (*User, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*User, error)
	DeleteUnapproved(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountAdmins(ctx context.Context) (int, error)
}
