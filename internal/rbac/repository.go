package rbac

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrRoleNotFound is returned when a role record is not found.
var ErrRoleNotFound = errors.New("role not found")

// ErrDuplicateRole is returned when a role with the same name already exists.
var ErrDuplicateRole = errors.New("role name already exists")

// Repository provides operations on roles, role permissions and memberships.
type Repository interface {
	List(ctx context.Context) ([]Role, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	Create(ctx context.Context, role *Role) error
	Update(ctx context.Context, id uuid.UUID, fields UpdateFields) (*Role, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetApps(ctx context.Context, roleID uuid.UUID, apps []string) error
	EnsureSystemRole(ctx context.Context, sr SystemRole) (created bool, err error)

	UserRoles(ctx context.Context, userID uuid.UUID) ([]Role, error)
	SetUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) error
	// Grants returns the explicit role/app join for userID.
	Grants(ctx context.Context, userID uuid.UUID) ([]Grant, error)
}
