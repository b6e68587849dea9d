package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kubarr/kubarr/internal/user"
)

// ErrSystemRole is returned when deleting or renaming a built-in role.
var ErrSystemRole = errors.New("system roles cannot be deleted or renamed")

// Service resolves access and manages roles.
type Service struct {
	repo Repository
}

// NewService creates a new rbac Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// AllowedApps resolves the apps u may reach.
func (s *Service) AllowedApps(ctx context.Context, u *user.User) (Access, error) {
	if u.IsAdmin {
		return ResolveAccess(true, nil), nil
	}
	grants, err := s.repo.Grants(ctx, u.ID)
	if err != nil {
		return Access{}, fmt.Errorf("resolving grants: %w", err)
	}
	return ResolveAccess(false, grants), nil
}

// CanAccessApp reports whether u may reach app.
func (s *Service) CanAccessApp(ctx context.Context, u *user.User, app string) (bool, error) {
	access, err := s.AllowedApps(ctx, u)
	if err != nil {
		return false, err
	}
	return access.CanAccess(app), nil
}

// IsAdmin reports whether u holds the admin flag or the admin role.
func (s *Service) IsAdmin(ctx context.Context, u *user.User) (bool, error) {
	access, err := s.AllowedApps(ctx, u)
	if err != nil {
		return false, err
	}
	return access.All(), nil
}

func (s *Service) List(ctx context.Context) ([]Role, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Role, error) {
	return s.repo.GetByID(ctx, id)
}

// Create inserts a custom role. Created roles are never system roles.
func (s *Service) Create(ctx context.Context, name, description string, apps []string) (*Role, error) {
	role := &Role{Name: name, Description: description, Apps: dedupe(apps)}
	if err := s.repo.Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// Update changes a role's name or description. System roles keep their name.
func (s *Service) Update(ctx context.Context, id uuid.UUID, fields UpdateFields) (*Role, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.IsSystem && fields.Name != nil && *fields.Name != existing.Name {
		return nil, ErrSystemRole
	}
	return s.repo.Update(ctx, id, fields)
}

// Delete removes a custom role.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return ErrSystemRole
	}
	return s.repo.Delete(ctx, id)
}

// SetApps replaces the apps granted by a role and returns the updated role.
func (s *Service) SetApps(ctx context.Context, id uuid.UUID, apps []string) (*Role, error) {
	if err := s.repo.SetApps(ctx, id, dedupe(apps)); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UserRoles(ctx context.Context, userID uuid.UUID) ([]Role, error) {
	return s.repo.UserRoles(ctx, userID)
}

// SetUserRoles replaces the memberships of userID. Every role must exist.
func (s *Service) SetUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) ([]Role, error) {
	for _, id := range roleIDs {
		if _, err := s.repo.GetByID(ctx, id); err != nil {
			return nil, err
		}
	}
	if err := s.repo.SetUserRoles(ctx, userID, roleIDs); err != nil {
		return nil, err
	}
	return s.repo.UserRoles(ctx, userID)
}

// AssignRole adds the named role to userID's memberships, keeping the others.
func (s *Service) AssignRole(ctx context.Context, userID uuid.UUID, roleName string) error {
	role, err := s.repo.GetByName(ctx, roleName)
	if err != nil {
		return err
	}
	current, err := s.repo.UserRoles(ctx, userID)
	if err != nil {
		return err
	}
	ids := make([]uuid.UUID, 0, len(current)+1)
	for _, r := range current {
		if r.ID == role.ID {
			return nil
		}
		ids = append(ids, r.ID)
	}
	return s.repo.SetUserRoles(ctx, userID, append(ids, role.ID))
}

// SeedSystemRoles creates missing built-in roles with their default apps.
func (s *Service) SeedSystemRoles(ctx context.Context) error {
	for _, sr := range SystemRoles {
		created, err := s.repo.EnsureSystemRole(ctx, sr)
		if err != nil {
			return fmt.Errorf("seeding role %s: %w", sr.Name, err)
		}
		if created {
			slog.Info("System role created", "role", sr.Name, "apps", sr.Apps)
		}
	}
	return nil
}

func dedupe(apps []string) []string {
	seen := make(map[string]struct{}, len(apps))
	out := make([]string, 0, len(apps))
	for _, a := range apps {
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
