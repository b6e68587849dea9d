// Package setup performs the one-time bootstrap of a fresh installation.
package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kubarr/kubarr/internal/oauth2"
	"github.com/kubarr/kubarr/internal/rbac"
	"github.com/kubarr/kubarr/internal/registration"
	"github.com/kubarr/kubarr/internal/user"
)

// ProxyClientID is the OAuth2 client used by the authenticating proxy.
const ProxyClientID = "oauth2-proxy"

// ErrAlreadyCompleted is returned when an administrator already exists.
var ErrAlreadyCompleted = errors.New("setup has already been completed")

// Users is the user store access setup needs.
type Users interface {
	CountAdmins(ctx context.Context) (int, error)
	Create(ctx context.Context, username, email, password string, isAdmin bool) (*user.User, error)
}

// Roles is the RBAC access setup needs.
type Roles interface {
	SeedSystemRoles(ctx context.Context) error
	AssignRole(ctx context.Context, userID uuid.UUID, roleName string) error
}

// Clients is the OAuth2 client registry access setup needs.
type Clients interface {
	GetClient(ctx context.Context, clientID string) (*oauth2.Client, error)
	RegisterClient(ctx context.Context, clientID, name string, redirectURIs []string) (string, error)
}

// Status reports whether bootstrap is still required.
type Status struct {
	SetupRequired      bool `json:"setup_required"`
	AdminUserExists    bool `json:"admin_user_exists"`
	OAuth2ClientExists bool `json:"oauth2_client_exists"`
}

// Request is the bootstrap input.
type Request struct {
	AdminUsername string `json:"admin_username"`
	AdminEmail    string `json:"admin_email"`
	AdminPassword string `json:"admin_password"`
	BaseURL       string `json:"base_url"`
}

// ProxyClient is the registered proxy client. The secret is only ever
// returned here.
type ProxyClient struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	RedirectURIs []string `json:"redirect_uris"`
}

// Result is the bootstrap outcome.
type Result struct {
	Admin       *user.User
	ProxyClient ProxyClient
}

// Service bootstraps the first administrator and the proxy client.
type Service struct {
	users   Users
	roles   Roles
	clients Clients
}

// NewService creates a setup Service.
func NewService(users Users, roles Roles, clients Clients) *Service {
	return &Service{users: users, roles: roles, clients: clients}
}

// Status reports the bootstrap state.
func (s *Service) Status(ctx context.Context) (Status, error) {
	admins, err := s.users.CountAdmins(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("counting admins: %w", err)
	}

	clientExists := true
	if _, err := s.clients.GetClient(ctx, ProxyClientID); err != nil {
		if !errors.Is(err, oauth2.ErrClientNotFound) {
			return Status{}, fmt.Errorf("looking up proxy client: %w", err)
		}
		clientExists = false
	}

	return Status{
		SetupRequired:      admins == 0,
		AdminUserExists:    admins > 0,
		OAuth2ClientExists: clientExists,
	}, nil
}

// Bootstrap creates the first administrator, grants it the admin role and
// registers the proxy client. It is refused once an administrator exists.
func (s *Service) Bootstrap(ctx context.Context, req Request) (*Result, error) {
	admins, err := s.users.CountAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting admins: %w", err)
	}
	if admins > 0 {
		return nil, ErrAlreadyCompleted
	}

	if err := registration.ValidateAccount(req.AdminUsername, req.AdminEmail, req.AdminPassword); err != nil {
		return nil, err
	}
	baseURL := strings.TrimRight(req.BaseURL, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, &registration.ValidationError{Field: "base_url", Message: "Base URL must start with http:// or https://"}
	}

	if err := s.roles.SeedSystemRoles(ctx); err != nil {
		return nil, err
	}

	admin, err := s.users.Create(ctx, req.AdminUsername, req.AdminEmail, req.AdminPassword, true)
	if err != nil {
		return nil, fmt.Errorf("creating admin user: %w", err)
	}
	if err := s.roles.AssignRole(ctx, admin.ID, rbac.RoleAdmin); err != nil {
		return nil, fmt.Errorf("assigning admin role: %w", err)
	}

	redirects := []string{
		baseURL + "/oauth2/callback",
		baseURL + "/oauth/callback",
	}
	secret, err := s.clients.RegisterClient(ctx, ProxyClientID, "OAuth2 Proxy", redirects)
	if err != nil {
		return nil, fmt.Errorf("registering proxy client: %w", err)
	}

	slog.Info("setup completed", "admin", admin.Username, "client", ProxyClientID)

	return &Result{
		Admin: admin,
		ProxyClient: ProxyClient{
			ClientID:     ProxyClientID,
			ClientSecret: secret,
			RedirectURIs: redirects,
		},
	}, nil
}
