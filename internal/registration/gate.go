package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/kubarr/kubarr/internal/rbac"
	"github.com/kubarr/kubarr/internal/security"
	"github.com/kubarr/kubarr/internal/settings"
	"github.com/kubarr/kubarr/internal/user"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// DefaultRole is granted to every self-registered user.
const DefaultRole = rbac.RoleViewer

// ErrRegistrationDisabled is returned when open registration is off and no invite was supplied.
var ErrRegistrationDisabled = errors.New("registration is disabled")

// ErrInvalidInvite is returned when the supplied invite is unknown, used or expired.
var ErrInvalidInvite = errors.New("registration requires a valid invite link")

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,50}$`)

// ValidationError is a user-correctable problem with a registration request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Result is the outcome of a successful registration.
type Result struct {
	User *user.User
	// Approved is false when an administrator must approve the account.
	Approved bool
}

// Gate decides whether self-service registrations are admitted.
type Gate struct {
	repo     Repository
	settings settings.Resolver
	hasher   security.PasswordHasher
	now      func() time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithClock overrides the time source.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		g.now = now
	}
}

// NewGate creates a new registration Gate.
func NewGate(repo Repository, resolver settings.Resolver, hasher security.PasswordHasher, opts ...GateOption) *Gate {
	g := &Gate{
		repo:     repo,
		settings: resolver,
		hasher:   hasher,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register validates req and creates the account when the registration policy admits it.
func (g *Gate) Register(ctx context.Context, req Request) (*Result, error) {
	policy, err := g.settings.Registration(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving registration settings: %w", err)
	}

	inviteValid := false
	if req.InviteCode != "" {
		inviteValid, err = g.inviteUsable(ctx, req.InviteCode)
		if err != nil {
			return nil, err
		}
	}

	// With open registration an unusable invite is ignored rather than
	// rejected; the account then follows the approval policy.
	switch {
	case !policy.Enabled && req.InviteCode != "" && !inviteValid:
		return nil, ErrInvalidInvite
	case !policy.Enabled && !inviteValid:
		return nil, ErrRegistrationDisabled
	}

	inviteCode := ""
	if inviteValid {
		inviteCode = req.InviteCode
	}

	if err := validate(req); err != nil {
		return nil, err
	}

	hash, err := g.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u := &user.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		IsActive:     true,
		IsApproved:   inviteValid || !policy.RequireApproval,
	}
	if err := g.repo.CreateUser(ctx, u, DefaultRole, inviteCode, g.now()); err != nil {
		return nil, err
	}

	slog.Info("User registered", "userId", u.ID, "username", u.Username, "approved", u.IsApproved, "invite", inviteValid)
	return &Result{User: u, Approved: u.IsApproved}, nil
}

// Status reports the registration policy as seen by a visitor holding inviteCode.
func (g *Gate) Status(ctx context.Context, inviteCode string) (*Status, error) {
	policy, err := g.settings.Registration(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving registration settings: %w", err)
	}

	valid := false
	if inviteCode != "" {
		valid, err = g.inviteUsable(ctx, inviteCode)
		if err != nil {
			return nil, err
		}
	}

	return &Status{
		RegistrationEnabled: policy.Enabled,
		RequireApproval:     policy.RequireApproval && !valid,
		InviteRequired:      !policy.Enabled,
		InviteValid:         valid,
	}, nil
}

// CreateInvite issues a new invite. A zero expiresIn means the invite never expires.
func (g *Gate) CreateInvite(ctx context.Context, createdBy uuid.UUID, expiresIn time.Duration) (*Invite, error) {
	code, err := security.GenerateInviteCode()
	if err != nil {
		return nil, fmt.Errorf("generating invite code: %w", err)
	}

	inv := &Invite{Code: code}
	if createdBy != uuid.Nil {
		inv.CreatedByID = &createdBy
	}
	if expiresIn > 0 {
		exp := g.now().Add(expiresIn)
		inv.ExpiresAt = &exp
	}

	if err := g.repo.CreateInvite(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (g *Gate) ListInvites(ctx context.Context) ([]Invite, error) {
	return g.repo.ListInvites(ctx)
}

// DeleteInvite removes an invite that has not been used.
func (g *Gate) DeleteInvite(ctx context.Context, id uuid.UUID) error {
	return g.repo.DeleteInvite(ctx, id)
}

func (g *Gate) inviteUsable(ctx context.Context, code string) (bool, error) {
	inv, err := g.repo.GetInviteByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInviteNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("looking up invite: %w", err)
	}
	return inv.Usable(g.now()), nil
}

func validate(req Request) error {
	if err := ValidateAccount(req.Username, req.Email, req.Password); err != nil {
		return err
	}
	if req.Password != req.ConfirmPassword {
		return &ValidationError{Field: "confirm_password", Message: "Passwords do not match"}
	}
	return nil
}

// ValidateAccount checks the username, email and password rules shared by
// every path that creates an account.
func ValidateAccount(username, email, password string) error {
	if !usernameRegex.MatchString(username) {
		return &ValidationError{Field: "username", Message: "Username must be 3-50 characters of letters, digits, '_', '.' or '-'"}
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return &ValidationError{Field: "email", Message: "Invalid email address"}
	}
	if len(password) < MinPasswordLength {
		return &ValidationError{Field: "password", Message: fmt.Sprintf("Password must be at least %d characters", MinPasswordLength)}
	}
	if len(password) > MaxPasswordBytes {
		return &ValidationError{Field: "password", Message: fmt.Sprintf("Password must be at most %d bytes", MaxPasswordBytes)}
	}
	return nil
}
