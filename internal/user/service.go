package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/kubarr/kubarr/internal/security"
)

// Login rejections.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactive           = errors.New("account is inactive")
	ErrPendingApproval    = errors.New("account pending approval")
)

// TokenRevoker revokes every outstanding token of a user.
type TokenRevoker interface {
	RevokeUserTokens(ctx context.Context, userID uuid.UUID) error
}

// dummyPassword is hashed once and verified against when a username is
// unknown, so both branches of Authenticate cost one hash comparison.
const dummyPassword = "kubarr-unknown-user"

// Service authenticates users and implements user administration.
type Service struct {
	repo    Repository
	hasher  security.PasswordHasher
	revoker TokenRevoker

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates a new user Service.
func NewService(repo Repository, hasher security.PasswordHasher, revoker TokenRevoker) *Service {
	return &Service{repo: repo, hasher: hasher, revoker: revoker}
}

// Authenticate checks a username and password and returns the account if it may log in.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.hasher.Verify(password, s.unknownUserHash())
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrInactive
	}
	if !u.IsApproved {
		return nil, ErrPendingApproval
	}
	return u, nil
}

func (s *Service) unknownUserHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			slog.Error("failed to hash dummy password", "error", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// Create adds an approved account on behalf of an administrator.
func (s *Service) Create(ctx context.Context, username, email, password string, isAdmin bool) (*User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	u := &User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		IsApproved:   true,
		IsAdmin:      isAdmin,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.repo.GetByUsername(ctx, username)
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

func (s *Service) ListPending(ctx context.Context) ([]User, error) {
	return s.repo.ListPending(ctx)
}

// Approve lets a pending account log in.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.SetApproved(ctx, id, true)
	if err != nil {
		return nil, err
	}
	slog.Info("User approved", "userId", u.ID, "username", u.Username)
	return u, nil
}

// Reject deletes an account that was never approved.
func (s *Service) Reject(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteUnapproved(ctx, id); err != nil {
		return err
	}
	slog.Info("User rejected", "userId", id)
	return nil
}

// SetActive enables or disables an account. Disabling revokes its tokens.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*User, error) {
	u, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return nil, err
	}
	if !active {
		if err := s.revoker.RevokeUserTokens(ctx, id); err != nil {
			return nil, fmt.Errorf("revoking tokens: %w", err)
		}
	}
	return u, nil
}

// Delete removes an account. Its tokens and codes cascade.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// CountAdmins returns the number of administrators.
func (s *Service) CountAdmins(ctx context.Context) (int, error) {
	return s.repo.CountAdmins(ctx)
}
