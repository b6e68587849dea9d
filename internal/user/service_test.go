package user_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kubarr/kubarr/internal/security"
	"github.com/kubarr/kubarr/internal/user"
)

// --- Mock Repository ---

type mockRepo struct {
	createFn           func(ctx context.Context, u *user.User) error
	getByIDFn          func(ctx context.Context, id uuid.UUID) (*user.User, error)
	getByUsernameFn    func(ctx context.Context, username string) (*user.User, error)
	setApprovedFn      func(ctx context.Context, id uuid.UUID, approved bool) (*user.User, error)
	setActiveFn        func(ctx context.Context, id uuid.UUID, active bool) (*user.User, error)
	deleteUnapprovedFn func(ctx context.Context, id uuid.UUID) error
}

func (m *mockRepo) Create(ctx context.Context, u *user.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, u)
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now().UTC()
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, user.ErrUserNotFound
}

func (m *mockRepo) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	if m.getByUsernameFn != nil {
		return m.getByUsernameFn(ctx, username)
	}
	return nil, user.ErrUserNotFound
}

func (m *mockRepo) List(context.Context) ([]user.User, error) { return []user.User{}, nil }
func (m *mockRepo) ListPending(context.Context) ([]user.User, error) { return []user.User{}, nil }

func (m *mockRepo) SetApproved(ctx context.Context, id uuid.UUID, approved bool) (*user.User, error) {
	if m.setApprovedFn != nil {
		return m.setApprovedFn(ctx, id, approved)
	}
	return nil, user.ErrUserNotFound
}

func (m *mockRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) (*user.User, error) {
	if m.setActiveFn != nil {
		return m.setActiveFn(ctx, id, active)
	}
	return nil, user.ErrUserNotFound
}

func (m *mockRepo) DeleteUnapproved(ctx context.Context, id uuid.UUID) error {
	if m.deleteUnapprovedFn != nil {
		return m.deleteUnapprovedFn(ctx, id)
	}
	return nil
}

func (m *mockRepo) Delete(context.Context, uuid.UUID) error { return nil }
func (m *mockRepo) CountAdmins(context.Context) (int, error) { return 0, nil }

type revokerFunc func(ctx context.Context, userID uuid.UUID) error

func (f revokerFunc) RevokeUserTokens(ctx context.Context, userID uuid.UUID) error {
	return f(ctx, userID)
}

var noRevoke = revokerFunc(func(context.Context, uuid.UUID) error { return nil })

func TestService_Authenticate(t *testing.T) {
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("correct-horse")
	require.NoError(t, err)

	tests := []struct {
		name     string
		user     *user.User
		password string
		wantErr  error
	}{
		{name: "unknown user", password: "correct-horse", wantErr: user.ErrInvalidCredentials},
		{name: "wrong password", user: &user.User{IsActive: true, IsApproved: true}, password: "nope", wantErr: user.ErrInvalidCredentials},
		{name: "inactive", user: &user.User{IsActive: false, IsApproved: true}, password: "correct-horse", wantErr: user.ErrInactive},
		{name: "pending", user: &user.User{IsActive: true, IsApproved: false}, password: "correct-horse", wantErr: user.ErrPendingApproval},
		{name: "ok", user: &user.User{IsActive: true, IsApproved: true}, password: "correct-horse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{
				getByUsernameFn: func(_ context.Context, username string) (*user.User, error) {
					if tt.user == nil {
						return nil, user.ErrUserNotFound
					}
					u := *tt.user
					u.Username = username
					u.PasswordHash = hash
					return &u, nil
				},
			}
			svc := user.NewService(repo, hasher, noRevoke)

			u, err := svc.Authenticate(context.Background(), "alice", tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, u)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "alice", u.Username)
		})
	}
}

type countingHasher struct {
	security.PasswordHasher
	verifies []string
}

func (h *countingHasher) Verify(plain, hash string) bool {
	h.verifies = append(h.verifies, hash)
	return h.PasswordHasher.Verify(plain, hash)
}

func TestService_Authenticate_UnknownUserStillVerifies(t *testing.T) {
	hasher := &countingHasher{PasswordHasher: security.NewBcryptHasher(bcrypt.MinCost)}
	svc := user.NewService(&mockRepo{}, hasher, noRevoke)

	for i := 0; i < 2; i++ {
		_, err := svc.Authenticate(context.Background(), "ghost", "correct-horse")
		assert.ErrorIs(t, err, user.ErrInvalidCredentials)
	}

	require.Len(t, hasher.verifies, 2)
	assert.NotEmpty(t, hasher.verifies[0])
	assert.Equal(t, hasher.verifies[0], hasher.verifies[1])
}

func TestService_Authenticate_StoreError(t *testing.T) {
	repo := &mockRepo{
		getByUsernameFn: func(context.Context, string) (*user.User, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := user.NewService(repo, security.NewBcryptHasher(bcrypt.MinCost), noRevoke)

	_, err := svc.Authenticate(context.Background(), "alice", "pw")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, user.ErrInvalidCredentials)
}

func TestService_Create_AutoApproved(t *testing.T) {
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	svc := user.NewService(&mockRepo{}, hasher, noRevoke)

	u, err := svc.Create(context.Background(), "bob", "bob@example.com", "password1", false)
	require.NoError(t, err)
	assert.True(t, u.IsApproved)
	assert.True(t, u.IsActive)
	assert.True(t, hasher.Verify("password1", u.PasswordHash))
}

func TestService_SetActive_RevokesOnDeactivate(t *testing.T) {
	id := uuid.New()
	var revoked []uuid.UUID
	revoker := revokerFunc(func(_ context.Context, userID uuid.UUID) error {
		revoked = append(revoked, userID)
		return nil
	})
	repo := &mockRepo{
		setActiveFn: func(_ context.Context, got uuid.UUID, active bool) (*user.User, error) {
			return &user.User{ID: got, IsActive: active}, nil
		},
	}
	svc := user.NewService(repo, security.NewBcryptHasher(bcrypt.MinCost), revoker)

	_, err := svc.SetActive(context.Background(), id, true)
	require.NoError(t, err)
	assert.Empty(t, revoked)

	u, err := svc.SetActive(context.Background(), id, false)
	require.NoError(t, err)
	assert.False(t, u.IsActive)
	assert.Equal(t, []uuid.UUID{id}, revoked)
}

func TestService_Reject(t *testing.T) {
	repo := &mockRepo{
		deleteUnapprovedFn: func(context.Context, uuid.UUID) error {
			return user.ErrAlreadyApproved
		},
	}
	svc := user.NewService(repo, security.NewBcryptHasher(bcrypt.MinCost), noRevoke)

	assert.ErrorIs(t, svc.Reject(context.Background(), uuid.New()), user.ErrAlreadyApproved)
}
