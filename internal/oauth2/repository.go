package oauth2

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrClientNotFound is returned when a client record is not found.
var ErrClientNotFound = errors.New("oauth2 client not found")

// ErrDuplicateClient is returned when a client ID is already registered.
var ErrDuplicateClient = errors.New("oauth2 client already exists")

// ErrCodeNotFound is returned when an authorization code does not exist.
var ErrCodeNotFound = errors.New("authorization code not found")

// ErrTokenNotFound is returned when no token row matches.
var ErrTokenNotFound = errors.New("oauth2 token not found")

// ErrTokenRevoked is returned by RotateToken when the pair was already revoked,
// typically by a concurrent refresh.
var ErrTokenRevoked = errors.New("oauth2 token already revoked")

// Repository provides persistence for clients, authorization codes and tokens.
type Repository interface {
	GetClient(ctx context.Context, clientID string) (*Client, error)
	ListClients(ctx context.Context) ([]Client, error)
	CreateClient(ctx context.Context, c *Client) error
	UpsertClient(ctx context.Context, c *Client) error
	DeleteClient(ctx context.Context, clientID string) error

	CreateAuthorizationCode(ctx context.Context, code *AuthorizationCode) error
	// ClaimAuthorizationCode locks the code, runs check on it and marks it
	// used in the same transaction when check returns nil. Concurrent claims
	// of one code are serialized; at most one can observe used=false.
	ClaimAuthorizationCode(ctx context.Context, code string, check func(*AuthorizationCode) error) (*AuthorizationCode, error)

	CreateToken(ctx context.Context, t *Token) error
	GetTokenByAccess(ctx context.Context, accessToken string) (*Token, error)
	GetTokenByRefresh(ctx context.Context, refreshToken string) (*Token, error)
	// RotateToken revokes oldID and inserts next in one transaction.
	RotateToken(ctx context.Context, oldID uuid.UUID, next *Token) error
	// RevokeToken revokes the pair whose access or refresh value equals value.
	// It reports whether a row matched.
	RevokeToken(ctx context.Context, value string) (bool, error)
	RevokeUserTokens(ctx context.Context, userID uuid.UUID) (int64, error)

	PurgeExpired(ctx context.Context, now time.Time) (PurgeResult, error)
}
