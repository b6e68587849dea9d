package oauth2

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kubarr/kubarr/internal/security"
	"github.com/kubarr/kubarr/internal/token"
	"github.com/kubarr/kubarr/internal/user"
)

// Default lifetimes.
const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultCodeTTL    = 10 * time.Minute
)

// ErrInvalidClient is returned when the client is unknown or its secret is wrong.
var ErrInvalidClient = errors.New("invalid client credentials")

// ErrInvalidGrant is returned for every rejected authorization code or
// refresh token. The specific reason is only logged.
var ErrInvalidGrant = errors.New("invalid or expired grant")

// ErrInvalidRedirectURI is returned when a redirect URI is not registered for the client.
var ErrInvalidRedirectURI = errors.New("redirect_uri is not registered for this client")

// ErrUnsupportedChallengeMethod is returned for PKCE methods other than S256 and plain.
var ErrUnsupportedChallengeMethod = errors.New("unsupported code_challenge_method")

// ErrInvalidToken is returned when a bearer token is not currently valid.
var ErrInvalidToken = errors.New("invalid or revoked token")

// UserLookup is the read access the authorization server needs to users.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// CodeRequest carries the parameters bound into an authorization code.
type CodeRequest struct {
	ClientID            string
	UserID              uuid.UUID
	RedirectURI         string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// Service implements the OAuth2 authorization server operations.
type Service struct {
	repo       Repository
	users      UserLookup
	codec      *token.Codec
	hasher     security.PasswordHasher
	accessTTL  time.Duration
	refreshTTL time.Duration
	codeTTL    time.Duration
	now        func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithAccessTTL sets the access token lifetime.
func WithAccessTTL(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.accessTTL = d
		}
	}
}

// WithRefreshTTL sets the refresh token lifetime.
func WithRefreshTTL(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.refreshTTL = d
		}
	}
}

// WithCodeTTL sets the authorization code lifetime.
func WithCodeTTL(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.codeTTL = d
		}
	}
}

// WithClock overrides the time source used for expiry decisions.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new OAuth2 Service.
func NewService(repo Repository, users UserLookup, codec *token.Codec, hasher security.PasswordHasher, opts ...ServiceOption) *Service {
	s := &Service{
		repo:       repo,
		users:      users,
		codec:      codec,
		hasher:     hasher,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		codeTTL:    DefaultCodeTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AccessTTL returns the configured access token lifetime.
func (s *Service) AccessTTL() time.Duration {
	return s.accessTTL
}

// GetClient returns the registered client.
func (s *Service) GetClient(ctx context.Context, clientID string) (*Client, error) {
	return s.repo.GetClient(ctx, clientID)
}

// ListClients returns all registered clients.
func (s *Service) ListClients(ctx context.Context) ([]Client, error) {
	return s.repo.ListClients(ctx)
}

// ValidateClient checks that clientID exists and, when secret is non-empty,
// that it matches. Unknown clients and wrong secrets both yield ErrInvalidClient.
func (s *Service) ValidateClient(ctx context.Context, clientID, secret string) (*Client, error) {
	c, err := s.repo.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return nil, ErrInvalidClient
		}
		return nil, err
	}
	if secret != "" && !s.hasher.Verify(secret, c.ClientSecretHash) {
		return nil, ErrInvalidClient
	}
	return c, nil
}

// AuthenticateClient is ValidateClient with a mandatory secret. The token
// endpoint only serves confidential clients.
func (s *Service) AuthenticateClient(ctx context.Context, clientID, secret string) (*Client, error) {
	if clientID == "" || secret == "" {
		return nil, ErrInvalidClient
	}
	return s.ValidateClient(ctx, clientID, secret)
}

// RegisterClient creates a client with a freshly generated secret and
// returns the plaintext secret. It is not recoverable afterwards.
func (s *Service) RegisterClient(ctx context.Context, clientID, name string, redirectURIs []string) (string, error) {
	return s.storeClient(ctx, clientID, name, redirectURIs, s.repo.CreateClient)
}

// ProvisionClient creates the client or replaces its secret and redirect
// URIs, returning the new plaintext secret.
func (s *Service) ProvisionClient(ctx context.Context, clientID, name string, redirectURIs []string) (string, error) {
	return s.storeClient(ctx, clientID, name, redirectURIs, s.repo.UpsertClient)
}

// AppClientID returns the client id provisioned for a catalog app.
func AppClientID(app string) string {
	return app + "-oauth"
}

// EnsureAppClient provisions the "{app}-oauth" client whose only redirect
// URI is the app's callback under baseURL. The secret is rotated on every call.
func (s *Service) EnsureAppClient(ctx context.Context, app, displayName, baseURL string) (clientID, secret string, err error) {
	clientID = AppClientID(app)
	redirect := fmt.Sprintf("%s/%s/oauth2/callback", strings.TrimRight(baseURL, "/"), app)
	secret, err = s.ProvisionClient(ctx, clientID, displayName, []string{redirect})
	if err != nil {
		return "", "", fmt.Errorf("provisioning client %s: %w", clientID, err)
	}
	return clientID, secret, nil
}

// DeleteClient removes a client and everything issued to it.
func (s *Service) DeleteClient(ctx context.Context, clientID string) error {
	return s.repo.DeleteClient(ctx, clientID)
}

func (s *Service) storeClient(ctx context.Context, clientID, name string, redirectURIs []string, store func(context.Context, *Client) error) (string, error) {
	secret, err := security.GenerateClientSecret()
	if err != nil {
		return "", err
	}
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return "", err
	}

	c := &Client{
		ClientID:         clientID,
		ClientSecretHash: hash,
		Name:             name,
		RedirectURIs:     redirectURIs,
	}
	if err := store(ctx, c); err != nil {
		return "", err
	}
	return secret, nil
}

// CreateAuthorizationCode issues a code bound to the request parameters.
// A challenge without a method is treated as S256.
func (s *Service) CreateAuthorizationCode(ctx context.Context, req CodeRequest) (string, error) {
	c, err := s.repo.GetClient(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return "", ErrInvalidClient
		}
		return "", err
	}
	if !c.AllowsRedirect(req.RedirectURI) {
		return "", ErrInvalidRedirectURI
	}

	method := req.CodeChallengeMethod
	if req.CodeChallenge == "" {
		method = ""
	} else if method == "" {
		method = security.PKCEMethodS256
	}
	if method != "" && !security.SupportedPKCEMethod(method) {
		return "", ErrUnsupportedChallengeMethod
	}

	scope := req.Scope
	if scope == "" {
		scope = DefaultScope
	}

	code, err := security.GenerateAuthorizationCode()
	if err != nil {
		return "", err
	}

	ac := &AuthorizationCode{
		Code:                code,
		ClientID:            req.ClientID,
		UserID:              req.UserID,
		RedirectURI:         req.RedirectURI,
		Scope:               scope,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: method,
		ExpiresAt:           s.now().UTC().Add(s.codeTTL),
	}
	if err := s.repo.CreateAuthorizationCode(ctx, ac); err != nil {
		return "", err
	}
	return code, nil
}

// rejection carries the logged reason for an ErrInvalidGrant.
type rejection struct {
	reason string
}

func (r *rejection) Error() string { return r.reason }

func (r *rejection) Is(target error) bool { return target == ErrInvalidGrant }

func reject(reason string) error {
	return &rejection{reason: reason}
}

// ValidateAuthorizationCode checks and consumes code atomically. Checks run
// in order: exists, unused, unexpired, client, redirect URI, PKCE. Every
// rejection is returned as ErrInvalidGrant.
func (s *Service) ValidateAuthorizationCode(ctx context.Context, code, clientID, redirectURI, verifier string) (*AuthorizationCode, error) {
	ac, err := s.repo.ClaimAuthorizationCode(ctx, code, func(ac *AuthorizationCode) error {
		switch {
		case ac.Used:
			return reject("code already used")
		case !s.now().Before(ac.ExpiresAt):
			return reject("code expired")
		case ac.ClientID != clientID:
			return reject("client mismatch")
		case ac.RedirectURI != redirectURI:
			return reject("redirect_uri mismatch")
		case ac.CodeChallenge != "" && !security.VerifyPKCE(verifier, ac.CodeChallenge, ac.CodeChallengeMethod):
			return reject("pkce verification failed")
		}
		return nil
	})
	if err != nil {
		var rej *rejection
		switch {
		case errors.As(err, &rej):
			slog.Warn("authorization code rejected", "reason", rej.reason, "clientId", clientID)
			return nil, ErrInvalidGrant
		case errors.Is(err, ErrCodeNotFound):
			slog.Warn("authorization code rejected", "reason", "code not found", "clientId", clientID)
			return nil, ErrInvalidGrant
		default:
			return nil, fmt.Errorf("claiming authorization code: %w", err)
		}
	}
	return ac, nil
}

// ExchangeAuthorizationCode consumes code and mints a token pair for it.
func (s *Service) ExchangeAuthorizationCode(ctx context.Context, code, clientID, redirectURI, verifier string) (*TokenPair, error) {
	ac, err := s.ValidateAuthorizationCode(ctx, code, clientID, redirectURI, verifier)
	if err != nil {
		return nil, err
	}
	return s.CreateTokens(ctx, ac.ClientID, ac.UserID, ac.Scope)
}

// CreateTokens signs and persists a new access/refresh pair for userID.
func (s *Service) CreateTokens(ctx context.Context, clientID string, userID uuid.UUID, scope string) (*TokenPair, error) {
	pair, row, err := s.mint(ctx, clientID, userID, scope)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateToken(ctx, row); err != nil {
		return nil, err
	}
	return pair, nil
}

// RefreshAccessToken rotates the pair owning refreshToken: the old pair is
// revoked and a new one is created in one transaction.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken, clientID string) (*TokenPair, error) {
	claims, err := s.codec.Decode(refreshToken)
	if err != nil || claims.Type != token.TypeRefresh {
		slog.Warn("refresh token rejected", "reason", "signature or type", "clientId", clientID)
		return nil, ErrInvalidGrant
	}

	old, err := s.repo.GetTokenByRefresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			slog.Warn("refresh token rejected", "reason", "not found", "clientId", clientID)
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	reason := ""
	switch {
	case old.ClientID != clientID:
		reason = "client mismatch"
	case old.Revoked:
		reason = "revoked"
	case !s.now().Before(old.RefreshExpiresAt):
		reason = "expired"
	}
	if reason != "" {
		slog.Warn("refresh token rejected", "reason", reason, "clientId", clientID, "userId", old.UserID)
		return nil, ErrInvalidGrant
	}

	pair, row, err := s.mint(ctx, old.ClientID, old.UserID, old.Scope)
	if err != nil {
		return nil, err
	}

	if err := s.repo.RotateToken(ctx, old.ID, row); err != nil {
		if errors.Is(err, ErrTokenRevoked) {
			slog.Warn("refresh token rejected", "reason", "revoked concurrently", "clientId", clientID)
			return nil, ErrInvalidGrant
		}
		return nil, fmt.Errorf("rotating token: %w", err)
	}
	return pair, nil
}

// ValidateAccessToken looks the token up in the store. Revoked, expired and
// unknown tokens yield ErrInvalidToken.
func (s *Service) ValidateAccessToken(ctx context.Context, accessToken string) (*Token, error) {
	t, err := s.repo.GetTokenByAccess(ctx, accessToken)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if t.Revoked || !s.now().Before(t.ExpiresAt) {
		return nil, ErrInvalidToken
	}
	return t, nil
}

// AuthenticateBearer resolves an access token to its user. The signature,
// the store record and the user's active and approved flags must all pass.
func (s *Service) AuthenticateBearer(ctx context.Context, accessToken string) (*user.User, *token.Claims, error) {
	claims, err := s.codec.DecodeAccess(accessToken)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}

	t, err := s.ValidateAccessToken(ctx, accessToken)
	if err != nil {
		return nil, nil, err
	}

	u, err := s.users.GetByID(ctx, t.UserID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}
	if !u.CanLogin() {
		return nil, nil, ErrInvalidToken
	}
	return u, claims, nil
}

// IntrospectToken never fails: anything other than a live access token of
// an active, approved user is reported as inactive.
func (s *Service) IntrospectToken(ctx context.Context, accessToken string) Introspection {
	u, claims, err := s.AuthenticateBearer(ctx, accessToken)
	if err != nil {
		if !errors.Is(err, ErrInvalidToken) {
			slog.Error("introspection failed", "error", err)
		}
		return Introspection{Active: false}
	}

	return Introspection{
		Active:    true,
		Sub:       u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		Scope:     claims.Scope,
		ClientID:  claims.ClientID(),
		TokenType: "Bearer",
		Exp:       claims.ExpiresAt.Unix(),
		Iat:       claims.IssuedAt.Unix(),
		Iss:       claims.Issuer,
	}
}

// RevokeToken revokes the pair owning value, which may be either half.
// Unknown tokens are not an error.
func (s *Service) RevokeToken(ctx context.Context, value string) error {
	if value == "" {
		return nil
	}
	found, err := s.repo.RevokeToken(ctx, value)
	if err != nil {
		return err
	}
	if !found {
		slog.Debug("revocation requested for unknown token")
	}
	return nil
}

// RevokeUserTokens revokes every live pair of userID.
func (s *Service) RevokeUserTokens(ctx context.Context, userID uuid.UUID) error {
	n, err := s.repo.RevokeUserTokens(ctx, userID)
	if err != nil {
		return err
	}
	slog.Info("revoked user tokens", "userId", userID, "count", n)
	return nil
}

// PurgeExpired removes expired codes and token pairs.
func (s *Service) PurgeExpired(ctx context.Context) (PurgeResult, error) {
	return s.repo.PurgeExpired(ctx, s.now().UTC())
}

func (s *Service) mint(ctx context.Context, clientID string, userID uuid.UUID, scope string) (*TokenPair, *Token, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading token subject: %w", err)
	}

	now := s.now().UTC()
	sub := u.ID.String()

	access, err := s.codec.CreateAccessToken(token.AccessClaims{
		Subject:  sub,
		Username: u.Username,
		Email:    u.Email,
		ClientID: clientID,
		Scope:    scope,
	}, s.accessTTL)
	if err != nil {
		return nil, nil, err
	}

	refresh, err := s.codec.CreateRefreshToken(sub, clientID, s.refreshTTL)
	if err != nil {
		return nil, nil, err
	}

	pair := &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    s.accessTTL,
		RefreshIn:    s.refreshTTL,
		Scope:        scope,
	}

	if HasScope(scope, "openid") {
		pair.IDToken, err = s.codec.CreateIDToken(token.IDClaims{
			Subject:       sub,
			Username:      u.Username,
			Email:         u.Email,
			EmailVerified: u.IsApproved,
			ClientID:      clientID,
		}, s.accessTTL)
		if err != nil {
			return nil, nil, err
		}
	}

	row := &Token{
		AccessToken:      access,
		RefreshToken:     refresh,
		ClientID:         clientID,
		UserID:           u.ID,
		Scope:            scope,
		ExpiresAt:        now.Add(s.accessTTL),
		RefreshExpiresAt: now.Add(s.refreshTTL),
	}
	return pair, row, nil
}
