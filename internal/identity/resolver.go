// Package identity turns an incoming request into an authenticated principal.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kubarr/kubarr/internal/oauth2"
	"github.com/kubarr/kubarr/internal/token"
	"github.com/kubarr/kubarr/internal/user"
)

// Authentication methods.
const (
	MethodBearer = "bearer"
	MethodHeader = "header"
)

// BearerAuthenticator validates access tokens.
type BearerAuthenticator interface {
	AuthenticateBearer(ctx context.Context, accessToken string) (*user.User, *token.Claims, error)
}

// UserLookup finds users by username.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*user.User, error)
}

// Principal is an authenticated caller.
type Principal struct {
	User *user.User
	// Claims is set for bearer authentication only.
	Claims *token.Claims
	Method string
}

// Resolver resolves principals from bearer tokens and, optionally, from a
// header set by a trusted authenticating proxy.
type Resolver struct {
	bearer        BearerAuthenticator
	users         UserLookup
	trustedHeader string
}

// NewResolver creates a Resolver. An empty trustedHeader disables header
// identity.
func NewResolver(bearer BearerAuthenticator, users UserLookup, trustedHeader string) *Resolver {
	return &Resolver{bearer: bearer, users: users, trustedHeader: trustedHeader}
}

// Resolve returns the request's principal, or nil when the request is
// anonymous. A present but invalid bearer token makes the request anonymous
// and does not fall through to the header.
func (r *Resolver) Resolve(req *http.Request) *Principal {
	if raw, ok := BearerToken(req); ok {
		u, claims, err := r.bearer.AuthenticateBearer(req.Context(), raw)
		if err != nil {
			if !errors.Is(err, oauth2.ErrInvalidToken) {
				slog.Warn("bearer authentication failed", "error", err)
			}
			return nil
		}
		return &Principal{User: u, Claims: claims, Method: MethodBearer}
	}

	if r.trustedHeader == "" {
		return nil
	}
	username := strings.TrimSpace(req.Header.Get(r.trustedHeader))
	if username == "" {
		return nil
	}
	u, err := r.users.GetByUsername(req.Context(), username)
	if err != nil {
		if !errors.Is(err, user.ErrUserNotFound) {
			slog.Warn("header authentication failed", "header", r.trustedHeader, "error", err)
		}
		return nil
	}
	if !u.CanLogin() {
		return nil
	}
	return &Principal{User: u, Method: MethodHeader}
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(req *http.Request) (string, bool) {
	h := req.Header.Get("Authorization")
	scheme, raw, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

type ctxKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal stored in ctx, if any.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Principal)
	return p, ok && p != nil
}
