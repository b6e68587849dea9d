package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token type markers carried in the "type" claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// ErrInvalidToken is returned for every decode failure. Callers must not
// distinguish between signature, structure and expiry failures.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the union of the claims kubarr puts in its tokens.
type Claims struct {
	jwt.RegisteredClaims
	Type              string `json:"type,omitempty"`
	Username          string `json:"username,omitempty"`
	Email             string `json:"email,omitempty"`
	Scope             string `json:"scope,omitempty"`
	Name              string `json:"name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	EmailVerified     *bool  `json:"email_verified,omitempty"`
}

// ClientID returns the first audience, which is the client the token was issued to.
func (c *Claims) ClientID() string {
	if len(c.Audience) == 0 {
		return ""
	}
	return c.Audience[0]
}

// AccessClaims are the inputs for an access token.
type AccessClaims struct {
	Subject  string
	Username string
	Email    string
	ClientID string
	Scope    string
}

// IDClaims are the inputs for an OIDC ID token.
type IDClaims struct {
	Subject       string
	Username      string
	Email         string
	EmailVerified bool
	ClientID      string
}

// Codec creates and decodes kubarr bearer tokens.
type Codec struct {
	signer TokenSigner
	issuer string
	now    func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for iat/exp.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec creates a Codec that signs with signer and stamps issuer.
func NewCodec(signer TokenSigner, issuer string, opts ...Option) *Codec {
	c := &Codec{
		signer: signer,
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issuer returns the issuer identifier stamped into every token.
func (c *Codec) Issuer() string {
	return c.issuer
}

// CreateAccessToken signs an access token valid for ttl.
func (c *Codec) CreateAccessToken(in AccessClaims, ttl time.Duration) (string, error) {
	claims := &Claims{
		RegisteredClaims: c.registered(in.Subject, in.ClientID, ttl),
		Type:             TypeAccess,
		Username:         in.Username,
		Email:            in.Email,
		Scope:            in.Scope,
	}
	return c.sign(claims)
}

// CreateRefreshToken signs a refresh token valid for ttl.
func (c *Codec) CreateRefreshToken(subject, clientID string, ttl time.Duration) (string, error) {
	claims := &Claims{
		RegisteredClaims: c.registered(subject, clientID, ttl),
		Type:             TypeRefresh,
	}
	return c.sign(claims)
}

// CreateIDToken signs an OIDC ID token valid for ttl.
func (c *Codec) CreateIDToken(in IDClaims, ttl time.Duration) (string, error) {
	verified := in.EmailVerified
	claims := &Claims{
		RegisteredClaims:  c.registered(in.Subject, in.ClientID, ttl),
		Name:              in.Username,
		PreferredUsername: in.Username,
		Email:             in.Email,
		EmailVerified:     &verified,
	}
	return c.sign(claims)
}

// Decode verifies raw and returns its claims. Any failure yields ErrInvalidToken.
func (c *Codec) Decode(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	if err := c.signer.Verify(raw, claims); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != c.issuer || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// DecodeAccess is Decode restricted to access tokens.
func (c *Codec) DecodeAccess(raw string) (*Claims, error) {
	claims, err := c.Decode(raw)
	if err != nil {
		return nil, err
	}
	if claims.Type != TypeAccess {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (c *Codec) registered(subject, clientID string, ttl time.Duration) jwt.RegisteredClaims {
	now := c.now().UTC()
	rc := jwt.RegisteredClaims{
		Issuer:    c.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	if clientID != "" {
		rc.Audience = jwt.ClaimStrings{clientID}
	}
	return rc
}

func (c *Codec) sign(claims *Claims) (string, error) {
	signed, err := c.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("creating %s token: %w", typeName(claims.Type), err)
	}
	return signed, nil
}

func typeName(t string) string {
	if t == "" {
		return "id"
	}
	return t
}
