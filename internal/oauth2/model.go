package oauth2

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client represents a row in the oauth2_clients table.
type Client struct {
	ClientID         string
	ClientSecretHash string
	Name             string
	RedirectURIs     []string
	CreatedAt        time.Time
}

// AllowsRedirect reports whether uri is registered for the client. Matching is exact.
func (c *Client) AllowsRedirect(uri string) bool {
	return uri != "" && slices.Contains(c.RedirectURIs, uri)
}

// AuthorizationCode represents a row in the oauth2_authorization_codes table.
type AuthorizationCode struct {
	Code                string
	ClientID            string
	UserID              uuid.UUID
	RedirectURI         string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
	ExpiresAt           time.Time
	Used                bool
	CreatedAt           time.Time
}

// Token represents a row in the oauth2_tokens table: one access/refresh pair.
type Token struct {
	ID               uuid.UUID
	AccessToken      string
	RefreshToken     string
	ClientID         string
	UserID           uuid.UUID
	Scope            string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
	Revoked          bool
	CreatedAt        time.Time
}

// TokenPair is what the token endpoint returns.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	TokenType    string
	ExpiresIn    time.Duration
	RefreshIn    time.Duration
	Scope        string
}

// Introspection is the RFC 7662 view of a token.
type Introspection struct {
	Active    bool   `json:"active"`
	Sub       string `json:"sub,omitempty"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
	Iss       string `json:"iss,omitempty"`
}

// PurgeResult reports how many expired rows were removed.
type PurgeResult struct {
	Codes  int64
	Tokens int64
}

// DefaultScope is granted when the client does not request one.
const DefaultScope = "openid profile email"

// HasScope reports whether the space-delimited scope list contains s.
func HasScope(scope, s string) bool {
	return slices.Contains(strings.Fields(scope), s)
}
