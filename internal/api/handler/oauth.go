package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-jose/go-jose/v4"

	"github.com/kubarr/kubarr/internal/api/middleware"
	"github.com/kubarr/kubarr/internal/api/response"
	"github.com/kubarr/kubarr/internal/identity"
	"github.com/kubarr/kubarr/internal/oauth2"
	"github.com/kubarr/kubarr/internal/security"
	"github.com/kubarr/kubarr/internal/token"
	"github.com/kubarr/kubarr/internal/user"
)

// maxFormBytes bounds OAuth request bodies.
const maxFormBytes = 64 << 10

const invalidGrantDescription = "The authorization grant is invalid, expired, revoked or was issued to another client"

// AuthorizationServer is the OAuth2 store the protocol endpoints drive.
type AuthorizationServer interface {
	GetClient(ctx context.Context, clientID string) (*oauth2.Client, error)
	ValidateClient(ctx context.Context, clientID, secret string) (*oauth2.Client, error)
	AuthenticateClient(ctx context.Context, clientID, secret string) (*oauth2.Client, error)
	CreateAuthorizationCode(ctx context.Context, req oauth2.CodeRequest) (string, error)
	ExchangeAuthorizationCode(ctx context.Context, code, clientID, redirectURI, verifier string) (*oauth2.TokenPair, error)
	RefreshAccessToken(ctx context.Context, refreshToken, clientID string) (*oauth2.TokenPair, error)
	AuthenticateBearer(ctx context.Context, accessToken string) (*user.User, *token.Claims, error)
	IntrospectToken(ctx context.Context, accessToken string) oauth2.Introspection
	RevokeToken(ctx context.Context, value string) error
}

// CredentialChecker verifies a username and password.
type CredentialChecker interface {
	Authenticate(ctx context.Context, username, password string) (*user.User, error)
}

// GrantRecorder counts token endpoint outcomes.
type GrantRecorder interface {
	TokenIssued(grant string)
	GrantFailed(reason string)
}

// OAuthConfig holds the externally visible authorization server settings.
type OAuthConfig struct {
	Issuer   string
	LoginURL string
}

// OAuthHandler serves the authorization server endpoints mounted under /auth.
type OAuthHandler struct {
	server   AuthorizationServer
	users    CredentialChecker
	metrics  GrantRecorder
	jwks     jose.JSONWebKeySet
	issuer   string
	loginURL string
}

// NewOAuthHandler creates a new OAuthHandler.
func NewOAuthHandler(server AuthorizationServer, users CredentialChecker, metrics GrantRecorder, jwks jose.JSONWebKeySet, cfg OAuthConfig) *OAuthHandler {
	return &OAuthHandler{
		server:   server,
		users:    users,
		metrics:  metrics,
		jwks:     jwks,
		issuer:   strings.TrimRight(cfg.Issuer, "/"),
		loginURL: cfg.LoginURL,
	}
}

// authParams are the authorization request parameters carried through login.
type authParams struct {
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

func authParamsFrom(v url.Values) authParams {
	scope := strings.TrimSpace(v.Get("scope"))
	if scope == "" {
		scope = oauth2.DefaultScope
	}
	return authParams{
		ClientID:            v.Get("client_id"),
		RedirectURI:         v.Get("redirect_uri"),
		Scope:               scope,
		State:               v.Get("state"),
		CodeChallenge:       v.Get("code_challenge"),
		CodeChallengeMethod: v.Get("code_challenge_method"),
	}
}

func (p authParams) values() url.Values {
	v := url.Values{}
	v.Set("client_id", p.ClientID)
	v.Set("redirect_uri", p.RedirectURI)
	v.Set("scope", p.Scope)
	if p.State != "" {
		v.Set("state", p.State)
	}
	if p.CodeChallenge != "" {
		v.Set("code_challenge", p.CodeChallenge)
	}
	if p.CodeChallengeMethod != "" {
		v.Set("code_challenge_method", p.CodeChallengeMethod)
	}
	return v
}

// Authorize handles GET /auth/authorize.
func (h *OAuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("response_type") != "code" {
		response.OAuthErr(w, http.StatusBadRequest, response.OAuthUnsupportedResponseType, "Only response_type=code is supported")
		return
	}

	params := authParamsFrom(q)
	client, err := h.server.GetClient(r.Context(), params.ClientID)
	if err != nil {
		if errors.Is(err, oauth2.ErrClientNotFound) {
			slog.Warn("authorize rejected", "reason", "unknown client", "clientId", params.ClientID)
			response.OAuthErr(w, http.StatusBadRequest, response.OAuthInvalidClient, "Unknown client_id")
			return
		}
		slog.Error("failed to load client", "error", err, "clientId", params.ClientID)
		response.OAuthErr(w, http.StatusInternalServerError, response.OAuthServerError, "Failed to load client")
		return
	}
	if !client.AllowsRedirect(params.RedirectURI) {
		slog.Warn("authorize rejected", "reason", "unregistered redirect_uri", "clientId", params.ClientID)
		response.OAuthErr(w, http.StatusBadRequest, response.OAuthInvalidRequest, "redirect_uri is not registered for this client")
		return
	}

	if p := middleware.GetPrincipal(r); p != nil {
		h.issueCode(w, r, p.User, params)
		return
	}

	http.Redirect(w, r, withQuery(h.loginURL, params.values()), http.StatusFound)
}

// Token handles POST /auth/token.
func (h *OAuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		response.OAuthErr(w, http.StatusBadRequest, response.OAuthInvalidRequest, "Request body must be form-encoded")
		return
	}

	clientID, secret := clientCredentials(r)
	if _, err := h.server.AuthenticateClient(r.Context(), clientID, secret); err != nil {
		if errors.Is(err, oauth2.ErrInvalidClient) {
			slog.Warn("token request rejected", "reason", "client authentication failed", "clientId", clientID)
			h.metrics.GrantFailed(response.OAuthInvalidClient)
			response.OAuthUnauthorized(w, response.OAuthInvalidClient, "Client authentication failed")
			return
		}
		slog.Error("failed to authenticate client", "error", err, "clientId", clientID)
		h.metrics.GrantFailed(response.OAuthServerError)
		response.OAuthErr(w, http.StatusInternalServerError, response.OAuthServerError, "Failed to authenticate client")
		return
	}

	grant := r.PostForm.Get("grant_type")
	var (
		pair *oauth2.TokenPair
		err  error
	)
	switch grant {
	case "authorization_code":
		code, redirectURI := r.PostForm.Get("code"), r.PostForm.Get("redirect_uri")
		if code == "" || redirectURI == "" {
			h.metrics.GrantFailed(response.OAuthInvalidRequest)
			response.OAuthErr(w, http.StatusBadRequest, response.OAuthInvalidRequest, "code and redirect_uri are required")
			return
		}
		pair, err = h.server.ExchangeAuthorizationCode(r.Context(), code, clientID, redirectURI, r.PostForm.Get("code_verifier"))
	case "refresh_token":
		refresh := r.PostForm.Get("refresh_token")
		if refresh == "" {
			h.metrics.GrantFailed(response.OAuthInvalidRequest)
			response.OAuthErr(w, http.StatusBadRequest, response.OAuthInvalidRequest, "refresh_token is required")
			return
		}
		pair, err = h.server.RefreshAccessToken(r.Context(), refresh, clientID)
	default:
		h.metrics.GrantFailed(response.OAuthUnsupportedGrantType)
		response.OAuthErr(w, http.StatusBadRequest, response.OAuthUnsupportedGrantType, "grant_type must be authorization_code or refresh_token")
		return
	}

	if err != nil {
		if errors.Is(err, oauth2.ErrInvalidGrant) {
			h.metrics.GrantFailed(response.OAuthInvalidGrant)
			response.OAuthErr(w, http.StatusBadRequest, response.OAuthInvalidGrant, invalidGrantDescription)
			return
		}
		slog.Error("token grant failed", "error", err, "grant", grant, "clientId", clientID)
		h.metrics.GrantFailed(response.OAuthServerError)
		response.OAuthErr(w, http.StatusInternalServerError, response.OAuthServerError, "Failed to issue tokens, retry the request")
		return
	}

	h.metrics.TokenIssued(grant)
	response.OAuthJSON(w, http.StatusOK, toTokenResponse(pair))
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope"`
}

func toTokenResponse(p *oauth2.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  p.AccessToken,
		TokenType:    p.TokenType,
		ExpiresIn:    int64(p.ExpiresIn.Seconds()),
		RefreshToken: p.RefreshToken,
		IDToken:      p.IDToken,
		Scope:        p.Scope,
	}
}

// tokenRequest is the body of introspection and revocation requests.
type tokenRequest struct {
	Token         string `json:"token"`
	TokenTypeHint string `json:"token_type_hint"`
	ClientID      string `json:"client_id"`
	ClientSecret  string `json:"client_secret"`
}

// Introspect handles POST /auth/introspect.
func (h *OAuthHandler) Introspect(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeTokenRequest(w, r)
	if !ok {
		return
	}
	response.OAuthJSON(w, http.StatusOK, h.server.IntrospectToken(r.Context(), req.Token))
}

// Revoke handles POST /auth/revoke.
func (h *OAuthHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeTokenRequest(w, r)
	if !ok {
		return
	}
	if err := h.server.RevokeToken(r.Context(), req.Token); err != nil {
		slog.Error("failed to revoke token", "error", err)
		response.OAuthErr(w, http.StatusInternalServerError, response.OAuthServerError, "Failed to revoke token")
		return
	}
	response.OAuthJSON(w, http.StatusOK, map[string]string{"message": "Token revoked"})
}

// decodeTokenRequest reads a form or JSON body and verifies client
// credentials when a secret is supplied.
func (h *OAuthHandler) decodeTokenRequest(w http.ResponseWriter, r *http.Request) (tokenRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	var req tokenRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.OAuthErr(w, http.StatusBadRequest, response.OAuthInvalidRequest, "Request body must be valid JSON")
			return req, false
		}
	} else {
		if err := r.ParseForm(); err != nil {
			response.OAuthErr(w, http.StatusBadRequest, response.OAuthInvalidRequest, "Request body must be form-encoded")
			return req, false
		}
		req = tokenRequest{
			Token:         r.PostForm.Get("token"),
			TokenTypeHint: r.PostForm.Get("token_type_hint"),
		}
		req.ClientID, req.ClientSecret = clientCredentials(r)
	}
	if req.ClientID == "" && req.ClientSecret == "" {
		if id, secret, ok := basicCredentials(r); ok {
			req.ClientID, req.ClientSecret = id, secret
		}
	}

	if req.ClientSecret != "" {
		if _, err := h.server.ValidateClient(r.Context(), req.ClientID, req.ClientSecret); err != nil {
			if errors.Is(err, oauth2.ErrInvalidClient) {
				response.OAuthUnauthorized(w, response.OAuthInvalidClient, "Client authentication failed")
				return req, false
			}
			slog.Error("failed to authenticate client", "error", err, "clientId", req.ClientID)
			response.OAuthErr(w, http.StatusInternalServerError, response.OAuthServerError, "Failed to authenticate client")
			return req, false
		}
	}
	return req, true
}

type userInfoResponse struct {
	Sub               string `json:"sub"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	EmailVerified     bool   `json:"email_verified"`
}

// UserInfo handles GET /auth/userinfo.
func (h *OAuthHandler) UserInfo(w http.ResponseWriter, r *http.Request) {
	raw, ok := identity.BearerToken(r)
	if !ok {
		response.OAuthUnauthorized(w, response.OAuthInvalidToken, "Bearer access token required")
		return
	}

	u, _, err := h.server.AuthenticateBearer(r.Context(), raw)
	if err != nil {
		if !errors.Is(err, oauth2.ErrInvalidToken) {
			slog.Error("userinfo lookup failed", "error", err)
			response.OAuthErr(w, http.StatusInternalServerError, response.OAuthServerError, "Failed to resolve token")
			return
		}
		response.OAuthUnauthorized(w, response.OAuthInvalidToken, "The access token is invalid, expired or revoked")
		return
	}

	response.OAuthJSON(w, http.StatusOK, userInfoResponse{
		Sub:               u.ID.String(),
		Name:              u.Username,
		PreferredUsername: u.Username,
		Email:             u.Email,
		EmailVerified:     u.IsApproved,
	})
}

type discoveryDocument struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	UserInfoEndpoint                  string   `json:"userinfo_endpoint"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint"`
	RevocationEndpoint                string   `json:"revocation_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
	ClaimsSupported                   []string `json:"claims_supported"`
}

// Discovery handles GET /.well-known/openid-configuration.
func (h *OAuthHandler) Discovery(w http.ResponseWriter, r *http.Request) {
	doc := discoveryDocument{
		Issuer:                            h.issuer,
		AuthorizationEndpoint:             h.issuer + "/authorize",
		TokenEndpoint:                     h.issuer + "/token",
		UserInfoEndpoint:                  h.issuer + "/userinfo",
		IntrospectionEndpoint:             h.issuer + "/introspect",
		RevocationEndpoint:                h.issuer + "/revoke",
		JWKSURI:                           h.issuer + "/jwks",
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code", "refresh_token"},
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  []string{security.SigningAlgorithm},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_post", "client_secret_basic"},
		CodeChallengeMethodsSupported:     []string{security.PKCEMethodS256, security.PKCEMethodPlain},
		ScopesSupported:                   []string{"openid", "profile", "email"},
		ClaimsSupported:                   []string{"sub", "iss", "aud", "exp", "iat", "name", "preferred_username", "email", "email_verified"},
	}
	writePublicJSON(w, doc)
}

// JWKS handles GET /auth/jwks.
func (h *OAuthHandler) JWKS(w http.ResponseWriter, r *http.Request) {
	writePublicJSON(w, h.jwks)
}

func writePublicJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// clientCredentials returns client_secret_basic credentials when present,
// client_secret_post otherwise.
func clientCredentials(r *http.Request) (string, string) {
	if id, secret, ok := basicCredentials(r); ok {
		return id, secret
	}
	return r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
}

// basicCredentials decodes an Authorization: Basic header. Both parts are
// form-urlencoded per RFC 6749 section 2.3.1; values that fail to unescape
// are used as sent.
func basicCredentials(r *http.Request) (string, string, bool) {
	id, secret, ok := r.BasicAuth()
	if !ok {
		return "", "", false
	}
	if v, err := url.QueryUnescape(id); err == nil {
		id = v
	}
	if v, err := url.QueryUnescape(secret); err == nil {
		secret = v
	}
	return id, secret, true
}

// withQuery appends v to base, keeping any query base already carries.
func withQuery(base string, v url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?" + v.Encode()
	}
	q := u.Query()
	for k, vals := range v {
		q[k] = vals
	}
	u.RawQuery = q.Encode()
	return u.String()
}
