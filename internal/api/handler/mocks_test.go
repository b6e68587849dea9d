package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/kubarr/kubarr/internal/identity"
	"github.com/kubarr/kubarr/internal/oauth2"
	"github.com/kubarr/kubarr/internal/rbac"
	"github.com/kubarr/kubarr/internal/token"
	"github.com/kubarr/kubarr/internal/user"
)

// --- Mock Authorization Server ---

type mockAuthServer struct {
	getClientFn      func(ctx context.Context, clientID string) (*oauth2.Client, error)
	validateClientFn func(ctx context.Context, clientID, secret string) (*oauth2.Client, error)
	authClientFn     func(ctx context.Context, clientID, secret string) (*oauth2.Client, error)
	createCodeFn     func(ctx context.Context, req oauth2.CodeRequest) (string, error)
	exchangeFn       func(ctx context.Context, code, clientID, redirectURI, verifier string) (*oauth2.TokenPair, error)
	refreshFn        func(ctx context.Context, refreshToken, clientID string) (*oauth2.TokenPair, error)
	bearerFn         func(ctx context.Context, accessToken string) (*user.User, *token.Claims, error)
	introspectFn     func(ctx context.Context, accessToken string) oauth2.Introspection
	revokeFn         func(ctx context.Context, value string) error
}

func (m *mockAuthServer) GetClient(ctx context.Context, clientID string) (*oauth2.Client, error) {
	if m.getClientFn != nil {
		return m.getClientFn(ctx, clientID)
	}
	return nil, oauth2.ErrClientNotFound
}

func (m *mockAuthServer) ValidateClient(ctx context.Context, clientID, secret string) (*oauth2.Client, error) {
	if m.validateClientFn != nil {
		return m.validateClientFn(ctx, clientID, secret)
	}
	return &oauth2.Client{ClientID: clientID}, nil
}

func (m *mockAuthServer) AuthenticateClient(ctx context.Context, clientID, secret string) (*oauth2.Client, error) {
	if m.authClientFn != nil {
		return m.authClientFn(ctx, clientID, secret)
	}
	return &oauth2.Client{ClientID: clientID}, nil
}

func (m *mockAuthServer) CreateAuthorizationCode(ctx context.Context, req oauth2.CodeRequest) (string, error) {
	if m.createCodeFn != nil {
		return m.createCodeFn(ctx, req)
	}
	return "code-123", nil
}

func (m *mockAuthServer) ExchangeAuthorizationCode(ctx context.Context, code, clientID, redirectURI, verifier string) (*oauth2.TokenPair, error) {
	if m.exchangeFn != nil {
		return m.exchangeFn(ctx, code, clientID, redirectURI, verifier)
	}
	return nil, oauth2.ErrInvalidGrant
}

func (m *mockAuthServer) RefreshAccessToken(ctx context.Context, refreshToken, clientID string) (*oauth2.TokenPair, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, refreshToken, clientID)
	}
	return nil, oauth2.ErrInvalidGrant
}

func (m *mockAuthServer) AuthenticateBearer(ctx context.Context, accessToken string) (*user.User, *token.Claims, error) {
	if m.bearerFn != nil {
		return m.bearerFn(ctx, accessToken)
	}
	return nil, nil, oauth2.ErrInvalidToken
}

func (m *mockAuthServer) IntrospectToken(ctx context.Context, accessToken string) oauth2.Introspection {
	if m.introspectFn != nil {
		return m.introspectFn(ctx, accessToken)
	}
	return oauth2.Introspection{Active: false}
}

func (m *mockAuthServer) RevokeToken(ctx context.Context, value string) error {
	if m.revokeFn != nil {
		return m.revokeFn(ctx, value)
	}
	return nil
}

// --- Mock Credential Checker ---

type mockCredentials struct {
	authenticateFn func(ctx context.Context, username, password string) (*user.User, error)
}

func (m *mockCredentials) Authenticate(ctx context.Context, username, password string) (*user.User, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, username, password)
	}
	return nil, user.ErrInvalidCredentials
}

// --- Mock Grant Recorder ---

type recordedGrants struct {
	issued []string
	failed []string
}

func (r *recordedGrants) TokenIssued(grant string) { r.issued = append(r.issued, grant) }

func (r *recordedGrants) GrantFailed(reason string) { r.failed = append(r.failed, reason) }

// --- Mock RBAC ---

type mockRBAC struct {
	listFn         func(ctx context.Context) ([]rbac.Role, error)
	getFn          func(ctx context.Context, id uuid.UUID) (*rbac.Role, error)
	createFn       func(ctx context.Context, name, description string, apps []string) (*rbac.Role, error)
	updateFn       func(ctx context.Context, id uuid.UUID, fields rbac.UpdateFields) (*rbac.Role, error)
	deleteFn       func(ctx context.Context, id uuid.UUID) error
	setAppsFn      func(ctx context.Context, id uuid.UUID, apps []string) (*rbac.Role, error)
	userRolesFn    func(ctx context.Context, userID uuid.UUID) ([]rbac.Role, error)
	setUserRolesFn func(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) ([]rbac.Role, error)
	allowedAppsFn  func(ctx context.Context, u *user.User) (rbac.Access, error)
}

func (m *mockRBAC) List(ctx context.Context) ([]rbac.Role, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []rbac.Role{}, nil
}

func (m *mockRBAC) Get(ctx context.Context, id uuid.UUID) (*rbac.Role, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, rbac.ErrRoleNotFound
}

func (m *mockRBAC) Create(ctx context.Context, name, description string, apps []string) (*rbac.Role, error) {
	if m.createFn != nil {
		return m.createFn(ctx, name, description, apps)
	}
	return &rbac.Role{ID: uuid.New(), Name: name, Description: description, Apps: apps, CreatedAt: time.Now()}, nil
}

func (m *mockRBAC) Update(ctx context.Context, id uuid.UUID, fields rbac.UpdateFields) (*rbac.Role, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, fields)
	}
	return nil, rbac.ErrRoleNotFound
}

func (m *mockRBAC) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockRBAC) SetApps(ctx context.Context, id uuid.UUID, apps []string) (*rbac.Role, error) {
	if m.setAppsFn != nil {
		return m.setAppsFn(ctx, id, apps)
	}
	return &rbac.Role{ID: id, Apps: apps}, nil
}

func (m *mockRBAC) UserRoles(ctx context.Context, userID uuid.UUID) ([]rbac.Role, error) {
	if m.userRolesFn != nil {
		return m.userRolesFn(ctx, userID)
	}
	return []rbac.Role{}, nil
}

func (m *mockRBAC) SetUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) ([]rbac.Role, error) {
	if m.setUserRolesFn != nil {
		return m.setUserRolesFn(ctx, userID, roleIDs)
	}
	return []rbac.Role{}, nil
}

func (m *mockRBAC) AllowedApps(ctx context.Context, u *user.User) (rbac.Access, error) {
	if m.allowedAppsFn != nil {
		return m.allowedAppsFn(ctx, u)
	}
	return rbac.ResolveAccess(false, nil), nil
}

// --- Helpers ---

func sampleUser() *user.User {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &user.User{
		ID:         uuid.New(),
		Username:   "alice",
		Email:      "alice@example.com",
		IsActive:   true,
		IsApproved: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// withPrincipal returns req carrying an authenticated principal for u.
func withPrincipal(req *http.Request, u *user.User) *http.Request {
	p := &identity.Principal{User: u, Method: identity.MethodBearer}
	return req.WithContext(identity.WithPrincipal(req.Context(), p))
}

// withURLParams returns req with chi URL parameters set.
func withURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	apiErr, ok := decodeBody(t, w)["error"].(map[string]any)
	require.True(t, ok, "expected error object in %s", w.Body.String())
	return apiErr["code"].(string)
}
