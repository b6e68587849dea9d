package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/kubarr/kubarr/internal/api/response"
	"github.com/kubarr/kubarr/internal/oauth2"
	"github.com/kubarr/kubarr/internal/user"
)

// loginErrors maps credential failures to the message shown on the login page.
var loginErrors = []struct {
	err     error
	message string
}{
	{user.ErrInvalidCredentials, "Invalid credentials"},
	{user.ErrInactive, "Account is inactive"},
	{user.ErrPendingApproval, "Account pending approval"},
}

// Login handles POST /auth/login. The login page posts the credentials
// together with the authorization request parameters it was given.
func (h *OAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		response.OAuthErr(w, http.StatusBadRequest, response.OAuthInvalidRequest, "Request body must be form-encoded")
		return
	}

	params := authParamsFrom(r.PostForm)
	username := r.PostForm.Get("username")

	u, err := h.users.Authenticate(r.Context(), username, r.PostForm.Get("password"))
	if err != nil {
		message, ok := loginMessage(err)
		if ok {
			slog.Warn("login rejected", "reason", err.Error(), "username", username)
		} else {
			slog.Error("login failed", "error", err, "username", username)
		}
		h.redirectToLogin(w, r, params, message)
		return
	}

	h.issueCode(w, r, u, params)
}

func loginMessage(err error) (string, bool) {
	for _, le := range loginErrors {
		if errors.Is(err, le.err) {
			return le.message, true
		}
	}
	return "Login failed, please try again", false
}

func (h *OAuthHandler) redirectToLogin(w http.ResponseWriter, r *http.Request, params authParams, message string) {
	v := params.values()
	v.Set("error", message)
	http.Redirect(w, r, withQuery(h.loginURL, v), http.StatusFound)
}

// issueCode creates an authorization code for u and redirects to the
// client. Failures before the redirect URI is verified are never redirected.
func (h *OAuthHandler) issueCode(w http.ResponseWriter, r *http.Request, u *user.User, params authParams) {
	code, err := h.server.CreateAuthorizationCode(r.Context(), oauth2.CodeRequest{
		ClientID:            params.ClientID,
		UserID:              u.ID,
		RedirectURI:         params.RedirectURI,
		Scope:               params.Scope,
		CodeChallenge:       params.CodeChallenge,
		CodeChallengeMethod: params.CodeChallengeMethod,
	})
	if err != nil {
		switch {
		case errors.Is(err, oauth2.ErrInvalidClient):
			response.OAuthErr(w, http.StatusBadRequest, response.OAuthInvalidClient, "Unknown client_id")
		case errors.Is(err, oauth2.ErrInvalidRedirectURI):
			response.OAuthErr(w, http.StatusBadRequest, response.OAuthInvalidRequest, "redirect_uri is not registered for this client")
		case errors.Is(err, oauth2.ErrUnsupportedChallengeMethod):
			v := errorRedirect(params, response.OAuthInvalidRequest, "Unsupported code_challenge_method")
			http.Redirect(w, r, withQuery(params.RedirectURI, v), http.StatusFound)
		default:
			slog.Error("failed to create authorization code", "error", err, "clientId", params.ClientID)
			response.OAuthErr(w, http.StatusInternalServerError, response.OAuthServerError, "Failed to create authorization code")
		}
		return
	}

	slog.Info("authorization code issued", "clientId", params.ClientID, "userId", u.ID)

	v := url.Values{"code": {code}}
	if params.State != "" {
		v.Set("state", params.State)
	}
	http.Redirect(w, r, withQuery(params.RedirectURI, v), http.StatusFound)
}

func errorRedirect(params authParams, code, description string) url.Values {
	v := url.Values{"error": {code}, "error_description": {description}}
	if params.State != "" {
		v.Set("state", params.State)
	}
	return v
}

// Logout handles POST /auth/logout by revoking the supplied token.
func (h *OAuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		response.OAuthErr(w, http.StatusBadRequest, response.OAuthInvalidRequest, "Request body must be form-encoded")
		return
	}
	if err := h.server.RevokeToken(r.Context(), r.PostForm.Get("token")); err != nil {
		slog.Error("failed to revoke token on logout", "error", err)
		response.OAuthErr(w, http.StatusInternalServerError, response.OAuthServerError, "Failed to log out")
		return
	}
	response.OAuthJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
