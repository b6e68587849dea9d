package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kubarr/kubarr/internal/api/response"
	"github.com/kubarr/kubarr/internal/user"
)

// AdminChecker decides whether a user is an administrator.
type AdminChecker interface {
	IsAdmin(ctx context.Context, u *user.User) (bool, error)
}

// AppChecker decides whether a user may reach an app.
type AppChecker interface {
	CanAccessApp(ctx context.Context, u *user.User, app string) (bool, error)
}

// RequireAdmin returns middleware that rejects non-administrators with 403.
// It must run after Authenticate.
func RequireAdmin(checker AdminChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			p := GetPrincipal(r)
			if p == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", requestID)
				return
			}

			ok, err := checker.IsAdmin(r.Context(), p.User)
			if err != nil {
				slog.Error("failed to resolve admin access", "error", err, "userId", p.User.ID, "requestId", requestID)
				response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to check permissions", requestID)
				return
			}
			if !ok {
				response.Err(w, http.StatusForbidden, "FORBIDDEN", "Administrator access required", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireApp returns middleware that rejects users who may not reach the app
// named by the URL parameter param. It must run after Authenticate.
func RequireApp(checker AppChecker, param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			p := GetPrincipal(r)
			if p == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", requestID)
				return
			}

			app := chi.URLParam(r, param)
			ok, err := checker.CanAccessApp(r.Context(), p.User, app)
			if err != nil {
				slog.Error("failed to resolve app access", "error", err, "app", app, "requestId", requestID)
				response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to check permissions", requestID)
				return
			}
			if !ok {
				response.Err(w, http.StatusForbidden, "FORBIDDEN", "Access to this app is denied", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
