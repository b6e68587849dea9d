package middleware

import (
	"net/http"

	"github.com/kubarr/kubarr/internal/api/response"
	"github.com/kubarr/kubarr/internal/identity"
)

// PrincipalResolver resolves the caller of a request. Nil means anonymous.
type PrincipalResolver interface {
	Resolve(r *http.Request) *identity.Principal
}

// Identify stores the resolved principal, if any, and always continues.
func Identify(resolver PrincipalResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p := resolver.Resolve(r); p != nil {
				r = r.WithContext(identity.WithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authenticate stores the resolved principal and rejects anonymous requests with 401.
func Authenticate(resolver PrincipalResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := identity.FromContext(r.Context())
			if !ok {
				p = resolver.Resolve(r)
			}
			if p == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", GetRequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithPrincipal(r.Context(), p)))
		})
	}
}

// GetPrincipal retrieves the authenticated principal from the request context.
func GetPrincipal(r *http.Request) *identity.Principal {
	p, _ := identity.FromContext(r.Context())
	return p
}
