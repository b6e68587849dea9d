package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/kubarr/kubarr/internal/api/middleware"
	"github.com/kubarr/kubarr/internal/api/response"
	"github.com/kubarr/kubarr/internal/rbac"
	"github.com/kubarr/kubarr/internal/user"
)

// PermissionReader resolves the caller's roles and reachable apps.
type PermissionReader interface {
	AllowedApps(ctx context.Context, u *user.User) (rbac.Access, error)
	UserRoles(ctx context.Context, userID uuid.UUID) ([]rbac.Role, error)
}

type meResponse struct {
	User        userResponse `json:"user"`
	AuthMethod  string       `json:"auth_method"`
	Roles       []string     `json:"roles"`
	AllApps     bool         `json:"all_apps"`
	AllowedApps []string     `json:"allowed_apps"`
}

// MeHandler handles GET /api/me.
type MeHandler struct {
	permissions PermissionReader
}

// NewMeHandler creates a new MeHandler.
func NewMeHandler(permissions PermissionReader) *MeHandler {
	return &MeHandler{permissions: permissions}
}

// ServeHTTP describes the authenticated caller.
func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	p := middleware.GetPrincipal(r)

	access, err := h.permissions.AllowedApps(r.Context(), p.User)
	if err != nil {
		slog.Error("failed to resolve access", "error", err, "userId", p.User.ID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve permissions", requestID)
		return
	}
	roles, err := h.permissions.UserRoles(r.Context(), p.User.ID)
	if err != nil {
		slog.Error("failed to list roles", "error", err, "userId", p.User.ID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve permissions", requestID)
		return
	}

	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	apps := access.Apps()
	if apps == nil {
		apps = []string{}
	}

	response.Success(w, http.StatusOK, meResponse{
		User:        toUserResponse(p.User),
		AuthMethod:  p.Method,
		Roles:       names,
		AllApps:     access.All(),
		AllowedApps: apps,
	}, requestID)
}
