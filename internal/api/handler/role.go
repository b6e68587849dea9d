package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kubarr/kubarr/internal/api/middleware"
	"github.com/kubarr/kubarr/internal/api/response"
	"github.com/kubarr/kubarr/internal/api/validation"
	"github.com/kubarr/kubarr/internal/rbac"
)

const timeFormat = "2006-01-02T15:04:05Z"

// RoleManager manages roles and their app permissions.
type RoleManager interface {
	List(ctx context.Context) ([]rbac.Role, error)
	Get(ctx context.Context, id uuid.UUID) (*rbac.Role, error)
	Create(ctx context.Context, name, description string, apps []string) (*rbac.Role, error)
	Update(ctx context.Context, id uuid.UUID, fields rbac.UpdateFields) (*rbac.Role, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetApps(ctx context.Context, id uuid.UUID, apps []string) (*rbac.Role, error)
}

// AppDirectory reports whether an app exists in the catalog.
type AppDirectory interface {
	Exists(name string) bool
}

type roleRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	AppNames    *[]string `json:"app_names"`
}

type roleResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	IsSystem    bool     `json:"is_system"`
	AppNames    []string `json:"app_names"`
	CreatedAt   string   `json:"created_at"`
}

func toRoleResponse(r *rbac.Role) roleResponse {
	apps := r.Apps
	if apps == nil {
		apps = []string{}
	}
	return roleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		AppNames:    apps,
		CreatedAt:   r.CreatedAt.UTC().Format(timeFormat),
	}
}

func toRoleResponses(roles []rbac.Role) []roleResponse {
	items := make([]roleResponse, 0, len(roles))
	for i := range roles {
		items = append(items, toRoleResponse(&roles[i]))
	}
	return items
}

// RoleHandler handles role administration endpoints.
type RoleHandler struct {
	roles   RoleManager
	catalog AppDirectory
}

// NewRoleHandler creates a new RoleHandler.
func NewRoleHandler(roles RoleManager, catalog AppDirectory) *RoleHandler {
	return &RoleHandler{roles: roles, catalog: catalog}
}

// List handles GET /api/roles.
func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	roles, err := h.roles.List(r.Context())
	if err != nil {
		slog.Error("failed to list roles", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list roles", requestID)
		return
	}

	items := toRoleResponses(roles)
	response.SuccessList(w, http.StatusOK, items, len(items), requestID)
}

// Get handles GET /api/roles/{id}.
func (h *RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseID(w, r, requestID)
	if !ok {
		return
	}

	role, err := h.roles.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "Failed to get role", requestID)
		return
	}

	response.Success(w, http.StatusOK, toRoleResponse(role), requestID)
}

// Create handles POST /api/roles.
func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req roleRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	var apps []string
	if req.AppNames != nil {
		apps = *req.AppNames
	}
	fieldErrors := validation.ValidateRoleRequest(validation.RoleRequest{
		Name:        req.Name,
		Description: req.Description,
		Apps:        apps,
	}, true, h.catalog.Exists)
	if len(fieldErrors) > 0 {
		response.ValidationFailed(w, fieldErrors, requestID)
		return
	}

	description := ""
	if req.Description != nil {
		description = *req.Description
	}

	role, err := h.roles.Create(r.Context(), *req.Name, description, apps)
	if err != nil {
		if errors.Is(err, rbac.ErrDuplicateRole) {
			response.Err(w, http.StatusConflict, "CONFLICT", fmt.Sprintf("A role named %q already exists", *req.Name), requestID)
			return
		}
		h.writeError(w, err, "Failed to create role", requestID)
		return
	}

	response.Success(w, http.StatusCreated, toRoleResponse(role), requestID)
}

// Update handles PATCH /api/roles/{id}.
func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseID(w, r, requestID)
	if !ok {
		return
	}

	var req roleRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	var apps []string
	if req.AppNames != nil {
		apps = *req.AppNames
	}
	fieldErrors := validation.ValidateRoleRequest(validation.RoleRequest{
		Name:        req.Name,
		Description: req.Description,
		Apps:        apps,
	}, false, h.catalog.Exists)
	if len(fieldErrors) > 0 {
		response.ValidationFailed(w, fieldErrors, requestID)
		return
	}

	role, err := h.roles.Update(r.Context(), id, rbac.UpdateFields{Name: req.Name, Description: req.Description})
	if err != nil {
		h.writeError(w, err, "Failed to update role", requestID)
		return
	}

	if req.AppNames != nil {
		role, err = h.roles.SetApps(r.Context(), id, apps)
		if err != nil {
			h.writeError(w, err, "Failed to update role permissions", requestID)
			return
		}
	}

	response.Success(w, http.StatusOK, toRoleResponse(role), requestID)
}

// Delete handles DELETE /api/roles/{id}.
func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseID(w, r, requestID)
	if !ok {
		return
	}

	if err := h.roles.Delete(r.Context(), id); err != nil {
		h.writeError(w, err, "Failed to delete role", requestID)
		return
	}

	response.NoContent(w)
}

func (h *RoleHandler) writeError(w http.ResponseWriter, err error, message, requestID string) {
	switch {
	case errors.Is(err, rbac.ErrRoleNotFound):
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "Role not found", requestID)
	case errors.Is(err, rbac.ErrSystemRole):
		response.Err(w, http.StatusConflict, "CONFLICT", "System roles cannot be deleted or renamed", requestID)
	case errors.Is(err, rbac.ErrDuplicateRole):
		response.Err(w, http.StatusConflict, "CONFLICT", "A role with that name already exists", requestID)
	default:
		slog.Error(message, "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", message, requestID)
	}
}

// parseID reads the {id} URL parameter.
func parseID(w http.ResponseWriter, r *http.Request, requestID string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "id must be a valid UUID", requestID)
		return uuid.Nil, false
	}
	return id, true
}

// decodeJSON reads a size-limited JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, requestID string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON: "+err.Error(), requestID)
		return false
	}
	return true
}
