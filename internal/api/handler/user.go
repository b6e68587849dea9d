package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/kubarr/kubarr/internal/api/middleware"
	"github.com/kubarr/kubarr/internal/api/response"
	"github.com/kubarr/kubarr/internal/api/validation"
	"github.com/kubarr/kubarr/internal/rbac"
	"github.com/kubarr/kubarr/internal/user"
)

// UserAdmin implements user administration.
type UserAdmin interface {
	List(ctx context.Context) ([]user.User, error)
	ListPending(ctx context.Context) ([]user.User, error)
	Get(ctx context.Context, id uuid.UUID) (*user.User, error)
	Create(ctx context.Context, username, email, password string, isAdmin bool) (*user.User, error)
	Approve(ctx context.Context, id uuid.UUID) (*user.User, error)
	Reject(ctx context.Context, id uuid.UUID) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*user.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// RoleMembership reads and replaces a user's roles.
type RoleMembership interface {
	UserRoles(ctx context.Context, userID uuid.UUID) ([]rbac.Role, error)
	SetUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) ([]rbac.Role, error)
}

type createUserRequest struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	IsAdmin  bool     `json:"is_admin"`
	RoleIDs  []string `json:"role_ids"`
}

type setActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

type setRolesRequest struct {
	RoleIDs []string `json:"role_ids"`
}

type userResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	IsActive   bool   `json:"is_active"`
	IsApproved bool   `json:"is_approved"`
	IsAdmin    bool   `json:"is_admin"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func toUserResponse(u *user.User) userResponse {
	return userResponse{
		ID:         u.ID.String(),
		Username:   u.Username,
		Email:      u.Email,
		IsActive:   u.IsActive,
		IsApproved: u.IsApproved,
		IsAdmin:    u.IsAdmin,
		CreatedAt:  u.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:  u.UpdatedAt.UTC().Format(timeFormat),
	}
}

func toUserResponses(users []user.User) []userResponse {
	items := make([]userResponse, 0, len(users))
	for i := range users {
		items = append(items, toUserResponse(&users[i]))
	}
	return items
}

// UserHandler handles user administration endpoints.
type UserHandler struct {
	users UserAdmin
	roles RoleMembership
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users UserAdmin, roles RoleMembership) *UserHandler {
	return &UserHandler{users: users, roles: roles}
}

// Create handles POST /api/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req createUserRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	fieldErrors := validation.ValidateCreateUserRequest(validation.CreateUserRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	roleIDs, idErrors := validation.ParseRoleIDs(req.RoleIDs)
	fieldErrors = append(fieldErrors, idErrors...)
	if len(fieldErrors) > 0 {
		response.ValidationFailed(w, fieldErrors, requestID)
		return
	}

	u, err := h.users.Create(r.Context(), req.Username, req.Email, req.Password, req.IsAdmin)
	if err != nil {
		h.writeError(w, err, "Failed to create user", requestID)
		return
	}

	if len(roleIDs) > 0 {
		if _, err := h.roles.SetUserRoles(r.Context(), u.ID, roleIDs); err != nil {
			h.writeError(w, err, "Failed to assign roles", requestID)
			return
		}
	}

	response.Success(w, http.StatusCreated, toUserResponse(u), requestID)
}

// List handles GET /api/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.users.List)
}

// ListPending handles GET /api/users/pending.
func (h *UserHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.users.ListPending)
}

func (h *UserHandler) list(w http.ResponseWriter, r *http.Request, fetch func(context.Context) ([]user.User, error)) {
	requestID := middleware.GetRequestID(r.Context())

	users, err := fetch(r.Context())
	if err != nil {
		slog.Error("failed to list users", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list users", requestID)
		return
	}

	items := toUserResponses(users)
	response.SuccessList(w, http.StatusOK, items, len(items), requestID)
}

// Get handles GET /api/users/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseID(w, r, requestID)
	if !ok {
		return
	}

	u, err := h.users.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "Failed to get user", requestID)
		return
	}

	response.Success(w, http.StatusOK, toUserResponse(u), requestID)
}

// Approve handles POST /api/users/{id}/approve.
func (h *UserHandler) Approve(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseID(w, r, requestID)
	if !ok {
		return
	}

	u, err := h.users.Approve(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "Failed to approve user", requestID)
		return
	}

	response.Success(w, http.StatusOK, toUserResponse(u), requestID)
}

// Reject handles POST /api/users/{id}/reject.
func (h *UserHandler) Reject(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseID(w, r, requestID)
	if !ok {
		return
	}

	if err := h.users.Reject(r.Context(), id); err != nil {
		h.writeError(w, err, "Failed to reject user", requestID)
		return
	}

	response.NoContent(w)
}

// SetActive handles PATCH /api/users/{id}/active.
func (h *UserHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseID(w, r, requestID)
	if !ok {
		return
	}

	var req setActiveRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if req.IsActive == nil {
		response.ValidationFailed(w, []validation.FieldError{{Field: "is_active", Message: "is_active is required"}}, requestID)
		return
	}
	if p := middleware.GetPrincipal(r); p != nil && p.User.ID == id && !*req.IsActive {
		response.Err(w, http.StatusConflict, "CONFLICT", "You cannot deactivate your own account", requestID)
		return
	}

	u, err := h.users.SetActive(r.Context(), id, *req.IsActive)
	if err != nil {
		h.writeError(w, err, "Failed to update user", requestID)
		return
	}

	response.Success(w, http.StatusOK, toUserResponse(u), requestID)
}

// Delete handles DELETE /api/users/{id}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseID(w, r, requestID)
	if !ok {
		return
	}
	if p := middleware.GetPrincipal(r); p != nil && p.User.ID == id {
		response.Err(w, http.StatusConflict, "CONFLICT", "You cannot delete your own account", requestID)
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		h.writeError(w, err, "Failed to delete user", requestID)
		return
	}

	response.NoContent(w)
}

// Roles handles GET /api/users/{id}/roles.
func (h *UserHandler) Roles(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseID(w, r, requestID)
	if !ok {
		return
	}

	roles, err := h.roles.UserRoles(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "Failed to list user roles", requestID)
		return
	}

	items := toRoleResponses(roles)
	response.SuccessList(w, http.StatusOK, items, len(items), requestID)
}

// SetRoles handles PUT /api/users/{id}/roles.
func (h *UserHandler) SetRoles(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseID(w, r, requestID)
	if !ok {
		return
	}

	var req setRolesRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	roleIDs, fieldErrors := validation.ParseRoleIDs(req.RoleIDs)
	if len(fieldErrors) > 0 {
		response.ValidationFailed(w, fieldErrors, requestID)
		return
	}

	roles, err := h.roles.SetUserRoles(r.Context(), id, roleIDs)
	if err != nil {
		h.writeError(w, err, "Failed to set user roles", requestID)
		return
	}

	items := toRoleResponses(roles)
	response.SuccessList(w, http.StatusOK, items, len(items), requestID)
}

func (h *UserHandler) writeError(w http.ResponseWriter, err error, message, requestID string) {
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
	case errors.Is(err, rbac.ErrRoleNotFound):
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "Role not found", requestID)
	case errors.Is(err, user.ErrDuplicateUser):
		response.Err(w, http.StatusConflict, "CONFLICT", "Username or email already exists", requestID)
	case errors.Is(err, user.ErrAlreadyApproved):
		response.Err(w, http.StatusConflict, "CONFLICT", "User is already approved", requestID)
	default:
		slog.Error(message, "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", message, requestID)
	}
}
