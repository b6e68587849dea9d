package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kubarr/kubarr/internal/api/middleware"
	"github.com/kubarr/kubarr/internal/api/response"
	"github.com/kubarr/kubarr/internal/api/validation"
	"github.com/kubarr/kubarr/internal/apps"
	"github.com/kubarr/kubarr/internal/catalog"
	"github.com/kubarr/kubarr/internal/deploy"
	"github.com/kubarr/kubarr/internal/user"
)

// AppService is the app lifecycle surface behind /api/apps.
type AppService interface {
	Catalog(ctx context.Context, u *user.User) ([]catalog.App, error)
	ByCategory(ctx context.Context, u *user.User, category string) ([]catalog.App, error)
	Categories() []string
	App(ctx context.Context, u *user.User, name string) (catalog.App, error)
	Installed(ctx context.Context, u *user.User) ([]string, error)
	Install(ctx context.Context, u *user.User, req apps.InstallRequest) (deploy.Status, error)
	Remove(ctx context.Context, u *user.User, name string) (bool, error)
	Health(ctx context.Context, u *user.User, name string) (deploy.Health, error)
}

// AppHandler handles catalog and app lifecycle endpoints.
type AppHandler struct {
	apps AppService
}

// NewAppHandler creates a new AppHandler.
func NewAppHandler(svc AppService) *AppHandler {
	return &AppHandler{apps: svc}
}

// Catalog handles GET /api/apps/catalog.
func (h *AppHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	list, err := h.apps.Catalog(r.Context(), middleware.GetPrincipal(r).User)
	if err != nil {
		h.writeError(w, err, "Failed to list catalog", requestID)
		return
	}

	response.SuccessList(w, http.StatusOK, list, len(list), requestID)
}

// CatalogApp handles GET /api/apps/catalog/{name}.
func (h *AppHandler) CatalogApp(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	app, err := h.apps.App(r.Context(), middleware.GetPrincipal(r).User, chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, err, "Failed to get app", requestID)
		return
	}

	response.Success(w, http.StatusOK, app, requestID)
}

// Categories handles GET /api/apps/categories.
func (h *AppHandler) Categories(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	categories := h.apps.Categories()
	if categories == nil {
		categories = []string{}
	}
	response.SuccessList(w, http.StatusOK, categories, len(categories), requestID)
}

// Category handles GET /api/apps/category/{category}.
func (h *AppHandler) Category(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	list, err := h.apps.ByCategory(r.Context(), middleware.GetPrincipal(r).User, chi.URLParam(r, "category"))
	if err != nil {
		h.writeError(w, err, "Failed to list category", requestID)
		return
	}

	response.SuccessList(w, http.StatusOK, list, len(list), requestID)
}

// Installed handles GET /api/apps/installed.
func (h *AppHandler) Installed(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	names, err := h.apps.Installed(r.Context(), middleware.GetPrincipal(r).User)
	if err != nil {
		h.writeError(w, err, "Failed to list installed apps", requestID)
		return
	}

	response.SuccessList(w, http.StatusOK, names, len(names), requestID)
}

// Install handles POST /api/apps/install.
func (h *AppHandler) Install(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req apps.InstallRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if req.App == "" {
		response.ValidationFailed(w, []validation.FieldError{{Field: "app_name", Message: "app_name is required"}}, requestID)
		return
	}

	status, err := h.apps.Install(r.Context(), middleware.GetPrincipal(r).User, req)
	if err != nil {
		h.writeError(w, err, "Failed to install app", requestID)
		return
	}

	response.Success(w, http.StatusCreated, status, requestID)
}

type removeResponse struct {
	App     string `json:"app"`
	Removed bool   `json:"removed"`
}

// Remove handles DELETE /api/apps/{name}.
func (h *AppHandler) Remove(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	name := chi.URLParam(r, "name")

	removed, err := h.apps.Remove(r.Context(), middleware.GetPrincipal(r).User, name)
	if err != nil {
		h.writeError(w, err, "Failed to remove app", requestID)
		return
	}

	response.Success(w, http.StatusOK, removeResponse{App: name, Removed: removed}, requestID)
}

// Health handles GET /api/apps/{name}/health.
func (h *AppHandler) Health(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	health, err := h.apps.Health(r.Context(), middleware.GetPrincipal(r).User, chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, err, "Failed to check app health", requestID)
		return
	}

	response.Success(w, http.StatusOK, health, requestID)
}

func (h *AppHandler) writeError(w http.ResponseWriter, err error, message, requestID string) {
	var ferr *deploy.FieldError
	switch {
	case errors.As(err, &ferr):
		response.ValidationFailed(w, []validation.FieldError{{Field: "overrides." + ferr.Field, Message: ferr.Message}}, requestID)
	case errors.Is(err, catalog.ErrAppNotFound):
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "App not found in catalog", requestID)
	case errors.Is(err, apps.ErrForbidden):
		response.Err(w, http.StatusForbidden, "FORBIDDEN", "Access to this app is denied", requestID)
	case errors.Is(err, apps.ErrSystemApp):
		response.Err(w, http.StatusConflict, "CONFLICT", "System apps cannot be removed", requestID)
	default:
		slog.Error(message, "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", message, requestID)
	}
}
