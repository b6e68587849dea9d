package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kubarr/kubarr/internal/api/middleware"
	"github.com/kubarr/kubarr/internal/api/response"
	"github.com/kubarr/kubarr/internal/api/validation"
	"github.com/kubarr/kubarr/internal/registration"
	"github.com/kubarr/kubarr/internal/setup"
	"github.com/kubarr/kubarr/internal/user"
)

// Bootstrapper performs first-run setup.
type Bootstrapper interface {
	Status(ctx context.Context) (setup.Status, error)
	Bootstrap(ctx context.Context, req setup.Request) (*setup.Result, error)
}

type setupResponse struct {
	Admin       userResponse      `json:"admin"`
	ProxyClient setup.ProxyClient `json:"oauth2_client"`
}

// SetupHandler handles the first-run setup endpoints.
type SetupHandler struct {
	setup Bootstrapper
}

// NewSetupHandler creates a new SetupHandler.
func NewSetupHandler(b Bootstrapper) *SetupHandler {
	return &SetupHandler{setup: b}
}

// Status handles GET /api/setup/status.
func (h *SetupHandler) Status(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	status, err := h.setup.Status(r.Context())
	if err != nil {
		slog.Error("failed to read setup status", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read setup status", requestID)
		return
	}

	response.Success(w, http.StatusOK, status, requestID)
}

// Bootstrap handles POST /api/setup.
func (h *SetupHandler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req setup.Request
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	result, err := h.setup.Bootstrap(r.Context(), req)
	if err != nil {
		var verr *registration.ValidationError
		switch {
		case errors.As(err, &verr):
			response.ValidationFailed(w, []validation.FieldError{{Field: verr.Field, Message: verr.Message}}, requestID)
		case errors.Is(err, setup.ErrAlreadyCompleted):
			response.Err(w, http.StatusConflict, "CONFLICT", "Setup has already been completed", requestID)
		case errors.Is(err, user.ErrDuplicateUser):
			response.Err(w, http.StatusConflict, "CONFLICT", "Username or email already exists", requestID)
		default:
			slog.Error("setup failed", "error", err)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Setup failed", requestID)
		}
		return
	}

	response.Success(w, http.StatusCreated, setupResponse{
		Admin:       toUserResponse(result.Admin),
		ProxyClient: result.ProxyClient,
	}, requestID)
}
