package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/kubarr/kubarr/internal/api/middleware"
	"github.com/kubarr/kubarr/internal/api/response"
	"github.com/kubarr/kubarr/internal/registration"
	"github.com/kubarr/kubarr/internal/user"
)

// Registrar admits self-service registrations.
type Registrar interface {
	Register(ctx context.Context, req registration.Request) (*registration.Result, error)
	Status(ctx context.Context, inviteCode string) (*registration.Status, error)
}

// RegisterHandler handles the self-service registration endpoints.
type RegisterHandler struct {
	gate        Registrar
	registerURL string
}

// NewRegisterHandler creates a new RegisterHandler. Outcomes are reported
// by redirecting to registerURL.
func NewRegisterHandler(gate Registrar, registerURL string) *RegisterHandler {
	return &RegisterHandler{gate: gate, registerURL: registerURL}
}

// Register handles POST /auth/register.
func (h *RegisterHandler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "request body must be form-encoded", http.StatusBadRequest)
		return
	}

	invite := r.PostForm.Get("invite_code")
	if invite == "" {
		invite = r.PostForm.Get("invite")
	}
	result, err := h.gate.Register(r.Context(), registration.Request{
		Username:        r.PostForm.Get("username"),
		Email:           r.PostForm.Get("email"),
		Password:        r.PostForm.Get("password"),
		ConfirmPassword: r.PostForm.Get("confirm_password"),
		InviteCode:      invite,
	})
	if err != nil {
		v := url.Values{"error": {registrationMessage(err)}}
		if invite != "" {
			v.Set("invite", invite)
		}
		http.Redirect(w, r, withQuery(h.registerURL, v), http.StatusFound)
		return
	}

	v := url.Values{"success": {"true"}}
	if !result.Approved {
		v.Set("pending", "true")
	}
	http.Redirect(w, r, withQuery(h.registerURL, v), http.StatusFound)
}

func registrationMessage(err error) string {
	var verr *registration.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, registration.ErrRegistrationDisabled):
		return "Registration is disabled. Please request an invite link from an administrator."
	case errors.Is(err, registration.ErrInvalidInvite):
		return "Registration requires a valid invite link"
	case errors.Is(err, user.ErrDuplicateUser):
		return "Username or email already exists"
	}
	slog.Error("registration failed", "error", err)
	return "Registration failed, please try again"
}

// Status handles GET /auth/register/status.
func (h *RegisterHandler) Status(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	status, err := h.gate.Status(r.Context(), r.URL.Query().Get("invite"))
	if err != nil {
		slog.Error("failed to resolve registration status", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve registration status", requestID)
		return
	}

	response.Success(w, http.StatusOK, status, requestID)
}
