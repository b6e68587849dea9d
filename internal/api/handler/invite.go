package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kubarr/kubarr/internal/api/middleware"
	"github.com/kubarr/kubarr/internal/api/response"
	"github.com/kubarr/kubarr/internal/api/validation"
	"github.com/kubarr/kubarr/internal/registration"
)

// InviteManager creates and lists registration invites.
type InviteManager interface {
	CreateInvite(ctx context.Context, createdBy uuid.UUID, expiresIn time.Duration) (*registration.Invite, error)
	ListInvites(ctx context.Context) ([]registration.Invite, error)
	DeleteInvite(ctx context.Context, id uuid.UUID) error
}

type createInviteRequest struct {
	ExpiresInDays *int `json:"expires_in_days"`
}

type inviteResponse struct {
	ID          string  `json:"id"`
	Code        string  `json:"code"`
	URL         string  `json:"url"`
	CreatedByID *string `json:"created_by_id"`
	UsedByID    *string `json:"used_by_id"`
	ExpiresAt   *string `json:"expires_at"`
	IsUsed      bool    `json:"is_used"`
	CreatedAt   string  `json:"created_at"`
	UsedAt      *string `json:"used_at"`
}

func optionalID(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func optionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(timeFormat)
	return &s
}

// InviteHandler handles invite administration endpoints.
type InviteHandler struct {
	invites     InviteManager
	registerURL string
}

// NewInviteHandler creates a new InviteHandler. registerURL is the absolute
// registration page URL invite links point at.
func NewInviteHandler(invites InviteManager, registerURL string) *InviteHandler {
	return &InviteHandler{invites: invites, registerURL: registerURL}
}

func (h *InviteHandler) toResponse(inv *registration.Invite) inviteResponse {
	return inviteResponse{
		ID:          inv.ID.String(),
		Code:        inv.Code,
		URL:         h.registerURL + "?invite=" + inv.Code,
		CreatedByID: optionalID(inv.CreatedByID),
		UsedByID:    optionalID(inv.UsedByID),
		ExpiresAt:   optionalTime(inv.ExpiresAt),
		IsUsed:      inv.IsUsed,
		CreatedAt:   inv.CreatedAt.UTC().Format(timeFormat),
		UsedAt:      optionalTime(inv.UsedAt),
	}
}

// Create handles POST /api/invites.
func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req createInviteRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req, requestID) {
		return
	}
	if fieldErrors := validation.ValidateInviteExpiry(req.ExpiresInDays); len(fieldErrors) > 0 {
		response.ValidationFailed(w, fieldErrors, requestID)
		return
	}

	var expiresIn time.Duration
	if req.ExpiresInDays != nil {
		expiresIn = time.Duration(*req.ExpiresInDays) * 24 * time.Hour
	}

	p := middleware.GetPrincipal(r)
	inv, err := h.invites.CreateInvite(r.Context(), p.User.ID, expiresIn)
	if err != nil {
		slog.Error("failed to create invite", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create invite", requestID)
		return
	}

	response.Success(w, http.StatusCreated, h.toResponse(inv), requestID)
}

// List handles GET /api/invites.
func (h *InviteHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	invites, err := h.invites.ListInvites(r.Context())
	if err != nil {
		slog.Error("failed to list invites", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list invites", requestID)
		return
	}

	items := make([]inviteResponse, 0, len(invites))
	for i := range invites {
		items = append(items, h.toResponse(&invites[i]))
	}
	response.SuccessList(w, http.StatusOK, items, len(items), requestID)
}

// Delete handles DELETE /api/invites/{id}.
func (h *InviteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseID(w, r, requestID)
	if !ok {
		return
	}

	if err := h.invites.DeleteInvite(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, registration.ErrInviteNotFound):
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Invite not found", requestID)
		case errors.Is(err, registration.ErrInviteUsed):
			response.Err(w, http.StatusConflict, "CONFLICT", "Used invites cannot be deleted", requestID)
		default:
			slog.Error("failed to delete invite", "error", err, "id", id)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete invite", requestID)
		}
		return
	}

	response.NoContent(w)
}
