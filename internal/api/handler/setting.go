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
	"github.com/kubarr/kubarr/internal/settings"
)

// SettingStore reads and writes system settings.
type SettingStore interface {
	List(ctx context.Context) ([]settings.Setting, error)
	Get(ctx context.Context, key string) (*settings.Setting, error)
	Set(ctx context.Context, key, value string) (*settings.Setting, error)
}

type setSettingRequest struct {
	Value *string `json:"value"`
}

type settingResponse struct {
	Key         string  `json:"key"`
	Value       string  `json:"value"`
	Description string  `json:"description"`
	IsDefault   bool    `json:"is_default"`
	UpdatedAt   *string `json:"updated_at"`
}

func toSettingResponse(s *settings.Setting) settingResponse {
	resp := settingResponse{
		Key:         s.Key,
		Value:       s.Value,
		Description: s.Description,
		IsDefault:   s.IsDefault,
	}
	if !s.IsDefault {
		resp.UpdatedAt = optionalTime(&s.UpdatedAt)
	}
	return resp
}

// SettingHandler handles system settings endpoints.
type SettingHandler struct {
	settings SettingStore
}

// NewSettingHandler creates a new SettingHandler.
func NewSettingHandler(store SettingStore) *SettingHandler {
	return &SettingHandler{settings: store}
}

// List handles GET /api/settings.
func (h *SettingHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	all, err := h.settings.List(r.Context())
	if err != nil {
		slog.Error("failed to list settings", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list settings", requestID)
		return
	}

	items := make([]settingResponse, 0, len(all))
	for i := range all {
		items = append(items, toSettingResponse(&all[i]))
	}
	response.SuccessList(w, http.StatusOK, items, len(items), requestID)
}

// Get handles GET /api/settings/{key}.
func (h *SettingHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	s, err := h.settings.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		if errors.Is(err, settings.ErrSettingNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Setting not found", requestID)
			return
		}
		slog.Error("failed to get setting", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get setting", requestID)
		return
	}

	response.Success(w, http.StatusOK, toSettingResponse(s), requestID)
}

// Set handles PUT /api/settings/{key}.
func (h *SettingHandler) Set(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	key := chi.URLParam(r, "key")

	var req setSettingRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if req.Value == nil {
		response.ValidationFailed(w, []validation.FieldError{{Field: "value", Message: "value is required"}}, requestID)
		return
	}
	if fieldErrors := validation.ValidateSettingValue(*req.Value); len(fieldErrors) > 0 {
		response.ValidationFailed(w, fieldErrors, requestID)
		return
	}

	s, err := h.settings.Set(r.Context(), key, *req.Value)
	if err != nil {
		if errors.Is(err, settings.ErrUnknownSetting) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Setting not found", requestID)
			return
		}
		slog.Error("failed to update setting", "error", err, "key", key)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update setting", requestID)
		return
	}

	slog.Info("setting updated", "key", key, "value", s.Value)
	response.Success(w, http.StatusOK, toSettingResponse(s), requestID)
}
