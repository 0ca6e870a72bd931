package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"spreadwatch/internal/models"
	"spreadwatch/internal/service"
)

// settings_handler.go - настройки конвейера и горячие переопределения

// SettingsManager - слой настроек с горячей перезагрузкой
type SettingsManager interface {
	Current() models.Settings
	Update(ctx context.Context, fields map[string]string) (models.Settings, error)
	SetOverride(ctx context.Context, field, value string) error
	DeleteOverride(ctx context.Context, field string) error
	Overrides(ctx context.Context) (map[string]string, error)
}

// SettingsHandler обрабатывает запросы настроек
type SettingsHandler struct {
	settings SettingsManager
}

// NewSettingsHandler создает handler настроек
func NewSettingsHandler(settings SettingsManager) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// Get возвращает действующие настройки (слоеные).
// GET /api/v1/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.settings.Current())
}

// Update меняет durable настройки.
// PATCH /api/v1/settings  body: {"min_spread_pct": "3.5", ...}
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var fields map[string]string
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil || len(fields) == 0 {
		respondError(w, http.StatusBadRequest, "field map is required")
		return
	}

	updated, err := h.settings.Update(r.Context(), fields)
	if err != nil {
		if errors.Is(err, service.ErrUnknownField) || errors.Is(err, service.ErrInvalidValue) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "settings update failed")
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// Overrides возвращает активные KV переопределения.
// GET /api/v1/settings/overrides
func (h *SettingsHandler) Overrides(w http.ResponseWriter, r *http.Request) {
	overrides, err := h.settings.Overrides(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "overrides query failed")
		return
	}
	if overrides == nil {
		overrides = map[string]string{}
	}
	respondJSON(w, http.StatusOK, overrides)
}

// overrideRequest - тело запроса установки переопределения
type overrideRequest struct {
	Value string `json:"value"`
}

// SetOverride ставит горячее переопределение одного поля.
// PUT /api/v1/settings/overrides/{field}
func (h *SettingsHandler) SetOverride(w http.ResponseWriter, r *http.Request) {
	field := mux.Vars(r)["field"]

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "value is required")
		return
	}

	if err := h.settings.SetOverride(r.Context(), field, req.Value); err != nil {
		if errors.Is(err, service.ErrUnknownField) || errors.Is(err, service.ErrInvalidValue) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "override write failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"field": field, "value": req.Value})
}

// DeleteOverride снимает переопределение.
// DELETE /api/v1/settings/overrides/{field}
func (h *SettingsHandler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	field := mux.Vars(r)["field"]

	if err := h.settings.DeleteOverride(r.Context(), field); err != nil {
		respondError(w, http.StatusInternalServerError, "override delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
