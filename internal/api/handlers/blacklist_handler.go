package handlers

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/gorilla/mux"

	"spreadwatch/internal/kv"
)

// blacklist_handler.go - управление черными списками
//
// Четыре вида списков: symbols, addresses, exchanges, pairs.
// Значения нормализуются на стороне KV клиента.

// BlacklistStore - операции черных списков
type BlacklistStore interface {
	BlacklistAdd(ctx context.Context, kind, value string) error
	BlacklistRemove(ctx context.Context, kind, value string) error
	BlacklistMembers(ctx context.Context, kind string) ([]string, error)
}

// BlacklistHandler обрабатывает запросы черных списков
type BlacklistHandler struct {
	store BlacklistStore
}

// NewBlacklistHandler создает handler черных списков
func NewBlacklistHandler(store BlacklistStore) *BlacklistHandler {
	return &BlacklistHandler{store: store}
}

// validKind проверяет вид списка
func validKind(kind string) bool {
	for _, k := range kv.BlacklistKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// List возвращает значения списка.
// GET /api/v1/blacklist/{kind}
func (h *BlacklistHandler) List(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	if !validKind(kind) {
		respondError(w, http.StatusBadRequest, "unknown blacklist kind")
		return
	}

	members, err := h.store.BlacklistMembers(r.Context(), kind)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "blacklist query failed")
		return
	}
	sort.Strings(members)
	if members == nil {
		members = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"kind": kind, "values": members})
}

// blacklistRequest - тело запроса добавления/удаления
type blacklistRequest struct {
	Value string `json:"value"`
}

// Add добавляет значение в список.
// POST /api/v1/blacklist/{kind}
func (h *BlacklistHandler) Add(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	if !validKind(kind) {
		respondError(w, http.StatusBadRequest, "unknown blacklist kind")
		return
	}

	var req blacklistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Value) == "" {
		respondError(w, http.StatusBadRequest, "value is required")
		return
	}

	if err := h.store.BlacklistAdd(r.Context(), kind, req.Value); err != nil {
		respondError(w, http.StatusInternalServerError, "blacklist write failed")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"kind": kind, "value": req.Value})
}

// Remove убирает значение из списка.
// DELETE /api/v1/blacklist/{kind}/{value}
func (h *BlacklistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind := vars["kind"]
	if !validKind(kind) {
		respondError(w, http.StatusBadRequest, "unknown blacklist kind")
		return
	}

	if err := h.store.BlacklistRemove(r.Context(), kind, vars["value"]); err != nil {
		respondError(w, http.StatusInternalServerError, "blacklist write failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
