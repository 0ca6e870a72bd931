package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"spreadwatch/internal/models"
)

// baseline_handler.go - историческая норма спреда пары

// BaselineSource отдает baseline контекст пары
type BaselineSource interface {
	Baseline(ctx context.Context, pairID, symbol string, currentPct float64) *models.BaselineContext
}

// BaselineHandler обрабатывает запросы к baseline
type BaselineHandler struct {
	source BaselineSource
}

// NewBaselineHandler создает handler baseline
func NewBaselineHandler(source BaselineSource) *BaselineHandler {
	return &BaselineHandler{source: source}
}

// Get возвращает историческую норму пары.
// GET /api/v1/baseline/{pair}/{symbol}?current=4.2
// 404 пока не накоплено 24 часа данных.
func (h *BaselineHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	current := queryFloat(r, "current", 0)

	bl := h.source.Baseline(r.Context(), vars["pair"], vars["symbol"], current)
	if bl == nil {
		respondError(w, http.StatusNotFound, "baseline not yet accumulated")
		return
	}
	respondJSON(w, http.StatusOK, bl)
}
