package handlers

import (
	"net/http"

	"spreadwatch/internal/models"
)

// universe_handler.go - дамп вселенной тикеров

// UniverseSource отдает текущую вселенную
type UniverseSource interface {
	Tickers() []models.Ticker
}

// UniverseHandler обрабатывает запросы вселенной
type UniverseHandler struct {
	registry UniverseSource
}

// NewUniverseHandler создает handler вселенной
func NewUniverseHandler(registry UniverseSource) *UniverseHandler {
	return &UniverseHandler{registry: registry}
}

// Get возвращает вселенную тикеров.
// GET /api/v1/universe
func (h *UniverseHandler) Get(w http.ResponseWriter, r *http.Request) {
	tickers := h.registry.Tickers()
	if tickers == nil {
		tickers = []models.Ticker{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(tickers),
		"tickers": tickers,
	})
}
