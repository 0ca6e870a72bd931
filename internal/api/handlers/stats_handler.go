package handlers

import (
	"context"
	"net/http"
	"time"

	"spreadwatch/internal/models"
)

// stats_handler.go - статистика пар и агрегатные счетчики

// PairStatsStore отдает накопленную статистику пар
type PairStatsStore interface {
	GetAll(limit int) ([]*models.PairStatistics, error)
}

// OverviewStore отдает счетчики горячего хранилища
type OverviewStore interface {
	AlertStats(ctx context.Context) (map[string]int64, error)
	QueueDepths(ctx context.Context) (orderbook, signals int64, err error)
	LastUpdate(ctx context.Context) (time.Time, error)
}

// StatsHandler обрабатывает запросы статистики
type StatsHandler struct {
	pairStats PairStatsStore
	store     OverviewStore
}

// NewStatsHandler создает handler статистики
func NewStatsHandler(pairStats PairStatsStore, store OverviewStore) *StatsHandler {
	return &StatsHandler{pairStats: pairStats, store: store}
}

// Pairs возвращает таблицу статистики исходов пар.
// GET /api/v1/stats/pairs?limit=200
func (h *StatsHandler) Pairs(w http.ResponseWriter, r *http.Request) {
	stats, err := h.pairStats.GetAll(queryInt(r, "limit", 200))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "pair statistics query failed")
		return
	}
	if stats == nil {
		stats = []*models.PairStatistics{}
	}
	respondJSON(w, http.StatusOK, stats)
}

// overview - агрегатные счетчики конвейера
type overview struct {
	AlertStats     map[string]int64 `json:"alert_stats"`
	OrderbookQueue int64            `json:"orderbook_queue"`
	SignalsQueue   int64            `json:"signals_queue"`
	LastTickAt     *time.Time       `json:"last_tick_at,omitempty"`
}

// Overview возвращает агрегатные счетчики.
// GET /api/v1/stats/overview
func (h *StatsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.store.AlertStats(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "alert stats query failed")
		return
	}

	ov := overview{AlertStats: stats}
	if ob, sig, err := h.store.QueueDepths(ctx); err == nil {
		ov.OrderbookQueue = ob
		ov.SignalsQueue = sig
	}
	if at, err := h.store.LastUpdate(ctx); err == nil && !at.IsZero() {
		ov.LastTickAt = &at
	}

	respondJSON(w, http.StatusOK, ov)
}
