package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"spreadwatch/internal/models"
	"spreadwatch/internal/repository"
)

// signal_handler.go - чтение эмитированных сигналов

// SignalStore отдает сохраненные сигналы
type SignalStore interface {
	List(limit, offset int, status string) ([]*models.Signal, error)
	GetByID(id string) (*models.Signal, error)
}

// TrackingStore отдает отслеживание сигнала
type TrackingStore interface {
	GetBySignalID(signalID string) (*models.Tracking, error)
}

// AnalysisStore отдает пост-анализ схождения
type AnalysisStore interface {
	GetBySignalID(signalID string) (*models.ConvergenceAnalysis, error)
}

// TradeResultStore отдает пользовательские отчеты по сигналу
type TradeResultStore interface {
	ResultsBySignal(signalID string) ([]models.TradeResult, error)
}

// SignalHandler обрабатывает запросы к сигналам
type SignalHandler struct {
	signals   SignalStore
	trackings TrackingStore
	analyses  AnalysisStore
	results   TradeResultStore
}

// NewSignalHandler создает handler сигналов
func NewSignalHandler(signals SignalStore, trackings TrackingStore, analyses AnalysisStore, results TradeResultStore) *SignalHandler {
	return &SignalHandler{
		signals:   signals,
		trackings: trackings,
		analyses:  analyses,
		results:   results,
	}
}

// List возвращает сигналы в обратном хронологическом порядке.
// GET /api/v1/signals?limit=50&offset=0&status=sent
func (h *SignalHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	status := r.URL.Query().Get("status")

	signals, err := h.signals.List(limit, offset, status)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "signals query failed")
		return
	}
	if signals == nil {
		signals = []*models.Signal{}
	}
	respondJSON(w, http.StatusOK, signals)
}

// signalDetail - сигнал вместе с его отслеживанием и пост-анализом
type signalDetail struct {
	Signal   *models.Signal              `json:"signal"`
	Tracking *models.Tracking            `json:"tracking,omitempty"`
	Analysis *models.ConvergenceAnalysis `json:"analysis,omitempty"`
	Results  []models.TradeResult        `json:"trade_results,omitempty"`
}

// Get возвращает один сигнал с отслеживанием и анализом.
// GET /api/v1/signals/{id}
func (h *SignalHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	signal, err := h.signals.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "signal not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "signal query failed")
		return
	}

	detail := signalDetail{Signal: signal}

	// Отслеживания и анализа может не быть: сигнал недавний
	// либо доставка не подтвердилась
	if t, err := h.trackings.GetBySignalID(id); err == nil {
		detail.Tracking = t
	}
	if a, err := h.analyses.GetBySignalID(id); err == nil {
		detail.Analysis = a
	}
	if results, err := h.results.ResultsBySignal(id); err == nil && len(results) > 0 {
		detail.Results = results
	}

	respondJSON(w, http.StatusOK, detail)
}
