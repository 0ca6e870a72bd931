package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"spreadwatch/internal/models"
	"spreadwatch/internal/repository"
)

// position_handler.go - пользовательские позиции и итоги сделок
//
// "Я вошел" создает запись позиции; трекер позиций подхватывает ее
// на следующем тике. Итог сделки пользователь сообщает отдельно.

// PositionStore - операции позиций
type PositionStore interface {
	Create(p *models.Position) error
	Close(id string, at time.Time) error
	GetByID(id string) (*models.Position, error)
	RecordResult(tr *models.TradeResult) error
}

// PositionHandler обрабатывает запросы позиций
type PositionHandler struct {
	positions PositionStore
	signals   SignalStore
}

// NewPositionHandler создает handler позиций
func NewPositionHandler(positions PositionStore, signals SignalStore) *PositionHandler {
	return &PositionHandler{positions: positions, signals: signals}
}

// createPositionRequest - тело запроса "я вошел"
type createPositionRequest struct {
	SignalID        string  `json:"signal_id"`
	UserID          int64   `json:"user_id"`
	TargetSpreadPct float64 `json:"target_spread_pct,omitempty"`
}

// Create регистрирует вход пользователя в позицию по сигналу.
// POST /api/v1/positions
func (h *PositionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SignalID == "" {
		respondError(w, http.StatusBadRequest, "signal_id is required")
		return
	}

	signal, err := h.signals.GetByID(req.SignalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "signal not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "signal query failed")
		return
	}

	position := &models.Position{
		SignalID:        signal.ID,
		UserID:          req.UserID,
		Symbol:          signal.Spread.Symbol,
		PairID:          signal.Spread.PairID,
		EntrySpreadPct:  signal.Spread.SpreadPct,
		TargetSpreadPct: req.TargetSpreadPct,
	}
	if err := h.positions.Create(position); err != nil {
		respondError(w, http.StatusInternalServerError, "position create failed")
		return
	}

	respondJSON(w, http.StatusCreated, position)
}

// CloseFunc закрывает позицию.
// POST /api/v1/positions/{id}/close
func (h *PositionHandler) CloseFunc(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.positions.Close(id, time.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrAlreadyClosed) {
			respondError(w, http.StatusConflict, "position already closed")
			return
		}
		respondError(w, http.StatusInternalServerError, "position close failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resultRequest - тело отчета об итоге сделки
type resultRequest struct {
	UserID    int64   `json:"user_id"`
	PnlPct    float64 `json:"pnl_pct"`
	HoldHours float64 `json:"hold_hours"`
	Notes     string  `json:"notes,omitempty"`
}

// RecordResult сохраняет отчет об итоге сделки.
// POST /api/v1/positions/{id}/result
func (h *PositionHandler) RecordResult(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	position, err := h.positions.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "position not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "position query failed")
		return
	}

	var req resultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "result body is required")
		return
	}

	result := &models.TradeResult{
		SignalID:  position.SignalID,
		UserID:    req.UserID,
		PnlPct:    req.PnlPct,
		HoldHours: req.HoldHours,
		Notes:     req.Notes,
	}
	if result.UserID == 0 {
		result.UserID = position.UserID
	}

	if err := h.positions.RecordResult(result); err != nil {
		respondError(w, http.StatusInternalServerError, "result write failed")
		return
	}
	respondJSON(w, http.StatusCreated, result)
}
