package handlers

import (
	"net/http"

	"spreadwatch/internal/models"
)

// tracking_handler.go - чтение отслеживаний схождения

// TrackingLister отдает списки отслеживаний
type TrackingLister interface {
	GetActive() ([]*models.Tracking, error)
	ListClosed(limit int) ([]*models.Tracking, error)
}

// TrackingHandler обрабатывает запросы к отслеживаниям
type TrackingHandler struct {
	trackings TrackingLister
}

// NewTrackingHandler создает handler отслеживаний
func NewTrackingHandler(trackings TrackingLister) *TrackingHandler {
	return &TrackingHandler{trackings: trackings}
}

// List возвращает отслеживания.
// GET /api/v1/trackings?state=active|closed (по умолчанию active)
func (h *TrackingHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		trackings []*models.Tracking
		err       error
	)

	switch r.URL.Query().Get("state") {
	case "closed":
		trackings, err = h.trackings.ListClosed(queryInt(r, "limit", 100))
	case "", "active":
		trackings, err = h.trackings.GetActive()
	default:
		respondError(w, http.StatusBadRequest, "state must be active or closed")
		return
	}

	if err != nil {
		respondError(w, http.StatusInternalServerError, "trackings query failed")
		return
	}
	if trackings == nil {
		trackings = []*models.Tracking{}
	}
	respondJSON(w, http.StatusOK, trackings)
}
