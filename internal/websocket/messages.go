package websocket

import (
	"time"

	"spreadwatch/internal/models"
)

// messages.go - типизированные события live ленты
//
// Каждое событие несет type и timestamp; payload - доменная модель
// как есть. Типизированные структуры вместо map[string]interface{}:
// сериализация без рефлексии по ключам.

// Типы событий ленты
const (
	EventPriceTick   = "price_tick"
	EventSpreads     = "spreads"
	EventSignal      = "signal"
	EventTracking    = "tracking_update"
	EventConvergence = "convergence"
)

// PriceTickMessage - итог тика коллектора
type PriceTickMessage struct {
	Type      string    `json:"type"`
	Quotes    int       `json:"quotes"`
	Spreads   int       `json:"spreads"`
	Timestamp time.Time `json:"timestamp"`
}

// SpreadsMessage - кандидаты тика, прошедшие порог спреда
type SpreadsMessage struct {
	Type      string          `json:"type"`
	Spreads   []models.Spread `json:"spreads"`
	Timestamp time.Time       `json:"timestamp"`
}

// SignalMessage - эмитированный сигнал
type SignalMessage struct {
	Type      string         `json:"type"`
	Signal    *models.Signal `json:"signal"`
	Timestamp time.Time      `json:"timestamp"`
}

// TrackingMessage - прогресс отслеживания схождения
type TrackingMessage struct {
	Type      string           `json:"type"`
	Tracking  *models.Tracking `json:"tracking"`
	Timestamp time.Time        `json:"timestamp"`
}

// ConvergenceMessage - итог пост-анализа сошедшегося сигнала
type ConvergenceMessage struct {
	Type      string                      `json:"type"`
	Analysis  *models.ConvergenceAnalysis `json:"analysis"`
	Timestamp time.Time                   `json:"timestamp"`
}

// NewPriceTickMessage создает событие тика
func NewPriceTickMessage(quotes, spreads int, at time.Time) *PriceTickMessage {
	return &PriceTickMessage{Type: EventPriceTick, Quotes: quotes, Spreads: spreads, Timestamp: at}
}

// NewSpreadsMessage создает событие батча кандидатов
func NewSpreadsMessage(spreads []models.Spread) *SpreadsMessage {
	return &SpreadsMessage{Type: EventSpreads, Spreads: spreads, Timestamp: time.Now().UTC()}
}

// NewSignalMessage создает событие сигнала
func NewSignalMessage(sig *models.Signal) *SignalMessage {
	return &SignalMessage{Type: EventSignal, Signal: sig, Timestamp: time.Now().UTC()}
}

// NewTrackingMessage создает событие прогресса отслеживания
func NewTrackingMessage(t *models.Tracking) *TrackingMessage {
	return &TrackingMessage{Type: EventTracking, Tracking: t, Timestamp: time.Now().UTC()}
}

// NewConvergenceMessage создает событие пост-анализа
func NewConvergenceMessage(a *models.ConvergenceAnalysis) *ConvergenceMessage {
	return &ConvergenceMessage{Type: EventConvergence, Analysis: a, Timestamp: time.Now().UTC()}
}
