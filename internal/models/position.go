package models

import "time"

// position.go - пользовательские позиции по сигналам

// PositionStatus - статус пользовательской позиции
type PositionStatus string

const (
	PositionStatusTracking PositionStatus = "tracking"
	PositionStatusNotified PositionStatus = "notified"
	PositionStatusClosed   PositionStatus = "closed"
)

// Position - позиция, о входе в которую сообщил пользователь.
//
// Каждые 30 секунд трекер сверяет текущий спред пары с целевым;
// при достижении цели пользователь уведомляется один раз.
// Целевой спред по умолчанию - половина спреда входа.
type Position struct {
	ID               string         `json:"id"`
	SignalID         string         `json:"signal_id"`
	UserID           int64          `json:"user_id"`
	Symbol           string         `json:"symbol"`
	PairID           string         `json:"pair_id"`
	EntrySpreadPct   float64        `json:"entry_spread_pct"`
	TargetSpreadPct  float64        `json:"target_spread_pct"`
	CurrentSpreadPct float64        `json:"current_spread_pct"`
	Status           PositionStatus `json:"status"`
	EnteredAt        time.Time      `json:"entered_at"`
	NotifiedAt       *time.Time     `json:"notified_at,omitempty"`
	ClosedAt         *time.Time     `json:"closed_at,omitempty"`
	TelegramMsgID    int64          `json:"telegram_msg_id,omitempty"`
}

// DefaultTarget возвращает целевой спред по умолчанию для спреда входа
func DefaultTarget(entrySpreadPct float64) float64 {
	return entrySpreadPct / 2
}

// TradeResult - пользовательский отчет об итоге позиции.
//
// Хранится не более одного на (signal_id, user_id).
type TradeResult struct {
	SignalID   string    `json:"signal_id"`
	UserID     int64     `json:"user_id"`
	PnlPct     float64   `json:"pnl_pct"`
	HoldHours  float64   `json:"hold_hours"`
	Notes      string    `json:"notes,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}
