package models

import "time"

// tracking.go - отслеживание схождения спреда после эмиссии сигнала

// CloseReason - причина закрытия отслеживания
type CloseReason string

const (
	CloseReasonConverged CloseReason = "converged"
	CloseReasonDiverged  CloseReason = "diverged"
	CloseReasonExpired   CloseReason = "expired"
)

// Tracking - состояние наблюдения за одним сигналом.
//
// Инварианты:
//   - MinSpreadPct <= CurrentSpreadPct <= MaxSpreadPct
//   - ConvergedAt установлен только при Converged
//   - при установленном ClosedAt ровно одна причина закрытия
//   - ChecksCount монотонно растет
type Tracking struct {
	SignalID         string      `json:"signal_id"`
	Symbol           string      `json:"symbol"`
	PairID           string      `json:"pair_id"`
	InitialSpreadPct float64     `json:"initial_spread_pct"`
	CurrentSpreadPct float64     `json:"current_spread_pct"`
	MinSpreadPct     float64     `json:"min_spread_pct"`
	MaxSpreadPct     float64     `json:"max_spread_pct"`
	StartedAt        time.Time   `json:"started_at"`
	LastCheckedAt    *time.Time  `json:"last_checked_at,omitempty"`
	ChecksCount      int         `json:"checks_count"`
	Converged        bool        `json:"converged"`
	ConvergedAt      *time.Time  `json:"converged_at,omitempty"`
	Diverged         bool        `json:"diverged"`
	DivergedAt       *time.Time  `json:"diverged_at,omitempty"`
	ClosedAt         *time.Time  `json:"closed_at,omitempty"`
	CloseReason      CloseReason `json:"close_reason,omitempty"`
}

// IsActive сообщает, продолжается ли отслеживание
func (t *Tracking) IsActive() bool {
	return t.ClosedAt == nil
}

// Age возвращает возраст отслеживания на момент now
func (t *Tracking) Age(now time.Time) time.Duration {
	return now.Sub(t.StartedAt)
}

// IsDue проверяет, пора ли выполнять очередную проверку при данном интервале
func (t *Tracking) IsDue(now time.Time, interval time.Duration) bool {
	if t.LastCheckedAt == nil {
		return true
	}
	return now.Sub(*t.LastCheckedAt) >= interval
}

// DurationMinutes возвращает длительность отслеживания в минутах
// (до закрытия либо до now, если еще активно)
func (t *Tracking) DurationMinutes(now time.Time) float64 {
	end := now
	if t.ClosedAt != nil {
		end = *t.ClosedAt
	}
	return end.Sub(t.StartedAt).Minutes()
}

// ============================================================
// Снимки состояния пары
// ============================================================

// Snapshot - моментальный снимок цен и глубины обеих ног сигнала.
//
// Seq строго возрастает внутри сигнала; на сигнал хранится не более
// MaxSnapshotsPerSignal снимков.
type Snapshot struct {
	SignalID     string    `json:"signal_id"`
	Seq          int64     `json:"seq"`
	SnapshotAt   time.Time `json:"snapshot_at"`
	BuyBid       float64   `json:"buy_bid"`
	BuyAsk       float64   `json:"buy_ask"`
	SellBid      float64   `json:"sell_bid"`
	SellAsk      float64   `json:"sell_ask"`
	SpreadPct    float64   `json:"spread_pct"`
	BuyDepthUSD  float64   `json:"buy_depth_usd"`
	SellDepthUSD float64   `json:"sell_depth_usd"`
}

// MaxSnapshotsPerSignal - потолок снимков на один сигнал
const MaxSnapshotsPerSignal = 500

// ============================================================
// Пост-анализ схождения
// ============================================================

// ConvergenceReason - классификация причины схождения спреда
type ConvergenceReason string

const (
	// ReasonArbActivity - быстрое схождение с просадкой глубины: работали арбитражеры
	ReasonArbActivity ConvergenceReason = "arb_activity"
	// ReasonBuyUp - выросла цена на стороне покупки
	ReasonBuyUp ConvergenceReason = "buy_up"
	// ReasonSellDown - упала цена на стороне продажи
	ReasonSellDown ConvergenceReason = "sell_down"
	// ReasonBoth - двигались обе стороны
	ReasonBoth ConvergenceReason = "both"
	// ReasonUnknown - значимого движения цен не зафиксировано
	ReasonUnknown ConvergenceReason = "unknown"
)

// ConvergenceAnalysis - итог пост-анализа сошедшегося сигнала.
//
// Строится по первому и последнему снимкам отслеживания.
type ConvergenceAnalysis struct {
	SignalID           string            `json:"signal_id"`
	InitialBuyPrice    float64           `json:"initial_buy_price"`
	FinalBuyPrice      float64           `json:"final_buy_price"`
	InitialSellPrice   float64           `json:"initial_sell_price"`
	FinalSellPrice     float64           `json:"final_sell_price"`
	BuyChangePct       float64           `json:"buy_change_pct"`
	SellChangePct      float64           `json:"sell_change_pct"`
	BuyDepthChangePct  float64           `json:"buy_depth_change_pct"`
	SellDepthChangePct float64           `json:"sell_depth_change_pct"`
	Reason             ConvergenceReason `json:"convergence_reason"`
	DurationMinutes    float64           `json:"duration_minutes"`
	SnapshotsCount     int               `json:"snapshots_count"`
	AnalyzedAt         time.Time         `json:"analyzed_at"`
}
