package models

import "time"

// baseline.go - базовые распределения спредов и статистика пар

// BaselineBucket - агрегат спредов пары за один час.
//
// Естественный ключ (PairID, Symbol, HourBucket); слияние двух батчей
// одного часа сохраняет бегущие итоги: count складывается, avg -
// взвешенное среднее, min/max - поэлементные.
type BaselineBucket struct {
	PairID       string    `json:"pair_id"`
	Symbol       string    `json:"symbol"`
	HourBucket   time.Time `json:"hour_bucket"`
	SamplesCount int64     `json:"samples_count"`
	AvgSpreadPct float64   `json:"avg_spread_pct"`
	MinSpreadPct float64   `json:"min_spread_pct"`
	MaxSpreadPct float64   `json:"max_spread_pct"`
	StdDevPct    float64   `json:"stddev_spread_pct"`
	P50Pct       float64   `json:"p50_spread_pct"`
	P95Pct       float64   `json:"p95_spread_pct"`
}

// Merge сливает в бакет другой бакет того же часа.
//
// avg' = (avg*count + o.avg*o.count) / (count + o.count)
// stddev и перцентили пересчитать из агрегатов нельзя - берется
// значение более населенного бакета.
func (b *BaselineBucket) Merge(o BaselineBucket) {
	if o.SamplesCount == 0 {
		return
	}
	if b.SamplesCount == 0 {
		*b = o
		return
	}

	total := b.SamplesCount + o.SamplesCount
	b.AvgSpreadPct = (b.AvgSpreadPct*float64(b.SamplesCount) + o.AvgSpreadPct*float64(o.SamplesCount)) / float64(total)
	if o.MinSpreadPct < b.MinSpreadPct {
		b.MinSpreadPct = o.MinSpreadPct
	}
	if o.MaxSpreadPct > b.MaxSpreadPct {
		b.MaxSpreadPct = o.MaxSpreadPct
	}
	if o.SamplesCount > b.SamplesCount {
		b.StdDevPct = o.StdDevPct
		b.P50Pct = o.P50Pct
		b.P95Pct = o.P95Pct
	}
	b.SamplesCount = total
}

// ============================================================
// Статистика пар
// ============================================================

// PairStatistics - накопленные исходы сигналов пары.
//
// Пересчитывается целиком при каждом закрытии сигнала; пересчет
// идемпотентен - при неизменных входах дает тот же результат.
type PairStatistics struct {
	PairID                    string     `json:"pair_id"`
	Symbol                    string     `json:"symbol"`
	MaxSpreadPct              float64    `json:"max_spread_pct"`
	MinSpreadPct              float64    `json:"min_spread_pct"`
	TotalSignals              int        `json:"total_signals"`
	ConvergedCount            int        `json:"converged_count"`
	DivergedCount             int        `json:"diverged_count"`
	ExpiredCount              int        `json:"expired_count"`
	AvgConvergenceMinutes     float64    `json:"avg_convergence_minutes"`
	MedianConvergenceMinutes  float64    `json:"median_convergence_minutes"`
	FastestConvergenceMinutes float64    `json:"fastest_convergence_minutes"`
	SlowestConvergenceMinutes float64    `json:"slowest_convergence_minutes"`
	SuccessRatePct            float64    `json:"success_rate_pct"`
	FirstSignalAt             *time.Time `json:"first_signal_at,omitempty"`
	LastSignalAt              *time.Time `json:"last_signal_at,omitempty"`
	UpdatedAt                 time.Time  `json:"updated_at"`
}

// PairOutcome - один недавний исход пары для обогащения алертов
type PairOutcome struct {
	SignalID          string            `json:"signal_id"`
	InitialSpreadPct  float64           `json:"initial_spread_pct"`
	CloseReason       CloseReason       `json:"close_reason"`
	DurationMinutes   float64           `json:"duration_minutes"`
	ConvergenceReason ConvergenceReason `json:"convergence_reason,omitempty"`
	ClosedAt          time.Time         `json:"closed_at"`
}

// ============================================================
// Журнал спредов
// ============================================================

// SpreadLogEntry - строка журнала рассмотренных спредов.
//
// Пишется и для эмитированных сигналов (PassedValidation=true,
// SignalID заполнен), и для отклоненных (с причиной).
type SpreadLogEntry struct {
	ID               int64     `json:"id,omitempty"`
	Ts               time.Time `json:"ts"`
	Symbol           string    `json:"symbol"`
	Strategy         string    `json:"strategy"`
	LowVenue         string    `json:"low_venue"`
	HighVenue        string    `json:"high_venue"`
	LowPrice         float64   `json:"low_price"`
	HighPrice        float64   `json:"high_price"`
	SpreadPct        float64   `json:"spread_pct"`
	NetSpreadPct     float64   `json:"net_spread_pct"`
	LiquidityUSD     float64   `json:"liquidity_usd"`
	PassedValidation bool      `json:"passed_validation"`
	RejectionReason  string    `json:"rejection_reason,omitempty"`
	SignalID         string    `json:"signal_id,omitempty"`
}

// ZScoreEntry - строка журнала z-score наблюдений
type ZScoreEntry struct {
	Ts       time.Time `json:"ts"`
	PairID   string    `json:"pair"`
	Ratio    float64   `json:"ratio"`
	Mean     float64   `json:"mean"`
	Std      float64   `json:"std"`
	ZScore   float64   `json:"zscore"`
	SignalID string    `json:"signal_id,omitempty"`
}
