package models

import "time"

// settings.go - настройки конвейера, изменяемые на лету
//
// Значения живут в durable строке app_settings; поверх нее KV хэш
// settings:config несет точечные переопределения для горячей
// перезагрузки. Читатели ходят через SettingsService.

// Settings - распознаваемые опции конвейера
type Settings struct {
	MinSpreadPct                 float64   `json:"min_spread_pct"`
	MaxSlippagePct               float64   `json:"max_slippage_pct"`
	AlertCooldownSeconds         int       `json:"alert_cooldown_seconds"`
	MaxPriceAgeMs                int64     `json:"max_price_age_ms"`
	SuggestedPositionUSD         float64   `json:"suggested_position_usd"`
	MaxPositionSizeUSD           float64   `json:"max_position_size_usd"`
	MinExitLiquidityUSD          float64   `json:"min_exit_liquidity_usd"`
	MinDexLiquidityUSD           float64   `json:"min_dex_liquidity_usd"`
	HighSpreadThreshold          float64   `json:"high_spread_threshold"`
	MediumSpreadThreshold        float64   `json:"medium_spread_threshold"`
	EnableAutoSignals            bool      `json:"enable_auto_signals"`
	EnableManualSignals          bool      `json:"enable_manual_signals"`
	EnableLaggingSignals         bool      `json:"enable_lagging_signals"`
	PriceUpdateIntervalSec       int       `json:"price_update_interval_sec"`
	TickerDiscoveryIntervalHours int       `json:"ticker_discovery_interval_hours"`
	UpdatedAt                    time.Time `json:"updated_at"`
}

// DefaultSettings возвращает значения по умолчанию
func DefaultSettings() Settings {
	return Settings{
		MinSpreadPct:                 2.0,
		MaxSlippagePct:               2.0,
		AlertCooldownSeconds:         300,
		MaxPriceAgeMs:                60_000,
		SuggestedPositionUSD:         10_000,
		MaxPositionSizeUSD:           50_000,
		MinExitLiquidityUSD:          5_000,
		MinDexLiquidityUSD:           1_000,
		HighSpreadThreshold:          10,
		MediumSpreadThreshold:        5,
		EnableAutoSignals:            true,
		EnableManualSignals:          true,
		EnableLaggingSignals:         true,
		PriceUpdateIntervalSec:       1,
		TickerDiscoveryIntervalHours: 24,
	}
}

// SignalTypeEnabled проверяет, включен ли тип сигналов глобально.
// Fallback сигналы наследуют гейт auto - это тот же спред с худшей оценкой.
func (s Settings) SignalTypeEnabled(t SignalType) bool {
	switch t {
	case SignalTypeAuto, SignalTypeFallback:
		return s.EnableAutoSignals
	case SignalTypeManual:
		return s.EnableManualSignals
	case SignalTypeLagging:
		return s.EnableLaggingSignals
	default:
		return false
	}
}

// CooldownFor возвращает длительность cooldown для типа сигнала.
// Lagging сигналы шумнее - для них окно вдвое длиннее.
func (s Settings) CooldownFor(t SignalType) time.Duration {
	base := time.Duration(s.AlertCooldownSeconds) * time.Second
	if t == SignalTypeLagging {
		return base * 2
	}
	return base
}

// ============================================================
// Дайджест
// ============================================================

// DigestObservation - одно наблюдение спреда для дайджеста
type DigestObservation struct {
	Symbol     string    `json:"symbol"`
	PairID     string    `json:"pair_id"`
	SpreadPct  float64   `json:"spread_pct"`
	ObservedAt time.Time `json:"observed_at"`
}
