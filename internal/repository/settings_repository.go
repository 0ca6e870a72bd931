package repository

import (
	"database/sql"
	"errors"
	"time"

	"spreadwatch/internal/models"
)

// settings_repository.go - durable строка настроек (app_settings, id=1)

// SettingsRepository - работа с таблицей app_settings
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository создает новый экземпляр репозитория
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Load возвращает durable настройки; при отсутствии строки - ErrNotFound
func (r *SettingsRepository) Load() (*models.Settings, error) {
	query := `
		SELECT min_spread_pct, max_slippage_pct, alert_cooldown_seconds, max_price_age_ms, suggested_position_usd, max_position_size_usd, min_exit_liquidity_usd, min_dex_liquidity_usd, high_spread_threshold, medium_spread_threshold, enable_auto_signals, enable_manual_signals, enable_lagging_signals, price_update_interval_sec, ticker_discovery_interval_hours, updated_at
		FROM app_settings
		WHERE id = 1`

	s := &models.Settings{}
	err := r.db.QueryRow(query).Scan(
		&s.MinSpreadPct,
		&s.MaxSlippagePct,
		&s.AlertCooldownSeconds,
		&s.MaxPriceAgeMs,
		&s.SuggestedPositionUSD,
		&s.MaxPositionSizeUSD,
		&s.MinExitLiquidityUSD,
		&s.MinDexLiquidityUSD,
		&s.HighSpreadThreshold,
		&s.MediumSpreadThreshold,
		&s.EnableAutoSignals,
		&s.EnableManualSignals,
		&s.EnableLaggingSignals,
		&s.PriceUpdateIntervalSec,
		&s.TickerDiscoveryIntervalHours,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// Save сохраняет durable настройки (upsert строки id=1)
func (r *SettingsRepository) Save(s *models.Settings) error {
	query := `
		INSERT INTO app_settings (id, min_spread_pct, max_slippage_pct, alert_cooldown_seconds, max_price_age_ms, suggested_position_usd, max_position_size_usd, min_exit_liquidity_usd, min_dex_liquidity_usd, high_spread_threshold, medium_spread_threshold, enable_auto_signals, enable_manual_signals, enable_lagging_signals, price_update_interval_sec, ticker_discovery_interval_hours, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			min_spread_pct = EXCLUDED.min_spread_pct,
			max_slippage_pct = EXCLUDED.max_slippage_pct,
			alert_cooldown_seconds = EXCLUDED.alert_cooldown_seconds,
			max_price_age_ms = EXCLUDED.max_price_age_ms,
			suggested_position_usd = EXCLUDED.suggested_position_usd,
			max_position_size_usd = EXCLUDED.max_position_size_usd,
			min_exit_liquidity_usd = EXCLUDED.min_exit_liquidity_usd,
			min_dex_liquidity_usd = EXCLUDED.min_dex_liquidity_usd,
			high_spread_threshold = EXCLUDED.high_spread_threshold,
			medium_spread_threshold = EXCLUDED.medium_spread_threshold,
			enable_auto_signals = EXCLUDED.enable_auto_signals,
			enable_manual_signals = EXCLUDED.enable_manual_signals,
			enable_lagging_signals = EXCLUDED.enable_lagging_signals,
			price_update_interval_sec = EXCLUDED.price_update_interval_sec,
			ticker_discovery_interval_hours = EXCLUDED.ticker_discovery_interval_hours,
			updated_at = EXCLUDED.updated_at`

	s.UpdatedAt = time.Now().UTC()

	_, err := r.db.Exec(
		query,
		s.MinSpreadPct,
		s.MaxSlippagePct,
		s.AlertCooldownSeconds,
		s.MaxPriceAgeMs,
		s.SuggestedPositionUSD,
		s.MaxPositionSizeUSD,
		s.MinExitLiquidityUSD,
		s.MinDexLiquidityUSD,
		s.HighSpreadThreshold,
		s.MediumSpreadThreshold,
		s.EnableAutoSignals,
		s.EnableManualSignals,
		s.EnableLaggingSignals,
		s.PriceUpdateIntervalSec,
		s.TickerDiscoveryIntervalHours,
		s.UpdatedAt,
	)
	return err
}
