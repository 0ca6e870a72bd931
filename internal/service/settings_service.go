package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"spreadwatch/internal/kv"
	"spreadwatch/internal/models"
	"spreadwatch/internal/repository"
	"spreadwatch/pkg/utils"
)

// settings_service.go - настройки конвейера с горячей перезагрузкой
//
// Три слоя, от нижнего к верхнему: дефолты -> durable строка
// app_settings -> точечные KV переопределения (settings:config).
// Слоеный результат кэшируется на 5 секунд: каждый тик коллектора
// зовет Current(), гонять Postgres и Redis на каждое чтение незачем.

// Свежесть кэша слоеных настроек
const settingsCacheTTL = 5 * time.Second

// Ошибки валидации обновлений
var (
	ErrUnknownField = errors.New("unknown settings field")
	ErrInvalidValue = errors.New("invalid settings value")
)

// SettingsService отдает действующие настройки конвейера
type SettingsService struct {
	repo  *repository.SettingsRepository
	store *kv.Client
	log   *utils.Logger

	mu       sync.RWMutex
	cached   models.Settings
	cachedAt time.Time
}

// NewSettingsService создает сервис настроек
func NewSettingsService(repo *repository.SettingsRepository, store *kv.Client, log *utils.Logger) *SettingsService {
	return &SettingsService{
		repo:  repo,
		store: store,
		log:   log.WithComponent("settings"),
	}
}

// Current возвращает действующие настройки (слоеные, с кэшем)
func (s *SettingsService) Current() models.Settings {
	s.mu.RLock()
	if time.Since(s.cachedAt) < settingsCacheTTL {
		defer s.mu.RUnlock()
		return s.cached
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Since(s.cachedAt) < settingsCacheTTL {
		return s.cached
	}

	s.cached = s.load()
	s.cachedAt = time.Now()
	return s.cached
}

// Invalidate сбрасывает кэш; следующий Current перечитает слои
func (s *SettingsService) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cachedAt = time.Time{}
}

// load собирает слои: дефолты, durable строка, KV переопределения
func (s *SettingsService) load() models.Settings {
	settings := models.DefaultSettings()

	if durable, err := s.repo.Load(); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Error("durable settings not loaded, using defaults", utils.Err(err))
		}
	} else {
		settings = *durable
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	overrides, err := s.store.ConfigOverrides(ctx)
	if err != nil {
		s.log.Error("config overrides not loaded", utils.Err(err))
		return settings
	}
	for field, value := range overrides {
		if err := applyField(&settings, field, value); err != nil {
			s.log.Warn("config override skipped",
				utils.String("field", field), utils.String("value", value), utils.Err(err))
		}
	}
	return settings
}

// Update меняет durable настройки и сбрасывает кэш.
// KV переопределения при этом остаются сверху.
func (s *SettingsService) Update(ctx context.Context, fields map[string]string) (models.Settings, error) {
	settings := models.DefaultSettings()
	if durable, err := s.repo.Load(); err == nil {
		settings = *durable
	} else if !errors.Is(err, repository.ErrNotFound) {
		return settings, err
	}

	for field, value := range fields {
		if err := applyField(&settings, field, value); err != nil {
			return settings, fmt.Errorf("%s: %w", field, err)
		}
	}

	if err := s.repo.Save(&settings); err != nil {
		return settings, err
	}

	s.Invalidate()
	s.log.Info("settings updated", utils.Count(len(fields)))
	return s.Current(), nil
}

// SetOverride ставит точечное KV переопределение поверх durable слоя
func (s *SettingsService) SetOverride(ctx context.Context, field, value string) error {
	// Проверяем применимость до записи
	trial := models.DefaultSettings()
	if err := applyField(&trial, field, value); err != nil {
		return err
	}

	if err := s.store.SetConfigOverride(ctx, field, value); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// DeleteOverride снимает точечное KV переопределение
func (s *SettingsService) DeleteOverride(ctx context.Context, field string) error {
	if err := s.store.DeleteConfigOverride(ctx, field); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// Overrides возвращает действующие KV переопределения
func (s *SettingsService) Overrides(ctx context.Context) (map[string]string, error) {
	return s.store.ConfigOverrides(ctx)
}

// applyField применяет строковое значение к полю настроек
func applyField(s *models.Settings, field, value string) error {
	switch field {
	case "min_spread_pct":
		return setFloat(&s.MinSpreadPct, value, 0, 100)
	case "max_slippage_pct":
		return setFloat(&s.MaxSlippagePct, value, 0, 50)
	case "alert_cooldown_seconds":
		return setInt(&s.AlertCooldownSeconds, value, 1, 86400)
	case "max_price_age_ms":
		return setInt64(&s.MaxPriceAgeMs, value, 100, 3_600_000)
	case "suggested_position_usd":
		return setFloat(&s.SuggestedPositionUSD, value, 0, 10_000_000)
	case "max_position_size_usd":
		return setFloat(&s.MaxPositionSizeUSD, value, 0, 10_000_000)
	case "min_exit_liquidity_usd":
		return setFloat(&s.MinExitLiquidityUSD, value, 0, 10_000_000)
	case "min_dex_liquidity_usd":
		return setFloat(&s.MinDexLiquidityUSD, value, 0, 10_000_000)
	case "high_spread_threshold":
		return setFloat(&s.HighSpreadThreshold, value, 0, 1000)
	case "medium_spread_threshold":
		return setFloat(&s.MediumSpreadThreshold, value, 0, 1000)
	case "enable_auto_signals":
		return setBool(&s.EnableAutoSignals, value)
	case "enable_manual_signals":
		return setBool(&s.EnableManualSignals, value)
	case "enable_lagging_signals":
		return setBool(&s.EnableLaggingSignals, value)
	case "price_update_interval_sec":
		return setInt(&s.PriceUpdateIntervalSec, value, 1, 3600)
	case "ticker_discovery_interval_hours":
		return setInt(&s.TickerDiscoveryIntervalHours, value, 1, 720)
	default:
		return ErrUnknownField
	}
}

func setFloat(dst *float64, value string, min, max float64) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || v < min || v > max {
		return ErrInvalidValue
	}
	*dst = v
	return nil
}

func setInt(dst *int, value string, min, max int) error {
	v, err := strconv.Atoi(value)
	if err != nil || v < min || v > max {
		return ErrInvalidValue
	}
	*dst = v
	return nil
}

func setInt64(dst *int64, value string, min, max int64) error {
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil || v < min || v > max {
		return ErrInvalidValue
	}
	*dst = v
	return nil
}

func setBool(dst *bool, value string) error {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return ErrInvalidValue
	}
	*dst = v
	return nil
}
