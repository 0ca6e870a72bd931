package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config содержит всю процессную конфигурацию обсерватории.
//
// Здесь только то, что задается окружением при старте: адреса
// зависимостей, порты, токены. Тюнинг конвейера (пороги спредов,
// cooldown, лимиты позиций) живет в durable настройках с KV
// переопределениями и читается через SettingsService.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Telegram TelegramConfig
	Pipeline PipelineConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера ops API
type ServerConfig struct {
	Port      int
	Host      string
	AuthToken string // токен для мутирующих admin маршрутов; пусто = auth выключен
}

// DatabaseConfig - настройки подключения к Postgres
type DatabaseConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string

	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig - настройки подключения к Redis
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// TelegramConfig - настройки доставки алертов
type TelegramConfig struct {
	BotToken string // пусто = no-op notifier
	ChatID   int64
}

// PipelineConfig - интервалы и таймауты конвейера.
//
// Интервалы здесь - каркас планирования; пороги принятия решений
// приходят из Settings и могут меняться без рестарта.
type PipelineConfig struct {
	PriceInterval     time.Duration // тик коллектора цен
	TrackerInterval   time.Duration // базовый тик координатора отслеживаний
	PositionInterval  time.Duration // тик трекера позиций
	DigestInterval    time.Duration // окно дайджеста
	DiscoveryInterval time.Duration // переоткрытие вселенной тикеров

	CexTimeout     time.Duration // потолок одного вызова CEX адаптера
	PerpDexTimeout time.Duration // потолок вызова perp DEX
	DexBulkTimeout time.Duration // потолок bulk опроса DEX агрегатора

	MaxSignalAge     time.Duration // отсечка кандидата в очереди стаканов
	MaxTrackingHours int           // потолок жизни отслеживания
	OrderbookWorkers int           // размер пула анализа стаканов
	TrackerWorkers   int           // параллелизм проверок отслеживаний
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level       string
	Format      string
	Development bool
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:      getEnvAsInt("SERVER_PORT", 8080),
			Host:      getEnv("SERVER_HOST", "0.0.0.0"),
			AuthToken: getEnv("API_AUTH_TOKEN", ""),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			Name:         getEnv("DB_NAME", "spreadwatch"),
			User:         getEnv("DB_USER", "spreadwatch"),
			Password:     getEnv("DB_PASSWORD", ""),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 20),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnvAsInt64("TELEGRAM_CHAT_ID", 0),
		},
		Pipeline: PipelineConfig{
			PriceInterval:     getEnvAsDuration("PRICE_INTERVAL", 1*time.Second),
			TrackerInterval:   getEnvAsDuration("TRACKER_INTERVAL", 5*time.Second),
			PositionInterval:  getEnvAsDuration("POSITION_INTERVAL", 30*time.Second),
			DigestInterval:    getEnvAsDuration("DIGEST_INTERVAL", 1*time.Hour),
			DiscoveryInterval: getEnvAsDuration("DISCOVERY_INTERVAL", 24*time.Hour),

			CexTimeout:     getEnvAsDuration("CEX_TIMEOUT", 15*time.Second),
			PerpDexTimeout: getEnvAsDuration("PERP_DEX_TIMEOUT", 60*time.Second),
			DexBulkTimeout: getEnvAsDuration("DEX_BULK_TIMEOUT", 90*time.Second),

			MaxSignalAge:     getEnvAsDuration("MAX_SIGNAL_AGE", 120*time.Second),
			MaxTrackingHours: getEnvAsInt("MAX_TRACKING_HOURS", 168),
			OrderbookWorkers: getEnvAsInt("ORDERBOOK_WORKERS", 4),
			TrackerWorkers:   getEnvAsInt("TRACKER_WORKERS", 8),
		},
		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Format:      getEnv("LOG_FORMAT", "json"),
			Development: getEnvAsBool("LOG_DEV", false),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate проверяет диапазоны критичных параметров.
// Некорректная конфигурация фатальна: процесс не стартует.
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}

	if c.Pipeline.PriceInterval <= 0 {
		return fmt.Errorf("PRICE_INTERVAL must be positive, got %v", c.Pipeline.PriceInterval)
	}

	if c.Pipeline.TrackerInterval <= 0 {
		return fmt.Errorf("TRACKER_INTERVAL must be positive, got %v", c.Pipeline.TrackerInterval)
	}

	if c.Pipeline.MaxTrackingHours < 1 {
		return fmt.Errorf("MAX_TRACKING_HOURS must be at least 1, got %d", c.Pipeline.MaxTrackingHours)
	}

	if c.Pipeline.OrderbookWorkers < 1 {
		return fmt.Errorf("ORDERBOOK_WORKERS must be at least 1, got %d", c.Pipeline.OrderbookWorkers)
	}

	if c.Pipeline.TrackerWorkers < 1 {
		return fmt.Errorf("TRACKER_WORKERS must be at least 1, got %d", c.Pipeline.TrackerWorkers)
	}

	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
