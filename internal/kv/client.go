package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"spreadwatch/internal/config"
	"spreadwatch/internal/metrics"
	"spreadwatch/pkg/utils"
)

// client.go - клиент быстрого KV хранилища (Redis)
//
// Все горячее состояние конвейера живет здесь: кэш котировок,
// очереди между стадиями, cooldown ключи, черные списки, горячий
// ярус базовых распределений, снимки отслеживаний, дайджест.
//
// Клиент go-redis пул-based и безопасен для конкурентного
// использования; внутрипроцессных блокировок вокруг него нет.

// Client оборачивает redis.Client доменными операциями конвейера
type Client struct {
	rdb *redis.Client
	log *utils.Logger
}

// NewClient создает клиент и проверяет соединение
func NewClient(ctx context.Context, cfg config.RedisConfig, log *utils.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Client{
		rdb: rdb,
		log: log.WithComponent("kv"),
	}, nil
}

// NewClientWithRedis оборачивает готовый redis.Client (для тестов с redismock)
func NewClientWithRedis(rdb *redis.Client, log *utils.Logger) *Client {
	return &Client{rdb: rdb, log: log.WithComponent("kv")}
}

// Ping проверяет доступность KV
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close закрывает соединения
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Redis возвращает сырой клиент (для интеграционных сценариев)
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// timeOp записывает латентность операции KV
func timeOp(op string, started time.Time) {
	metrics.KVLatency.WithLabelValues(op).Observe(float64(time.Since(started).Microseconds()) / 1000)
}
