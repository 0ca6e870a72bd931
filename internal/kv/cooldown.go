package kv

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// cooldown.go - cooldown ключи, счетчики эмиссии и rate limit алертов
//
// Cooldown реализован через SET NX + TTL: захват ключа атомарен, так
// что две параллельные квалификации одного символа не дадут двух
// алертов. Ключ ставится только после успешной доставки.

// SetCooldown атомарно захватывает cooldown на (symbol, pair).
// Возвращает false если cooldown уже активен.
func (c *Client) SetCooldown(ctx context.Context, symbol, pairID string, ttl time.Duration) (bool, error) {
	defer timeOp("set_cooldown", time.Now())
	return c.rdb.SetNX(ctx, keyCooldown(symbol, pairID), time.Now().Unix(), ttl).Result()
}

// InCooldown проверяет активность cooldown для (symbol, pair)
func (c *Client) InCooldown(ctx context.Context, symbol, pairID string) (bool, error) {
	defer timeOp("check_cooldown", time.Now())
	n, err := c.rdb.Exists(ctx, keyCooldown(symbol, pairID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearCooldown снимает cooldown досрочно
func (c *Client) ClearCooldown(ctx context.Context, symbol, pairID string) error {
	return c.rdb.Del(ctx, keyCooldown(symbol, pairID)).Err()
}

// IncrAlertStat инкрементирует счетчик статистики эмиссии
func (c *Client) IncrAlertStat(ctx context.Context, field string) error {
	return c.rdb.HIncrBy(ctx, keyAlertStats, field, 1).Err()
}

// AlertStats возвращает счетчики эмиссии
func (c *Client) AlertStats(ctx context.Context) (map[string]int64, error) {
	raw, err := c.rdb.HGetAll(ctx, keyAlertStats).Result()
	if err != nil {
		return nil, err
	}
	stats := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, _ := strconv.ParseInt(v, 10, 64)
		stats[k] = n
	}
	return stats, nil
}

// RecordProcessedAlert добавляет сигнал в журнал обработанных.
// Журнал ограничен последними 1000 записями.
func (c *Client) RecordProcessedAlert(ctx context.Context, signalID string, at time.Time) error {
	defer timeOp("record_processed", time.Now())

	pipe := c.rdb.TxPipeline()
	pipe.ZAdd(ctx, keyAlertsProcessed, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: signalID,
	})
	pipe.ZRemRangeByRank(ctx, keyAlertsProcessed, 0, int64(-(processedLimit + 1)))
	_, err := pipe.Exec(ctx)
	return err
}

// MarkDivergenceAlerted захватывает rate limit алерта о расхождении.
// Возвращает false если алерт по сигналу уже был в последний час.
func (c *Client) MarkDivergenceAlerted(ctx context.Context, signalID string) (bool, error) {
	return c.rdb.SetNX(ctx, keyDivergenceAlerted(signalID), 1, time.Hour).Result()
}
