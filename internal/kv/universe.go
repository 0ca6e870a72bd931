package kv

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"spreadwatch/internal/models"
)

// universe.go - хранение вселенной тикеров
//
// Замена вселенной атомарна: новое значение пишется в staging ключ
// и подменяется через RENAME. Читатели никогда не видят частично
// построенную вселенную.

// SaveUniverse атомарно заменяет вселенную тикеров
func (c *Client) SaveUniverse(ctx context.Context, tickers []models.Ticker) error {
	defer timeOp("save_universe", time.Now())

	data, err := encodeJSON(tickers)
	if err != nil {
		return err
	}

	if err := c.rdb.Set(ctx, keyUniverseStaging, data, 0).Err(); err != nil {
		return err
	}
	return c.rdb.Rename(ctx, keyUniverseStaging, keyUniverse).Err()
}

// LoadUniverse возвращает текущую вселенную тикеров
func (c *Client) LoadUniverse(ctx context.Context) ([]models.Ticker, error) {
	defer timeOp("load_universe", time.Now())

	data, err := c.rdb.Get(ctx, keyUniverse).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var tickers []models.Ticker
	if err := decodeJSON(data, &tickers); err != nil {
		return nil, err
	}
	return tickers, nil
}
