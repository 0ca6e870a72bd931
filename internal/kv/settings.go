package kv

import (
	"context"
	"strconv"
	"time"
)

// settings.go - горячие переопределения настроек
//
// Хэш settings:config несет точечные переопределения поверх durable
// строки; поле settings:updated_at позволяет кэшу настроек дешево
// проверять свежесть.

// SetConfigOverride записывает переопределение одного поля настроек
func (c *Client) SetConfigOverride(ctx context.Context, field, value string) error {
	defer timeOp("set_override", time.Now())

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, keySettingsConfig, field, value)
	pipe.Set(ctx, keySettingsUpdatedAt, strconv.FormatInt(time.Now().UnixMilli(), 10), 0)
	_, err := pipe.Exec(ctx)
	return err
}

// DeleteConfigOverride убирает переопределение, возвращая поле к durable значению
func (c *Client) DeleteConfigOverride(ctx context.Context, field string) error {
	pipe := c.rdb.TxPipeline()
	pipe.HDel(ctx, keySettingsConfig, field)
	pipe.Set(ctx, keySettingsUpdatedAt, strconv.FormatInt(time.Now().UnixMilli(), 10), 0)
	_, err := pipe.Exec(ctx)
	return err
}

// ConfigOverrides возвращает все активные переопределения
func (c *Client) ConfigOverrides(ctx context.Context) (map[string]string, error) {
	defer timeOp("get_overrides", time.Now())
	return c.rdb.HGetAll(ctx, keySettingsConfig).Result()
}
