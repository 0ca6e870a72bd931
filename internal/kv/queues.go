package kv

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"spreadwatch/internal/metrics"
	"spreadwatch/internal/models"
	"spreadwatch/pkg/utils"
)

// queues.go - ограниченные очереди между стадиями конвейера
//
// Очереди - списки с LPUSH на запись и BRPOP на чтение (FIFO).
// Переполнение решается обрезкой с хвоста: при бэклоге теряются
// самые старые кандидаты, свежие данные важнее.

// PushOrderbookCandidates ставит спреды в очередь анализа стаканов.
// Возвращает число элементов, вытесненных обрезкой.
func (c *Client) PushOrderbookCandidates(ctx context.Context, spreads []models.Spread) (int64, error) {
	defer timeOp("push_orderbook", time.Now())

	if len(spreads) == 0 {
		return 0, nil
	}

	values := make([]interface{}, 0, len(spreads))
	for i := range spreads {
		data, err := encodeJSON(spreads[i])
		if err != nil {
			return 0, err
		}
		values = append(values, data)
	}

	length, err := c.rdb.LPush(ctx, keyOrderbookQueue, values...).Result()
	if err != nil {
		return 0, err
	}

	return c.trimQueue(ctx, keyOrderbookQueue, length, orderbookQueueLimit)
}

// PopOrderbookCandidate блокирующе снимает спред из очереди анализа
func (c *Client) PopOrderbookCandidate(ctx context.Context, timeout time.Duration) (*models.Spread, error) {
	res, err := c.rdb.BRPop(ctx, timeout, keyOrderbookQueue).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var spread models.Spread
	if err := decodeJSON([]byte(res[1]), &spread); err != nil {
		return nil, err
	}
	return &spread, nil
}

// PushPendingSignal ставит квалифицированный кандидат в очередь эмиссии
func (c *Client) PushPendingSignal(ctx context.Context, signal *models.Signal) (int64, error) {
	defer timeOp("push_signal", time.Now())

	data, err := encodeJSON(signal)
	if err != nil {
		return 0, err
	}

	length, err := c.rdb.LPush(ctx, keySignalsPending, data).Result()
	if err != nil {
		return 0, err
	}

	return c.trimQueue(ctx, keySignalsPending, length, signalsPendingLimit)
}

// PopPendingSignal блокирующе снимает кандидата из очереди эмиссии
func (c *Client) PopPendingSignal(ctx context.Context, timeout time.Duration) (*models.Signal, error) {
	res, err := c.rdb.BRPop(ctx, timeout, keySignalsPending).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var signal models.Signal
	if err := decodeJSON([]byte(res[1]), &signal); err != nil {
		return nil, err
	}
	return &signal, nil
}

// QueueDepths возвращает текущие длины очередей конвейера
func (c *Client) QueueDepths(ctx context.Context) (orderbook, signals int64, err error) {
	pipe := c.rdb.Pipeline()
	obCmd := pipe.LLen(ctx, keyOrderbookQueue)
	sigCmd := pipe.LLen(ctx, keySignalsPending)
	if _, err = pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}
	return obCmd.Val(), sigCmd.Val(), nil
}

// trimQueue обрезает очередь до предела, считая вытесненные элементы
func (c *Client) trimQueue(ctx context.Context, key string, length int64, limit int64) (int64, error) {
	if length <= limit {
		return 0, nil
	}
	if err := c.rdb.LTrim(ctx, key, 0, limit-1).Err(); err != nil {
		return 0, err
	}
	dropped := length - limit
	metrics.RecordQueueTrim(key, int(dropped))
	c.log.Warn("queue overflow, oldest entries dropped",
		utils.String("queue", key), utils.Int64("dropped", dropped))
	return dropped, nil
}
