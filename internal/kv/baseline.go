package kv

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"spreadwatch/internal/metrics"
	"spreadwatch/pkg/utils"
)

// baseline.go - горячий ярус базовых распределений и история спредов
//
// Сэмплы спредов текущего часа копятся в sorted set с TTL 2 часа;
// раз в час агрегатор сворачивает закрытый час в долговременный слой.
// Членство в set уникально по метке времени, часовой ключ ограничен
// числом секунд в часе.

// AddBaselineSample добавляет сэмпл спреда в корзину текущего часа
func (c *Client) AddBaselineSample(ctx context.Context, pairID, symbol string, at time.Time, spreadPct float64) error {
	defer timeOp("baseline_add", time.Now())

	key := keyBaselineHot(pairID, symbol, at)
	member := strconv.FormatInt(at.UnixMilli(), 10) + ":" + strconv.FormatFloat(spreadPct, 'f', -1, 64)

	pipe := c.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: member})
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-(samplesPerHourLimit + 1)))
	pipe.Expire(ctx, key, ttlBaselineHot)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	metrics.BaselineSamples.Inc()
	return nil
}

// BaselineSamples возвращает сэмплы спреда часовой корзины
func (c *Client) BaselineSamples(ctx context.Context, pairID, symbol string, hour time.Time) ([]float64, error) {
	defer timeOp("baseline_read", time.Now())

	members, err := c.rdb.ZRange(ctx, keyBaselineHot(pairID, symbol, hour), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	samples := make([]float64, 0, len(members))
	for _, m := range members {
		idx := strings.IndexByte(m, ':')
		if idx < 0 {
			continue
		}
		v, err := strconv.ParseFloat(m[idx+1:], 64)
		if err != nil {
			continue
		}
		samples = append(samples, v)
	}
	return samples, nil
}

// DeleteBaselineHour удаляет свернутую часовую корзину
func (c *Client) DeleteBaselineHour(ctx context.Context, pairID, symbol string, hour time.Time) error {
	return c.rdb.Del(ctx, keyBaselineHot(pairID, symbol, hour)).Err()
}

// BaselineHotRef - адрес несведенной часовой корзины
type BaselineHotRef struct {
	PairID string
	Symbol string
}

// ScanBaselineHourKeys перечисляет корзины закрытого часа по ключам.
// In-memory учет наблюдавшихся ключей не переживает рестарт, скан
// добирает корзины, насыпанные до него.
func (c *Client) ScanBaselineHourKeys(ctx context.Context, hour time.Time) ([]BaselineHotRef, error) {
	suffix := ":" + utils.HourKey(hour)

	var refs []BaselineHotRef
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, "spread_baseline:*"+suffix, 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			if ref, ok := parseBaselineHotKey(key, suffix); ok {
				refs = append(refs, ref)
			}
		}
		if next == 0 {
			return refs, nil
		}
		cursor = next
	}
}

// parseBaselineHotKey разбирает spread_baseline:<pair>:<symbol><suffix>.
// pair_id сам содержит двоеточия, символ отделяется последним из них.
func parseBaselineHotKey(key, suffix string) (BaselineHotRef, bool) {
	const prefix = "spread_baseline:"
	if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, suffix) {
		return BaselineHotRef{}, false
	}
	middle := key[len(prefix) : len(key)-len(suffix)]
	idx := strings.LastIndexByte(middle, ':')
	if idx <= 0 || idx == len(middle)-1 {
		return BaselineHotRef{}, false
	}
	return BaselineHotRef{PairID: middle[:idx], Symbol: middle[idx+1:]}, true
}

// AllowHistorySample атомарно проверяет прореживание истории:
// не чаще одного сэмпла в 60 секунд на пару.
func (c *Client) AllowHistorySample(ctx context.Context, pairID, symbol string) (bool, error) {
	return c.rdb.SetNX(ctx, keyHistorySampled(pairID, symbol), 1, time.Minute).Result()
}

// AddSpreadHistory добавляет точку истории спреда отслеживаемой пары
func (c *Client) AddSpreadHistory(ctx context.Context, pairID, symbol string, at time.Time, spreadPct float64) error {
	defer timeOp("history_add", time.Now())

	key := keySpreadHistory(pairID, symbol)
	member := strconv.FormatInt(at.UnixMilli(), 10) + ":" + strconv.FormatFloat(spreadPct, 'f', -1, 64)

	pipe := c.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: member})
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(at.Add(-ttlSpreadHistory).UnixMilli(), 10))
	pipe.Expire(ctx, key, ttlSpreadHistory)
	_, err := pipe.Exec(ctx)
	return err
}

// SpreadHistory возвращает точки истории спреда за интервал
func (c *Client) SpreadHistory(ctx context.Context, pairID, symbol string, from, to time.Time) ([][2]float64, error) {
	members, err := c.rdb.ZRangeByScore(ctx, keySpreadHistory(pairID, symbol), &redis.ZRangeBy{
		Min: strconv.FormatInt(from.UnixMilli(), 10),
		Max: strconv.FormatInt(to.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}

	points := make([][2]float64, 0, len(members))
	for _, m := range members {
		idx := strings.IndexByte(m, ':')
		if idx < 0 {
			continue
		}
		ts, err1 := strconv.ParseFloat(m[:idx], 64)
		v, err2 := strconv.ParseFloat(m[idx+1:], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		points = append(points, [2]float64{ts, v})
	}
	return points, nil
}

// MarkSymbolTracked включает запись истории по символу на 7 дней
func (c *Client) MarkSymbolTracked(ctx context.Context, symbol string) error {
	return c.rdb.Set(ctx, keyTrackedSymbol(symbol), 1, ttlTrackedSymbol).Err()
}

// IsSymbolTracked проверяет, пишется ли история по символу
func (c *Client) IsSymbolTracked(ctx context.Context, symbol string) (bool, error) {
	n, err := c.rdb.Exists(ctx, keyTrackedSymbol(symbol)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AddRatioSample добавляет отношение цен в скользящее окно пары
func (c *Client) AddRatioSample(ctx context.Context, pairID string, at time.Time, ratio float64) error {
	key := keyZScoreWindow(pairID)
	member := strconv.FormatInt(at.UnixMilli(), 10) + ":" + strconv.FormatFloat(ratio, 'f', -1, 64)

	pipe := c.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: member})
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-(zscoreWindowLimit + 1)))
	pipe.Expire(ctx, key, ttlSpreadHistory)
	_, err := pipe.Exec(ctx)
	return err
}

// RatioSamples возвращает окно отношений цен пары (старые первыми)
func (c *Client) RatioSamples(ctx context.Context, pairID string) ([]float64, error) {
	members, err := c.rdb.ZRange(ctx, keyZScoreWindow(pairID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	samples := make([]float64, 0, len(members))
	for _, m := range members {
		idx := strings.IndexByte(m, ':')
		if idx < 0 {
			continue
		}
		v, err := strconv.ParseFloat(m[idx+1:], 64)
		if err != nil {
			continue
		}
		samples = append(samples, v)
	}
	return samples, nil
}
