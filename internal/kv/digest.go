package kv

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"spreadwatch/internal/models"
)

// digest.go - аккумуляторы часового дайджеста
//
// За окно дайджеста копится максимум спреда по каждой паре; раз в
// час формируется сводка топ-5 и окно сбрасывается. Потеря окна не
// критична, поэтому гонка read-modify-write на HSet допустима:
// писатель окна один (цикл дайджеста).

// AccumulateDigest обновляет максимум спреда пары за окно
func (c *Client) AccumulateDigest(ctx context.Context, window, symbol, pairID string, spreadPct float64) error {
	defer timeOp("digest_acc", time.Now())

	key := keyDigestWindow(window)
	field := symbol + "|" + pairID

	prev, err := c.rdb.HGet(ctx, key, field).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	if err == nil {
		if prevVal, perr := strconv.ParseFloat(prev, 64); perr == nil && prevVal >= spreadPct {
			return nil
		}
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, field, strconv.FormatFloat(spreadPct, 'f', -1, 64))
	pipe.Expire(ctx, key, 2*time.Hour)
	_, err = pipe.Exec(ctx)
	return err
}

// DigestWindow возвращает аккумулированные максимумы окна
func (c *Client) DigestWindow(ctx context.Context, window string) (map[string]float64, error) {
	raw, err := c.rdb.HGetAll(ctx, keyDigestWindow(window)).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(raw))
	for field, v := range raw {
		val, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			continue
		}
		out[field] = val
	}
	return out, nil
}

// ResetDigestWindow сбрасывает аккумулятор окна после сводки
func (c *Client) ResetDigestWindow(ctx context.Context, window string) error {
	return c.rdb.Del(ctx, keyDigestWindow(window)).Err()
}

// AddRealtimeCoin помечает символ как получающий realtime алерты.
// Такие символы в дайджест не попадают - по ним и так шумно.
func (c *Client) AddRealtimeCoin(ctx context.Context, symbol string) error {
	return c.rdb.SAdd(ctx, keyRealtimeCoins, symbol).Err()
}

// RemoveRealtimeCoin убирает символ из realtime набора
func (c *Client) RemoveRealtimeCoin(ctx context.Context, symbol string) error {
	return c.rdb.SRem(ctx, keyRealtimeCoins, symbol).Err()
}

// RealtimeCoins возвращает символы с realtime алертами
func (c *Client) RealtimeCoins(ctx context.Context) (map[string]struct{}, error) {
	members, err := c.rdb.SMembers(ctx, keyRealtimeCoins).Result()
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(members))
	for _, m := range members {
		set[m] = struct{}{}
	}
	return set, nil
}

// AddObservation добавляет наблюдение символа для статистики дайджеста
func (c *Client) AddObservation(ctx context.Context, obs *models.DigestObservation) error {
	data, err := encodeJSON(obs)
	if err != nil {
		return err
	}

	key := keyObservations(obs.Symbol)
	pipe := c.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(obs.ObservedAt.UnixMilli()), Member: data})
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(obs.ObservedAt.Add(-ttlObservations).UnixMilli(), 10))
	pipe.Expire(ctx, key, ttlObservations)
	_, err = pipe.Exec(ctx)
	return err
}

// Observations возвращает наблюдения символа за интервал
func (c *Client) Observations(ctx context.Context, symbol string, from, to time.Time) ([]models.DigestObservation, error) {
	raws, err := c.rdb.ZRangeByScore(ctx, keyObservations(symbol), &redis.ZRangeBy{
		Min: strconv.FormatInt(from.UnixMilli(), 10),
		Max: strconv.FormatInt(to.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}

	out := make([]models.DigestObservation, 0, len(raws))
	for _, raw := range raws {
		var obs models.DigestObservation
		if err := decodeJSON([]byte(raw), &obs); err != nil {
			continue
		}
		out = append(out, obs)
	}
	return out, nil
}
