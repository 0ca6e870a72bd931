package kv

import (
	"context"
	"time"

	"spreadwatch/internal/models"
)

// snapshots.go - снимки отслеживаемых сигналов и история глубины
//
// Снимки пишутся сначала в KV (горячий путь трекера), затем
// асинхронно в долговременный слой. Список на сигнал ограничен
// MaxSnapshotsPerSignal, порядковый номер выдает счетчик INCR.

// NextSnapshotSeq выдает следующий порядковый номер снимка сигнала
func (c *Client) NextSnapshotSeq(ctx context.Context, signalID string) (int64, error) {
	return c.rdb.Incr(ctx, keySnapshotSeq(signalID)).Result()
}

// PushSnapshot добавляет снимок в список сигнала, храня последние
// MaxSnapshotsPerSignal снимков
func (c *Client) PushSnapshot(ctx context.Context, snap *models.Snapshot) error {
	defer timeOp("push_snapshot", time.Now())

	data, err := encodeMsgpack(snap)
	if err != nil {
		return err
	}

	key := keySnapshots(snap.SignalID)
	pipe := c.rdb.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, int64(-models.MaxSnapshotsPerSignal), -1)
	_, err = pipe.Exec(ctx)
	return err
}

// Snapshots возвращает снимки сигнала в хронологическом порядке
func (c *Client) Snapshots(ctx context.Context, signalID string) ([]models.Snapshot, error) {
	defer timeOp("read_snapshots", time.Now())

	raws, err := c.rdb.LRange(ctx, keySnapshots(signalID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	snaps := make([]models.Snapshot, 0, len(raws))
	for _, raw := range raws {
		var s models.Snapshot
		if err := decodeMsgpack([]byte(raw), &s); err != nil {
			continue
		}
		snaps = append(snaps, s)
	}
	return snaps, nil
}

// DeleteSnapshots удаляет снимки и счетчик закрытого сигнала
func (c *Client) DeleteSnapshots(ctx context.Context, signalID string) error {
	return c.rdb.Del(ctx, keySnapshots(signalID), keySnapshotSeq(signalID)).Err()
}

// DepthSample - точка истории глубины стакана площадки
type DepthSample struct {
	BidDepthUSD float64 `msgpack:"bid_depth_usd"`
	AskDepthUSD float64 `msgpack:"ask_depth_usd"`
	SpreadPct   float64 `msgpack:"spread_pct"`
	AtMs        int64   `msgpack:"at_ms"`
}

// PushDepthSample добавляет точку истории глубины площадки
func (c *Client) PushDepthSample(ctx context.Context, venueID, symbol string, sample DepthSample) error {
	data, err := encodeMsgpack(sample)
	if err != nil {
		return err
	}

	key := keyDepthHistory(venueID, symbol)
	pipe := c.rdb.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, int64(-depthHistoryLimit), -1)
	pipe.Expire(ctx, key, ttlSpreadHistory)
	_, err = pipe.Exec(ctx)
	return err
}

// DepthHistory возвращает историю глубины площадки
func (c *Client) DepthHistory(ctx context.Context, venueID, symbol string) ([]DepthSample, error) {
	raws, err := c.rdb.LRange(ctx, keyDepthHistory(venueID, symbol), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	samples := make([]DepthSample, 0, len(raws))
	for _, raw := range raws {
		var s DepthSample
		if err := decodeMsgpack([]byte(raw), &s); err != nil {
			continue
		}
		samples = append(samples, s)
	}
	return samples, nil
}
