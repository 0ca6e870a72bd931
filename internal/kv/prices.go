package kv

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"spreadwatch/internal/models"
)

// prices.go - кэш последних котировок и спредов
//
// Единственный писатель кэша - сборщик цен; читатели (анализатор
// стаканов, трекер, API) видят согласованный срез последнего тика.

// ErrNotFound возвращается при отсутствии ключа в KV
var ErrNotFound = errors.New("kv: key not found")

// QuoteKey строит ключ котировки в карте кэша
func QuoteKey(venueID, symbol string) string {
	return venueID + ":" + symbol
}

// SetLatestPrices заменяет кэш котировок срезом текущего тика
func (c *Client) SetLatestPrices(ctx context.Context, quotes map[string]models.Quote) error {
	defer timeOp("set_prices", time.Now())

	data, err := encodeJSON(quotes)
	if err != nil {
		return err
	}

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, keyPricesLatest, data, ttlPrices)
	pipe.Set(ctx, keyLastUpdate, strconv.FormatInt(time.Now().Unix(), 10), ttlPrices)
	_, err = pipe.Exec(ctx)
	return err
}

// GetLatestPrices возвращает кэш котировок последнего тика
func (c *Client) GetLatestPrices(ctx context.Context) (map[string]models.Quote, error) {
	defer timeOp("get_prices", time.Now())

	data, err := c.rdb.Get(ctx, keyPricesLatest).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	quotes := make(map[string]models.Quote)
	if err := decodeJSON(data, &quotes); err != nil {
		return nil, err
	}
	return quotes, nil
}

// GetQuote возвращает котировку одной площадки по символу
func (c *Client) GetQuote(ctx context.Context, venueID, symbol string) (*models.Quote, error) {
	quotes, err := c.GetLatestPrices(ctx)
	if err != nil {
		return nil, err
	}
	q, ok := quotes[QuoteKey(venueID, symbol)]
	if !ok {
		return nil, ErrNotFound
	}
	return &q, nil
}

// SetLatestSpreads заменяет кэш спредов последнего тика
func (c *Client) SetLatestSpreads(ctx context.Context, spreads []models.Spread) error {
	defer timeOp("set_spreads", time.Now())

	data, err := encodeJSON(spreads)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keySpreadsLatest, data, ttlPrices).Err()
}

// GetLatestSpreads возвращает спреды последнего тика
func (c *Client) GetLatestSpreads(ctx context.Context) ([]models.Spread, error) {
	defer timeOp("get_spreads", time.Now())

	data, err := c.rdb.Get(ctx, keySpreadsLatest).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var spreads []models.Spread
	if err := decodeJSON(data, &spreads); err != nil {
		return nil, err
	}
	return spreads, nil
}

// LastUpdate возвращает время последнего успешного тика
func (c *Client) LastUpdate(ctx context.Context) (time.Time, error) {
	raw, err := c.rdb.Get(ctx, keyLastUpdate).Result()
	if err == redis.Nil {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, err
	}
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(unix, 0).UTC(), nil
}
