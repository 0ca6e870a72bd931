package kv

import (
	"context"
	"strings"
	"time"
)

// blacklist.go - черные списки символов, адресов, бирж и пар
//
// Списки - Redis множества; проверка SISMEMBER дешевая и идет на
// каждом кандидате до любой другой работы квалификации.

// Виды черных списков
const (
	BlacklistSymbols   = "symbols"
	BlacklistAddresses = "addresses"
	BlacklistExchanges = "exchanges"
	BlacklistPairs     = "pairs"
)

// BlacklistKinds перечисляет поддерживаемые виды списков
var BlacklistKinds = []string{BlacklistSymbols, BlacklistAddresses, BlacklistExchanges, BlacklistPairs}

// BlacklistAdd добавляет значение в черный список
func (c *Client) BlacklistAdd(ctx context.Context, kind, value string) error {
	defer timeOp("blacklist_add", time.Now())
	return c.rdb.SAdd(ctx, keyBlacklist(kind), normalizeBlacklistValue(kind, value)).Err()
}

// BlacklistRemove убирает значение из черного списка
func (c *Client) BlacklistRemove(ctx context.Context, kind, value string) error {
	return c.rdb.SRem(ctx, keyBlacklist(kind), normalizeBlacklistValue(kind, value)).Err()
}

// BlacklistContains проверяет членство значения в списке
func (c *Client) BlacklistContains(ctx context.Context, kind, value string) (bool, error) {
	defer timeOp("blacklist_check", time.Now())
	return c.rdb.SIsMember(ctx, keyBlacklist(kind), normalizeBlacklistValue(kind, value)).Result()
}

// BlacklistMembers возвращает все значения списка
func (c *Client) BlacklistMembers(ctx context.Context, kind string) ([]string, error) {
	return c.rdb.SMembers(ctx, keyBlacklist(kind)).Result()
}

// IsBlocked проверяет кандидата по всем спискам сразу:
// символ, биржи обеих площадок и идентификатор пары.
func (c *Client) IsBlocked(ctx context.Context, symbol, pairID string, exchanges ...string) (bool, string, error) {
	if ok, err := c.BlacklistContains(ctx, BlacklistSymbols, symbol); err != nil {
		return false, "", err
	} else if ok {
		return true, BlacklistSymbols, nil
	}

	if pairID != "" {
		if ok, err := c.BlacklistContains(ctx, BlacklistPairs, pairID); err != nil {
			return false, "", err
		} else if ok {
			return true, BlacklistPairs, nil
		}
	}

	for _, exch := range exchanges {
		if exch == "" {
			continue
		}
		if ok, err := c.BlacklistContains(ctx, BlacklistExchanges, exch); err != nil {
			return false, "", err
		} else if ok {
			return true, BlacklistExchanges, nil
		}
	}

	return false, "", nil
}

// normalizeBlacklistValue приводит значение к каноническому регистру.
// Адреса контрактов сравниваются в нижнем регистре, остальное - в верхнем.
func normalizeBlacklistValue(kind, value string) string {
	value = strings.TrimSpace(value)
	if kind == BlacklistAddresses {
		return strings.ToLower(value)
	}
	if kind == BlacklistSymbols || kind == BlacklistExchanges {
		return strings.ToUpper(value)
	}
	return value
}
