package kv

import (
	"time"

	"spreadwatch/pkg/utils"
)

// keys.go - схема ключей KV хранилища
//
// Вся схема собрана в одном месте: по ней видно полное горячее
// состояние конвейера. TTL заданы рядом с ключами.

const (
	// Кэш цен: JSON карта venue_id:symbol -> Quote, единственный писатель C3
	keyPricesLatest  = "prices:latest"
	keySpreadsLatest = "spreads:latest"
	keyLastUpdate    = "prices:last_update"

	// Очереди между стадиями
	keyOrderbookQueue = "queue:orderbook_analysis"
	keySignalsPending = "signals:pending"

	// Эмиссия
	keyAlertStats      = "alerts:stats"
	keyAlertsProcessed = "alerts:processed"

	// Вселенная тикеров: замена атомарна через staging ключ + RENAME
	keyUniverse        = "tickers:universe"
	keyUniverseStaging = "tickers:universe:staging"

	// Переопределения настроек
	keySettingsConfig    = "settings:config"
	keySettingsUpdatedAt = "settings:updated_at"

	// Дайджест
	keyRealtimeCoins = "digest:realtime_coins"

	// TTL
	ttlPrices        = 120 * time.Second
	ttlSpreadHistory = 7 * 24 * time.Hour
	ttlTrackedSymbol = 7 * 24 * time.Hour
	ttlObservations  = 8 * 24 * time.Hour
	ttlBaselineHot   = 2 * time.Hour

	// Пределы ограниченных структур
	orderbookQueueLimit = 1000
	signalsPendingLimit = 500
	processedLimit      = 1000
	samplesPerHourLimit = 3600
	depthHistoryLimit   = 1000
	zscoreWindowLimit   = 500
)

// keyCooldown строит ключ cooldown для (symbol, pair)
func keyCooldown(symbol, pairID string) string {
	if pairID == "" {
		return "alert:cooldown:" + symbol
	}
	return "alert:cooldown:" + symbol + ":" + pairID
}

// keyBlacklist строит ключ черного списка по виду
func keyBlacklist(kind string) string {
	return "blacklist:" + kind
}

// keyBaselineHot строит ключ горячего яруса базового распределения
func keyBaselineHot(pairID, symbol string, hour time.Time) string {
	return "spread_baseline:" + pairID + ":" + symbol + ":" + utils.HourKey(hour)
}

// keySpreadHistory строит ключ истории спредов пары
func keySpreadHistory(pairID, symbol string) string {
	return "spread_history:" + pairID + ":" + symbol
}

// keyHistorySampled - маркер "сэмпл уже записан" для прореживания истории
func keyHistorySampled(pairID, symbol string) string {
	return "spread_history:sampled:" + pairID + ":" + symbol
}

// keyTrackedSymbol - флаг "символ отслеживается" (недавно был алерт)
func keyTrackedSymbol(symbol string) string {
	return "spread_tracking:symbol:" + symbol
}

// keySnapshots строит ключ списка снимков сигнала
func keySnapshots(signalID string) string {
	return "convergence:snapshots:" + signalID
}

// keySnapshotSeq строит ключ счетчика снимков сигнала
func keySnapshotSeq(signalID string) string {
	return "convergence:snapshot_seq:" + signalID
}

// keyDivergenceAlerted - rate limit алертов о расхождении (1 ч на сигнал)
func keyDivergenceAlerted(signalID string) string {
	return "divergence:alerted:" + signalID
}

// keyDepthHistory строит ключ истории глубины площадки
func keyDepthHistory(venueID, symbol string) string {
	return "depth_history:" + venueID + ":" + symbol
}

// keyDigestWindow строит ключ аккумулятора дайджеста
func keyDigestWindow(window string) string {
	return "digest:accumulated:" + window
}

// keyObservations строит ключ наблюдений символа
func keyObservations(symbol string) string {
	return "digest:observations:" + symbol
}

// keyZScoreWindow строит ключ окна отношений цен пары
func keyZScoreWindow(pairID string) string {
	return "zscore:window:" + pairID
}
