package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики конвейера наблюдения
// ============================================================
//
// Namespace: spreadwatch, subsystem - стадия конвейера.
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для уведомлений о проблемах (падение площадок,
//   переполнение очередей, рост отклонений)

// ============ Коллектор цен (C3) ============

// TickDuration - длительность одного тика коллектора
var TickDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "spreadwatch",
		Subsystem: "collector",
		Name:      "tick_duration_ms",
		Help:      "Duration of one price collection tick in milliseconds",
		Buckets:   []float64{50, 100, 250, 500, 1000, 2000, 3000, 5000, 10000},
	},
)

// TicksSkipped - пропуски тиков (предыдущий тик еще не завершился)
var TicksSkipped = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "spreadwatch",
		Subsystem: "collector",
		Name:      "ticks_skipped_total",
		Help:      "Ticks skipped because the previous tick was still running",
	},
)

// QuotesFetched - полученные котировки по площадкам
var QuotesFetched = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "spreadwatch",
		Subsystem: "collector",
		Name:      "quotes_fetched_total",
		Help:      "Quotes fetched per venue",
	},
	[]string{"venue"},
)

// StaleQuotesDropped - котировки, отброшенные фильтром свежести
var StaleQuotesDropped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "spreadwatch",
		Subsystem: "collector",
		Name:      "stale_quotes_dropped_total",
		Help:      "Quotes dropped by the freshness filter",
	},
	[]string{"venue"},
)

// AdapterErrors - ошибки адаптеров по видам
var AdapterErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "spreadwatch",
		Subsystem: "collector",
		Name:      "adapter_errors_total",
		Help:      "Venue adapter errors by kind",
	},
	[]string{"venue", "kind"}, // kind: transient, unavailable, ...
)

// AdapterUp - доступность адаптера (1=работает, 0=выключен брейкером)
var AdapterUp = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "spreadwatch",
		Subsystem: "collector",
		Name:      "adapter_up",
		Help:      "Venue adapter availability (1=up, 0=tripped)",
	},
	[]string{"venue"},
)

// ============ Спреды (C4) ============

// SpreadsComputed - вычисленные спреды за тик
var SpreadsComputed = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "spreadwatch",
		Subsystem: "spread",
		Name:      "computed_total",
		Help:      "Spreads computed across all symbol pairs",
	},
)

// SpreadObserved - распределение наблюдаемых спредов
var SpreadObserved = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "spreadwatch",
		Subsystem: "spread",
		Name:      "observed_pct",
		Help:      "Observed spread values in percent",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 20, 50},
	},
	[]string{"category"},
)

// PriceMismatchFiltered - пары, отброшенные фильтром несовпадения токенов (10x)
var PriceMismatchFiltered = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "spreadwatch",
		Subsystem: "spread",
		Name:      "price_mismatch_filtered_total",
		Help:      "Pairs rejected by the 10x token mismatch filter",
	},
)

// DexLiquiditySkipped - DEX пары с недостаточной ликвидностью пула
var DexLiquiditySkipped = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "spreadwatch",
		Subsystem: "spread",
		Name:      "dex_liquidity_skipped_total",
		Help:      "DEX pairs skipped for signal generation due to low pool liquidity",
	},
)

// ============ Очереди ============

// QueueDepth - текущая глубина очередей
var QueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "spreadwatch",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Current queue depth",
	},
	[]string{"queue"}, // orderbook_analysis, signals_pending
)

// QueueOverflows - вытеснения из ограниченных очередей
var QueueOverflows = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "spreadwatch",
		Subsystem: "queue",
		Name:      "overflows_total",
		Help:      "Oldest items trimmed from bounded queues",
	},
	[]string{"queue"},
)

// ============ Анализ стаканов (C5) ============

// OrderbookAnalyses - проведенные анализы по исходу
var OrderbookAnalyses = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "spreadwatch",
		Subsystem: "orderbook",
		Name:      "analyses_total",
		Help:      "Order book analyses by outcome",
	},
	[]string{"outcome"}, // ok, fallback, expired, error
)

// OrderbookFetchLatency - латентность получения стакана
var OrderbookFetchLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "spreadwatch",
		Subsystem: "orderbook",
		Name:      "fetch_latency_ms",
		Help:      "Order book fetch latency in milliseconds",
		Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 15000},
	},
	[]string{"venue"},
)

// ============ Квалификация сигналов (C6) ============

// SignalsEmitted - эмитированные сигналы по типам
var SignalsEmitted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "spreadwatch",
		Subsystem: "signal",
		Name:      "emitted_total",
		Help:      "Signals emitted by type",
	},
	[]string{"type", "category"},
)

// SignalsRejected - отклоненные сигналы по причинам
var SignalsRejected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "spreadwatch",
		Subsystem: "signal",
		Name:      "rejected_total",
		Help:      "Signals rejected by reason",
	},
	[]string{"reason"}, // blacklist, cooldown_blocked, safety, type_disabled, below_floor
)

// NotifierSends - отправки алертов по исходу
var NotifierSends = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "spreadwatch",
		Subsystem: "signal",
		Name:      "notifier_sends_total",
		Help:      "Alert dispatch attempts by outcome",
	},
	[]string{"outcome"}, // ok, failed
)

// ============ Отслеживание схождения (C8) ============

// ActiveTrackings - количество активных отслеживаний
var ActiveTrackings = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "spreadwatch",
		Subsystem: "tracker",
		Name:      "active",
		Help:      "Number of active convergence trackings",
	},
)

// TrackingChecks - выполненные проверки
var TrackingChecks = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "spreadwatch",
		Subsystem: "tracker",
		Name:      "checks_total",
		Help:      "Tracking checks performed",
	},
)

// TrackingsClosed - закрытые отслеживания по причинам
var TrackingsClosed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "spreadwatch",
		Subsystem: "tracker",
		Name:      "closed_total",
		Help:      "Trackings closed by reason",
	},
	[]string{"reason"}, // converged, diverged, expired
)

// ConvergenceMinutes - время до схождения
var ConvergenceMinutes = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "spreadwatch",
		Subsystem: "tracker",
		Name:      "convergence_minutes",
		Help:      "Minutes from signal emission to convergence",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 360, 720, 1440, 4320},
	},
)

// ============ Базовые распределения (C9) ============

// BaselineSamples - принятые сэмплы горячего яруса
var BaselineSamples = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "spreadwatch",
		Subsystem: "baseline",
		Name:      "samples_total",
		Help:      "Spread samples accepted into the hot tier",
	},
)

// BaselineFlushes - часовые сбросы в холодный ярус
var BaselineFlushes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "spreadwatch",
		Subsystem: "baseline",
		Name:      "flushes_total",
		Help:      "Hourly baseline flushes by outcome",
	},
	[]string{"outcome"}, // ok, failed
)

// ============ Хранилища ============

// PersistenceFailures - мягкие ошибки durable записи
var PersistenceFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "spreadwatch",
		Subsystem: "kv",
		Name:      "persistence_failures_total",
		Help:      "Durable store write failures (soft, pipeline continues)",
	},
	[]string{"table"},
)

// KVLatency - латентность операций KV
var KVLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "spreadwatch",
		Subsystem: "kv",
		Name:      "op_latency_ms",
		Help:      "KV operation latency in milliseconds",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 500},
	},
	[]string{"op"},
)

// ============ HTTP API ============

// APIRequests - HTTP запросы к ops API
var APIRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "spreadwatch",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status",
	},
	[]string{"route", "status"},
)

// ============ Вспомогательные функции ============

// RecordTick записывает длительность тика коллектора
func RecordTick(durationMs float64) {
	TickDuration.Observe(durationMs)
}

// RecordQuote записывает полученную котировку
func RecordQuote(venueID string) {
	QuotesFetched.WithLabelValues(venueID).Inc()
}

// RecordStaleQuote записывает отброшенную несвежую котировку
func RecordStaleQuote(venueID string) {
	StaleQuotesDropped.WithLabelValues(venueID).Inc()
}

// RecordAdapterError записывает ошибку адаптера
func RecordAdapterError(venueID, kind string) {
	AdapterErrors.WithLabelValues(venueID, kind).Inc()
}

// SetAdapterUp обновляет статус доступности адаптера
func SetAdapterUp(venueID string, up bool) {
	v := 0.0
	if up {
		v = 1.0
	}
	AdapterUp.WithLabelValues(venueID).Set(v)
}

// RecordSpread записывает вычисленный спред
func RecordSpread(category string, spreadPct float64) {
	SpreadsComputed.Inc()
	SpreadObserved.WithLabelValues(category).Observe(spreadPct)
}

// RecordRejection записывает отклонение сигнала
func RecordRejection(reason string) {
	SignalsRejected.WithLabelValues(reason).Inc()
}

// RecordEmission записывает эмиссию сигнала
func RecordEmission(signalType, category string) {
	SignalsEmitted.WithLabelValues(signalType, category).Inc()
}

// RecordQueueTrim записывает вытеснение из очереди
func RecordQueueTrim(queue string, n int) {
	if n > 0 {
		QueueOverflows.WithLabelValues(queue).Add(float64(n))
	}
}

// RecordPersistenceFailure записывает мягкую ошибку durable записи
func RecordPersistenceFailure(table string) {
	PersistenceFailures.WithLabelValues(table).Inc()
}

// RecordTrackingClose записывает закрытие отслеживания
func RecordTrackingClose(reason string, durationMinutes float64) {
	TrackingsClosed.WithLabelValues(reason).Inc()
	if reason == "converged" {
		ConvergenceMinutes.Observe(durationMinutes)
	}
}
