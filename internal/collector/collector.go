package collector

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"spreadwatch/internal/config"
	"spreadwatch/internal/kv"
	"spreadwatch/internal/metrics"
	"spreadwatch/internal/models"
	"spreadwatch/internal/universe"
	"spreadwatch/internal/venue"
	"spreadwatch/pkg/utils"
)

// collector.go - сборщик цен (такт конвейера)
//
// Раз в секунду опрашивает все адаптеры параллельно, фильтрует
// устаревшие котировки, пишет срез в KV, считает спреды и раздает
// их потребителям: базовым распределениям, дайджесту, истории,
// очереди анализа стаканов и live ленте.
//
// Сборщик single-flight: пока тик не завершился, следующий
// пропускается и считается в метрике. Дедлайн тика - три интервала.

// SettingsProvider отдает действующие настройки конвейера
type SettingsProvider interface {
	Current() models.Settings
}

// SpreadSink принимает полный батч спредов тика (базовые распределения)
type SpreadSink interface {
	ObserveSpreads(ctx context.Context, spreads []models.Spread)
}

// DigestSink принимает батч спредов для аккумуляции дайджеста
type DigestSink interface {
	Accumulate(ctx context.Context, spreads []models.Spread)
}

// EventPublisher публикует события тика в live ленту
type EventPublisher interface {
	PublishPriceTick(quotes int, spreads int, at time.Time)
	PublishSpreads(spreads []models.Spread)
}

// Collector - сборщик цен и диспетчер спредов
type Collector struct {
	cfg      config.PipelineConfig
	registry *universe.Registry
	adapters []venue.Adapter
	engine   *SpreadEngine
	store    *kv.Client
	settings SettingsProvider
	baseline SpreadSink
	digest   DigestSink
	events   EventPublisher
	log      *utils.Logger

	inFlight atomic.Bool
}

// New создает сборщик цен
func New(cfg config.PipelineConfig, registry *universe.Registry, adapters []venue.Adapter, store *kv.Client, settings SettingsProvider, log *utils.Logger) *Collector {
	return &Collector{
		cfg:      cfg,
		registry: registry,
		adapters: adapters,
		engine:   NewSpreadEngine(log),
		store:    store,
		settings: settings,
		log:      log.WithComponent("collector"),
	}
}

// SetBaselineSink подключает потребителя базовых распределений
func (c *Collector) SetBaselineSink(s SpreadSink) { c.baseline = s }

// SetDigestSink подключает аккумулятор дайджеста
func (c *Collector) SetDigestSink(s DigestSink) { c.digest = s }

// SetEventPublisher подключает live ленту
func (c *Collector) SetEventPublisher(p EventPublisher) { c.events = p }

// Run крутит такты сбора до отмены контекста
func (c *Collector) Run(ctx context.Context) {
	interval := c.cfg.PriceInterval
	if sec := c.settings.Current().PriceUpdateIntervalSec; sec > 0 {
		interval = time.Duration(sec) * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.log.Info("collector started", utils.Dur("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.inFlight.CompareAndSwap(false, true) {
				metrics.TicksSkipped.Inc()
				continue
			}
			go func() {
				defer c.inFlight.Store(false)
				tickCtx, cancel := context.WithTimeout(ctx, interval*3)
				defer cancel()
				c.Tick(tickCtx)
			}()
		}
	}
}

// Tick выполняет один такт сбора: опрос, кэш, спреды, раздача
func (c *Collector) Tick(ctx context.Context) {
	started := time.Now()

	quotes := c.fetchAll(ctx)
	if len(quotes) == 0 {
		c.log.Warn("tick produced no quotes")
		return
	}

	if err := c.store.SetLatestPrices(ctx, quotes); err != nil {
		c.log.Error("price cache write failed", utils.Err(err))
	}

	spreads := c.engine.Compute(quotes, c.registry.Pairs(), started.UTC())
	if err := c.store.SetLatestSpreads(ctx, spreads); err != nil {
		c.log.Error("spread cache write failed", utils.Err(err))
	}

	c.dispatch(ctx, spreads)

	if c.events != nil {
		c.events.PublishPriceTick(len(quotes), len(spreads), started.UTC())
	}

	metrics.RecordTick(float64(time.Since(started).Milliseconds()))
}

// fetchAll параллельно опрашивает адаптеры и отбрасывает несвежее
func (c *Collector) fetchAll(ctx context.Context) map[string]models.Quote {
	type result struct {
		venueID string
		quotes  []models.Quote
		err     error
	}

	results := make(chan result, len(c.adapters))
	var wg sync.WaitGroup
	for _, a := range c.adapters {
		wg.Add(1)
		go func(a venue.Adapter) {
			defer wg.Done()
			qs, err := a.FetchQuotes(ctx, nil)
			results <- result{venueID: a.VenueID(), quotes: qs, err: err}
		}(a)
	}
	wg.Wait()
	close(results)

	maxAgeMs := c.settings.Current().MaxPriceAgeMs
	nowMs := utils.NowMs()

	quotes := make(map[string]models.Quote)
	for r := range results {
		if r.err != nil {
			metrics.RecordAdapterError(r.venueID, string(venue.KindOf(r.err)))
			metrics.SetAdapterUp(r.venueID, false)
			c.log.Warn("adapter fetch failed", utils.Venue(r.venueID), utils.Err(r.err))
			continue
		}
		metrics.SetAdapterUp(r.venueID, true)

		for _, q := range r.quotes {
			if !q.IsFresh(nowMs, maxAgeMs) {
				metrics.RecordStaleQuote(q.VenueID)
				continue
			}
			quotes[kv.QuoteKey(q.VenueID, q.Symbol)] = q
			metrics.RecordQuote(q.VenueID)
		}
	}
	return quotes
}

// dispatch раздает спреды тика потребителям конвейера
func (c *Collector) dispatch(ctx context.Context, spreads []models.Spread) {
	settings := c.settings.Current()

	if c.baseline != nil {
		c.baseline.ObserveSpreads(ctx, spreads)
	}
	if c.digest != nil {
		c.digest.Accumulate(ctx, spreads)
	}

	var candidates []models.Spread
	for _, s := range spreads {
		c.recordHistory(ctx, s)

		if s.SpreadPct < settings.MinSpreadPct {
			continue
		}

		// Тонкий DEX пул не пойдет в сигналы, но в статистике остается
		if HasDexLeg(s) && s.LiquidityUSD < settings.MinDexLiquidityUSD {
			metrics.DexLiquiditySkipped.Inc()
			continue
		}

		candidates = append(candidates, s)
	}

	if len(candidates) > 0 {
		if _, err := c.store.PushOrderbookCandidates(ctx, candidates); err != nil {
			c.log.Error("orderbook queue push failed", utils.Err(err))
		}
		if c.events != nil {
			c.events.PublishSpreads(candidates)
		}
	}
}

// recordHistory пишет прореженную историю спреда отслеживаемого символа
func (c *Collector) recordHistory(ctx context.Context, s models.Spread) {
	tracked, err := c.store.IsSymbolTracked(ctx, s.Symbol)
	if err != nil || !tracked {
		return
	}
	ok, err := c.store.AllowHistorySample(ctx, s.PairID, s.Symbol)
	if err != nil || !ok {
		return
	}
	if err := c.store.AddSpreadHistory(ctx, s.PairID, s.Symbol, s.Timestamp, s.SpreadPct); err != nil {
		c.log.Debug("history write failed", utils.Pair(s.PairID), utils.Err(err))
	}
}
