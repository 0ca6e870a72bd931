package orderbook

import (
	"context"
	"strings"
	"sync"
	"time"

	"spreadwatch/internal/config"
	"spreadwatch/internal/kv"
	"spreadwatch/internal/metrics"
	"spreadwatch/internal/models"
	"spreadwatch/internal/venue"
	"spreadwatch/pkg/utils"
)

// analyzer.go - анализ исполнимости кандидата по стаканам обеих ног
//
// Кандидат из очереди - спред по лучшим ценам. Анализатор отвечает
// на вопрос "сколько из этого спреда реально взять": тянет оба
// стакана, считает объем в пределах проскальзывания, исполнимые
// средние цены и ликвидность разворота. Если стаканы недоступны,
// кандидат не теряется - строится fallback сигнал по котировкам.

const (
	// Глубина запроса стакана на сторону
	bookDepth = 50

	// Потолок fallback позиции без данных стакана
	fallbackHardCapUSD = 5_000
)

// SettingsProvider отдает актуальные настройки конвейера
type SettingsProvider interface {
	Current() models.Settings
}

// Analyzer обогащает спред анализом стаканов
type Analyzer struct {
	adapters map[string]venue.Adapter // по venue_id
	store    *kv.Client
	settings SettingsProvider
	cfg      config.PipelineConfig
	log      *utils.Logger
}

// NewAnalyzer создает анализатор стаканов
func NewAnalyzer(cfg config.PipelineConfig, adapters []venue.Adapter, store *kv.Client, settings SettingsProvider, log *utils.Logger) *Analyzer {
	byID := make(map[string]venue.Adapter, len(adapters))
	for _, a := range adapters {
		byID[a.VenueID()] = a
	}
	return &Analyzer{
		adapters: byID,
		store:    store,
		settings: settings,
		cfg:      cfg,
		log:      log.WithComponent("orderbook"),
	}
}

// Analyze строит сигнал по кандидату.
//
// Возвращаемый сигнал всегда не nil: отказ стаканов дает fallback
// вариант, а не потерю кандидата.
func (a *Analyzer) Analyze(ctx context.Context, spread models.Spread, now time.Time) *models.Signal {
	settings := a.settings.Current()

	var (
		wg       sync.WaitGroup
		buyBook  *models.OrderBook
		sellBook *models.OrderBook
		buyErr   error
		sellErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		buyBook, buyErr = a.fetchBook(ctx, spread.LowVenueID, spread.Symbol)
	}()
	go func() {
		defer wg.Done()
		sellBook, sellErr = a.fetchBook(ctx, spread.HighVenueID, spread.Symbol)
	}()
	wg.Wait()

	if buyErr != nil || sellErr != nil {
		if buyErr != nil {
			a.log.Warn("buy side book unavailable",
				utils.Venue(spread.LowVenueID), utils.Symbol(spread.Symbol), utils.Err(buyErr))
		}
		if sellErr != nil {
			a.log.Warn("sell side book unavailable",
				utils.Venue(spread.HighVenueID), utils.Symbol(spread.Symbol), utils.Err(sellErr))
		}
		metrics.OrderbookAnalyses.WithLabelValues("fallback").Inc()
		return a.fallbackSignal(spread, now)
	}

	analysis := a.analyzeBooks(spread, buyBook, sellBook, settings)

	a.recordDepth(ctx, spread, buyBook, now)
	a.recordDepth(ctx, spread, sellBook, now)

	metrics.OrderbookAnalyses.WithLabelValues("ok").Inc()
	return &models.Signal{
		Spread:    spread,
		Analysis:  analysis,
		CreatedAt: now,
	}
}

// fetchBook тянет стакан одной ноги с таймаутом под вид площадки
func (a *Analyzer) fetchBook(ctx context.Context, venueID, symbol string) (*models.OrderBook, error) {
	adapter, ok := a.resolveAdapter(venueID)
	if !ok {
		return nil, venue.Unavailable(venueID, "no adapter registered", nil)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, a.sideTimeout(venueID))
	defer cancel()

	started := time.Now()
	book, err := adapter.FetchOrderBook(fetchCtx, symbol, bookDepth)
	metrics.OrderbookFetchLatency.WithLabelValues(venueID).Observe(float64(time.Since(started).Milliseconds()))
	if err != nil {
		return nil, err
	}
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return nil, venue.BadResponse(venueID, "empty order book", nil)
	}
	return book, nil
}

// resolveAdapter находит адаптер ноги по venue_id.
//
// DEX ноги несут venue_id конкретного пула
// (dexscreener_dex_<chain>_<addr>), а адаптер один на все пулы и
// зарегистрирован под своим VenueID; такие ноги матчатся по префиксу.
func (a *Analyzer) resolveAdapter(venueID string) (venue.Adapter, bool) {
	if adapter, ok := a.adapters[venueID]; ok {
		return adapter, true
	}
	for id, adapter := range a.adapters {
		if strings.HasPrefix(venueID, id+"_") {
			return adapter, true
		}
	}
	return nil, false
}

// sideTimeout возвращает потолок запроса стакана для площадки
func (a *Analyzer) sideTimeout(venueID string) time.Duration {
	switch {
	case strings.Contains(venueID, "_dex_"):
		return a.cfg.DexBulkTimeout
	case strings.HasSuffix(venueID, "_perp"):
		return a.cfg.PerpDexTimeout
	default:
		return a.cfg.CexTimeout
	}
}

// analyzeBooks считает исполнимость по двум стаканам
func (a *Analyzer) analyzeBooks(spread models.Spread, buyBook, sellBook *models.OrderBook, settings models.Settings) models.BookAnalysis {
	bestBuy := buyBook.BestAsk()
	bestSell := sellBook.BestBid()
	nominal := utils.CalculateSpread(bestSell, bestBuy)

	maxBuyUSD, buyAvg := MaxSizeWithinSlippage(buyBook.Asks, settings.MaxSlippagePct)
	maxSellUSD, sellAvg := MaxSizeWithinSlippage(sellBook.Bids, settings.MaxSlippagePct)

	real := utils.CalculateSpread(sellAvg, buyAvg)
	if real < 0 {
		real = 0
	}
	if real > nominal {
		// Средние не могут быть выгоднее лучших цен
		real = nominal
	}

	maxEntry := maxBuyUSD
	if maxSellUSD < maxEntry {
		maxEntry = maxSellUSD
	}

	// Разворот позиции: продать купленное (биды ноги покупки),
	// откупить проданное (аски ноги продажи)
	exitBuySide := ExitLiquidityUSD(buyBook.Bids)
	exitSellSide := ExitLiquidityUSD(sellBook.Asks)

	suggested := maxEntry
	if half := (exitBuySide + exitSellSide) * 0.5; half < suggested {
		suggested = half
	}
	if settings.MaxPositionSizeUSD > 0 && settings.MaxPositionSizeUSD < suggested {
		suggested = settings.MaxPositionSizeUSD
	}
	suggested = utils.RoundToPleasantNumber(suggested)

	return models.BookAnalysis{
		BuyPrice:             buyAvg,
		SellPrice:            sellAvg,
		NominalPct:           nominal,
		RealPct:              real,
		LossPct:              nominal - real,
		MaxBuyUSD:            maxBuyUSD,
		MaxSellUSD:           maxSellUSD,
		MaxEntryUSD:          maxEntry,
		ExitBuySideUSD:       exitBuySide,
		ExitSellSideUSD:      exitSellSide,
		SuggestedPositionUSD: suggested,
		FullyFillable:        suggested > 0,
	}
}

// fallbackSignal строит сигнал без стаканов, только по котировкам.
//
// Оценка консервативна: позиция зажата ликвидностью пула и жестким
// потолком, исполнимость не гарантируется.
func (a *Analyzer) fallbackSignal(spread models.Spread, now time.Time) *models.Signal {
	suggested := float64(fallbackHardCapUSD)
	if spread.LiquidityUSD > 0 {
		if byLiquidity := spread.LiquidityUSD * 0.1; byLiquidity < suggested {
			suggested = byLiquidity
		}
	}
	suggested = utils.RoundToPleasantNumber(suggested)

	return &models.Signal{
		Spread: spread,
		Analysis: models.BookAnalysis{
			BuyPrice:             spread.BuyPrice,
			SellPrice:            spread.SellPrice,
			NominalPct:           spread.SpreadPct,
			RealPct:              spread.SpreadPct,
			SuggestedPositionUSD: suggested,
			FullyFillable:        false,
			Fallback:             true,
		},
		Type:      models.SignalTypeFallback,
		CreatedAt: now,
	}
}

// recordDepth пишет точку истории глубины площадки; отказ не фатален
func (a *Analyzer) recordDepth(ctx context.Context, spread models.Spread, book *models.OrderBook, now time.Time) {
	sample := kv.DepthSample{
		BidDepthUSD: book.BidDepthUSD(),
		AskDepthUSD: book.AskDepthUSD(),
		SpreadPct:   spread.SpreadPct,
		AtMs:        now.UnixMilli(),
	}
	if err := a.store.PushDepthSample(ctx, book.VenueID, spread.Symbol, sample); err != nil {
		a.log.Warn("depth sample not recorded",
			utils.Venue(book.VenueID), utils.Symbol(spread.Symbol), utils.Err(err))
	}
}
