package orderbook

import (
	"context"
	"testing"
	"time"

	"spreadwatch/internal/config"
	"spreadwatch/internal/models"
	"spreadwatch/internal/venue"
	"spreadwatch/pkg/utils"
)

// analyzer_test.go - тесты анализа исполнимости

type stubSettings struct {
	s models.Settings
}

func (p stubSettings) Current() models.Settings { return p.s }

func testAnalyzer(s models.Settings) *Analyzer {
	return &Analyzer{
		settings: stubSettings{s: s},
		log:      utils.InitLogger(utils.LogConfig{Level: "error"}),
	}
}

// bookStub - адаптер одной площадки с заранее заданным стаканом
type bookStub struct {
	v    models.Venue
	book *models.OrderBook
}

func (s bookStub) Venue() models.Venue { return s.v }
func (s bookStub) VenueID() string     { return s.v.ID() }
func (s bookStub) ListSymbols(context.Context) ([]string, error) {
	return nil, nil
}
func (s bookStub) FetchQuotes(context.Context, []string) ([]models.Quote, error) {
	return nil, nil
}
func (s bookStub) FetchOrderBook(context.Context, string, int) (*models.OrderBook, error) {
	return s.book, nil
}

func TestFetchBookResolvesPoolVenueToAggregator(t *testing.T) {
	book := &models.OrderBook{
		VenueID: "dexscreener_dex",
		Symbol:  "PEPE",
		Bids:    []models.PriceLevel{{Price: 0.0000011, Size: 1_000_000_000}},
		Asks:    []models.PriceLevel{{Price: 0.0000012, Size: 1_000_000_000}},
	}
	dex := bookStub{v: models.NewPerpDexVenue("hyperliquid"), book: book}
	// Агрегатор регистрируется под коротким venue_id без цепочки и адреса
	dexAggregator := aggregatorStub{bookStub: bookStub{book: book}}

	cfg := config.PipelineConfig{
		CexTimeout:     time.Second,
		PerpDexTimeout: time.Second,
		DexBulkTimeout: time.Second,
	}
	a := NewAnalyzer(cfg, []venue.Adapter{dex, dexAggregator}, nil, stubSettings{s: models.DefaultSettings()}, utils.InitLogger(utils.LogConfig{Level: "error"}))

	// Нога DEX несет venue_id конкретного пула; матчится по префиксу
	poolVenue := models.NewDexSpotVenue("dexscreener", "ethereum", "0x6982508145454ce325ddbe47a25d4ec3d2311933")
	got, err := a.fetchBook(context.Background(), poolVenue.ID(), "PEPE")
	if err != nil {
		t.Fatalf("pool venue leg: %v", err)
	}
	if got != book {
		t.Error("pool venue leg must route to the aggregator adapter")
	}

	// Точное совпадение venue_id работает как раньше
	if _, err := a.fetchBook(context.Background(), "hyperliquid_perp", "PEPE"); err != nil {
		t.Fatalf("exact venue leg: %v", err)
	}

	// Незарегистрированная площадка остается ошибкой
	if _, err := a.fetchBook(context.Background(), "kraken_spot", "PEPE"); err == nil {
		t.Error("unknown venue must fail, not silently match")
	}
}

// aggregatorStub переопределяет VenueID на общий id агрегатора
type aggregatorStub struct {
	bookStub
}

func (aggregatorStub) VenueID() string { return "dexscreener_dex" }

func TestAnalyzeBooksInvariants(t *testing.T) {
	settings := models.DefaultSettings()
	a := testAnalyzer(settings)

	spread := models.Spread{Symbol: "PEPE", SpreadPct: 5.0}
	buyBook := &models.OrderBook{
		VenueID: "binance_spot",
		Asks: []models.PriceLevel{
			{Price: 1.00, Size: 10000},
			{Price: 1.01, Size: 10000},
		},
		Bids: []models.PriceLevel{{Price: 0.99, Size: 5000}},
	}
	sellBook := &models.OrderBook{
		VenueID: "bybit_futures",
		Bids: []models.PriceLevel{
			{Price: 1.05, Size: 10000},
			{Price: 1.04, Size: 10000},
		},
		Asks: []models.PriceLevel{{Price: 1.06, Size: 5000}},
	}

	got := a.analyzeBooks(spread, buyBook, sellBook, settings)

	if !almostEqual(got.NominalPct, 5.0) {
		t.Errorf("nominal: got %v want 5.0", got.NominalPct)
	}
	if got.RealPct < 0 || got.RealPct > got.NominalPct {
		t.Errorf("real must sit in [0, nominal], got %v", got.RealPct)
	}
	if !almostEqual(got.LossPct, got.NominalPct-got.RealPct) {
		t.Errorf("loss: got %v want %v", got.LossPct, got.NominalPct-got.RealPct)
	}

	// Оба уровня каждой стороны в пределах проскальзывания
	if !almostEqual(got.MaxBuyUSD, 20100) {
		t.Errorf("max buy: got %v want 20100", got.MaxBuyUSD)
	}
	if !almostEqual(got.MaxSellUSD, 20900) {
		t.Errorf("max sell: got %v want 20900", got.MaxSellUSD)
	}
	if !almostEqual(got.MaxEntryUSD, 20100) {
		t.Errorf("max entry: got %v want 20100", got.MaxEntryUSD)
	}

	// Позицию зажала половина ликвидности выхода: (4950+5300)/2 = 5125,
	// приятное округление вниз дает 5000
	if !almostEqual(got.SuggestedPositionUSD, 5000) {
		t.Errorf("suggested: got %v want 5000", got.SuggestedPositionUSD)
	}
	if !got.FullyFillable {
		t.Error("expected fully fillable analysis")
	}
	if got.Fallback {
		t.Error("book-based analysis must not be fallback")
	}
}

func TestAnalyzeBooksCapsAtMaxPosition(t *testing.T) {
	settings := models.DefaultSettings()
	settings.MaxPositionSizeUSD = 1000
	a := testAnalyzer(settings)

	deep := []models.PriceLevel{{Price: 1.00, Size: 1_000_000}}
	buyBook := &models.OrderBook{Asks: deep, Bids: deep}
	sellBook := &models.OrderBook{
		Bids: []models.PriceLevel{{Price: 1.05, Size: 1_000_000}},
		Asks: []models.PriceLevel{{Price: 1.06, Size: 1_000_000}},
	}

	got := a.analyzeBooks(models.Spread{}, buyBook, sellBook, settings)
	if !almostEqual(got.SuggestedPositionUSD, 1000) {
		t.Errorf("suggested must cap at max position, got %v", got.SuggestedPositionUSD)
	}
}

func TestFallbackSignalSizing(t *testing.T) {
	a := testAnalyzer(models.DefaultSettings())
	now := time.Now().UTC()

	// Ликвидность пула лимитирует: 30000 * 0.1 = 3000
	sig := a.fallbackSignal(models.Spread{Symbol: "PEPE", SpreadPct: 4, LiquidityUSD: 30000}, now)
	if !almostEqual(sig.Analysis.SuggestedPositionUSD, 3000) {
		t.Errorf("suggested: got %v want 3000", sig.Analysis.SuggestedPositionUSD)
	}
	if sig.Type != models.SignalTypeFallback || !sig.Analysis.Fallback {
		t.Error("fallback signal must carry the fallback type and flag")
	}
	if sig.Analysis.FullyFillable {
		t.Error("fallback signal is never fully fillable")
	}

	// Глубокий пул упирается в жесткий потолок 5000
	sig = a.fallbackSignal(models.Spread{Symbol: "PEPE", SpreadPct: 4, LiquidityUSD: 200000}, now)
	if !almostEqual(sig.Analysis.SuggestedPositionUSD, 5000) {
		t.Errorf("suggested: got %v want 5000", sig.Analysis.SuggestedPositionUSD)
	}

	// Без данных о ликвидности (CEX пара) действует только потолок
	sig = a.fallbackSignal(models.Spread{Symbol: "PEPE", SpreadPct: 4}, now)
	if !almostEqual(sig.Analysis.SuggestedPositionUSD, 5000) {
		t.Errorf("suggested: got %v want 5000", sig.Analysis.SuggestedPositionUSD)
	}
}
