package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"spreadwatch/internal/kv"
	"spreadwatch/internal/models"
	"spreadwatch/internal/venue"
	"spreadwatch/pkg/utils"
)

// engine_test.go - тесты движка спредов

func testLogger() *utils.Logger {
	return utils.InitLogger(utils.LogConfig{Level: "error"})
}

func quoteKey(v models.Venue, symbol string) string {
	return v.ID() + ":" + symbol
}

func TestComputeKeepsLargerDirection(t *testing.T) {
	engine := NewSpreadEngine(testLogger())
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	spot := models.NewCexSpotVenue("binance")
	futures := models.NewCexFuturesVenue("bybit")
	pair := models.NewArbitragePair("PEPE", spot, futures)

	// Дешевле на споте: купить spot ask 1.00, продать futures bid 1.05
	quotes := map[string]models.Quote{
		quoteKey(spot, "PEPE"):    {VenueID: spot.ID(), Symbol: "PEPE", Bid: 0.99, Ask: 1.00},
		quoteKey(futures, "PEPE"): {VenueID: futures.ID(), Symbol: "PEPE", Bid: 1.05, Ask: 1.06},
	}

	spreads := engine.Compute(quotes, []models.ArbitragePair{pair}, now)
	if len(spreads) != 1 {
		t.Fatalf("expected 1 spread, got %d", len(spreads))
	}

	s := spreads[0]
	if s.LowVenueID != spot.ID() || s.HighVenueID != futures.ID() {
		t.Errorf("direction wrong: low=%s high=%s", s.LowVenueID, s.HighVenueID)
	}
	if s.BuyPrice != 1.00 || s.SellPrice != 1.05 {
		t.Errorf("prices wrong: buy=%v sell=%v", s.BuyPrice, s.SellPrice)
	}
	want := (1.05 - 1.00) / 1.00 * 100
	if diff := s.SpreadPct - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("spread pct: got %v want %v", s.SpreadPct, want)
	}
}

func TestComputeRejectsNonPositiveSpread(t *testing.T) {
	engine := NewSpreadEngine(testLogger())
	now := time.Now().UTC()

	spot := models.NewCexSpotVenue("binance")
	futures := models.NewCexFuturesVenue("bybit")
	pair := models.NewArbitragePair("PEPE", spot, futures)

	// Пересекающийся рынок: ни одно направление не дает положительный спред
	quotes := map[string]models.Quote{
		quoteKey(spot, "PEPE"):    {VenueID: spot.ID(), Symbol: "PEPE", Bid: 1.00, Ask: 1.01},
		quoteKey(futures, "PEPE"): {VenueID: futures.ID(), Symbol: "PEPE", Bid: 1.00, Ask: 1.01},
	}

	if spreads := engine.Compute(quotes, []models.ArbitragePair{pair}, now); len(spreads) != 0 {
		t.Fatalf("expected no spreads, got %v", spreads)
	}
}

func TestComputeFiltersTokenMismatch(t *testing.T) {
	engine := NewSpreadEngine(testLogger())
	now := time.Now().UTC()

	spot := models.NewCexSpotVenue("binance")
	dex := models.NewDexSpotVenue("dexscreener", "ethereum", "0x6982508145454ce325ddbe47a25d4ec3d2311933")
	pair := models.NewArbitragePair("PEPE", spot, dex)

	// Цены расходятся на порядки: под символом два разных токена
	quotes := map[string]models.Quote{
		quoteKey(spot, "PEPE"): {VenueID: spot.ID(), Symbol: "PEPE", Bid: 0.000001, Ask: 0.0000011},
		quoteKey(dex, "PEPE"):  {VenueID: dex.ID(), Symbol: "PEPE", Bid: 0.5, Ask: 0.51, LiquidityUSD: 100000},
	}

	if spreads := engine.Compute(quotes, []models.ArbitragePair{pair}, now); len(spreads) != 0 {
		t.Fatalf("10x mismatch must be filtered, got %v", spreads)
	}
}

func TestComputeDeterministicOrder(t *testing.T) {
	engine := NewSpreadEngine(testLogger())
	now := time.Now().UTC()

	spot := models.NewCexSpotVenue("binance")
	futures := models.NewCexFuturesVenue("bybit")
	perp := models.NewPerpDexVenue("hyperliquid")

	pairs := []models.ArbitragePair{
		models.NewArbitragePair("ZZZ", spot, futures),
		models.NewArbitragePair("AAA", spot, futures),
		models.NewArbitragePair("AAA", spot, perp),
	}

	quotes := map[string]models.Quote{}
	for _, sym := range []string{"AAA", "ZZZ"} {
		quotes[quoteKey(spot, sym)] = models.Quote{VenueID: spot.ID(), Symbol: sym, Bid: 0.99, Ask: 1.00}
		quotes[quoteKey(futures, sym)] = models.Quote{VenueID: futures.ID(), Symbol: sym, Bid: 1.05, Ask: 1.06}
		quotes[quoteKey(perp, sym)] = models.Quote{VenueID: perp.ID(), Symbol: sym, Bid: 1.04, Ask: 1.04}
	}

	first := engine.Compute(quotes, pairs, now)
	second := engine.Compute(quotes, pairs, now)

	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("expected 3 spreads, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].PairID != second[i].PairID {
			t.Fatalf("order not deterministic: %v vs %v", first[i].PairID, second[i].PairID)
		}
	}
	// Символы в лексикографическом порядке
	if first[0].Symbol != "AAA" || first[2].Symbol != "ZZZ" {
		t.Errorf("symbol ordering wrong: %v", []string{first[0].Symbol, first[1].Symbol, first[2].Symbol})
	}
}

// Котировки DEX ноги идут через реальный адаптер, а не собираются
// руками: ключ кэша, построенный коллектором из котировки, обязан
// совпасть с ключом, который движок строит из venue пары
func TestComputeMatchesDexAdapterQuotes(t *testing.T) {
	const addr = "0x6982508145454ce325ddbe47a25d4ec3d2311933"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pairs":[
			{"chainId":"ethereum","dexId":"uniswap","priceUsd":"0.0000012","liquidity":{"usd":5000000},"volume":{"h24":1200000},"baseToken":{"address":"` + addr + `","symbol":"PEPE"}}
		]}`))
	}))
	defer srv.Close()

	dex := venue.NewDexScreenerWithBaseURL(srv.URL, testLogger())
	dex.SetTokens([]venue.TokenRef{{Symbol: "PEPE", Chain: "ethereum", Address: addr}})

	dexQuotes, err := dex.FetchQuotes(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchQuotes: %v", err)
	}
	if len(dexQuotes) != 1 {
		t.Fatalf("expected 1 dex quote, got %d", len(dexQuotes))
	}

	spot := models.NewCexSpotVenue("binance")
	pair := models.NewArbitragePair("PEPE",
		spot, models.NewDexSpotVenue("dexscreener", "ethereum", addr))

	// Кэш наполняется так же, как в тике коллектора: ключ из котировки
	quotes := map[string]models.Quote{
		kv.QuoteKey(spot.ID(), "PEPE"): {VenueID: spot.ID(), Symbol: "PEPE", Bid: 0.00000099, Ask: 0.0000010},
	}
	for _, q := range dexQuotes {
		quotes[kv.QuoteKey(q.VenueID, q.Symbol)] = q
	}

	spreads := engineCompute(t, quotes, pair)
	s := spreads[0]
	if s.SpreadPct <= 0 {
		t.Errorf("spread pct must be positive, got %v", s.SpreadPct)
	}
	if s.LiquidityUSD != 5000000 {
		t.Errorf("dex leg liquidity lost: got %v want 5000000", s.LiquidityUSD)
	}
}

func engineCompute(t *testing.T, quotes map[string]models.Quote, pair models.ArbitragePair) []models.Spread {
	t.Helper()
	spreads := NewSpreadEngine(testLogger()).Compute(quotes, []models.ArbitragePair{pair}, time.Now().UTC())
	if len(spreads) != 1 {
		t.Fatalf("expected 1 spread, got %d", len(spreads))
	}
	return spreads
}

func TestHasDexLeg(t *testing.T) {
	dexSpread := models.Spread{LowVenueID: "binance_spot", HighVenueID: "dexscreener_dex_ethereum_0x69825081"}
	if !HasDexLeg(dexSpread) {
		t.Error("dex leg not detected")
	}

	cexSpread := models.Spread{LowVenueID: "binance_spot", HighVenueID: "bybit_futures"}
	if HasDexLeg(cexSpread) {
		t.Error("false dex leg on cex pair")
	}

	// perp DEX - не спотовый DEX, гейт ликвидности на него не действует
	perpSpread := models.Spread{LowVenueID: "binance_spot", HighVenueID: "hyperliquid_perp"}
	if HasDexLeg(perpSpread) {
		t.Error("perp venue must not count as dex leg")
	}
}
