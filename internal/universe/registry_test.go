package universe

import (
	"context"
	"testing"

	"spreadwatch/internal/models"
	"spreadwatch/pkg/utils"
)

// registry_test.go - тесты валидации и генерации пар

func testLogger() *utils.Logger {
	return utils.InitLogger(utils.LogConfig{Level: "error"})
}

func TestValidateRequiresTwoVenues(t *testing.T) {
	ticker := &models.Ticker{
		Symbol: "PEPE",
		Venues: []models.Venue{models.NewCexFuturesVenue("bybit")},
	}

	validate(ticker)
	if ticker.Valid {
		t.Fatal("single-venue ticker must be invalid")
	}

	ticker.Venues = append(ticker.Venues, models.NewCexSpotVenue("binance"))
	validate(ticker)
	if !ticker.Valid {
		t.Fatalf("two-venue ticker must be valid, errors: %v", ticker.ValidationErrors)
	}
}

func TestValidateRejectsDexVenueWithoutAddress(t *testing.T) {
	ticker := &models.Ticker{
		Symbol: "PEPE",
		Venues: []models.Venue{
			models.NewCexFuturesVenue("bybit"),
			{Kind: models.VenueKindDexSpot, Dex: "dexscreener", Chain: "ethereum"},
		},
	}

	validate(ticker)
	if ticker.Valid {
		t.Fatal("dex venue without token address must invalidate the ticker")
	}
}

func TestGeneratePairsEnumeratesUnorderedCombinations(t *testing.T) {
	ticker := &models.Ticker{
		Symbol: "PEPE",
		Venues: []models.Venue{
			models.NewCexSpotVenue("binance"),
			models.NewCexFuturesVenue("bybit"),
			models.NewPerpDexVenue("hyperliquid"),
		},
	}

	pairs := generatePairs(ticker)
	if len(pairs) != 3 {
		t.Fatalf("3 venues must give 3 pairs, got %d", len(pairs))
	}

	seen := make(map[string]bool)
	for _, p := range pairs {
		if seen[p.PairID] {
			t.Fatalf("duplicate pair %s", p.PairID)
		}
		seen[p.PairID] = true

		// Канонический порядок: venue_a лексикографически меньше
		if p.VenueA.ID() > p.VenueB.ID() {
			t.Errorf("pair %s not in canonical order", p.PairID)
		}
	}

	// Пары с шортабельной стороной - auto
	for _, p := range pairs {
		if p.VenueA.IsShortable() || p.VenueB.IsShortable() {
			if p.Type != models.PairTypeAuto {
				t.Errorf("pair %s with shortable leg must be auto", p.PairID)
			}
		}
	}
}

func TestResolveKnownMajorSkipsLookup(t *testing.T) {
	// Кураторский символ разрешается без сетевых вызовов: base URL
	// намеренно невалиден, обращение к нему провалило бы тест
	r := NewTokenResolverWithBaseURLs("http://invalid.localhost:1", "http://invalid.localhost:1", testLogger())

	addrs, err := r.Resolve(context.Background(), "PEPE")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if addrs["ethereum"] != "0x6982508145454ce325ddbe47a25d4ec3d2311933" {
		t.Fatalf("curated address expected, got %v", addrs)
	}
}
