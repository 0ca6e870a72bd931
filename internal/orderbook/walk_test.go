package orderbook

import (
	"math"
	"testing"

	"spreadwatch/internal/models"
)

// walk_test.go - тесты обхода стакана

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestMaxSizeWithinSlippageFullLevels(t *testing.T) {
	asks := []models.PriceLevel{
		{Price: 100, Size: 1},
		{Price: 101, Size: 1},
		{Price: 102, Size: 1},
		{Price: 110, Size: 1},
	}

	// Три уровня укладываются в среднюю 101 (1% от лучшей)
	sizeUSD, avg := MaxSizeWithinSlippage(asks, 2.0)
	if !almostEqual(sizeUSD, 303) {
		t.Errorf("size: got %v want 303", sizeUSD)
	}
	if !almostEqual(avg, 101) {
		t.Errorf("avg: got %v want 101", avg)
	}
}

func TestMaxSizeWithinSlippagePartialLastLevel(t *testing.T) {
	asks := []models.PriceLevel{
		{Price: 100, Size: 1},
		{Price: 104, Size: 10},
	}

	// Уровень 104 сам по себе за порогом, но одну единицу взять можно:
	// средняя (100 + 104) / 2 = 102 ровно на лимите 2%
	sizeUSD, avg := MaxSizeWithinSlippage(asks, 2.0)
	if !almostEqual(sizeUSD, 204) {
		t.Errorf("size: got %v want 204", sizeUSD)
	}
	if !almostEqual(avg, 102) {
		t.Errorf("avg: got %v want 102", avg)
	}
}

func TestMaxSizeWithinSlippageBidsDescending(t *testing.T) {
	bids := []models.PriceLevel{
		{Price: 100, Size: 1},
		{Price: 96, Size: 10},
	}

	// Симметрия для продажи: лимит средней 98, берем одну единицу 96
	sizeUSD, avg := MaxSizeWithinSlippage(bids, 2.0)
	if !almostEqual(sizeUSD, 196) {
		t.Errorf("size: got %v want 196", sizeUSD)
	}
	if !almostEqual(avg, 98) {
		t.Errorf("avg: got %v want 98", avg)
	}
}

func TestMaxSizeWithinSlippageEmptyBook(t *testing.T) {
	if size, avg := MaxSizeWithinSlippage(nil, 2.0); size != 0 || avg != 0 {
		t.Errorf("empty book must give zero, got %v/%v", size, avg)
	}
}

func TestExitLiquidityUSD(t *testing.T) {
	levels := []models.PriceLevel{
		{Price: 1.0, Size: 1000},
		{Price: 0.99, Size: 2000},
	}
	want := 1000.0 + 0.99*2000
	if got := ExitLiquidityUSD(levels); !almostEqual(got, want) {
		t.Errorf("exit liquidity: got %v want %v", got, want)
	}
}
