package baseline

import (
	"math"
	"testing"
	"time"

	"spreadwatch/internal/models"
)

// service_test.go - тесты агрегации часа

func TestAggregateHour(t *testing.T) {
	hour := time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC)
	samples := []float64{1.0, 2.0, 3.0, 4.0}

	b := aggregateHour("binance_spot:bybit_futures", "PEPE", hour, samples)

	if b.SamplesCount != 4 {
		t.Errorf("count: got %d want 4", b.SamplesCount)
	}
	if math.Abs(b.AvgSpreadPct-2.5) > 1e-9 {
		t.Errorf("avg: got %v want 2.5", b.AvgSpreadPct)
	}
	if b.MinSpreadPct != 1.0 || b.MaxSpreadPct != 4.0 {
		t.Errorf("min/max: got %v/%v", b.MinSpreadPct, b.MaxSpreadPct)
	}
	if math.Abs(b.P50Pct-2.5) > 1e-9 {
		t.Errorf("median: got %v want 2.5", b.P50Pct)
	}
	if !b.HourBucket.Equal(hour) {
		t.Errorf("hour: got %v", b.HourBucket)
	}
}

func TestAggregateHourMergesIntoBucket(t *testing.T) {
	hour := time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC)

	// Слияние двух батчей одного часа сохраняет бегущие итоги
	a := aggregateHour("p", "PEPE", hour, []float64{1.0, 1.0})
	b := aggregateHour("p", "PEPE", hour, []float64{3.0, 3.0, 3.0, 3.0, 3.0, 3.0})

	var merged models.BaselineBucket
	merged.Merge(*a)
	merged.Merge(*b)

	if merged.SamplesCount != 8 {
		t.Errorf("count: got %d want 8", merged.SamplesCount)
	}
	want := (1.0*2 + 3.0*6) / 8
	if math.Abs(merged.AvgSpreadPct-want) > 1e-9 {
		t.Errorf("avg: got %v want %v", merged.AvgSpreadPct, want)
	}
	if merged.MinSpreadPct != 1.0 || merged.MaxSpreadPct != 3.0 {
		t.Errorf("min/max: got %v/%v", merged.MinSpreadPct, merged.MaxSpreadPct)
	}
}
