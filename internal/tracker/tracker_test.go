package tracker

import (
	"testing"
	"time"

	"spreadwatch/internal/models"
)

// tracker_test.go - тесты расписания и классификации

func TestCheckInterval(t *testing.T) {
	cases := []struct {
		age  time.Duration
		want time.Duration
	}{
		{time.Minute, 5 * time.Second},
		{10 * time.Minute, 30 * time.Second},
		{time.Hour, time.Minute},
		{12 * time.Hour, 5 * time.Minute},
		{48 * time.Hour, 15 * time.Minute},
	}
	for _, tc := range cases {
		if got := CheckInterval(tc.age); got != tc.want {
			t.Errorf("age %v: got %v want %v", tc.age, got, tc.want)
		}
	}
}

func TestConvergenceClassification(t *testing.T) {
	// Половина от начального
	if !converged(4.9, 10) {
		t.Error("half of initial must converge")
	}
	// Абсолютный порог работает и для больших начальных спредов
	if !converged(2.9, 100) {
		t.Error("below absolute threshold must converge")
	}
	if converged(6, 10) {
		t.Error("6 of initial 10 must not converge")
	}

	if !diverged(15, 10) {
		t.Error("1.5x initial must diverge")
	}
	if diverged(14.9, 10) {
		t.Error("below 1.5x must not diverge")
	}
}

func TestTrackingIsDue(t *testing.T) {
	now := time.Now().UTC()
	tr := &models.Tracking{StartedAt: now.Add(-time.Minute)}

	if !tr.IsDue(now, CheckInterval(tr.Age(now))) {
		t.Error("never-checked tracking must be due")
	}

	recent := now.Add(-2 * time.Second)
	tr.LastCheckedAt = &recent
	if tr.IsDue(now, CheckInterval(tr.Age(now))) {
		t.Error("tracking checked 2s ago must not be due on 5s interval")
	}
}

func TestSplitPairID(t *testing.T) {
	a, b, ok := splitPairID("binance_spot:bybit_futures")
	if !ok || a != "binance_spot" || b != "bybit_futures" {
		t.Errorf("got %q/%q ok=%v", a, b, ok)
	}
	if _, _, ok := splitPairID("broken"); ok {
		t.Error("pair_id without separator must not parse")
	}
}

func snap(at time.Time, buyAsk, sellBid, buyDepth, sellDepth float64) models.Snapshot {
	return models.Snapshot{
		SnapshotAt:   at,
		BuyAsk:       buyAsk,
		BuyBid:       buyAsk * 0.999,
		SellBid:      sellBid,
		SellAsk:      sellBid * 1.001,
		BuyDepthUSD:  buyDepth,
		SellDepthUSD: sellDepth,
	}
}

func TestAnalyzeConvergenceArbActivity(t *testing.T) {
	now := time.Now().UTC()
	started := now.Add(-10 * time.Minute)
	closed := now
	tr := &models.Tracking{SignalID: "CX-11111111", StartedAt: started, ClosedAt: &closed}

	snaps := []models.Snapshot{
		snap(started, 1.00, 1.10, 100_000, 100_000),
		snap(now, 1.04, 1.06, 50_000, 95_000), // глубина покупки просела вдвое
	}

	a := AnalyzeConvergence(tr, snaps, now)
	if a == nil {
		t.Fatal("expected analysis")
	}
	if a.Reason != models.ReasonArbActivity {
		t.Errorf("fast convergence with depth drop must be arb_activity, got %s", a.Reason)
	}
	if a.SnapshotsCount != 2 {
		t.Errorf("snapshots count: got %d", a.SnapshotsCount)
	}
}

func TestAnalyzeConvergenceReasons(t *testing.T) {
	now := time.Now().UTC()
	started := now.Add(-2 * time.Hour)
	closed := now
	tr := &models.Tracking{SignalID: "CX-22222222", StartedAt: started, ClosedAt: &closed}

	cases := []struct {
		name       string
		finalBuy   float64
		finalSell  float64
		wantReason models.ConvergenceReason
	}{
		{"buy rose", 1.08, 1.095, models.ReasonBuyUp},
		{"sell dropped", 1.002, 1.02, models.ReasonSellDown},
		{"both moved", 1.05, 1.05, models.ReasonBoth},
		{"no movement", 1.001, 1.099, models.ReasonUnknown},
	}
	for _, tc := range cases {
		snaps := []models.Snapshot{
			snap(started, 1.00, 1.10, 100_000, 100_000),
			snap(now, tc.finalBuy, tc.finalSell, 100_000, 100_000),
		}
		a := AnalyzeConvergence(tr, snaps, now)
		if a == nil {
			t.Fatalf("%s: expected analysis", tc.name)
		}
		if a.Reason != tc.wantReason {
			t.Errorf("%s: got %s want %s", tc.name, a.Reason, tc.wantReason)
		}
	}
}

func TestAnalyzeConvergenceNeedsTwoSnapshots(t *testing.T) {
	now := time.Now().UTC()
	tr := &models.Tracking{SignalID: "CX-33333333", StartedAt: now.Add(-time.Hour)}
	if a := AnalyzeConvergence(tr, []models.Snapshot{snap(now, 1, 1.1, 0, 0)}, now); a != nil {
		t.Error("single snapshot must not produce analysis")
	}
}
