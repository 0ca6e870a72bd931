package tracker

import (
	"math"
	"time"

	"spreadwatch/internal/models"
)

// analysis.go - пост-анализ сошедшегося сигнала
//
// По первому и последнему снимкам отслеживания восстанавливается,
// какая сторона двигалась и что происходило с глубиной. Быстрое
// схождение с просадкой глубины - почерк арбитражеров.

const (
	// Быстрое схождение для классификации arb_activity
	fastConvergenceMinutes = 15.0
	// Просадка глубины, считающаяся значимой
	depthDropThresholdPct = -30.0
	// Минимальное значимое движение цены
	significantMovePct = 1.0
)

// AnalyzeConvergence строит пост-анализ по снимкам отслеживания.
// Возвращает nil, если снимков меньше двух - сравнивать нечего.
func AnalyzeConvergence(t *models.Tracking, snaps []models.Snapshot, now time.Time) *models.ConvergenceAnalysis {
	if len(snaps) < 2 {
		return nil
	}
	first, last := snaps[0], snaps[len(snaps)-1]

	a := &models.ConvergenceAnalysis{
		SignalID:         t.SignalID,
		InitialBuyPrice:  first.BuyAsk,
		FinalBuyPrice:    last.BuyAsk,
		InitialSellPrice: first.SellBid,
		FinalSellPrice:   last.SellBid,
		DurationMinutes:  t.DurationMinutes(now),
		SnapshotsCount:   len(snaps),
		AnalyzedAt:       now,
	}

	a.BuyChangePct = changePct(first.BuyAsk, last.BuyAsk)
	a.SellChangePct = changePct(first.SellBid, last.SellBid)
	a.BuyDepthChangePct = changePct(first.BuyDepthUSD, last.BuyDepthUSD)
	a.SellDepthChangePct = changePct(first.SellDepthUSD, last.SellDepthUSD)
	a.Reason = classifyReason(a)
	return a
}

// classifyReason определяет причину схождения
func classifyReason(a *models.ConvergenceAnalysis) models.ConvergenceReason {
	depthDropped := a.BuyDepthChangePct <= depthDropThresholdPct ||
		a.SellDepthChangePct <= depthDropThresholdPct
	if a.DurationMinutes < fastConvergenceMinutes && depthDropped {
		return models.ReasonArbActivity
	}

	buyMag := math.Abs(a.BuyChangePct)
	sellMag := math.Abs(a.SellChangePct)

	if buyMag < significantMovePct && sellMag < significantMovePct {
		return models.ReasonUnknown
	}
	if a.BuyChangePct > significantMovePct && buyMag > 2*sellMag {
		return models.ReasonBuyUp
	}
	if a.SellChangePct < -significantMovePct && sellMag > 2*buyMag {
		return models.ReasonSellDown
	}
	return models.ReasonBoth
}

// changePct возвращает изменение в процентах от исходного значения
func changePct(from, to float64) float64 {
	if from <= 0 {
		return 0
	}
	return (to - from) / from * 100
}
