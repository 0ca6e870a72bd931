package collector

import (
	"sort"
	"strings"
	"time"

	"spreadwatch/internal/metrics"
	"spreadwatch/internal/models"
	"spreadwatch/pkg/utils"
)

// engine.go - расчет спредов по срезу котировок
//
// Для каждой пары площадок считаются оба направления; остается
// большее, неположительный спред отбрасывается. Фильтр 10x ловит
// тикеры-тезки: один символ на разных площадках может означать
// разные токены, и такой "спред" - мусор.

// tokenMismatchRatio - порог фильтра тикеров-тезок
const tokenMismatchRatio = 10.0

// SpreadEngine вычисляет спреды тика по парам вселенной
type SpreadEngine struct {
	log *utils.Logger
}

// NewSpreadEngine создает движок спредов
func NewSpreadEngine(log *utils.Logger) *SpreadEngine {
	return &SpreadEngine{log: log.WithComponent("spread_engine")}
}

// Compute считает спреды всех пар по текущему срезу котировок.
//
// Выход детерминирован: пары обходятся в лексикографическом порядке
// pair_id, идентичный вход дает идентичный выход.
func (e *SpreadEngine) Compute(quotes map[string]models.Quote, pairs []models.ArbitragePair, now time.Time) []models.Spread {
	sorted := make([]models.ArbitragePair, len(pairs))
	copy(sorted, pairs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Symbol != sorted[j].Symbol {
			return sorted[i].Symbol < sorted[j].Symbol
		}
		return sorted[i].PairID < sorted[j].PairID
	})

	spreads := make([]models.Spread, 0, len(sorted))
	for _, pair := range sorted {
		qa, okA := quotes[pair.VenueA.ID()+":"+pair.Symbol]
		qb, okB := quotes[pair.VenueB.ID()+":"+pair.Symbol]
		if !okA || !okB || !qa.HasBothSides() || !qb.HasBothSides() {
			continue
		}

		// Фильтр тикеров-тезок: расхождение цен больше 10x означает
		// разные токены под одним символом
		if utils.PriceRatio(qa.MidPrice(), qb.MidPrice()) > tokenMismatchRatio {
			metrics.PriceMismatchFiltered.Inc()
			continue
		}

		spread, ok := bestDirection(pair, qa, qb, now)
		if !ok {
			continue
		}

		metrics.RecordSpread(string(pair.Category), spread.SpreadPct)
		spreads = append(spreads, spread)
	}
	return spreads
}

// bestDirection выбирает выгодное направление сделки в паре.
//
// Направление A->B: купить по ask на A, продать по bid на B.
// Низкой стороной спреда становится площадка покупки.
func bestDirection(pair models.ArbitragePair, qa, qb models.Quote, now time.Time) (models.Spread, bool) {
	abPct := directionPct(qa.Ask, qb.Bid)
	baPct := directionPct(qb.Ask, qa.Bid)

	var (
		pct             float64
		lowQ, highQ     models.Quote
		lowVen, highVen models.Venue
	)
	if abPct >= baPct {
		pct, lowQ, highQ = abPct, qa, qb
		lowVen, highVen = pair.VenueA, pair.VenueB
	} else {
		pct, lowQ, highQ = baPct, qb, qa
		lowVen, highVen = pair.VenueB, pair.VenueA
	}

	if pct <= 0 {
		return models.Spread{}, false
	}

	// Минимальная ликвидность DEX ног пары (0 - ног DEX нет)
	var liquidity float64
	if lowVen.IsDex() {
		liquidity = lowQ.LiquidityUSD
	}
	if highVen.IsDex() && (liquidity == 0 || highQ.LiquidityUSD < liquidity) {
		liquidity = highQ.LiquidityUSD
	}

	return models.Spread{
		PairID:       pair.PairID,
		Symbol:       pair.Symbol,
		LowVenueID:   lowVen.ID(),
		HighVenueID:  highVen.ID(),
		BuyPrice:     lowQ.Ask,
		SellPrice:    highQ.Bid,
		SpreadPct:    pct,
		Category:     pair.Category,
		PairType:     pair.Type,
		LiquidityUSD: liquidity,
		Timestamp:    now,
	}, true
}

// directionPct - процент спреда направления "купить по askLow, продать по bidHigh"
func directionPct(askLow, bidHigh float64) float64 {
	if askLow <= 0 {
		return 0
	}
	return (bidHigh - askLow) / askLow * 100
}

// HasDexLeg сообщает, есть ли у спреда нога на спотовом DEX.
// Определяется по грамматике venue_id: только spot DEX несет "_dex_".
func HasDexLeg(s models.Spread) bool {
	return strings.Contains(s.LowVenueID, "_dex_") || strings.Contains(s.HighVenueID, "_dex_")
}
