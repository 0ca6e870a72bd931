package signal

import (
	"fmt"

	"spreadwatch/internal/kv"
	"spreadwatch/internal/models"
)

// checks.go - классификация сигнала и проверки безопасности
//
// Проверки не бросают сигнал сразу: каждая пишет свой вердикт в
// SafetyChecks, квалификатор отклоняет по совокупности. Это дает
// полную картину в деталях сигнала и в spread_log.

const (
	// Потолок внутреннего bid-ask спреда котировки
	maxInnerSpreadPct = 10.0

	// Минимум точек истории глубины для сравнения с нормой
	minDepthHistorySamples = 10

	// Порог просадки глубины против исторической нормы
	minDepthVsHistoryRatio = 0.3
)

// strategyFor возвращает стратегию и префикс short-ID по категории пары
func strategyFor(category models.PairCategory) (strategy, prefix string) {
	switch category {
	case models.CategoryDS, models.CategoryDF:
		return "dex_arb", "DX"
	case models.CategoryPS, models.CategoryPF, models.CategoryPP:
		return "perp_arb", "PR"
	default:
		return "cex_arb", "CX"
	}
}

// classifyType определяет тип сигнала.
//
// Отстающая площадка: одна из котировок заметно старше другой -
// спред скорее всего вызван задержкой данных, а не рынком. Порог -
// половина допустимого возраста котировки.
func classifyType(spread models.Spread, buyQuote, sellQuote *models.Quote, nowMs, maxAgeMs int64) models.SignalType {
	laggingAge := maxAgeMs / 2
	if buyQuote != nil && sellQuote != nil {
		if !buyQuote.IsFresh(nowMs, laggingAge) || !sellQuote.IsFresh(nowMs, laggingAge) {
			return models.SignalTypeLagging
		}
	}
	if spread.PairType == models.PairTypeAuto {
		return models.SignalTypeAuto
	}
	return models.SignalTypeManual
}

// buildSafetyChecks прогоняет сигнал через предикаты безопасности
func buildSafetyChecks(sig *models.Signal, buyQuote, sellQuote *models.Quote, settings models.Settings, nowMs int64) []models.SafetyCheck {
	checks := []models.SafetyCheck{
		checkFreshQuotes(buyQuote, sellQuote, settings.MaxPriceAgeMs, nowMs),
		checkBidAskSanity(buyQuote, sellQuote),
	}

	// Fallback оценен без стаканов: требования к выходу к нему неприменимы
	if !sig.Analysis.Fallback {
		checks = append(checks,
			checkExitLiquidity(sig.Analysis, settings.MinExitLiquidityUSD),
			checkPositionToExit(sig.Analysis),
		)
	}
	return checks
}

// checkFreshQuotes требует свежие котировки обеих ног
func checkFreshQuotes(buyQuote, sellQuote *models.Quote, maxAgeMs, nowMs int64) models.SafetyCheck {
	check := models.SafetyCheck{Name: "fresh_quotes", Passed: true}
	for _, q := range []*models.Quote{buyQuote, sellQuote} {
		if q == nil {
			check.Passed = false
			check.Detail = "quote missing from cache"
			return check
		}
		if !q.IsFresh(nowMs, maxAgeMs) {
			check.Passed = false
			check.Detail = fmt.Sprintf("%s quote is %dms old", q.VenueID, nowMs-q.ReceivedAtMs)
			return check
		}
	}
	return check
}

// checkBidAskSanity отсекает вывернутые и аномально широкие котировки
func checkBidAskSanity(quotes ...*models.Quote) models.SafetyCheck {
	check := models.SafetyCheck{Name: "bid_ask_sanity", Passed: true}
	for _, q := range quotes {
		if q == nil || !q.HasBothSides() {
			continue
		}
		if q.Bid > q.Ask {
			check.Passed = false
			check.Detail = fmt.Sprintf("%s bid %.8g above ask %.8g", q.VenueID, q.Bid, q.Ask)
			return check
		}
		if inner := (q.Ask - q.Bid) / q.Ask * 100; inner > maxInnerSpreadPct {
			check.Passed = false
			check.Detail = fmt.Sprintf("%s inner spread %.1f%%", q.VenueID, inner)
			return check
		}
	}
	return check
}

// checkExitLiquidity требует достаточный объем для разворота позиции
func checkExitLiquidity(a models.BookAnalysis, minExitUSD float64) models.SafetyCheck {
	check := models.SafetyCheck{Name: "exit_liquidity", Passed: true}
	if exit := a.ExitUSD(); exit < minExitUSD {
		check.Passed = false
		check.Detail = fmt.Sprintf("exit %.0f USD below floor %.0f", exit, minExitUSD)
	}
	return check
}

// checkPositionToExit требует, чтобы выход вмещал двойную позицию
func checkPositionToExit(a models.BookAnalysis) models.SafetyCheck {
	check := models.SafetyCheck{Name: "position_to_exit", Passed: true}
	if a.SuggestedPositionUSD <= 0 {
		check.Passed = false
		check.Detail = "no executable position"
		return check
	}
	if a.SuggestedPositionUSD > 0.5*a.ExitUSD() {
		check.Passed = false
		check.Detail = fmt.Sprintf("position %.0f exceeds half of exit %.0f", a.SuggestedPositionUSD, a.ExitUSD())
	}
	return check
}

// checkDepthVsHistory сравнивает текущую глубину площадки с ее нормой.
// Без накопленной истории проверка проходит: норму не с чем сравнить.
func checkDepthVsHistory(venueID string, currentUSD float64, history []kv.DepthSample) models.SafetyCheck {
	check := models.SafetyCheck{Name: "depth_vs_history", Passed: true}
	if len(history) < minDepthHistorySamples {
		return check
	}

	var sum float64
	for _, s := range history {
		sum += s.BidDepthUSD + s.AskDepthUSD
	}
	avg := sum / float64(len(history))
	if avg <= 0 {
		return check
	}

	if currentUSD < avg*minDepthVsHistoryRatio {
		check.Passed = false
		check.Detail = fmt.Sprintf("%s depth %.0f USD vs usual %.0f", venueID, currentUSD, avg)
	}
	return check
}
