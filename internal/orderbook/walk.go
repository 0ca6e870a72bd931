package orderbook

import (
	"spreadwatch/internal/models"
)

// walk.go - обход стакана: исполнимые объемы и цены
//
// Главный вопрос к стакану: сколько долларов можно исполнить, пока
// средневзвешенная цена не уйдет от лучшей больше чем на max_slip_pct.
// Обход идет по уровням, на последнем уровне берется частичное
// заполнение ровно до порога.

// MaxSizeWithinSlippage возвращает USD объем, исполнимый в пределах
// проскальзывания, и средневзвешенную цену этого объема.
//
// levels - аски (покупка) или биды (продажа) в биржевом порядке.
func MaxSizeWithinSlippage(levels []models.PriceLevel, maxSlipPct float64) (sizeUSD, avgPrice float64) {
	if len(levels) == 0 || maxSlipPct < 0 {
		return 0, 0
	}

	best := levels[0].Price
	if best <= 0 {
		return 0, 0
	}

	var cumUSD, cumQty float64
	for _, l := range levels {
		if l.Price <= 0 || l.Size <= 0 {
			continue
		}

		// Уровень за порогом еще может быть взят частично: лимитирует
		// средневзвешенная цена набранного объема, а не цена уровня
		take := l.Size
		newQty := cumQty + take
		newUSD := cumUSD + take*l.Price
		newAvg := newUSD / newQty
		if slippagePct(best, newAvg) > maxSlipPct {
			take = maxTakeWithinAvg(best, maxSlipPct, cumUSD, cumQty, l.Price)
			if take <= 0 {
				break
			}
			cumQty += take
			cumUSD += take * l.Price
			break
		}

		cumQty = newQty
		cumUSD = newUSD
	}

	if cumQty == 0 {
		return 0, 0
	}
	return cumUSD, cumUSD / cumQty
}

// slippagePct - отклонение цены от лучшей в процентах, по модулю
func slippagePct(best, price float64) float64 {
	pct := (price - best) / best * 100
	if pct < 0 {
		pct = -pct
	}
	return pct
}

// maxTakeWithinAvg решает, какую часть уровня price можно добавить к
// накопленному объему, чтобы средняя осталась в пределах порога.
//
// Порог по средней: |avg - best| / best <= s, то есть для покупок
// avg <= best*(1+s). Из (cumUSD + q*price) / (cumQty + q) = limit
// получаем q = (limit*cumQty - cumUSD) / (price - limit).
func maxTakeWithinAvg(best, maxSlipPct, cumUSD, cumQty, price float64) float64 {
	var limit float64
	if price >= best {
		limit = best * (1 + maxSlipPct/100)
	} else {
		limit = best * (1 - maxSlipPct/100)
	}
	denom := price - limit
	if denom == 0 {
		return 0
	}
	q := (limit*cumQty - cumUSD) / denom
	if q < 0 {
		return 0
	}
	return q
}

// ExitLiquidityUSD - суммарный USD объем уровней (ликвидность разворота)
func ExitLiquidityUSD(levels []models.PriceLevel) float64 {
	var total float64
	for _, l := range levels {
		total += l.USD()
	}
	return total
}
