package utils

import (
	"math"
	"sort"
)

// math.go - математические утилиты конвейера наблюдения за спредами
//
// Назначение:
// Вспомогательные математические функции для расчёта спредов,
// исполнимых цен и агрегации базовых распределений.
// Все функции являются чистыми (pure functions) без побочных эффектов.
//
// Функции:
// - CalculateSpread: расчет спреда между ценами
// - CalculateNetSpread: чистый спред с учетом комиссий
// - CalculateWeightedAverage: средневзвешенная цена (VWAP)
// - PriceRatio: отношение цен для фильтра несовпадения токенов
// - RoundToPleasantNumber: округление размера позиции до "приятного" числа
// - Percentile/Median/Mean/StdDev: статистика для базовых распределений

// CalculateSpread расчитывает спред между двумя ценами в процентах.
//
// Формула:
//
//	Спред (%) = ((P_высокая - P_низкая) / P_низкая) × 100
//
// Параметры:
//   - priceHigh: более высокая цена (сторона продажи)
//   - priceLow: более низкая цена (сторона покупки)
//
// Возвращает:
//   - Спред в процентах (например, 1.5 означает 1.5%)
//   - Если priceLow <= 0, возвращает 0
//
// Примеры:
//   - CalculateSpread(101.0, 100.0) = 1.0 (1%)
//   - CalculateSpread(25050, 25000) = 0.2 (0.2%)
func CalculateSpread(priceHigh, priceLow float64) float64 {
	if priceLow <= 0 {
		return 0
	}
	return (priceHigh - priceLow) / priceLow * 100
}

// CalculateSpreadFromPrices расчитывает спред, автоматически определяя high/low.
//
// Удобная обёртка когда неизвестно какая цена выше.
// Возвращает абсолютное значение спреда в процентах (всегда >= 0).
func CalculateSpreadFromPrices(priceA, priceB float64) float64 {
	if priceA <= 0 || priceB <= 0 {
		return 0
	}
	if priceA > priceB {
		return CalculateSpread(priceA, priceB)
	}
	return CalculateSpread(priceB, priceA)
}

// CalculateNetSpread расчитывает чистый спред с учётом торговых комиссий.
//
// При полном цикле арбитража совершаются 4 тейкер-сделки
// (открытие и закрытие обеих ног), поэтому комиссии берутся с множителем 2.
//
// Параметры:
//   - spreadPct: спред в процентах (результат CalculateSpread)
//   - feeLow: комиссия тейкера на стороне покупки в долях (0.0004 = 0.04%)
//   - feeHigh: комиссия тейкера на стороне продажи в долях
//
// Примеры:
//   - CalculateNetSpread(1.0, 0.0004, 0.0005) = 1.0 - 0.18 = 0.82
func CalculateNetSpread(spreadPct, feeLow, feeHigh float64) float64 {
	totalFeePct := 2 * (feeLow + feeHigh) * 100
	return spreadPct - totalFeePct
}

// PriceRatio возвращает отношение большей цены к меньшей.
//
// Используется фильтром несовпадения токенов: если один и тот же символ
// обозначает разные активы на двух площадках, отношение цен уходит
// за порог (10x) и пара отбрасывается целиком.
//
// Возвращает 0 если любая из цен не положительна.
func PriceRatio(priceA, priceB float64) float64 {
	if priceA <= 0 || priceB <= 0 {
		return 0
	}
	if priceA > priceB {
		return priceA / priceB
	}
	return priceB / priceA
}

// CalculateWeightedAverage вычисляет средневзвешенное значение (VWAP).
//
// Используется для расчёта средневзвешенной цены исполнения по стакану:
// VWAP = Σ(price_i × volume_i) / Σ(volume_i)
//
// Возвращает 0 если входные данные некорректны (пустые слайсы,
// разная длина, нулевой суммарный вес). Отрицательные веса пропускаются.
func CalculateWeightedAverage(values, weights []float64) float64 {
	if len(values) == 0 || len(weights) == 0 {
		return 0
	}
	if len(values) != len(weights) {
		return 0
	}

	var sumWeighted, sumWeights float64
	for i := range values {
		if weights[i] < 0 {
			continue
		}
		sumWeighted += values[i] * weights[i]
		sumWeights += weights[i]
	}

	if sumWeights == 0 {
		return 0
	}
	return sumWeighted / sumWeights
}

// RoundToPleasantNumber округляет сумму в USD ВНИЗ до "приятного" числа.
//
// Рекомендованный размер позиции в алерте не должен выглядеть как
// 8743.21 USD - округляем вниз к ближайшему значению вида
// {1, 1.5, 2, 2.5, 3, 4, 5, 6, 7.5} × 10^k.
//
// Округление вниз гарантирует, что рекомендация не превысит
// рассчитанный исполнимый объём.
//
// Примеры:
//   - RoundToPleasantNumber(8743.21) = 7500
//   - RoundToPleasantNumber(12400) = 10000
//   - RoundToPleasantNumber(437) = 400
func RoundToPleasantNumber(value float64) float64 {
	if value <= 0 {
		return 0
	}

	magnitude := math.Pow(10, math.Floor(math.Log10(value)))
	normalized := value / magnitude // [1, 10)

	steps := []float64{7.5, 6, 5, 4, 3, 2.5, 2, 1.5, 1}
	for _, s := range steps {
		if normalized >= s {
			return s * magnitude
		}
	}
	return magnitude
}

// ============================================================
// Статистика для базовых распределений спредов
// ============================================================

// Mean возвращает среднее арифметическое. Пустой слайс дает 0.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev возвращает стандартное отклонение (по населению, не выборке).
// Меньше двух значений дают 0.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// Percentile возвращает p-й перцентиль (0-100) с линейной интерполяцией.
//
// Входной слайс копируется и сортируется внутри - вызывающий код
// может передавать данные в любом порядке.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		p = 0
	}
	if p >= 100 {
		p = 100
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// Median возвращает медиану (50-й перцентиль)
func Median(values []float64) float64 {
	return Percentile(values, 50)
}
