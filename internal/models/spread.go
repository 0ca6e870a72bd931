package models

import "time"

// spread.go - спреды между площадками

// Spread - зафиксированная разница цен между двумя площадками.
//
// Направление канонизировано: LowVenue - где покупаем (ask ниже),
// HighVenue - где продаем (bid выше), SpreadPct всегда >= 0.
// PairID наследует канонический порядок ArbitragePair (лексикографика
// venue_id), поэтому LowVenue может быть как первой, так и второй
// площадкой пары.
type Spread struct {
	PairID       string       `json:"pair_id"`
	Symbol       string       `json:"symbol"`
	LowVenueID   string       `json:"low_venue"`
	HighVenueID  string       `json:"high_venue"`
	BuyPrice     float64      `json:"buy_price"`  // ask на низкой стороне
	SellPrice    float64      `json:"sell_price"` // bid на высокой стороне
	SpreadPct    float64      `json:"spread_pct"`
	Category     PairCategory `json:"category,omitempty"`
	PairType     PairType     `json:"pair_type,omitempty"`
	LiquidityUSD float64      `json:"liquidity_usd,omitempty"` // минимальная DEX ликвидность пары
	Timestamp    time.Time    `json:"timestamp"`
}

// DetectedAt возвращает момент фиксации спреда (для отсечки по возрасту)
func (s Spread) DetectedAt() time.Time {
	return s.Timestamp
}

// AgeAt возвращает возраст спреда на момент now
func (s Spread) AgeAt(now time.Time) time.Duration {
	return now.Sub(s.Timestamp)
}
