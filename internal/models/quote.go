package models

import "time"

// quote.go - котировки площадок и стаканы ордеров

// Quote - моментальная котировка базового актива на площадке.
//
// ReceivedAtMs - время получения по настенным часам процесса; именно
// по нему работает фильтр свежести. ExchangeTsMs - метка биржи, если
// площадка ее отдает (информационно).
type Quote struct {
	VenueID      string  `json:"venue_id"`
	Symbol       string  `json:"symbol"`
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	Last         float64 `json:"last"`
	ReceivedAtMs int64   `json:"received_at_ms"`
	ExchangeTsMs int64   `json:"exchange_ts_ms,omitempty"`
	LiquidityUSD float64 `json:"liquidity_usd,omitempty"`
	Volume24hUSD float64 `json:"volume_24h,omitempty"`
}

// IsFresh проверяет свежесть котировки относительно nowMs.
// Котировка из будущего считается свежей (рассинхрон часов не штрафуем).
func (q Quote) IsFresh(nowMs, maxAgeMs int64) bool {
	age := nowMs - q.ReceivedAtMs
	return age <= maxAgeMs
}

// MidPrice возвращает середину bid/ask; при отсутствии одной из сторон - Last
func (q Quote) MidPrice() float64 {
	if q.Bid > 0 && q.Ask > 0 {
		return (q.Bid + q.Ask) / 2
	}
	return q.Last
}

// HasBothSides сообщает, есть ли у котировки обе стороны
func (q Quote) HasBothSides() bool {
	return q.Bid > 0 && q.Ask > 0
}

// ============================================================
// Стакан ордеров
// ============================================================

// PriceLevel - уровень цены в стакане
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// USD возвращает объем уровня в USD
func (l PriceLevel) USD() float64 {
	return l.Price * l.Size
}

// OrderBook - стакан ордеров площадки.
//
// Инвариант сортировки: Asks по возрастанию цены, Bids по убыванию.
// Адаптеры обязаны отдавать стакан уже отсортированным; DEX адаптер
// синтезирует уровни из кривой ценового влияния в том же порядке.
type OrderBook struct {
	VenueID   string       `json:"venue_id"`
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	LatencyMs float64      `json:"latency_ms"`
	Timestamp time.Time    `json:"timestamp"`
}

// BestBid возвращает лучшую цену покупателя (0 если стакан пуст)
func (ob *OrderBook) BestBid() float64 {
	if len(ob.Bids) == 0 {
		return 0
	}
	return ob.Bids[0].Price
}

// BestAsk возвращает лучшую цену продавца (0 если стакан пуст)
func (ob *OrderBook) BestAsk() float64 {
	if len(ob.Asks) == 0 {
		return 0
	}
	return ob.Asks[0].Price
}

// BidDepthUSD возвращает суммарный объем бидов в USD
func (ob *OrderBook) BidDepthUSD() float64 {
	var total float64
	for _, l := range ob.Bids {
		total += l.USD()
	}
	return total
}

// AskDepthUSD возвращает суммарный объем асков в USD
func (ob *OrderBook) AskDepthUSD() float64 {
	var total float64
	for _, l := range ob.Asks {
		total += l.USD()
	}
	return total
}

// IsSorted проверяет инвариант сортировки стакана
func (ob *OrderBook) IsSorted() bool {
	for i := 1; i < len(ob.Asks); i++ {
		if ob.Asks[i].Price < ob.Asks[i-1].Price {
			return false
		}
	}
	for i := 1; i < len(ob.Bids); i++ {
		if ob.Bids[i].Price > ob.Bids[i-1].Price {
			return false
		}
	}
	return true
}

// TransferStatus - статус ввода/вывода токена на CEX.
//
// Для manual пар (с физическим переводом токена) закрытый депозит
// или вывод делает арбитраж неисполнимым.
type TransferStatus struct {
	Symbol          string    `json:"symbol"`
	DepositEnabled  bool      `json:"deposit_enabled"`
	WithdrawEnabled bool      `json:"withdraw_enabled"`
	CheckedAt       time.Time `json:"checked_at"`
}
