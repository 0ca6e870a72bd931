package models

import "time"

// ticker.go - вселенная тикеров и арбитражные пары

// Ticker - один отслеживаемый базовый актив со всеми его площадками.
//
// Вселенная строится поэтапно (фьючерсы -> спот -> адреса контрактов ->
// DEX -> perp DEX), затем валидируется и порождает все экономически
// осмысленные 2-комбинации площадок.
type Ticker struct {
	Symbol           string            `json:"symbol"`
	Venues           []Venue           `json:"venues"`
	TokenAddresses   map[string]string `json:"token_addresses,omitempty"` // chain -> address
	Valid            bool              `json:"valid"`
	ValidationErrors []string          `json:"validation_errors,omitempty"`
	Pairs            []ArbitragePair   `json:"pairs,omitempty"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// HasVenue проверяет наличие площадки с данным venue_id
func (t *Ticker) HasVenue(venueID string) bool {
	for _, v := range t.Venues {
		if v.ID() == venueID {
			return true
		}
	}
	return false
}

// VenueByID возвращает площадку по идентификатору
func (t *Ticker) VenueByID(venueID string) (Venue, bool) {
	for _, v := range t.Venues {
		if v.ID() == venueID {
			return v, true
		}
	}
	return Venue{}, false
}

// ============================================================
// Арбитражные пары
// ============================================================

// PairType - способ реализации арбитража между двумя площадками
type PairType string

const (
	// PairTypeAuto - дорогую сторону можно зашортить, перевод токена не нужен
	PairTypeAuto PairType = "auto"
	// PairTypeManual - требуется физический перевод токена между площадками
	PairTypeManual PairType = "manual"
)

// ArbitragePair - пара площадок одного символа.
//
// Low/High здесь - канонический порядок по лексикографике venue_id,
// а не по цене: направление сделки определяется при расчете спреда.
// PairID детерминирован и служит естественным ключом во всех таблицах.
type ArbitragePair struct {
	PairID   string       `json:"pair_id"`
	Symbol   string       `json:"symbol"`
	VenueA   Venue        `json:"venue_a"`
	VenueB   Venue        `json:"venue_b"`
	Type     PairType     `json:"type"`
	Category PairCategory `json:"category"`
}

// NewArbitragePair создает пару с каноническим порядком площадок.
//
// Тип пары: auto если хотя бы одна из площадок шортабельна,
// иначе manual (потребуется перевод токена).
func NewArbitragePair(symbol string, a, b Venue) ArbitragePair {
	// Канонический порядок: лексикографика venue_id
	if a.ID() > b.ID() {
		a, b = b, a
	}

	pairType := PairTypeManual
	if a.IsShortable() || b.IsShortable() {
		pairType = PairTypeAuto
	}

	return ArbitragePair{
		PairID:   a.ID() + ":" + b.ID(),
		Symbol:   symbol,
		VenueA:   a,
		VenueB:   b,
		Type:     pairType,
		Category: CategoryFor(a.Kind, b.Kind),
	}
}

// Other возвращает вторую площадку пары относительно данной
func (p ArbitragePair) Other(venueID string) (Venue, bool) {
	switch venueID {
	case p.VenueA.ID():
		return p.VenueB, true
	case p.VenueB.ID():
		return p.VenueA, true
	}
	return Venue{}, false
}
