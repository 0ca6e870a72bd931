package models

import (
	"fmt"
	"strings"
)

// venue.go - площадки торговли и их идентификаторы
//
// Назначение:
// Размеченное объединение видов площадок (CEX spot/futures, perp DEX,
// spot DEX) с единой схемой кодирования venue_id.
//
// Грамматика venue_id:
//   - CEX spot:    <exchange>_spot           (binance_spot)
//   - CEX futures: <exchange>_futures        (bybit_futures)
//   - Perp DEX:    <dex>_perp                (hyperliquid_perp)
//   - Spot DEX:    <dex>_dex_<chain>_<addr8> (uniswap_dex_ethereum_0x1f9840a8)

// VenueKind - вид площадки
type VenueKind string

const (
	VenueKindCexSpot    VenueKind = "cex_spot"
	VenueKindCexFutures VenueKind = "cex_futures"
	VenueKindPerpDex    VenueKind = "perp_dex"
	VenueKindDexSpot    VenueKind = "dex_spot"
)

// Venue описывает одну площадку торговли базовым активом.
//
// Для CEX заполняется Exchange, для DEX - Dex; Chain и TokenAddress
// имеют смысл только для VenueKindDexSpot.
type Venue struct {
	Kind         VenueKind `json:"kind"`
	Exchange     string    `json:"exchange,omitempty"`
	Dex          string    `json:"dex,omitempty"`
	Chain        string    `json:"chain,omitempty"`
	TokenAddress string    `json:"token_address,omitempty"`
}

// NewCexSpotVenue создает площадку спотовой секции CEX
func NewCexSpotVenue(exchange string) Venue {
	return Venue{Kind: VenueKindCexSpot, Exchange: strings.ToLower(exchange)}
}

// NewCexFuturesVenue создает площадку фьючерсной секции CEX
func NewCexFuturesVenue(exchange string) Venue {
	return Venue{Kind: VenueKindCexFutures, Exchange: strings.ToLower(exchange)}
}

// NewPerpDexVenue создает площадку бессрочных контрактов DEX
func NewPerpDexVenue(dex string) Venue {
	return Venue{Kind: VenueKindPerpDex, Dex: strings.ToLower(dex)}
}

// NewDexSpotVenue создает спотовую DEX площадку с маршрутизацией по цепочке
func NewDexSpotVenue(dex, chain, tokenAddress string) Venue {
	return Venue{
		Kind:         VenueKindDexSpot,
		Dex:          strings.ToLower(dex),
		Chain:        strings.ToLower(chain),
		TokenAddress: tokenAddress,
	}
}

// ID возвращает уникальный идентификатор площадки.
//
// Идентификатор детерминирован: одна и та же площадка всегда дает
// одну и ту же строку - на этом держатся ключи кэша цен и pair_id.
func (v Venue) ID() string {
	switch v.Kind {
	case VenueKindCexSpot:
		return v.Exchange + "_spot"
	case VenueKindCexFutures:
		return v.Exchange + "_futures"
	case VenueKindPerpDex:
		return v.Dex + "_perp"
	case VenueKindDexSpot:
		return fmt.Sprintf("%s_dex_%s_%s", v.Dex, v.Chain, shortAddress(v.TokenAddress))
	default:
		return "unknown"
	}
}

// Name возвращает человекочитаемое имя площадки для алертов
func (v Venue) Name() string {
	switch v.Kind {
	case VenueKindCexSpot:
		return v.Exchange + " spot"
	case VenueKindCexFutures:
		return v.Exchange + " futures"
	case VenueKindPerpDex:
		return v.Dex + " perp"
	case VenueKindDexSpot:
		return fmt.Sprintf("%s (%s)", v.Dex, v.Chain)
	default:
		return "unknown"
	}
}

// IsDex сообщает, является ли площадка ончейн-площадкой (spot DEX).
// Для таких площадок действует требование минимальной ликвидности пула.
func (v Venue) IsDex() bool {
	return v.Kind == VenueKindDexSpot
}

// IsShortable сообщает, можно ли на площадке открыть короткую позицию.
// От этого зависит тип арбитражной пары: auto против manual.
func (v Venue) IsShortable() bool {
	return v.Kind == VenueKindCexFutures || v.Kind == VenueKindPerpDex
}

// shortAddress обрезает адрес контракта до первых 10 символов (0x + 8 hex).
// Полный адрес хранится в Ticker.TokenAddresses, в venue_id достаточно префикса.
func shortAddress(addr string) string {
	a := strings.ToLower(addr)
	if len(a) > 10 {
		return a[:10]
	}
	return a
}

// ============================================================
// Категории пар по видам площадок
// ============================================================

// PairCategory - категория арбитражной пары по видам двух площадок.
//
// Используется группировкой алертов: пары одной категории ведут себя
// схоже (futures-futures сходятся быстро, DEX-пары - медленно и дорого).
type PairCategory string

const (
	CategorySF      PairCategory = "SF" // spot - futures
	CategoryFF      PairCategory = "FF" // futures - futures
	CategorySS      PairCategory = "SS" // spot - spot
	CategoryDS      PairCategory = "DS" // dex - spot
	CategoryDF      PairCategory = "DF" // dex - futures
	CategoryPS      PairCategory = "PS" // perp dex - spot
	CategoryPF      PairCategory = "PF" // perp dex - futures
	CategoryPP      PairCategory = "PP" // perp dex - perp dex (включая dex-dex)
	CategoryUnknown PairCategory = "unknown"
)

// kindCode сводит вид площадки к односимвольному коду категории
func kindCode(k VenueKind) byte {
	switch k {
	case VenueKindCexSpot:
		return 'S'
	case VenueKindCexFutures:
		return 'F'
	case VenueKindPerpDex:
		return 'P'
	case VenueKindDexSpot:
		return 'D'
	default:
		return '?'
	}
}

// CategoryFor возвращает категорию пары для двух видов площадок.
//
// Матрица исчерпывающая для известных видов; любая незнакомая
// комбинация дает CategoryUnknown и обрабатывается дальше без паники.
func CategoryFor(a, b VenueKind) PairCategory {
	ca, cb := kindCode(a), kindCode(b)
	if ca == '?' || cb == '?' {
		return CategoryUnknown
	}

	// Канонический порядок внутри категории: D < F < P < S по смыслу кодов
	switch {
	case ca == 'S' && cb == 'F', ca == 'F' && cb == 'S':
		return CategorySF
	case ca == 'F' && cb == 'F':
		return CategoryFF
	case ca == 'S' && cb == 'S':
		return CategorySS
	case ca == 'D' && cb == 'S', ca == 'S' && cb == 'D':
		return CategoryDS
	case ca == 'D' && cb == 'F', ca == 'F' && cb == 'D':
		return CategoryDF
	case ca == 'P' && cb == 'S', ca == 'S' && cb == 'P':
		return CategoryPS
	case ca == 'P' && cb == 'F', ca == 'F' && cb == 'P':
		return CategoryPF
	case ca == 'P' && cb == 'P', ca == 'D' && cb == 'D', ca == 'P' && cb == 'D', ca == 'D' && cb == 'P':
		return CategoryPP
	default:
		return CategoryUnknown
	}
}
