package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"spreadwatch/internal/models"
	"spreadwatch/pkg/ratelimit"
	"spreadwatch/pkg/retry"
	"spreadwatch/pkg/utils"
)

// hyperliquid.go - адаптер perp DEX Hyperliquid
//
// Весь публичный API - один endpoint POST /info с дискриминатором
// type в теле: meta (список контрактов), allMids (средние цены всех
// контрактов), l2Book (стакан одного контракта).

const hyperliquidDefaultBaseURL = "https://api.hyperliquid.xyz"

// Hyperliquid - адаптер perp DEX площадки Hyperliquid
type Hyperliquid struct {
	baseURL    string
	venue      models.Venue
	httpClient *http.Client
	limiter    *ratelimit.RateLimiter
	retryer    *retry.Retryer
	log        *utils.Logger

	// Наполняется ListSymbols, читается котировками и стаканами конкурентно
	mu      sync.RWMutex
	coinMap map[string]string // базовый символ -> имя контракта
}

// NewHyperliquid создает адаптер Hyperliquid
func NewHyperliquid(log *utils.Logger) *Hyperliquid {
	return NewHyperliquidWithBaseURL(hyperliquidDefaultBaseURL, log)
}

// NewHyperliquidWithBaseURL создает адаптер с нестандартным base URL (для тестов)
func NewHyperliquidWithBaseURL(baseURL string, log *utils.Logger) *Hyperliquid {
	v := models.NewPerpDexVenue("hyperliquid")
	return &Hyperliquid{
		baseURL:    baseURL,
		venue:      v,
		httpClient: GetGlobalHTTPClient().GetClient(),
		limiter:    ratelimit.NewRateLimiter(10, 20),
		retryer:    retry.NewRetryer(retry.VenueConfig()),
		log:        log.WithVenue(v.ID()),
		coinMap:    make(map[string]string),
	}
}

// Venue возвращает описание площадки
func (h *Hyperliquid) Venue() models.Venue {
	return h.venue
}

// VenueID возвращает идентификатор площадки
func (h *Hyperliquid) VenueID() string {
	return h.venue.ID()
}

// doInfo выполняет POST /info с телом payload
func (h *Hyperliquid) doInfo(ctx context.Context, payload interface{}) ([]byte, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, BadResponse(h.VenueID(), "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/info", bytes.NewReader(reqBody))
	if err != nil {
		return nil, BadResponse(h.VenueID(), "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, ClassifyNetError(h.VenueID(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ClassifyNetError(h.VenueID(), err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPStatus(h.VenueID(), resp.StatusCode)
	}

	return body, nil
}

// ListSymbols возвращает базовые символы перечисленных контрактов
func (h *Hyperliquid) ListSymbols(ctx context.Context) ([]string, error) {
	var body []byte
	err := h.retryer.Do(ctx, func() error {
		var e error
		body, e = h.doInfo(ctx, map[string]string{"type": "meta"})
		return e
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Universe []struct {
			Name       string `json:"name"`
			IsDelisted bool   `json:"isDelisted"`
		} `json:"universe"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, BadResponse(h.VenueID(), "decode meta", err)
	}

	coinMap := make(map[string]string, len(resp.Universe))
	var symbols []string
	for _, c := range resp.Universe {
		if c.IsDelisted {
			continue
		}
		base := utils.BaseSymbol(c.Name)
		if !utils.IsValidSymbol(base) {
			continue
		}
		coinMap[base] = c.Name
		symbols = append(symbols, base)
	}
	h.mu.Lock()
	h.coinMap = coinMap
	h.mu.Unlock()

	return symbols, nil
}

// FetchQuotes возвращает котировки по средним ценам allMids.
//
// allMids не отдает bid/ask - обе стороны котировки выставляются в
// среднюю цену. Для первичной фильтрации спредов этого достаточно;
// исполнимые цены считаются отдельно по l2Book.
func (h *Hyperliquid) FetchQuotes(ctx context.Context, symbols []string) ([]models.Quote, error) {
	var body []byte
	err := h.retryer.Do(ctx, func() error {
		var e error
		body, e = h.doInfo(ctx, map[string]string{"type": "allMids"})
		return e
	})
	if err != nil {
		return nil, err
	}

	var mids map[string]string
	if err := json.Unmarshal(body, &mids); err != nil {
		return nil, BadResponse(h.VenueID(), "decode allMids", err)
	}

	wanted := symbolSet(symbols)
	nowMs := utils.NowMs()

	h.mu.RLock()
	coinMap := h.coinMap
	h.mu.RUnlock()

	quotes := make([]models.Quote, 0, len(mids))
	for base, coin := range coinMap {
		if wanted != nil {
			if _, ok := wanted[base]; !ok {
				continue
			}
		}
		midStr, ok := mids[coin]
		if !ok {
			continue
		}
		mid, _ := strconv.ParseFloat(midStr, 64)
		if mid <= 0 {
			continue
		}

		quotes = append(quotes, models.Quote{
			VenueID:      h.VenueID(),
			Symbol:       base,
			Bid:          mid,
			Ask:          mid,
			Last:         mid,
			ReceivedAtMs: nowMs,
		})
	}

	return quotes, nil
}

// FetchOrderBook возвращает стакан контракта через l2Book
func (h *Hyperliquid) FetchOrderBook(ctx context.Context, symbol string, depth int) (*models.OrderBook, error) {
	base := utils.BaseSymbol(symbol)
	h.mu.RLock()
	coin, ok := h.coinMap[base]
	h.mu.RUnlock()
	if !ok {
		return nil, BadResponse(h.VenueID(), "unknown symbol "+symbol, nil)
	}
	if depth <= 0 {
		depth = 50
	}

	started := time.Now()
	var body []byte
	err := h.retryer.Do(ctx, func() error {
		var e error
		body, e = h.doInfo(ctx, map[string]string{"type": "l2Book", "coin": coin})
		return e
	})
	if err != nil {
		return nil, err
	}

	// levels[0] - биды (по убыванию), levels[1] - аски (по возрастанию)
	var resp struct {
		Levels [2][]struct {
			Px string `json:"px"`
			Sz string `json:"sz"`
		} `json:"levels"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, BadResponse(h.VenueID(), "decode l2Book", err)
	}

	parse := func(raw []struct {
		Px string `json:"px"`
		Sz string `json:"sz"`
	}) []models.PriceLevel {
		levels := make([]models.PriceLevel, 0, len(raw))
		for i, l := range raw {
			if i >= depth {
				break
			}
			price, _ := strconv.ParseFloat(l.Px, 64)
			size, _ := strconv.ParseFloat(l.Sz, 64)
			if price <= 0 || size <= 0 {
				continue
			}
			levels = append(levels, models.PriceLevel{Price: price, Size: size})
		}
		return levels
	}

	book := &models.OrderBook{
		VenueID:   h.VenueID(),
		Symbol:    base,
		Bids:      parse(resp.Levels[0]),
		Asks:      parse(resp.Levels[1]),
		LatencyMs: float64(time.Since(started).Milliseconds()),
		Timestamp: time.Now().UTC(),
	}

	if !book.IsSorted() {
		return nil, BadResponse(h.VenueID(), "order book sort invariant violated", nil)
	}

	return book, nil
}
