package venue

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"spreadwatch/internal/models"
	"spreadwatch/pkg/ratelimit"
	"spreadwatch/pkg/retry"
	"spreadwatch/pkg/utils"
)

// binance.go - адаптер спотовой секции Binance (публичные данные)

const binanceDefaultBaseURL = "https://api.binance.com"

// Binance - адаптер CEX spot площадки Binance.
//
// Работает только с публичными market data endpoints, авторизация
// не требуется. Bulk котировки берутся одним запросом bookTicker.
type Binance struct {
	baseURL    string
	venue      models.Venue
	httpClient *http.Client
	limiter    *ratelimit.RateLimiter
	retryer    *retry.Retryer
	log        *utils.Logger

	// symbol на бирже -> базовый символ; наполняется ListSymbols,
	// читается котировками и стаканами конкурентно
	mu        sync.RWMutex
	symbolMap map[string]string
}

// NewBinance создает адаптер Binance spot
func NewBinance(log *utils.Logger) *Binance {
	return NewBinanceWithBaseURL(binanceDefaultBaseURL, log)
}

// NewBinanceWithBaseURL создает адаптер с нестандартным base URL (для тестов)
func NewBinanceWithBaseURL(baseURL string, log *utils.Logger) *Binance {
	v := models.NewCexSpotVenue("binance")
	return &Binance{
		baseURL:    baseURL,
		venue:      v,
		httpClient: GetGlobalHTTPClient().GetClient(),
		limiter:    ratelimit.NewRateLimiter(20, 40),
		retryer:    retry.NewRetryer(retry.VenueConfig()),
		log:        log.WithVenue(v.ID()),
		symbolMap:  make(map[string]string),
	}
}

// Venue возвращает описание площадки
func (b *Binance) Venue() models.Venue {
	return b.venue
}

// VenueID возвращает идентификатор площадки
func (b *Binance) VenueID() string {
	return b.venue.ID()
}

// doRequest выполняет GET запрос к публичному API Binance
func (b *Binance) doRequest(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := b.baseURL + endpoint
	if len(params) > 0 {
		query := url.Values{}
		for k, v := range params {
			query.Set(k, v)
		}
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, BadResponse(b.VenueID(), "build request", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, ClassifyNetError(b.VenueID(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ClassifyNetError(b.VenueID(), err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPStatus(b.VenueID(), resp.StatusCode)
	}

	return body, nil
}

// ListSymbols возвращает базовые символы активных USDT пар
func (b *Binance) ListSymbols(ctx context.Context) ([]string, error) {
	var body []byte
	err := b.retryer.Do(ctx, func() error {
		var e error
		body, e = b.doRequest(ctx, "/api/v3/exchangeInfo", nil)
		return e
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Symbols []struct {
			Symbol     string `json:"symbol"`
			Status     string `json:"status"`
			BaseAsset  string `json:"baseAsset"`
			QuoteAsset string `json:"quoteAsset"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, BadResponse(b.VenueID(), "decode exchangeInfo", err)
	}

	symbolMap := make(map[string]string, len(resp.Symbols))
	var symbols []string
	for _, s := range resp.Symbols {
		if s.Status != "TRADING" || s.QuoteAsset != "USDT" {
			continue
		}
		base := utils.BaseSymbol(s.BaseAsset)
		if !utils.IsValidSymbol(base) {
			continue
		}
		symbolMap[s.Symbol] = base
		symbols = append(symbols, base)
	}
	b.mu.Lock()
	b.symbolMap = symbolMap
	b.mu.Unlock()

	return symbols, nil
}

// FetchQuotes возвращает котировки по запрошенным базовым символам.
// Один bulk запрос bookTicker покрывает все пары биржи.
func (b *Binance) FetchQuotes(ctx context.Context, symbols []string) ([]models.Quote, error) {
	var body []byte
	err := b.retryer.Do(ctx, func() error {
		var e error
		body, e = b.doRequest(ctx, "/api/v3/ticker/bookTicker", nil)
		return e
	})
	if err != nil {
		return nil, err
	}

	var tickers []struct {
		Symbol   string `json:"symbol"`
		BidPrice string `json:"bidPrice"`
		AskPrice string `json:"askPrice"`
	}
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, BadResponse(b.VenueID(), "decode bookTicker", err)
	}

	wanted := symbolSet(symbols)
	nowMs := utils.NowMs()

	b.mu.RLock()
	symbolMap := b.symbolMap
	b.mu.RUnlock()

	quotes := make([]models.Quote, 0, len(tickers))
	for _, t := range tickers {
		base, ok := symbolMap[t.Symbol]
		if !ok {
			continue
		}
		if wanted != nil {
			if _, ok := wanted[base]; !ok {
				continue
			}
		}

		bid, _ := strconv.ParseFloat(t.BidPrice, 64)
		ask, _ := strconv.ParseFloat(t.AskPrice, 64)
		if bid <= 0 || ask <= 0 || bid > ask {
			continue
		}

		quotes = append(quotes, models.Quote{
			VenueID:      b.VenueID(),
			Symbol:       base,
			Bid:          bid,
			Ask:          ask,
			ReceivedAtMs: nowMs,
		})
	}

	return quotes, nil
}

// FetchOrderBook возвращает стакан глубиной depth уровней
func (b *Binance) FetchOrderBook(ctx context.Context, symbol string, depth int) (*models.OrderBook, error) {
	exchangeSymbol := b.exchangeSymbol(symbol)
	if exchangeSymbol == "" {
		return nil, BadResponse(b.VenueID(), "unknown symbol "+symbol, nil)
	}
	if depth <= 0 {
		depth = 50
	}

	started := time.Now()
	var body []byte
	err := b.retryer.Do(ctx, func() error {
		var e error
		body, e = b.doRequest(ctx, "/api/v3/depth", map[string]string{
			"symbol": exchangeSymbol,
			"limit":  strconv.Itoa(depth),
		})
		return e
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Bids [][2]json.Number `json:"bids"`
		Asks [][2]json.Number `json:"asks"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, BadResponse(b.VenueID(), "decode depth", err)
	}

	book := &models.OrderBook{
		VenueID:   b.VenueID(),
		Symbol:    symbol,
		Bids:      parseNumberLevels(resp.Bids),
		Asks:      parseNumberLevels(resp.Asks),
		LatencyMs: float64(time.Since(started).Milliseconds()),
		Timestamp: time.Now().UTC(),
	}

	if !book.IsSorted() {
		return nil, BadResponse(b.VenueID(), "order book sort invariant violated", nil)
	}

	return book, nil
}

// exchangeSymbol подбирает биржевой символ по базовому
func (b *Binance) exchangeSymbol(base string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	direct := base + "USDT"
	if _, ok := b.symbolMap[direct]; ok {
		return direct
	}
	for exch, bs := range b.symbolMap {
		if bs == base {
			return exch
		}
	}
	return ""
}

// parseNumberLevels разбирает уровни стакана вида [["price","qty"], ...]
func parseNumberLevels(raw [][2]json.Number) []models.PriceLevel {
	levels := make([]models.PriceLevel, 0, len(raw))
	for _, l := range raw {
		price, _ := l[0].Float64()
		size, _ := l[1].Float64()
		if price <= 0 || size <= 0 {
			continue
		}
		levels = append(levels, models.PriceLevel{Price: price, Size: size})
	}
	return levels
}

// symbolSet строит множество запрошенных символов (nil = все)
func symbolSet(symbols []string) map[string]struct{} {
	if len(symbols) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[utils.BaseSymbol(s)] = struct{}{}
	}
	return set
}
