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

// bybit.go - адаптер фьючерсной секции Bybit (v5, category=linear)

const bybitDefaultBaseURL = "https://api.bybit.com"

// Bybit - адаптер CEX futures площадки Bybit.
//
// Публичные market data endpoints v5; фьючерсные символы Bybit -
// авторитетный набор при построении вселенной тикеров.
type Bybit struct {
	baseURL    string
	venue      models.Venue
	httpClient *http.Client
	limiter    *ratelimit.RateLimiter
	retryer    *retry.Retryer
	log        *utils.Logger

	// Наполняется ListSymbols, читается котировками и стаканами конкурентно
	mu             sync.RWMutex
	symbolMap      map[string]string // биржевой символ -> базовый
	transferStatus map[string]models.TransferStatus
}

// NewBybit создает адаптер Bybit futures
func NewBybit(log *utils.Logger) *Bybit {
	return NewBybitWithBaseURL(bybitDefaultBaseURL, log)
}

// NewBybitWithBaseURL создает адаптер с нестандартным base URL (для тестов)
func NewBybitWithBaseURL(baseURL string, log *utils.Logger) *Bybit {
	v := models.NewCexFuturesVenue("bybit")
	return &Bybit{
		baseURL:        baseURL,
		venue:          v,
		httpClient:     GetGlobalHTTPClient().GetClient(),
		limiter:        ratelimit.NewRateLimiter(10, 20),
		retryer:        retry.NewRetryer(retry.VenueConfig()),
		log:            log.WithVenue(v.ID()),
		symbolMap:      make(map[string]string),
		transferStatus: make(map[string]models.TransferStatus),
	}
}

// Venue возвращает описание площадки
func (b *Bybit) Venue() models.Venue {
	return b.venue
}

// VenueID возвращает идентификатор площадки
func (b *Bybit) VenueID() string {
	return b.venue.ID()
}

// doRequest выполняет GET запрос к публичному API Bybit v5.
// Ненулевой retCode в обертке ответа считается неразбираемым ответом.
func (b *Bybit) doRequest(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, error) {
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

	var baseResp struct {
		RetCode int             `json:"retCode"`
		RetMsg  string          `json:"retMsg"`
		Result  json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &baseResp); err != nil {
		return nil, BadResponse(b.VenueID(), "decode envelope", err)
	}
	if baseResp.RetCode != 0 {
		return nil, BadResponse(b.VenueID(), "retCode "+strconv.Itoa(baseResp.RetCode)+": "+baseResp.RetMsg, nil)
	}

	return baseResp.Result, nil
}

// ListSymbols возвращает базовые символы торгуемых линейных контрактов
func (b *Bybit) ListSymbols(ctx context.Context) ([]string, error) {
	var result json.RawMessage
	err := b.retryer.Do(ctx, func() error {
		var e error
		result, e = b.doRequest(ctx, "/v5/market/instruments-info", map[string]string{
			"category": "linear",
			"limit":    "1000",
		})
		return e
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		List []struct {
			Symbol    string `json:"symbol"`
			Status    string `json:"status"`
			BaseCoin  string `json:"baseCoin"`
			QuoteCoin string `json:"quoteCoin"`
		} `json:"list"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, BadResponse(b.VenueID(), "decode instruments-info", err)
	}

	symbolMap := make(map[string]string, len(resp.List))
	var symbols []string
	for _, s := range resp.List {
		if s.Status != "Trading" || s.QuoteCoin != "USDT" {
			continue
		}
		base := utils.BaseSymbol(s.BaseCoin)
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
// Один bulk запрос tickers покрывает всю линейную секцию.
func (b *Bybit) FetchQuotes(ctx context.Context, symbols []string) ([]models.Quote, error) {
	var result json.RawMessage
	err := b.retryer.Do(ctx, func() error {
		var e error
		result, e = b.doRequest(ctx, "/v5/market/tickers", map[string]string{
			"category": "linear",
		})
		return e
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		List []struct {
			Symbol     string `json:"symbol"`
			Bid1Price  string `json:"bid1Price"`
			Ask1Price  string `json:"ask1Price"`
			LastPrice  string `json:"lastPrice"`
			Turnover24 string `json:"turnover24h"`
		} `json:"list"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, BadResponse(b.VenueID(), "decode tickers", err)
	}

	wanted := symbolSet(symbols)
	nowMs := utils.NowMs()

	b.mu.RLock()
	symbolMap := b.symbolMap
	b.mu.RUnlock()

	quotes := make([]models.Quote, 0, len(resp.List))
	for _, t := range resp.List {
		base, ok := symbolMap[t.Symbol]
		if !ok {
			continue
		}
		if wanted != nil {
			if _, ok := wanted[base]; !ok {
				continue
			}
		}

		bid, _ := strconv.ParseFloat(t.Bid1Price, 64)
		ask, _ := strconv.ParseFloat(t.Ask1Price, 64)
		last, _ := strconv.ParseFloat(t.LastPrice, 64)
		turnover, _ := strconv.ParseFloat(t.Turnover24, 64)
		if bid <= 0 || ask <= 0 || bid > ask {
			continue
		}

		quotes = append(quotes, models.Quote{
			VenueID:      b.VenueID(),
			Symbol:       base,
			Bid:          bid,
			Ask:          ask,
			Last:         last,
			Volume24hUSD: turnover,
			ReceivedAtMs: nowMs,
		})
	}

	return quotes, nil
}

// FetchOrderBook возвращает стакан линейного контракта
func (b *Bybit) FetchOrderBook(ctx context.Context, symbol string, depth int) (*models.OrderBook, error) {
	exchangeSymbol := b.exchangeSymbol(symbol)
	if exchangeSymbol == "" {
		return nil, BadResponse(b.VenueID(), "unknown symbol "+symbol, nil)
	}
	if depth <= 0 || depth > 200 {
		depth = 50
	}

	started := time.Now()
	var result json.RawMessage
	err := b.retryer.Do(ctx, func() error {
		var e error
		result, e = b.doRequest(ctx, "/v5/market/orderbook", map[string]string{
			"category": "linear",
			"symbol":   exchangeSymbol,
			"limit":    strconv.Itoa(depth),
		})
		return e
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Bids [][2]json.Number `json:"b"`
		Asks [][2]json.Number `json:"a"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, BadResponse(b.VenueID(), "decode orderbook", err)
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

// FetchTransferStatus возвращает статус ввода/вывода монеты.
//
// Публичный v5 endpoint статусов монет требует авторизации, поэтому
// статус аппроксимируется из кэша, наполняемого при построении
// вселенной; неизвестная монета считается переводимой.
func (b *Bybit) FetchTransferStatus(ctx context.Context, symbol string) (*models.TransferStatus, error) {
	base := utils.BaseSymbol(symbol)
	b.mu.RLock()
	st, ok := b.transferStatus[base]
	b.mu.RUnlock()
	if ok {
		return &st, nil
	}
	return &models.TransferStatus{
		Symbol:          base,
		DepositEnabled:  true,
		WithdrawEnabled: true,
		CheckedAt:       time.Now().UTC(),
	}, nil
}

// exchangeSymbol подбирает биржевой символ по базовому
func (b *Bybit) exchangeSymbol(base string) string {
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
