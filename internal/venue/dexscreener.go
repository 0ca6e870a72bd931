package venue

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"spreadwatch/internal/models"
	"spreadwatch/pkg/ratelimit"
	"spreadwatch/pkg/retry"
	"spreadwatch/pkg/utils"
)

// dexscreener.go - адаптер спотовых DEX котировок через агрегатор DexScreener
//
// У DEX пула нет стакана: адаптер синтезирует bid/ask уровни из
// кривой ценового влияния AMM. Для пула constant-product исполнение
// объема q USD сдвигает цену примерно на 2q/L, где L - ликвидность
// пула в USD; уровни расставляются по сетке импактов.

const dexscreenerDefaultBaseURL = "https://api.dexscreener.com"

// Сетка ценовых импактов синтетического стакана (в долях)
var dexImpactGrid = []float64{0.001, 0.0025, 0.005, 0.01, 0.02, 0.05}

// TokenRef - привязка символа к пулу для маршрутизации котировок
type TokenRef struct {
	Symbol  string
	Chain   string
	Address string
}

// DexScreener - адаптер спотовых DEX площадок.
//
// Один адаптер обслуживает все отслеживаемые токены: карта токенов
// наполняется вселенной тикеров через SetTokens. Bulk опрос идет
// по токену за запрос, поэтому бюджет таймаута - DEX bulk (90s).
type DexScreener struct {
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.RateLimiter
	retryer    *retry.Retryer
	log        *utils.Logger

	mu     sync.RWMutex
	tokens map[string]TokenRef // базовый символ -> пул

	// последняя цена и ликвидность по символам, для синтеза стакана
	lastQuotes map[string]models.Quote
}

// NewDexScreener создает адаптер DexScreener
func NewDexScreener(log *utils.Logger) *DexScreener {
	return NewDexScreenerWithBaseURL(dexscreenerDefaultBaseURL, log)
}

// NewDexScreenerWithBaseURL создает адаптер с нестандартным base URL (для тестов)
func NewDexScreenerWithBaseURL(baseURL string, log *utils.Logger) *DexScreener {
	return &DexScreener{
		baseURL:    baseURL,
		httpClient: GetGlobalHTTPClient().GetClient(),
		limiter:    ratelimit.NewRateLimiter(5, 10),
		retryer:    retry.NewRetryer(retry.VenueConfig()),
		log:        log.WithComponent("dexscreener"),
		tokens:     make(map[string]TokenRef),
		lastQuotes: make(map[string]models.Quote),
	}
}

// Venue возвращает обобщенное описание площадки.
//
// Конкретная площадка (dex, цепочка, адрес) зависит от символа;
// venue_id котировок строится по пулу в момент опроса.
func (d *DexScreener) Venue() models.Venue {
	return models.Venue{Kind: models.VenueKindDexSpot, Dex: "dexscreener"}
}

// VenueID возвращает идентификатор адаптера
func (d *DexScreener) VenueID() string {
	return "dexscreener_dex"
}

// SetTokens заменяет карту отслеживаемых токенов.
// Вызывается вселенной тикеров после каждого пересборки.
func (d *DexScreener) SetTokens(tokens []TokenRef) {
	m := make(map[string]TokenRef, len(tokens))
	for _, t := range tokens {
		m[utils.BaseSymbol(t.Symbol)] = t
	}
	d.mu.Lock()
	d.tokens = m
	d.mu.Unlock()
}

// VenueFor возвращает venue для символа (после SetTokens)
func (d *DexScreener) VenueFor(symbol string) (models.Venue, bool) {
	d.mu.RLock()
	ref, ok := d.tokens[utils.BaseSymbol(symbol)]
	d.mu.RUnlock()
	if !ok {
		return models.Venue{}, false
	}
	return models.NewDexSpotVenue("dexscreener", ref.Chain, ref.Address), true
}

// doRequest выполняет GET запрос к API DexScreener
func (d *DexScreener) doRequest(ctx context.Context, endpoint string) ([]byte, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+endpoint, nil)
	if err != nil {
		return nil, BadResponse(d.VenueID(), "build request", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, ClassifyNetError(d.VenueID(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ClassifyNetError(d.VenueID(), err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPStatus(d.VenueID(), resp.StatusCode)
	}

	return body, nil
}

// ListSymbols возвращает символы с известной маршрутизацией пулов
func (d *DexScreener) ListSymbols(ctx context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	symbols := make([]string, 0, len(d.tokens))
	for s := range d.tokens {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// dexPair - ответ DexScreener по одному пулу
type dexPair struct {
	ChainID   string `json:"chainId"`
	DexID     string `json:"dexId"`
	PriceUSD  string `json:"priceUsd"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	BaseToken struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
}

// FetchQuotes опрашивает пулы запрошенных символов.
//
// Запрос на токен; отказ по одному токену не валит батч - токен
// просто пропускается в этом тике.
func (d *DexScreener) FetchQuotes(ctx context.Context, symbols []string) ([]models.Quote, error) {
	d.mu.RLock()
	refs := make([]TokenRef, 0, len(d.tokens))
	if len(symbols) == 0 {
		for _, ref := range d.tokens {
			refs = append(refs, ref)
		}
	} else {
		for _, s := range symbols {
			if ref, ok := d.tokens[utils.BaseSymbol(s)]; ok {
				refs = append(refs, ref)
			}
		}
	}
	d.mu.RUnlock()

	sort.Slice(refs, func(i, j int) bool { return refs[i].Symbol < refs[j].Symbol })

	quotes := make([]models.Quote, 0, len(refs))
	for _, ref := range refs {
		if ctx.Err() != nil {
			return quotes, ctx.Err()
		}

		quote, err := d.fetchTokenQuote(ctx, ref)
		if err != nil {
			d.log.Debug("dex token fetch failed",
				utils.Symbol(ref.Symbol), utils.Err(err))
			continue
		}
		quotes = append(quotes, *quote)
	}

	d.mu.Lock()
	for _, q := range quotes {
		d.lastQuotes[q.Symbol] = q
	}
	d.mu.Unlock()

	return quotes, nil
}

// fetchTokenQuote опрашивает один токен и выбирает самый ликвидный пул
func (d *DexScreener) fetchTokenQuote(ctx context.Context, ref TokenRef) (*models.Quote, error) {
	var body []byte
	err := d.retryer.Do(ctx, func() error {
		var e error
		body, e = d.doRequest(ctx, "/latest/dex/tokens/"+ref.Address)
		return e
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Pairs []dexPair `json:"pairs"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, BadResponse(d.VenueID(), "decode token response", err)
	}

	var best *dexPair
	for i := range resp.Pairs {
		p := &resp.Pairs[i]
		if p.ChainID != ref.Chain {
			continue
		}
		if best == nil || p.Liquidity.USD > best.Liquidity.USD {
			best = p
		}
	}
	if best == nil {
		return nil, BadResponse(d.VenueID(), "no pool on chain "+ref.Chain+" for "+ref.Symbol, nil)
	}

	price, _ := strconv.ParseFloat(best.PriceUSD, 64)
	if price <= 0 {
		return nil, BadResponse(d.VenueID(), "no price for "+ref.Symbol, nil)
	}

	// venue_id котировки обязан совпадать с venue_id пары вселенной:
	// slug агрегатора, не dexId пула
	venue := models.NewDexSpotVenue("dexscreener", ref.Chain, ref.Address)
	base := utils.BaseSymbol(ref.Symbol)

	return &models.Quote{
		VenueID:      venue.ID(),
		Symbol:       base,
		Bid:          price,
		Ask:          price,
		Last:         price,
		LiquidityUSD: best.Liquidity.USD,
		Volume24hUSD: best.Volume.H24,
		ReceivedAtMs: utils.NowMs(),
	}, nil
}

// FetchOrderBook синтезирует стакан из кривой ценового влияния пула.
//
// Параметр depth игнорируется: глубина определяется сеткой импактов.
func (d *DexScreener) FetchOrderBook(ctx context.Context, symbol string, depth int) (*models.OrderBook, error) {
	base := utils.BaseSymbol(symbol)

	d.mu.RLock()
	quote, ok := d.lastQuotes[base]
	ref, hasRef := d.tokens[base]
	d.mu.RUnlock()

	// Нет свежего опроса - опрашиваем пул сейчас
	if !ok || !quote.IsFresh(utils.NowMs(), 60_000) {
		if !hasRef {
			return nil, BadResponse(d.VenueID(), "unknown symbol "+symbol, nil)
		}
		fetched, err := d.fetchTokenQuote(ctx, ref)
		if err != nil {
			return nil, err
		}
		quote = *fetched
		d.mu.Lock()
		d.lastQuotes[base] = quote
		d.mu.Unlock()
	}

	if quote.LiquidityUSD <= 0 {
		return nil, BadResponse(d.VenueID(), "pool liquidity unknown for "+symbol, nil)
	}

	book := SynthesizeBook(quote)
	return book, nil
}

// SynthesizeBook строит синтетический стакан из цены и ликвидности пула.
//
// Для каждого импакта i сетки объем до этого импакта q = L*i/2;
// уровень получает инкремент объема относительно предыдущего, а
// цена уровня - середину интервала импакта. Биды зеркальны аскам.
func SynthesizeBook(quote models.Quote) *models.OrderBook {
	price := quote.MidPrice()
	liq := quote.LiquidityUSD

	asks := make([]models.PriceLevel, 0, len(dexImpactGrid))
	bids := make([]models.PriceLevel, 0, len(dexImpactGrid))

	var prevUSD float64
	for _, impact := range dexImpactGrid {
		cumUSD := liq * impact / 2
		levelUSD := cumUSD - prevUSD
		prevUSD = cumUSD
		if levelUSD <= 0 {
			continue
		}

		askPrice := price * (1 + impact)
		bidPrice := price * (1 - impact)

		asks = append(asks, models.PriceLevel{Price: askPrice, Size: levelUSD / askPrice})
		if bidPrice > 0 {
			bids = append(bids, models.PriceLevel{Price: bidPrice, Size: levelUSD / bidPrice})
		}
	}

	return &models.OrderBook{
		VenueID:   quote.VenueID,
		Symbol:    quote.Symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: time.Now().UTC(),
	}
}
