package universe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"spreadwatch/internal/venue"
	"spreadwatch/pkg/ratelimit"
	"spreadwatch/pkg/retry"
	"spreadwatch/pkg/utils"
)

// resolver.go - разрешение символа в адреса контрактов
//
// Два внешних источника метаданных: CoinGecko (поиск монеты и ее
// platforms) и DexScreener (поиск пулов по тикеру). Перед ними стоит
// кураторский список известных мажоров: у популярных тикеров полно
// мемкоинов-тезок, и слепой поиск по символу вернет не тот контракт.

const (
	coingeckoDefaultBaseURL = "https://api.coingecko.com"
	dexSearchDefaultBaseURL = "https://api.dexscreener.com"
	minResolvedLiquidityUSD = 10_000
)

// knownMajorAddresses - кураторские адреса известных токенов.
// Символ из списка никогда не разрешается поиском.
var knownMajorAddresses = map[string]map[string]string{
	"UNI":  {"ethereum": "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984"},
	"LINK": {"ethereum": "0x514910771af9ca656af840dff83e8264ecf986ca"},
	"ARB":  {"arbitrum": "0x912ce59144191c1204e64559fe8253a0e49e6548"},
	"OP":   {"optimism": "0x4200000000000000000000000000000000000042"},
	"AAVE": {"ethereum": "0x7fc66500c84a76ad7e9c93437bfc5ac33e2ddae9"},
	"PEPE": {"ethereum": "0x6982508145454ce325ddbe47a25d4ec3d2311933"},
	"SHIB": {"ethereum": "0x95ad61b0a150d79219dcf64e1e6cc01f0b64c4ce"},
}

// TokenResolver разрешает базовый символ в адреса контрактов по цепочкам
type TokenResolver struct {
	coingeckoBaseURL string
	dexBaseURL       string
	httpClient       *http.Client
	limiter          *ratelimit.RateLimiter
	retryer          *retry.Retryer
	log              *utils.Logger
}

// NewTokenResolver создает резолвер с источниками по умолчанию
func NewTokenResolver(log *utils.Logger) *TokenResolver {
	return NewTokenResolverWithBaseURLs(coingeckoDefaultBaseURL, dexSearchDefaultBaseURL, log)
}

// NewTokenResolverWithBaseURLs создает резолвер с нестандартными URL (для тестов)
func NewTokenResolverWithBaseURLs(coingeckoBaseURL, dexBaseURL string, log *utils.Logger) *TokenResolver {
	return &TokenResolver{
		coingeckoBaseURL: coingeckoBaseURL,
		dexBaseURL:       dexBaseURL,
		httpClient:       venue.GetGlobalHTTPClient().GetClient(),
		limiter:          ratelimit.NewRateLimiter(2, 4),
		retryer:          retry.NewRetryer(retry.VenueConfig()),
		log:              log.WithComponent("token_resolver"),
	}
}

// Resolve возвращает карту chain -> address для базового символа.
// Порядок источников: кураторский список, CoinGecko, DexScreener.
// Пустая карта без ошибки означает "токен ончейн не найден".
func (r *TokenResolver) Resolve(ctx context.Context, symbol string) (map[string]string, error) {
	base := utils.BaseSymbol(symbol)

	if addrs, ok := knownMajorAddresses[base]; ok {
		out := make(map[string]string, len(addrs))
		for chain, addr := range addrs {
			out[chain] = addr
		}
		return out, nil
	}

	if addrs, err := r.resolveCoingecko(ctx, base); err == nil && len(addrs) > 0 {
		return addrs, nil
	} else if err != nil {
		r.log.Debug("coingecko lookup failed", utils.Symbol(base), utils.Err(err))
	}

	return r.resolveDexScreener(ctx, base)
}

// doGet выполняет GET и возвращает тело при 200
func (r *TokenResolver) doGet(ctx context.Context, rawURL string) ([]byte, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, venue.ClassifyHTTPStatus("token_resolver", resp.StatusCode)
	}
	return body, nil
}

// resolveCoingecko ищет монету по символу и забирает ее platforms
func (r *TokenResolver) resolveCoingecko(ctx context.Context, symbol string) (map[string]string, error) {
	var searchBody []byte
	err := r.retryer.Do(ctx, func() error {
		var e error
		searchBody, e = r.doGet(ctx, r.coingeckoBaseURL+"/api/v3/search?query="+url.QueryEscape(symbol))
		return e
	})
	if err != nil {
		return nil, err
	}

	var search struct {
		Coins []struct {
			ID     string `json:"id"`
			Symbol string `json:"symbol"`
		} `json:"coins"`
	}
	if err := json.Unmarshal(searchBody, &search); err != nil {
		return nil, err
	}

	// Первая монета с точным совпадением символа
	var coinID string
	for _, c := range search.Coins {
		if strings.EqualFold(c.Symbol, symbol) {
			coinID = c.ID
			break
		}
	}
	if coinID == "" {
		return nil, nil
	}

	var coinBody []byte
	err = r.retryer.Do(ctx, func() error {
		var e error
		coinBody, e = r.doGet(ctx, r.coingeckoBaseURL+"/api/v3/coins/"+url.PathEscape(coinID)+"?localization=false&tickers=false&market_data=false&community_data=false&developer_data=false")
		return e
	})
	if err != nil {
		return nil, err
	}

	var coin struct {
		Platforms map[string]string `json:"platforms"`
	}
	if err := json.Unmarshal(coinBody, &coin); err != nil {
		return nil, err
	}

	addrs := make(map[string]string)
	for chain, addr := range coin.Platforms {
		if chain == "" || addr == "" {
			continue
		}
		addrs[strings.ToLower(chain)] = strings.ToLower(addr)
	}
	return addrs, nil
}

// resolveDexScreener ищет самый ликвидный пул с совпадающим базовым символом
func (r *TokenResolver) resolveDexScreener(ctx context.Context, symbol string) (map[string]string, error) {
	var body []byte
	err := r.retryer.Do(ctx, func() error {
		var e error
		body, e = r.doGet(ctx, r.dexBaseURL+"/latest/dex/search?q="+url.QueryEscape(symbol))
		return e
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Pairs []struct {
			ChainID   string `json:"chainId"`
			Liquidity struct {
				USD float64 `json:"usd"`
			} `json:"liquidity"`
			BaseToken struct {
				Address string `json:"address"`
				Symbol  string `json:"symbol"`
			} `json:"baseToken"`
		} `json:"pairs"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	// Лучший пул на цепочку; пулы тоньше порога не рассматриваются,
	// иначе тезка-мемкоин с нулевой ликвидностью перекроет настоящий токен
	type best struct {
		addr string
		liq  float64
	}
	byChain := make(map[string]best)
	for _, p := range resp.Pairs {
		if !strings.EqualFold(p.BaseToken.Symbol, symbol) {
			continue
		}
		if p.Liquidity.USD < minResolvedLiquidityUSD {
			continue
		}
		chain := strings.ToLower(p.ChainID)
		if cur, ok := byChain[chain]; !ok || p.Liquidity.USD > cur.liq {
			byChain[chain] = best{addr: strings.ToLower(p.BaseToken.Address), liq: p.Liquidity.USD}
		}
	}

	addrs := make(map[string]string, len(byChain))
	for chain, b := range byChain {
		addrs[chain] = b.addr
	}
	return addrs, nil
}
