package universe

import (
	"context"
	"sort"
	"sync"
	"time"

	"spreadwatch/internal/kv"
	"spreadwatch/internal/models"
	"spreadwatch/internal/venue"
	"spreadwatch/pkg/utils"
)

// registry.go - реестр тикеров и генерация арбитражных пар
//
// Вселенная строится фазами:
//  1. фьючерсные символы - авторитетный набор (по ним есть шорт);
//  2. поверх накладываются спотовые совпадения;
//  3. для пересечения разрешаются адреса контрактов;
//  4. по адресам добавляются DEX площадки;
//  5. поверх добавляются perp-DEX площадки;
//  6. валидация и генерация пар.
//
// Реестр - единственный владелец Ticker; замена вселенной в KV
// атомарна, читатели не видят недостроенный набор.

// Registry - реестр отслеживаемых тикеров
type Registry struct {
	store    *kv.Client
	spot     venue.Adapter
	futures  venue.Adapter
	perp     venue.Adapter
	dex      *venue.DexScreener
	resolver *TokenResolver
	log      *utils.Logger

	mu       sync.RWMutex
	tickers  []models.Ticker
	bySymbol map[string]*models.Ticker
}

// NewRegistry создает реестр тикеров
func NewRegistry(store *kv.Client, spot, futures, perp venue.Adapter, dex *venue.DexScreener, resolver *TokenResolver, log *utils.Logger) *Registry {
	return &Registry{
		store:    store,
		spot:     spot,
		futures:  futures,
		perp:     perp,
		dex:      dex,
		resolver: resolver,
		log:      log.WithComponent("universe"),
		bySymbol: make(map[string]*models.Ticker),
	}
}

// Restore поднимает вселенную из KV после рестарта.
// Отсутствие сохраненной вселенной не ошибка - будет построена заново.
func (r *Registry) Restore(ctx context.Context) error {
	tickers, err := r.store.LoadUniverse(ctx)
	if err != nil {
		if err == kv.ErrNotFound {
			return nil
		}
		return err
	}
	r.install(tickers)
	r.log.Info("universe restored", utils.Count(len(tickers)))
	return nil
}

// Build перестраивает вселенную с нуля и атомарно сохраняет ее в KV
func (r *Registry) Build(ctx context.Context) error {
	started := time.Now()

	// Фаза 1: фьючерсные символы - авторитетный набор
	futuresSymbols, err := r.futures.ListSymbols(ctx)
	if err != nil {
		return err
	}

	draft := make(map[string]*models.Ticker, len(futuresSymbols))
	for _, s := range futuresSymbols {
		base := utils.BaseSymbol(s)
		draft[base] = &models.Ticker{
			Symbol:    base,
			Venues:    []models.Venue{r.futures.Venue()},
			UpdatedAt: started.UTC(),
		}
	}
	r.log.Info("futures universe collected", utils.Count(len(draft)))

	// Фаза 2: спотовые совпадения
	spotSymbols, err := r.spot.ListSymbols(ctx)
	if err != nil {
		r.log.Warn("spot overlay failed, continuing without", utils.Err(err))
	} else {
		for _, s := range spotSymbols {
			if t, ok := draft[utils.BaseSymbol(s)]; ok {
				t.Venues = append(t.Venues, r.spot.Venue())
			}
		}
	}

	// Фаза 3: адреса контрактов. Отказ резолвера по одному символу не
	// валит построение - тикер просто остается без DEX ног.
	dexTokens := make([]venue.TokenRef, 0, len(draft))
	for base, t := range draft {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		addrs, err := r.resolver.Resolve(ctx, base)
		if err != nil || len(addrs) == 0 {
			continue
		}
		t.TokenAddresses = addrs

		// Фаза 4: DEX площадка на каждую цепочку с известным адресом
		chains := make([]string, 0, len(addrs))
		for chain := range addrs {
			chains = append(chains, chain)
		}
		sort.Strings(chains)
		for _, chain := range chains {
			addr := addrs[chain]
			t.Venues = append(t.Venues, models.NewDexSpotVenue("dexscreener", chain, addr))
			dexTokens = append(dexTokens, venue.TokenRef{Symbol: base, Chain: chain, Address: addr})
		}
	}
	r.dex.SetTokens(dexTokens)

	// Фаза 5: perp-DEX площадки
	perpSymbols, err := r.perp.ListSymbols(ctx)
	if err != nil {
		r.log.Warn("perp overlay failed, continuing without", utils.Err(err))
	} else {
		for _, s := range perpSymbols {
			if t, ok := draft[utils.BaseSymbol(s)]; ok {
				t.Venues = append(t.Venues, r.perp.Venue())
			}
		}
	}

	// Фаза 6: валидация и генерация пар
	tickers := make([]models.Ticker, 0, len(draft))
	for _, t := range draft {
		validate(t)
		if t.Valid {
			t.Pairs = generatePairs(t)
		}
		tickers = append(tickers, *t)
	}
	sort.Slice(tickers, func(i, j int) bool { return tickers[i].Symbol < tickers[j].Symbol })

	if err := r.store.SaveUniverse(ctx, tickers); err != nil {
		return err
	}
	r.install(tickers)

	valid := 0
	pairs := 0
	for i := range tickers {
		if tickers[i].Valid {
			valid++
			pairs += len(tickers[i].Pairs)
		}
	}
	r.log.Info("universe rebuilt",
		utils.Count(len(tickers)),
		utils.Int("valid", valid),
		utils.Int("pairs", pairs),
		utils.Dur("took", time.Since(started)))
	return nil
}

// Run перестраивает вселенную раз в interval до отмены контекста
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Build(ctx); err != nil {
				r.log.Error("universe rebuild failed", utils.Err(err))
			}
		}
	}
}

// install заменяет рабочий набор реестра
func (r *Registry) install(tickers []models.Ticker) {
	bySymbol := make(map[string]*models.Ticker, len(tickers))
	for i := range tickers {
		bySymbol[tickers[i].Symbol] = &tickers[i]
	}

	r.mu.Lock()
	r.tickers = tickers
	r.bySymbol = bySymbol
	r.mu.Unlock()

	// DEX токены нужны адаптеру и после Restore
	var dexTokens []venue.TokenRef
	for i := range tickers {
		for chain, addr := range tickers[i].TokenAddresses {
			dexTokens = append(dexTokens, venue.TokenRef{Symbol: tickers[i].Symbol, Chain: chain, Address: addr})
		}
	}
	if len(dexTokens) > 0 && r.dex != nil {
		r.dex.SetTokens(dexTokens)
	}
}

// Tickers возвращает текущую вселенную
func (r *Registry) Tickers() []models.Ticker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Ticker, len(r.tickers))
	copy(out, r.tickers)
	return out
}

// Get возвращает тикер по базовому символу
func (r *Registry) Get(symbol string) (*models.Ticker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.bySymbol[utils.BaseSymbol(symbol)]
	if !ok {
		return nil, false
	}
	copied := *t
	return &copied, true
}

// Pairs возвращает все сгенерированные пары валидных тикеров
func (r *Registry) Pairs() []models.ArbitragePair {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var pairs []models.ArbitragePair
	for i := range r.tickers {
		pairs = append(pairs, r.tickers[i].Pairs...)
	}
	return pairs
}

// validate проверяет пригодность тикера к арбитражу
func validate(t *models.Ticker) {
	t.Valid = false
	t.ValidationErrors = nil

	if !utils.IsValidSymbol(t.Symbol) {
		t.ValidationErrors = append(t.ValidationErrors, "invalid symbol")
	}
	if len(t.Venues) < 2 {
		t.ValidationErrors = append(t.ValidationErrors, "needs at least two venues")
	}
	for _, v := range t.Venues {
		if v.Kind == models.VenueKindDexSpot && v.TokenAddress == "" {
			t.ValidationErrors = append(t.ValidationErrors, "dex venue without token address")
			break
		}
	}

	t.Valid = len(t.ValidationErrors) == 0
}

// generatePairs перечисляет неупорядоченные комбинации площадок тикера
func generatePairs(t *models.Ticker) []models.ArbitragePair {
	var pairs []models.ArbitragePair
	for i := 0; i < len(t.Venues); i++ {
		for j := i + 1; j < len(t.Venues); j++ {
			pairs = append(pairs, models.NewArbitragePair(t.Symbol, t.Venues[i], t.Venues[j]))
		}
	}
	return pairs
}
