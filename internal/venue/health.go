package venue

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"spreadwatch/internal/metrics"
	"spreadwatch/internal/models"
	"spreadwatch/pkg/utils"
)

// health.go - circuit breaker поверх адаптера площадки
//
// Площадка, стабильно отдающая ошибки, выводится из опроса целиком:
// открытый breaker мгновенно возвращает KindUnavailable вместо того,
// чтобы жечь таймауты каждый тик. Полуоткрытое состояние пропускает
// пробный запрос; успех возвращает площадку в строй.

// GuardedAdapter оборачивает Adapter в circuit breaker.
//
// Реализует тот же интерфейс Adapter - конвейер не различает
// защищенные и голые адаптеры.
type GuardedAdapter struct {
	inner Adapter
	cb    *gobreaker.CircuitBreaker
	log   *utils.Logger
}

// GuardAdapter оборачивает адаптер в circuit breaker.
//
// Параметры выбраны под секундный опрос: 5 последовательных отказов
// открывают breaker на 30 секунд, полуоткрытое состояние пропускает
// 2 пробных запроса.
func GuardAdapter(inner Adapter, log *utils.Logger) *GuardedAdapter {
	venueID := inner.VenueID()
	g := &GuardedAdapter{
		inner: inner,
		log:   log.WithVenue(venueID),
	}

	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        venueID,
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			up := to == gobreaker.StateClosed
			metrics.SetAdapterUp(name, up)
			g.log.Warn("adapter breaker state change",
				utils.String("from", from.String()),
				utils.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// Отмена контекста - не здоровье площадки
			if errors.Is(err, context.Canceled) {
				return true
			}
			return err == nil
		},
	})

	metrics.SetAdapterUp(venueID, true)
	return g
}

// execute пропускает вызов через breaker, маппя открытое состояние
// в KindUnavailable
func (g *GuardedAdapter) execute(op func() (interface{}, error)) (interface{}, error) {
	result, err := g.cb.Execute(op)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, Unavailable(g.inner.VenueID(), "circuit breaker open", err)
		}
		return nil, err
	}
	return result, nil
}

// Venue возвращает описание площадки
func (g *GuardedAdapter) Venue() models.Venue {
	return g.inner.Venue()
}

// VenueID возвращает идентификатор площадки
func (g *GuardedAdapter) VenueID() string {
	return g.inner.VenueID()
}

// ListSymbols возвращает символы площадки через breaker
func (g *GuardedAdapter) ListSymbols(ctx context.Context) ([]string, error) {
	result, err := g.execute(func() (interface{}, error) {
		return g.inner.ListSymbols(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

// FetchQuotes возвращает котировки через breaker
func (g *GuardedAdapter) FetchQuotes(ctx context.Context, symbols []string) ([]models.Quote, error) {
	result, err := g.execute(func() (interface{}, error) {
		return g.inner.FetchQuotes(ctx, symbols)
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.Quote), nil
}

// FetchOrderBook возвращает стакан через breaker
func (g *GuardedAdapter) FetchOrderBook(ctx context.Context, symbol string, depth int) (*models.OrderBook, error) {
	result, err := g.execute(func() (interface{}, error) {
		return g.inner.FetchOrderBook(ctx, symbol, depth)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.OrderBook), nil
}

// FetchTransferStatus пробрасывает опциональную способность внутреннего адаптера
func (g *GuardedAdapter) FetchTransferStatus(ctx context.Context, symbol string) (*models.TransferStatus, error) {
	provider, ok := g.inner.(TransferStatusProvider)
	if !ok {
		return nil, NotSupported(g.inner.VenueID(), "transfer status")
	}
	result, err := g.execute(func() (interface{}, error) {
		return provider.FetchTransferStatus(ctx, symbol)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.TransferStatus), nil
}
