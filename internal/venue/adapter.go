package venue

import (
	"context"

	"spreadwatch/internal/models"
)

// adapter.go - контракт адаптера площадки
//
// Адаптер - единственное место, знающее протокол конкретной площадки.
// Весь конвейер работает только с унифицированными Quote/OrderBook.
//
// Политика отказов: любой вызов завершается типизированной ошибкой
// из errors.go; вызывающий код не блокируется дольше таймаута своего
// контекста (CEX <= 15s, DEX bulk <= 90s, perp DEX <= 60s).

// Adapter - унифицированный интерфейс площадки.
//
// FetchQuotes - bulk операция: площадки отдают все тикеры одним
// запросом, и коллектор опрашивает их раз в секунду. Адаптер
// возвращает котировки только по запрошенным базовым символам
// (пустой срез symbols = все известные).
type Adapter interface {
	// Venue возвращает описание площадки
	Venue() models.Venue

	// VenueID возвращает идентификатор площадки
	VenueID() string

	// ListSymbols возвращает базовые символы, торгуемые на площадке
	ListSymbols(ctx context.Context) ([]string, error)

	// FetchQuotes возвращает котировки по запрошенным базовым символам
	FetchQuotes(ctx context.Context, symbols []string) ([]models.Quote, error)

	// FetchOrderBook возвращает стакан глубиной depth уровней на сторону.
	// DEX адаптеры синтезируют стакан из кривой ценового влияния.
	FetchOrderBook(ctx context.Context, symbol string, depth int) (*models.OrderBook, error)
}

// TransferStatusProvider - опциональная способность адаптера:
// статус ввода/вывода токена (нужен manual парам с переводом токена)
type TransferStatusProvider interface {
	FetchTransferStatus(ctx context.Context, symbol string) (*models.TransferStatus, error)
}
