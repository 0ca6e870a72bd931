package venue

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// binance_test.go - тесты адаптера Binance spot

func binanceServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/exchangeInfo", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbols":[
			{"symbol":"PEPEUSDT","status":"TRADING","baseAsset":"PEPE","quoteAsset":"USDT"},
			{"symbol":"OLDUSDT","status":"BREAK","baseAsset":"OLD","quoteAsset":"USDT"},
			{"symbol":"PEPEBTC","status":"TRADING","baseAsset":"PEPE","quoteAsset":"BTC"}
		]}`))
	})
	mux.HandleFunc("/api/v3/ticker/bookTicker", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"symbol":"PEPEUSDT","bidPrice":"0.0000011","askPrice":"0.0000012"},
			{"symbol":"UNKNOWNUSDT","bidPrice":"1.0","askPrice":"1.1"}
		]`))
	})
	return httptest.NewServer(mux)
}

func TestBinanceListSymbolsFiltersNonTradingAndQuote(t *testing.T) {
	srv := binanceServer()
	defer srv.Close()

	b := NewBinanceWithBaseURL(srv.URL, testLogger())
	symbols, err := b.ListSymbols(context.Background())
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 1 || symbols[0] != "PEPE" {
		t.Fatalf("symbols: got %v want [PEPE]", symbols)
	}

	quotes, err := b.FetchQuotes(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchQuotes: %v", err)
	}
	if len(quotes) != 1 || quotes[0].Symbol != "PEPE" {
		t.Fatalf("quotes: got %+v", quotes)
	}
	if quotes[0].Bid != 0.0000011 || quotes[0].Ask != 0.0000012 {
		t.Errorf("prices: got bid=%v ask=%v", quotes[0].Bid, quotes[0].Ask)
	}
}

func TestBinanceConcurrentRebuildAndQuotes(t *testing.T) {
	srv := binanceServer()
	defer srv.Close()

	b := NewBinanceWithBaseURL(srv.URL, testLogger())
	if _, err := b.ListSymbols(context.Background()); err != nil {
		t.Fatalf("seed symbols: %v", err)
	}

	// Пересборка вселенной идет параллельно тикам котировок:
	// карта символов перезаписывается под чтение
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 8; j++ {
				if _, err := b.ListSymbols(context.Background()); err != nil {
					t.Errorf("ListSymbols: %v", err)
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 8; j++ {
				quotes, err := b.FetchQuotes(context.Background(), nil)
				if err != nil {
					t.Errorf("FetchQuotes: %v", err)
					return
				}
				if len(quotes) != 1 {
					t.Errorf("quotes under rebuild: got %d want 1", len(quotes))
					return
				}
			}
		}()
	}
	wg.Wait()
}
