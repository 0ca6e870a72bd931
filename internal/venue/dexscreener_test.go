package venue

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"spreadwatch/pkg/utils"
)

// dexscreener_test.go - тесты адаптера DexScreener

const pepeAddress = "0x6982508145454ce325ddbe47a25d4ec3d2311933"

func testLogger() *utils.Logger {
	return utils.InitLogger(utils.LogConfig{Level: "error"})
}

func dexTokenServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest/dex/tokens/"+pepeAddress {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pairs":[
			{"chainId":"ethereum","dexId":"uniswap","priceUsd":"0.0000012","liquidity":{"usd":5000000},"volume":{"h24":1200000},"baseToken":{"address":"` + pepeAddress + `","symbol":"PEPE"}},
			{"chainId":"bsc","dexId":"pancakeswap","priceUsd":"0.0000013","liquidity":{"usd":9000000},"baseToken":{"address":"0xdead","symbol":"PEPE"}}
		]}`))
	}))
}

func TestDexScreenerQuoteVenueMatchesRegistered(t *testing.T) {
	srv := dexTokenServer()
	defer srv.Close()

	d := NewDexScreenerWithBaseURL(srv.URL, testLogger())
	d.SetTokens([]TokenRef{{Symbol: "PEPE", Chain: "ethereum", Address: pepeAddress}})

	quotes, err := d.FetchQuotes(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchQuotes: %v", err)
	}
	if len(quotes) != 1 {
		t.Fatalf("expected 1 quote, got %d", len(quotes))
	}

	registered, ok := d.VenueFor("PEPE")
	if !ok {
		t.Fatal("venue not resolved after SetTokens")
	}

	// venue_id котировки и venue_id пары вселенной обязаны совпадать:
	// по этому ключу движок спредов ищет котировку в кэше
	if quotes[0].VenueID != registered.ID() {
		t.Errorf("quote venue %q != registered venue %q", quotes[0].VenueID, registered.ID())
	}

	// Выбран пул нужной цепочки, а не самый ликвидный вообще
	if quotes[0].Last != 0.0000012 {
		t.Errorf("price: got %v want 0.0000012", quotes[0].Last)
	}
	if quotes[0].LiquidityUSD != 5000000 {
		t.Errorf("liquidity: got %v want 5000000", quotes[0].LiquidityUSD)
	}
}

func TestDexScreenerSynthesizedBookCarriesQuoteVenue(t *testing.T) {
	srv := dexTokenServer()
	defer srv.Close()

	d := NewDexScreenerWithBaseURL(srv.URL, testLogger())
	d.SetTokens([]TokenRef{{Symbol: "PEPE", Chain: "ethereum", Address: pepeAddress}})

	book, err := d.FetchOrderBook(context.Background(), "PEPE", 0)
	if err != nil {
		t.Fatalf("FetchOrderBook: %v", err)
	}
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		t.Fatal("synthesized book must have both sides")
	}

	registered, _ := d.VenueFor("PEPE")
	if book.VenueID != registered.ID() {
		t.Errorf("book venue %q != registered venue %q", book.VenueID, registered.ID())
	}
}
