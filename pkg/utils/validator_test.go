package utils

import (
	"strings"
	"testing"
)

// ============================================================
// Тесты BaseSymbol
// ============================================================

func TestBaseSymbol(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		// Суффиксы котируемых валют
		{"usdt suffix", "BTCUSDT", "BTC"},
		{"usdc suffix", "SOLUSDC", "SOL"},
		{"usd suffix", "ETHUSD", "ETH"},
		{"fdusd suffix", "BNBFDUSD", "BNB"},

		// Разделители
		{"hyphen", "ETH-USDT", "ETH"},
		{"underscore", "ETH_USDT", "ETH"},
		{"slash", "ETH/USDT", "ETH"},
		{"lowercase", "eth-usdt", "ETH"},

		// Суффиксы бессрочных контрактов
		{"perp suffix", "SOL-PERP", "SOL"},
		{"swap suffix", "BTC-SWAP", "BTC"},
		{"perp without separator", "SOLPERP", "SOL"},

		// Не схлопывается в пустоту
		{"bare usdt", "USDT", "USDT"},
		{"bare perp", "PERP", "PERP"},
		{"usdc quoted in usdt", "USDCUSDT", "USDC"},

		// Уже нормализованные
		{"plain base", "ETH", "ETH"},
		{"numeric prefix", "1INCH", "1INCH"},
		{"with spaces", "  ETH  ", "ETH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BaseSymbol(tt.input); got != tt.expected {
				t.Errorf("BaseSymbol(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestQuoteSuffix(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"usdt", "BTCUSDT", "USDT"},
		{"usdc", "SOLUSDC", "USDC"},
		{"with separator", "ETH-USDT", "USDT"},
		{"no quote", "ETH", ""},
		{"bare quote", "USDT", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuoteSuffix(tt.input); got != tt.expected {
				t.Errorf("QuoteSuffix(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// ============================================================
// Тесты ValidateSymbol
// ============================================================

func TestValidateSymbol(t *testing.T) {
	tests := []struct {
		name    string
		symbol  string
		wantErr bool
	}{
		// Valid symbols
		{"valid BTCUSDT", "BTCUSDT", false},
		{"valid lowercase", "btcusdt", false},
		{"valid with hyphen", "BTC-USDT", false},
		{"valid bare base", "ETH", false},
		{"valid with numbers", "1INCH", false},
		{"valid single char", "X", false},

		// Invalid symbols
		{"empty", "", true},
		{"too long", "BTCUSDTBTCUSDTBTCUSDTBTCUSDTXXX", true},
		{"special chars", "BTC@USDT", true},
		{"cyrillic", "БТС", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSymbol(tt.symbol)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSymbol(%q) error = %v, wantErr %v", tt.symbol, err, tt.wantErr)
			}
		})
	}
}

func TestIsValidSymbol(t *testing.T) {
	if !IsValidSymbol("ETHUSDT") {
		t.Error("IsValidSymbol(ETHUSDT) = false, want true")
	}
	if IsValidSymbol("") {
		t.Error("IsValidSymbol(\"\") = true, want false")
	}
}

// ============================================================
// Тесты ValidateVenueID
// ============================================================

func TestValidateVenueID(t *testing.T) {
	tests := []struct {
		name    string
		venueID string
		wantErr bool
	}{
		{"cex spot", "binance_spot", false},
		{"cex futures", "bybit_futures", false},
		{"perp dex", "hyperliquid_perp", false},
		{"dex with chain and addr", "uniswap_dex_ethereum_0xabc123", false},

		{"empty", "", true},
		{"single section", "binance", true},
		{"uppercase", "Binance_Spot", true},
		{"trailing underscore", "binance_", true},
		{"double underscore", "binance__spot", true},
		{"spaces", "binance spot", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVenueID(tt.venueID)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVenueID(%q) error = %v, wantErr %v", tt.venueID, err, tt.wantErr)
			}
		})
	}
}

// ============================================================
// Тесты ValidateTokenAddress
// ============================================================

func TestValidateTokenAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{"evm address", "0xdAC17F958D2ee523a2206206994597C13D831ec7", false},
		{"evm lowercase", "0xdac17f958d2ee523a2206206994597c13d831ec7", false},
		{"solana base58", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", false},

		{"empty", "", true},
		{"evm too short", "0xdAC17F958D2ee523a220620699459", true},
		{"evm no prefix", "dAC17F958D2ee523a2206206994597C13D831ec7", true},
		{"evm bad hex", "0xZZC17F958D2ee523a2206206994597C13D831ec7", true},
		{"base58 forbidden chars", "0OIl" + strings.Repeat("a", 30), true},
		{"garbage", "not-an-address", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTokenAddress(tt.address)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTokenAddress(%q) error = %v, wantErr %v", tt.address, err, tt.wantErr)
			}
		})
	}
}

// ============================================================
// Тесты ValidateChain
// ============================================================

func TestValidateChain(t *testing.T) {
	tests := []struct {
		name    string
		chain   string
		wantErr bool
	}{
		{"ethereum", "ethereum", false},
		{"bsc", "bsc", false},
		{"solana", "solana", false},
		{"uppercase normalized", "Ethereum", false},

		{"empty", "", true},
		{"unknown", "dogechain", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChain(tt.chain)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateChain(%q) error = %v, wantErr %v", tt.chain, err, tt.wantErr)
			}
		})
	}
}

func TestGetSupportedChains(t *testing.T) {
	chains := GetSupportedChains()

	if len(chains) == 0 {
		t.Fatal("GetSupportedChains returned empty list")
	}

	// Список должен быть отсортирован
	for i := 1; i < len(chains); i++ {
		if chains[i-1] >= chains[i] {
			t.Errorf("chains not sorted: %v", chains)
			break
		}
	}

	// Все перечисленные цепочки валидны
	for _, c := range chains {
		if err := ValidateChain(c); err != nil {
			t.Errorf("ValidateChain(%q) = %v for supported chain", c, err)
		}
	}
}

// ============================================================
// Тесты ValidateSpreadPct / ValidatePositiveUSD
// ============================================================

func TestValidateSpreadPct(t *testing.T) {
	tests := []struct {
		name    string
		spread  float64
		wantErr bool
	}{
		{"zero", 0, false},
		{"typical", 2.5, false},
		{"high but sane", 50, false},
		{"ceiling", 1000, false},

		{"negative", -0.1, true},
		{"above ceiling", 1000.1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSpreadPct(tt.spread)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSpreadPct(%v) error = %v, wantErr %v", tt.spread, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePositiveUSD(t *testing.T) {
	tests := []struct {
		name    string
		amount  float64
		wantErr bool
	}{
		{"positive", 100.0, false},
		{"small", 0.01, false},
		{"zero", 0, true},
		{"negative", -10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePositiveUSD(tt.amount)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePositiveUSD(%v) error = %v, wantErr %v", tt.amount, err, tt.wantErr)
			}
		})
	}
}

// ============================================================
// Тесты ValidationErrors
// ============================================================

func TestValidationErrors(t *testing.T) {
	var ve ValidationErrors

	if ve.HasErrors() {
		t.Error("new ValidationErrors must have no errors")
	}
	if ve.Error() != "" {
		t.Errorf("empty ValidationErrors.Error() = %q, want empty", ve.Error())
	}

	ve.AddError("no spot venue for %s", "ETH")
	ve.AddError("token address missing on chain %s", "bsc")

	if !ve.HasErrors() {
		t.Error("HasErrors = false after AddError")
	}
	if len(ve.Errors) != 2 {
		t.Errorf("len(Errors) = %d, want 2", len(ve.Errors))
	}

	msg := ve.Error()
	if !strings.Contains(msg, "no spot venue for ETH") {
		t.Errorf("Error() missing first message: %q", msg)
	}
	if !strings.Contains(msg, "token address missing on chain bsc") {
		t.Errorf("Error() missing second message: %q", msg)
	}
	if !strings.Contains(msg, "; ") {
		t.Errorf("Error() must join with semicolon: %q", msg)
	}
}

// ============================================================
// Бенчмарки
// ============================================================

func BenchmarkBaseSymbol(b *testing.B) {
	for i := 0; i < b.N; i++ {
		BaseSymbol("ETH-USDT")
	}
}

func BenchmarkValidateVenueID(b *testing.B) {
	for i := 0; i < b.N; i++ {
		ValidateVenueID("binance_spot")
	}
}

func BenchmarkValidateTokenAddress(b *testing.B) {
	for i := 0; i < b.N; i++ {
		ValidateTokenAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	}
}
