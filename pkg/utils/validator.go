package utils

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// validator.go - валидация и нормализация данных вселенной тикеров
//
// Назначение:
// Проверка корректности символов, идентификаторов площадок и адресов
// контрактов перед включением их во вселенную наблюдения.
// Единая точка нормализации символов: все компоненты сравнивают
// активы только по результату BaseSymbol.
//
// Возвращают error с описанием проблемы или nil.

// Суффиксы котируемых валют, отбрасываемые при нормализации
var quoteSuffixes = []string{"USDT", "USDC", "FDUSD", "BUSD", "DAI", "USD"}

// Суффиксы бессрочных контрактов
var perpSuffixes = []string{"PERP", "SWAP"}

var (
	symbolRe     = regexp.MustCompile(`^[A-Z0-9]{1,20}$`)
	venueIDRe    = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)+$`)
	evmAddressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	base58Re     = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
)

// Цепочки, для которых известна маршрутизация DEX котировок
var supportedChains = map[string]struct{}{
	"ethereum":  {},
	"bsc":       {},
	"arbitrum":  {},
	"base":      {},
	"polygon":   {},
	"optimism":  {},
	"avalanche": {},
	"solana":    {},
}

// BaseSymbol нормализует биржевой символ к базовому активу.
//
// Грамматика (в этом порядке):
//  1. верхний регистр, обрезка пробелов
//  2. отбрасывание суффикса котируемой валюты (USDT, USDC, ...)
//  3. удаление разделителей (-, _, /, пробел)
//  4. отбрасывание суффикса бессрочного контракта (PERP, SWAP)
//
// Примеры:
//   - BaseSymbol("BTCUSDT") = "BTC"
//   - BaseSymbol("eth-usdt") = "ETH"
//   - BaseSymbol("SOL-PERP") = "SOL"
//   - BaseSymbol("USDT") = "USDT" (не схлопывается в пустую строку)
func BaseSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))

	for _, q := range quoteSuffixes {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			s = s[:len(s)-len(q)]
			break
		}
	}

	s = strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', '/', ' ':
			return -1
		}
		return r
	}, s)

	for _, p := range perpSuffixes {
		if strings.HasSuffix(s, p) && len(s) > len(p) {
			s = s[:len(s)-len(p)]
			break
		}
	}

	return s
}

// QuoteSuffix возвращает обнаруженный суффикс котируемой валюты
// или пустую строку, если символ не содержит известного суффикса.
func QuoteSuffix(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', '/', ' ':
			return -1
		}
		return r
	}, s)

	for _, q := range quoteSuffixes {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return q
		}
	}
	return ""
}

// ValidateSymbol проверяет формат базового символа.
//
// Допустимы 1-20 символов A-Z и 0-9 после нормализации.
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is empty")
	}
	normalized := BaseSymbol(symbol)
	if normalized == "" {
		return fmt.Errorf("symbol %q normalizes to empty string", symbol)
	}
	if !symbolRe.MatchString(normalized) {
		return fmt.Errorf("symbol %q has invalid format", symbol)
	}
	return nil
}

// IsValidSymbol - булева обёртка над ValidateSymbol
func IsValidSymbol(symbol string) bool {
	return ValidateSymbol(symbol) == nil
}

// ValidateVenueID проверяет идентификатор площадки.
//
// Формат: секции в нижнем регистре через подчёркивание,
// минимум две секции (binance_spot, bybit_futures,
// uniswap_dex_ethereum_0xabc123).
func ValidateVenueID(venueID string) error {
	if venueID == "" {
		return fmt.Errorf("venue_id is empty")
	}
	if !venueIDRe.MatchString(venueID) {
		return fmt.Errorf("venue_id %q has invalid format", venueID)
	}
	return nil
}

// ValidateTokenAddress проверяет адрес контракта токена.
//
// Принимаются EVM адреса (0x + 40 hex) и base58 адреса Solana.
func ValidateTokenAddress(address string) error {
	if address == "" {
		return fmt.Errorf("token address is empty")
	}
	if evmAddressRe.MatchString(address) {
		return nil
	}
	if base58Re.MatchString(address) {
		return nil
	}
	return fmt.Errorf("token address %q has invalid format", address)
}

// ValidateChain проверяет, что цепочка поддерживается DEX маршрутизацией
func ValidateChain(chain string) error {
	if chain == "" {
		return fmt.Errorf("chain is empty")
	}
	if _, ok := supportedChains[strings.ToLower(chain)]; !ok {
		return fmt.Errorf("chain %q is not supported", chain)
	}
	return nil
}

// GetSupportedChains возвращает отсортированный список поддерживаемых цепочек
func GetSupportedChains() []string {
	chains := make([]string, 0, len(supportedChains))
	for c := range supportedChains {
		chains = append(chains, c)
	}
	sort.Strings(chains)
	return chains
}

// ValidateSpreadPct проверяет значение спреда в процентах.
//
// Отрицательный спред невозможен после канонизации направления;
// спред выше 1000% почти наверняка означает несовпадение токенов.
func ValidateSpreadPct(spreadPct float64) error {
	if spreadPct < 0 {
		return fmt.Errorf("spread %.4f%% is negative", spreadPct)
	}
	if spreadPct > 1000 {
		return fmt.Errorf("spread %.4f%% exceeds sanity ceiling", spreadPct)
	}
	return nil
}

// ValidatePositiveUSD проверяет, что сумма в USD строго положительна
func ValidatePositiveUSD(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("usd amount must be positive, got %.2f", amount)
	}
	return nil
}

// ============================================================
// Накопитель ошибок валидации тикера
// ============================================================

// ValidationErrors накапливает ошибки валидации одной сущности.
//
// Вселенная тикеров не отбрасывает запись при первой же проблеме -
// собирает все ошибки и сохраняет их в поле validation_errors.
type ValidationErrors struct {
	Errors []string `json:"errors"`
}

// AddError добавляет ошибку в накопитель
func (v *ValidationErrors) AddError(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// HasErrors сообщает, накоплена ли хотя бы одна ошибка
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error реализует error; пустой накопитель дает пустую строку
func (v *ValidationErrors) Error() string {
	return strings.Join(v.Errors, "; ")
}
