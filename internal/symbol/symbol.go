// Package symbol handles ticker parsing and validation for the tracked
// asset universe: equities, forex pairs, crypto pairs and indices, in the
// notation used by the quote source.
package symbol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/FinnSolly2/TradeQuest1/internal/model"
)

// Asset classes.
const (
	ClassEquity = "EQUITY"
	ClassForex  = "FOREX"
	ClassCrypto = "CRYPTO"
	ClassIndex  = "INDEX"
)

var (
	// EURUSD=X
	forexRegex = regexp.MustCompile(`^([A-Z]{3})([A-Z]{3})=X$`)
	// BTC-USD
	cryptoRegex = regexp.MustCompile(`^([A-Z0-9]{2,10})-(USD|USDT|EUR|GBP)$`)
	// ^GSPC
	indexRegex = regexp.MustCompile(`^\^[A-Z0-9]{1,10}$`)
	// AAPL, BRK-B, RDS.A
	equityRegex = regexp.MustCompile(`^[A-Z]{1,5}([.-][A-Z])?$`)
)

// ErrInvalidSymbol is returned for tickers that match no supported format.
var ErrInvalidSymbol = fmt.Errorf("%w: %w", model.ErrInvalidInput, errors.New("symbol: invalid ticker format"))

// Symbol is a parsed ticker.
type Symbol struct {
	Ticker string `json:"ticker"`
	Class  string `json:"class"`
	Base   string `json:"base,omitempty"`
	Quote  string `json:"quote,omitempty"`
}

// Normalize trims whitespace and upper-cases a raw ticker.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Parse normalizes and validates a ticker string.
func Parse(raw string) (*Symbol, error) {
	ticker := Normalize(raw)
	if ticker == "" {
		return nil, fmt.Errorf("%w: empty ticker", ErrInvalidSymbol)
	}

	if m := forexRegex.FindStringSubmatch(ticker); m != nil {
		if m[1] == m[2] {
			return nil, fmt.Errorf("%w: %s has identical base and quote", ErrInvalidSymbol, ticker)
		}
		return &Symbol{Ticker: ticker, Class: ClassForex, Base: m[1], Quote: m[2]}, nil
	}
	if m := cryptoRegex.FindStringSubmatch(ticker); m != nil {
		return &Symbol{Ticker: ticker, Class: ClassCrypto, Base: m[1], Quote: m[2]}, nil
	}
	if indexRegex.MatchString(ticker) {
		return &Symbol{Ticker: ticker, Class: ClassIndex}, nil
	}
	if equityRegex.MatchString(ticker) {
		return &Symbol{Ticker: ticker, Class: ClassEquity}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrInvalidSymbol, ticker)
}

// ParseList parses a list of tickers, dropping duplicates while keeping
// first-seen order. The first invalid ticker aborts.
func ParseList(raw []string) ([]string, error) {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		s, err := Parse(r)
		if err != nil {
			return nil, err
		}
		if seen[s.Ticker] {
			continue
		}
		seen[s.Ticker] = true
		out = append(out, s.Ticker)
	}
	return out, nil
}
