package symbol

import (
	"errors"
	"testing"

	"github.com/FinnSolly2/TradeQuest1/internal/model"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		raw, ticker, class string
	}{
		{"AAPL", "AAPL", ClassEquity},
		{" msft ", "MSFT", ClassEquity},
		{"BRK-B", "BRK-B", ClassEquity},
		{"EURUSD=X", "EURUSD=X", ClassForex},
		{"btc-usd", "BTC-USD", ClassCrypto},
		{"^GSPC", "^GSPC", ClassIndex},
	}
	for _, tt := range tests {
		s, err := Parse(tt.raw)
		if err != nil {
			t.Errorf("unexpected error for %q: %v", tt.raw, err)
			continue
		}
		if s.Ticker != tt.ticker {
			t.Errorf("expected ticker=%s, got %s", tt.ticker, s.Ticker)
		}
		if s.Class != tt.class {
			t.Errorf("expected class=%s for %s, got %s", tt.class, tt.raw, s.Class)
		}
	}
}

func TestParse_ForexParts(t *testing.T) {
	s, err := Parse("GBPJPY=X")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Base != "GBP" || s.Quote != "JPY" {
		t.Errorf("expected GBP/JPY, got %s/%s", s.Base, s.Quote)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"TOOLONGTICKER",
		"EUREUR=X", // identical legs
		"AB CD",
		"12345",
		"AAPL;DROP",
	}
	for _, raw := range tests {
		_, err := Parse(raw)
		if err == nil {
			t.Errorf("expected error for %q", raw)
			continue
		}
		if !errors.Is(err, model.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for %q, got %v", raw, err)
		}
	}
}

func TestParseList_Dedup(t *testing.T) {
	got, err := ParseList([]string{"aapl", "AAPL", "EURUSD=X"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "AAPL" || got[1] != "EURUSD=X" {
		t.Errorf("unexpected list: %v", got)
	}
}

func TestParseList_Invalid(t *testing.T) {
	if _, err := ParseList([]string{"AAPL", "???"}); err == nil {
		t.Error("expected error for invalid entry")
	}
}
