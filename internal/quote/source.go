// Package quote defines the contract for external quote sources and
// provides development implementations.
//
// Fetching real market data is the job of an external collaborator; the
// engine only depends on the Source interface. Implementations must return
// an error wrapping model.ErrSourceUnavailable when a symbol cannot be
// served. Callers enforce timeouts through the context.
package quote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/FinnSolly2/TradeQuest1/internal/model"
)

// Source fetches the latest quote for a symbol.
type Source interface {
	FetchQuote(ctx context.Context, symbol string) (model.Quote, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, symbol string) (model.Quote, error)

func (f SourceFunc) FetchQuote(ctx context.Context, symbol string) (model.Quote, error) {
	return f(ctx, symbol)
}

// Static serves fixed prices. Unknown symbols are unavailable.
type Static struct {
	mu     sync.RWMutex
	prices map[string]float64
	now    func() time.Time
}

// NewStatic creates a static source from a symbol → price map.
func NewStatic(prices map[string]float64) *Static {
	cp := make(map[string]float64, len(prices))
	for k, v := range prices {
		cp[k] = v
	}
	return &Static{prices: cp, now: time.Now}
}

// Set changes the price served for a symbol.
func (s *Static) Set(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price
}

func (s *Static) FetchQuote(ctx context.Context, symbol string) (model.Quote, error) {
	if err := ctx.Err(); err != nil {
		return model.Quote{}, fmt.Errorf("%w: %s: %v", model.ErrSourceUnavailable, symbol, err)
	}
	s.mu.RLock()
	p, ok := s.prices[symbol]
	s.mu.RUnlock()
	if !ok || p <= 0 {
		return model.Quote{}, fmt.Errorf("%w: %s", model.ErrSourceUnavailable, symbol)
	}
	return model.Quote{
		Symbol:        symbol,
		Price:         p,
		High:          p,
		Low:           p,
		Open:          p,
		PreviousClose: p,
		Timestamp:     s.now().UTC(),
	}, nil
}
