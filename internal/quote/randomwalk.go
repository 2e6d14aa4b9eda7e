package quote

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/FinnSolly2/TradeQuest1/internal/model"
)

// RandomWalk is a synthetic source for development and demos. Each symbol
// starts at its seed price and moves by a bounded gaussian step on every
// fetch, tracking the session open, high and low.
type RandomWalk struct {
	mu     sync.Mutex
	rng    *rand.Rand
	step   float64
	assets map[string]*walkState
	now    func() time.Time
}

type walkState struct {
	open, high, low, last, prevClose float64
}

// NewRandomWalk creates a walk over the given starting prices. step is the
// per-fetch standard deviation as a fraction of price (0.001 = 0.1%).
func NewRandomWalk(start map[string]float64, step float64, seed uint64) *RandomWalk {
	if step <= 0 {
		step = 0.001
	}
	assets := make(map[string]*walkState, len(start))
	for sym, p := range start {
		assets[sym] = &walkState{open: p, high: p, low: p, last: p, prevClose: p}
	}
	return &RandomWalk{
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		step:   step,
		assets: assets,
		now:    time.Now,
	}
}

func (w *RandomWalk) FetchQuote(ctx context.Context, symbol string) (model.Quote, error) {
	if err := ctx.Err(); err != nil {
		return model.Quote{}, fmt.Errorf("%w: %s: %v", model.ErrSourceUnavailable, symbol, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	st, ok := w.assets[symbol]
	if !ok {
		return model.Quote{}, fmt.Errorf("%w: %s", model.ErrSourceUnavailable, symbol)
	}

	// Cap a single move at 3 sigma.
	shock := math.Max(-3, math.Min(3, w.rng.NormFloat64()))
	next := st.last * (1 + w.step*shock)
	if next <= 0 {
		next = st.last
	}
	st.last = next
	st.high = math.Max(st.high, next)
	st.low = math.Min(st.low, next)

	return model.Quote{
		Symbol:        symbol,
		Price:         next,
		High:          st.high,
		Low:           st.low,
		Open:          st.open,
		PreviousClose: st.prevClose,
		Timestamp:     w.now().UTC(),
	}, nil
}
