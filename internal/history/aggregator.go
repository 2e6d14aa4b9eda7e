// Package history maintains the bounded per-asset quote windows that feed
// the statistics estimator.
//
// Each tracked symbol keeps at most WindowSize points ordered by timestamp,
// oldest first. Ingesting into a full window evicts the oldest point.
// Duplicate ingestion within one polling interval is not detected; the
// collector is expected to run at most once per interval.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/FinnSolly2/TradeQuest1/internal/model"
	"github.com/FinnSolly2/TradeQuest1/internal/quote"
)

// DefaultReadyRatio is the share of tracked symbols that must hold a full
// window before the history is considered ready for simulation.
const DefaultReadyRatio = 0.8

// Aggregator owns the rolling windows. Safe for concurrent use.
type Aggregator struct {
	mu         sync.RWMutex
	tracked    []string
	windows    map[string][]model.QuotePoint
	capacity   int
	readyRatio float64
	fetchLimit int
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithCapacity overrides the window size.
func WithCapacity(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.capacity = n
		}
	}
}

// WithReadyRatio overrides the readiness threshold.
func WithReadyRatio(r float64) Option {
	return func(a *Aggregator) {
		if r > 0 && r <= 1 {
			a.readyRatio = r
		}
	}
}

// WithFetchConcurrency bounds parallel quote fetches during Collect.
func WithFetchConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.fetchLimit = n
		}
	}
}

// New creates an aggregator tracking the given symbols.
func New(tracked []string, opts ...Option) *Aggregator {
	a := &Aggregator{
		tracked:    append([]string(nil), tracked...),
		windows:    make(map[string][]model.QuotePoint, len(tracked)),
		capacity:   model.WindowSize,
		readyRatio: DefaultReadyRatio,
		fetchLimit: 8,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Tracked returns the configured symbol universe.
func (a *Aggregator) Tracked() []string {
	return append([]string(nil), a.tracked...)
}

// Ingest records a quote point for symbol, keeping timestamp order and
// trimming to the newest capacity points.
func (a *Aggregator) Ingest(symbol string, p model.QuotePoint) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.windows[symbol] = insertPoint(a.windows[symbol], p, a.capacity)
}

func insertPoint(w []model.QuotePoint, p model.QuotePoint, capacity int) []model.QuotePoint {
	// Equal timestamps keep arrival order.
	i := sort.Search(len(w), func(i int) bool { return w[i].Timestamp.After(p.Timestamp) })
	w = append(w, model.QuotePoint{})
	copy(w[i+1:], w[i:])
	w[i] = p
	if len(w) > capacity {
		// Copy so the evicted prefix does not pin the old backing array.
		trimmed := make([]model.QuotePoint, capacity)
		copy(trimmed, w[len(w)-capacity:])
		w = trimmed
	}
	return w
}

// Window returns a copy of the symbol's window, oldest first.
func (a *Aggregator) Window(symbol string) []model.QuotePoint {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]model.QuotePoint(nil), a.windows[symbol]...)
}

// Closes returns the window prices in order.
func (a *Aggregator) Closes(symbol string) []float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	w := a.windows[symbol]
	out := make([]float64, len(w))
	for i, p := range w {
		out[i] = p.Price
	}
	return out
}

// Stats reports how many tracked symbols hold a full window.
func (a *Aggregator) Stats() model.ReadinessStats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.statsLocked()
}

func (a *Aggregator) statsLocked() model.ReadinessStats {
	full := 0
	for _, s := range a.tracked {
		if len(a.windows[s]) >= a.capacity {
			full++
		}
	}
	total := len(a.tracked)
	return model.ReadinessStats{
		TotalAssets: total,
		FullWindows: full,
		Ready:       total > 0 && float64(full) >= float64(total)*a.readyRatio,
	}
}

// Readiness reports whether enough symbols have a full window.
func (a *Aggregator) Readiness() bool {
	return a.Stats().Ready
}

// Snapshot captures every window for persistence.
func (a *Aggregator) Snapshot(now time.Time) model.HistorySnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	assets := make(map[string]model.AssetHistory, len(a.windows))
	for sym, w := range a.windows {
		assets[sym] = model.AssetHistory{
			Symbol: sym,
			Points: append([]model.QuotePoint(nil), w...),
		}
	}
	return model.HistorySnapshot{
		UpdatedAt: now.UTC(),
		Assets:    assets,
		Stats:     a.statsLocked(),
	}
}

// Restore replaces all windows with a persisted snapshot. Points are
// re-sorted and trimmed to capacity.
func (a *Aggregator) Restore(snap model.HistorySnapshot) {
	windows := make(map[string][]model.QuotePoint, len(snap.Assets))
	for sym, h := range snap.Assets {
		var w []model.QuotePoint
		for _, p := range h.Points {
			w = insertPoint(w, p, a.capacity)
		}
		windows[sym] = w
	}
	a.mu.Lock()
	a.windows = windows
	a.mu.Unlock()
}

// CollectResult summarizes one polling cycle.
type CollectResult struct {
	Fetched int
	Failed  map[string]error
	Stats   model.ReadinessStats
}

// Collect fetches one quote per tracked symbol and ingests it. Each fetch
// gets its own timeout; a failing symbol is logged and skipped and never
// aborts the cycle.
func (a *Aggregator) Collect(ctx context.Context, src quote.Source, timeout time.Duration) CollectResult {
	var (
		mu  sync.Mutex
		res = CollectResult{Failed: make(map[string]error)}
		g   errgroup.Group
	)
	g.SetLimit(a.fetchLimit)

	for _, sym := range a.tracked {
		g.Go(func() error {
			q, err := fetch(ctx, src, sym, timeout)
			if err == nil && q.Price <= 0 {
				err = fmt.Errorf("%w: %s: non-positive price %v", model.ErrSourceUnavailable, sym, q.Price)
			}
			if err != nil {
				slog.Warn("quote fetch failed", "symbol", sym, "err", err)
				mu.Lock()
				res.Failed[sym] = err
				mu.Unlock()
				return nil
			}
			a.Ingest(sym, model.PointFromQuote(q))
			mu.Lock()
			res.Fetched++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	res.Stats = a.Stats()
	return res
}

func fetch(ctx context.Context, src quote.Source, sym string, timeout time.Duration) (model.Quote, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	q, err := src.FetchQuote(ctx, sym)
	if err != nil {
		return model.Quote{}, fmt.Errorf("%w: %s: %w", model.ErrSourceUnavailable, sym, err)
	}
	if q.Timestamp.IsZero() {
		q.Timestamp = time.Now().UTC()
	}
	return q, nil
}
