// Package feed serves the currently published simulated batch. Readers
// take a lock-free snapshot; a publish swaps the whole batch atomically so
// no reader ever sees a mix of two batches.
package feed

import (
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FinnSolly2/TradeQuest1/internal/metrics"
	"github.com/FinnSolly2/TradeQuest1/internal/model"
)

// Quote is the price served for one symbol at one instant.
type Quote struct {
	Symbol      string          `json:"symbol"`
	Price       decimal.Decimal `json:"price"`
	SecondIndex int             `json:"second_index"`
	Stale       bool            `json:"stale"`
	Version     uint64          `json:"batch_version"`
}

// Feed holds the single published batch.
type Feed struct {
	current atomic.Pointer[model.Batch]
	version atomic.Uint64
}

// New creates an empty feed. CurrentPrice fails with ErrSymbolUnavailable
// until the first Publish.
func New() *Feed {
	return &Feed{}
}

// Publish makes b the current batch and returns the published copy with
// its version assigned. The caller must not mutate b afterwards.
func (f *Feed) Publish(b *model.Batch) *model.Batch {
	pub := *b
	pub.Version = f.version.Add(1)
	f.current.Store(&pub)
	return &pub
}

// Restore republishes an archived batch, keeping versions monotonic
// across restarts.
func (f *Feed) Restore(b *model.Batch) *model.Batch {
	for {
		v := f.version.Load()
		if b.Version <= v || f.version.CompareAndSwap(v, b.Version) {
			break
		}
	}
	return f.Publish(b)
}

// Current returns the published batch, or nil before the first publish.
func (f *Feed) Current() *model.Batch {
	return f.current.Load()
}

// SecondIndex maps a wall-clock instant onto the 600-second batch window:
// (minute mod 10) * 60 + second, in UTC.
func SecondIndex(now time.Time) int {
	now = now.UTC()
	return (now.Minute()%10)*60 + now.Second()
}

// CurrentPrice returns the price of symbol at now. When the index is past
// the end of the path, or now is past the batch horizon, the quote is
// marked stale; past the end it carries the last point's price.
func (f *Feed) CurrentPrice(symbol string, now time.Time) (Quote, error) {
	b := f.current.Load()
	if b == nil {
		return Quote{}, fmt.Errorf("%w: %s: no batch published", model.ErrSymbolUnavailable, symbol)
	}
	return priceAt(b, symbol, now)
}

// Price is the decimal price of symbol at now. It satisfies the price
// lookup used by trading and valuation.
func (f *Feed) Price(symbol string, now time.Time) (decimal.Decimal, error) {
	q, err := f.CurrentPrice(symbol, now)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if q.Stale {
		metrics.StaleLookups.Inc()
	}
	return q.Price, nil
}

func priceAt(b *model.Batch, symbol string, now time.Time) (Quote, error) {
	asset, ok := b.Assets[symbol]
	if !ok || asset == nil || len(asset.Points) == 0 {
		return Quote{}, fmt.Errorf("%w: %s", model.ErrSymbolUnavailable, symbol)
	}

	idx := SecondIndex(now)
	q := Quote{
		Symbol:      symbol,
		SecondIndex: idx,
		Version:     b.Version,
		Stale:       !now.Before(b.EndTime()),
	}
	if idx < len(asset.Points) {
		q.Price = asset.Points[idx].Price
	} else {
		q.Price = asset.Points[len(asset.Points)-1].Price
		q.Stale = true
	}
	return q, nil
}

// AssetPrice is one row of the all-symbols price listing.
type AssetPrice struct {
	Quote
	Available           bool            `json:"available"`
	PeriodHigh          decimal.Decimal `json:"period_high"`
	PeriodLow           decimal.Decimal `json:"period_low"`
	PeriodChangePercent decimal.Decimal `json:"period_change_percent"`
	StartPrice          decimal.Decimal `json:"start_price"`
	EndPrice            decimal.Decimal `json:"end_price"`
}

// Snapshot lists every asset of the current batch at now, sorted by
// symbol. Symbols that could not be simulated are reported unavailable.
type Snapshot struct {
	Version    uint64       `json:"batch_version"`
	AnchorTime time.Time    `json:"batch_start"`
	EndTime    time.Time    `json:"batch_end"`
	Stale      bool         `json:"stale"`
	Assets     []AssetPrice `json:"assets"`
}

// Prices returns a snapshot of all assets at now, or ErrSymbolUnavailable
// when nothing has been published yet.
func (f *Feed) Prices(now time.Time) (*Snapshot, error) {
	b := f.current.Load()
	if b == nil {
		return nil, fmt.Errorf("%w: no batch published", model.ErrSymbolUnavailable)
	}

	symbols := make([]string, 0, len(b.Assets))
	for sym := range b.Assets {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	snap := &Snapshot{
		Version:    b.Version,
		AnchorTime: b.AnchorTime,
		EndTime:    b.EndTime(),
		Stale:      !now.Before(b.EndTime()),
		Assets:     make([]AssetPrice, 0, len(symbols)),
	}
	for _, sym := range symbols {
		q, err := priceAt(b, sym, now)
		if err != nil {
			snap.Assets = append(snap.Assets, AssetPrice{Quote: Quote{Symbol: sym, Version: b.Version}})
			continue
		}
		s := b.Assets[sym].Summary
		snap.Assets = append(snap.Assets, AssetPrice{
			Quote:               q,
			Available:           true,
			PeriodHigh:          s.PeriodHigh,
			PeriodLow:           s.PeriodLow,
			PeriodChangePercent: s.PeriodChangePercent,
			StartPrice:          s.StartPrice,
			EndPrice:            s.EndPrice,
		})
	}
	return snap, nil
}
