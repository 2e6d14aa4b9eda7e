package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/FinnSolly2/TradeQuest1/internal/history"
	"github.com/FinnSolly2/TradeQuest1/internal/metrics"
	"github.com/FinnSolly2/TradeQuest1/internal/model"
	"github.com/FinnSolly2/TradeQuest1/internal/quote"
	"github.com/FinnSolly2/TradeQuest1/internal/store"
)

// HistoryKey is the object key of the persisted rolling history.
const HistoryKey = "collected/rolling_history.json"

// Collector polls the quote source once per run and persists the windows.
type Collector struct {
	agg          *history.Aggregator
	src          quote.Source
	objects      store.Objects
	fetchTimeout time.Duration
	now          func() time.Time
}

// NewCollector creates the history collection job.
func NewCollector(agg *history.Aggregator, src quote.Source, objects store.Objects, fetchTimeout time.Duration) *Collector {
	return &Collector{
		agg:          agg,
		src:          src,
		objects:      objects,
		fetchTimeout: fetchTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (c *Collector) Name() string { return "collector" }

// RunOnce runs one collection cycle and persists the snapshot. Per-symbol
// failures are reported by the aggregator and never fail the run.
func (c *Collector) RunOnce(ctx context.Context) error {
	res := c.agg.Collect(ctx, c.src, c.fetchTimeout)
	for sym := range res.Failed {
		metrics.QuoteFetchFailures.WithLabelValues(sym).Inc()
	}
	recordReadiness(res.Stats)

	snap := c.agg.Snapshot(c.now())
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := c.objects.Put(ctx, HistoryKey, data); err != nil {
		return fmt.Errorf("persist history: %w", err)
	}
	return nil
}

// Restore loads the persisted snapshot into the aggregator. A missing
// snapshot is not an error.
func (c *Collector) Restore(ctx context.Context) error {
	data, err := c.objects.Get(ctx, HistoryKey)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	var snap model.HistorySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%w: decode history: %w", model.ErrPersistence, err)
	}
	c.agg.Restore(snap)
	recordReadiness(c.agg.Stats())
	return nil
}

func recordReadiness(st model.ReadinessStats) {
	metrics.HistoryFullWindows.Set(float64(st.FullWindows))
	if st.Ready {
		metrics.HistoryReady.Set(1)
	} else {
		metrics.HistoryReady.Set(0)
	}
}
