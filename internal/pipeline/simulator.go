package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FinnSolly2/TradeQuest1/internal/feed"
	"github.com/FinnSolly2/TradeQuest1/internal/history"
	"github.com/FinnSolly2/TradeQuest1/internal/metrics"
	"github.com/FinnSolly2/TradeQuest1/internal/model"
	"github.com/FinnSolly2/TradeQuest1/internal/sim"
)

// ErrEmptyBatch is returned when no asset could be simulated. The current
// feed is left untouched.
var ErrEmptyBatch = errors.New("pipeline: no asset could be simulated")

// Notifier is told about every published batch.
type Notifier interface {
	BatchPublished(b *model.Batch)
}

// Simulator builds a batch from the history windows and publishes it.
type Simulator struct {
	agg     *history.Aggregator
	gen     *sim.Generator
	feed    *feed.Feed
	archive *feed.Archive
	notify  Notifier
	now     func() time.Time
}

// NewSimulator creates the simulation job. notify may be nil.
func NewSimulator(agg *history.Aggregator, gen *sim.Generator, f *feed.Feed, archive *feed.Archive, notify Notifier) *Simulator {
	return &Simulator{
		agg:     agg,
		gen:     gen,
		feed:    f,
		archive: archive,
		notify:  notify,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Simulator) Name() string { return "simulator" }

// Anchor aligns t to the start of its 10-minute window so that a path's
// second i is served at wall-clock index i.
func Anchor(t time.Time) time.Time {
	return t.UTC().Truncate(model.BatchSeconds * time.Second)
}

// Due reports whether the feed lacks a batch covering the current instant.
func (s *Simulator) Due() bool {
	cur := s.feed.Current()
	return cur == nil || !s.now().Before(cur.EndTime())
}

// RunOnce simulates, publishes and archives one batch.
func (s *Simulator) RunOnce(ctx context.Context) error {
	_, err := s.Publish(ctx)
	return err
}

// Publish is RunOnce returning the published batch.
func (s *Simulator) Publish(ctx context.Context) (*model.Batch, error) {
	if st := s.agg.Stats(); !st.Ready {
		slog.Warn("simulating without full history",
			"full_windows", st.FullWindows,
			"tracked", st.TotalAssets,
		)
	}

	b := s.gen.Build(Anchor(s.now()), s.agg)
	simulated := b.Simulated()
	metrics.BatchAssets.WithLabelValues("simulated").Set(float64(simulated))
	metrics.BatchAssets.WithLabelValues("null").Set(float64(len(b.Assets) - simulated))
	if simulated == 0 {
		return nil, ErrEmptyBatch
	}

	pub := s.feed.Publish(b)
	metrics.BatchesPublished.Inc()
	slog.Info("batch published",
		"version", pub.Version,
		"anchor", pub.AnchorTime,
		"simulated", simulated,
		"assets", len(pub.Assets),
	)

	if s.archive != nil {
		if _, err := s.archive.Save(ctx, pub); err != nil {
			// The batch is live; a failed archive only affects restarts.
			slog.Warn("batch archive failed", "version", pub.Version, "err", err)
		}
	}
	if s.notify != nil {
		s.notify.BatchPublished(pub)
	}
	return pub, nil
}

// Restore republishes the latest archived batch, if any.
func (s *Simulator) Restore(ctx context.Context) error {
	if s.archive == nil {
		return nil
	}
	b, err := s.archive.Latest(ctx)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore batch: %w", err)
	}
	pub := s.feed.Restore(b)
	slog.Info("batch restored", "version", pub.Version, "anchor", pub.AnchorTime)
	return nil
}
