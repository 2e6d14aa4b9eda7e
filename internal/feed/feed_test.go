package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FinnSolly2/TradeQuest1/internal/model"
	"github.com/FinnSolly2/TradeQuest1/internal/store"
)

var anchor = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

// linearBatch builds a batch where AAPL's price at second i is 100+i.
func linearBatch(n int) *model.Batch {
	pts := make([]model.PricePoint, n)
	for i := range pts {
		pts[i] = model.PricePoint{
			Second:    i,
			Timestamp: anchor.Add(time.Duration(i) * time.Second),
			Price:     decimal.NewFromInt(int64(100 + i)),
		}
	}
	return &model.Batch{
		AnchorTime: anchor,
		Assets: map[string]*model.AssetPath{
			"AAPL": {Symbol: "AAPL", Points: pts},
			"DEAD": nil,
		},
	}
}

func TestSecondIndex(t *testing.T) {
	cases := []struct {
		at   time.Time
		want int
	}{
		{time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC), 0},
		{time.Date(2025, 3, 10, 14, 7, 30, 0, time.UTC), 450},
		{time.Date(2025, 3, 10, 14, 19, 59, 0, time.UTC), 599},
		{time.Date(2025, 3, 10, 14, 20, 0, 0, time.UTC), 0},
		// Offsets are normalized to UTC first.
		{time.Date(2025, 3, 10, 20, 2, 5, 0, time.FixedZone("IST", 5*3600+1800)), (32%10)*60 + 5},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, SecondIndex(c.at), c.at.String())
	}
}

func TestCurrentPriceBeforePublish(t *testing.T) {
	f := New()
	_, err := f.CurrentPrice("AAPL", anchor)
	assert.ErrorIs(t, err, model.ErrSymbolUnavailable)
}

func TestCurrentPrice(t *testing.T) {
	f := New()
	pub := f.Publish(linearBatch(600))
	assert.Equal(t, uint64(1), pub.Version)

	q, err := f.CurrentPrice("AAPL", anchor.Add(7*time.Minute+30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, "550", q.Price.String())
	assert.Equal(t, 450, q.SecondIndex)
	assert.False(t, q.Stale)
	assert.Equal(t, uint64(1), q.Version)

	_, err = f.CurrentPrice("DEAD", anchor)
	assert.ErrorIs(t, err, model.ErrSymbolUnavailable)

	_, err = f.CurrentPrice("NOPE", anchor)
	assert.ErrorIs(t, err, model.ErrSymbolUnavailable)
}

func TestCurrentPriceShortPathIsStale(t *testing.T) {
	f := New()
	f.Publish(linearBatch(100))

	q, err := f.CurrentPrice("AAPL", anchor.Add(5*time.Minute))
	require.NoError(t, err)
	assert.True(t, q.Stale)
	assert.Equal(t, "199", q.Price.String())
}

func TestCurrentPricePastHorizonIsStale(t *testing.T) {
	f := New()
	f.Publish(linearBatch(600))

	q, err := f.CurrentPrice("AAPL", anchor.Add(10*time.Minute+3*time.Second))
	require.NoError(t, err)
	assert.True(t, q.Stale)
	assert.Equal(t, 3, q.SecondIndex)
	assert.Equal(t, "103", q.Price.String())
}

func TestPublishVersionsMonotonic(t *testing.T) {
	f := New()
	a := f.Publish(linearBatch(10))
	b := f.Publish(linearBatch(10))
	assert.Less(t, a.Version, b.Version)
	assert.Same(t, b, f.Current())

	restored := linearBatch(10)
	restored.Version = 41
	r := f.Restore(restored)
	assert.Equal(t, uint64(42), r.Version)
	assert.Equal(t, uint64(43), f.Publish(linearBatch(10)).Version)
}

func TestConcurrentReadersSeeWholeBatches(t *testing.T) {
	f := New()
	f.Publish(linearBatch(600))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				b := f.Current()
				if b == nil || len(b.Assets["AAPL"].Points) != 600 && len(b.Assets["AAPL"].Points) != 300 {
					t.Errorf("unexpected batch %+v", b)
					return
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			f.Publish(linearBatch(300))
		} else {
			f.Publish(linearBatch(600))
		}
	}
	wg.Wait()
}

func TestPrices(t *testing.T) {
	f := New()
	_, err := f.Prices(anchor)
	assert.ErrorIs(t, err, model.ErrSymbolUnavailable)

	b := linearBatch(600)
	b.Assets["AAPL"].Summary = model.PathSummary{PeriodHigh: decimal.NewFromInt(699)}
	f.Publish(b)

	snap, err := f.Prices(anchor.Add(2 * time.Second))
	require.NoError(t, err)
	require.Len(t, snap.Assets, 2)
	assert.Equal(t, "AAPL", snap.Assets[0].Symbol)
	assert.True(t, snap.Assets[0].Available)
	assert.Equal(t, "102", snap.Assets[0].Price.String())
	assert.Equal(t, "699", snap.Assets[0].PeriodHigh.String())
	assert.Equal(t, "DEAD", snap.Assets[1].Symbol)
	assert.False(t, snap.Assets[1].Available)
	assert.False(t, snap.Stale)
}

func TestArchiveRoundTrip(t *testing.T) {
	objs := store.NewMemoryObjects()
	a := NewArchive(objs)
	ctx := context.Background()

	_, err := a.Latest(ctx)
	assert.ErrorIs(t, err, model.ErrNotFound)

	b := linearBatch(600)
	b.Version = 7
	key, err := a.Save(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, "simulated/2025-03-10/14-00-00.json", key)
	assert.Equal(t, []string{key, LatestKey}, objs.Keys())

	got, err := a.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got.Version)
	assert.True(t, got.AnchorTime.Equal(anchor))
	require.NotNil(t, got.Assets["AAPL"])
	assert.Nil(t, got.Assets["DEAD"])
	assert.True(t, got.Assets["AAPL"].Points[599].Price.Equal(decimal.NewFromInt(699)))
}
