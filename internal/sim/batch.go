package sim

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FinnSolly2/TradeQuest1/internal/model"
	"github.com/FinnSolly2/TradeQuest1/internal/stats"
)

// History is the read side of the history aggregator used to build batches.
type History interface {
	Tracked() []string
	Closes(symbol string) []float64
}

// Generator builds complete batches from the current history windows.
type Generator struct {
	steps int
}

// NewGenerator creates a generator producing paths of the given length.
// steps <= 0 selects model.BatchSeconds.
func NewGenerator(steps int) *Generator {
	if steps <= 0 {
		steps = model.BatchSeconds
	}
	return &Generator{steps: steps}
}

// Build simulates every tracked symbol. An asset without history or whose
// simulation fails gets a nil entry; it never fails the batch. The anchor
// is truncated to whole seconds.
func (g *Generator) Build(anchor time.Time, h History) *model.Batch {
	anchor = anchor.UTC().Truncate(time.Second)
	symbols := h.Tracked()
	sort.Strings(symbols)

	b := &model.Batch{
		AnchorTime: anchor,
		CreatedAt:  time.Now().UTC(),
		Assets:     make(map[string]*model.AssetPath, len(symbols)),
	}

	for _, sym := range symbols {
		path, err := g.BuildAsset(anchor, sym, h.Closes(sym))
		if err != nil {
			slog.Warn("asset simulation skipped", "symbol", sym, "err", err)
			b.Assets[sym] = nil
			continue
		}
		b.Assets[sym] = path
	}
	return b
}

// BuildAsset simulates one symbol from its close series.
func (g *Generator) BuildAsset(anchor time.Time, symbol string, closes []float64) (*model.AssetPath, error) {
	if len(closes) == 0 {
		return nil, fmt.Errorf("%w: %s has no history", model.ErrSymbolUnavailable, symbol)
	}

	st := stats.Estimate(closes)
	raw, err := Simulate(Params{
		StartPrice: st.LastPrice,
		MeanReturn: st.MeanReturn,
		Volatility: st.Volatility,
		Trend:      st.Trend,
		Steps:      g.steps,
	}, NewRand(anchor, symbol))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrSymbolUnavailable, symbol, err)
	}

	points := make([]model.PricePoint, len(raw))
	prices := make([]decimal.Decimal, len(raw))
	for i, p := range raw {
		prices[i] = decimal.NewFromFloat(p).Round(model.PriceScale)
		points[i] = model.PricePoint{
			Second:    i,
			Timestamp: anchor.Add(time.Duration(i) * time.Second),
			Price:     prices[i],
		}
	}

	return &model.AssetPath{
		Symbol:  symbol,
		Points:  points,
		Summary: Summarize(prices),
		BasedOn: st,
	}, nil
}

// Summarize computes start/end/high/low and the period change of a path.
func Summarize(prices []decimal.Decimal) model.PathSummary {
	if len(prices) == 0 {
		return model.PathSummary{}
	}
	first, last := prices[0], prices[len(prices)-1]
	s := model.PathSummary{
		StartPrice:   first,
		EndPrice:     last,
		PeriodHigh:   decimal.Max(prices[0], prices[1:]...),
		PeriodLow:    decimal.Min(prices[0], prices[1:]...),
		PeriodChange: last.Sub(first),
	}
	if !first.IsZero() {
		s.PeriodChangePercent = s.PeriodChange.Div(first).Mul(decimal.NewFromInt(100)).Round(4)
	}
	return s
}
