// Package stats estimates the drift and volatility parameters of the
// simulation model from a series of closing prices.
package stats

import (
	"math"

	"github.com/FinnSolly2/TradeQuest1/internal/model"
)

// DefaultVolatility is used when the series holds fewer than two returns.
const DefaultVolatility = 0.02

// Estimate computes per-step simple returns and derives:
//   - MeanReturn: arithmetic mean of returns, 0 with fewer than 2 closes
//   - Volatility: sample standard deviation (n-1) of returns,
//     DefaultVolatility with fewer than 2 returns
//   - Trend: relative change from first to last close, 0 with fewer than 2 closes
//
// LastPrice is the final close, or 0 for an empty series. Estimate is pure.
func Estimate(closes []float64) model.Statistics {
	st := model.Statistics{Volatility: DefaultVolatility}
	if len(closes) > 0 {
		st.LastPrice = closes[len(closes)-1]
	}
	if len(closes) < 2 {
		return st
	}

	returns := Returns(closes)

	sum := 0.0
	for _, r := range returns {
		sum += r
	}
	st.MeanReturn = sum / float64(len(returns))

	if len(returns) > 1 {
		ss := 0.0
		for _, r := range returns {
			d := r - st.MeanReturn
			ss += d * d
		}
		st.Volatility = math.Sqrt(ss / float64(len(returns)-1))
	}

	if closes[0] != 0 {
		st.Trend = (closes[len(closes)-1] - closes[0]) / closes[0]
	}
	return st
}

// Returns computes r[i] = (c[i] - c[i-1]) / c[i-1] for i >= 1.
// A zero previous close yields a zero return for that step.
func Returns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out[i-1] = (closes[i] - closes[i-1]) / closes[i-1]
	}
	return out
}
