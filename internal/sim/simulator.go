// Package sim projects future price paths with a discretized geometric
// Brownian motion at one-second resolution.
//
// For each step:
//
//	dt    = 1 / 86400
//	drift = meanReturn + trend/steps
//	dW   ~ N(0, sqrt(dt))
//	next  = p + drift*p + (VolatilityMultiplier*vol)*p*dW
//
// next is clamped to [p*(1-MaxStepMove), p*(1+MaxStepMove)] and then
// floored at start*FloorRatio.
package sim

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	// StepDT is one second as a fraction of a day.
	StepDT = 1.0 / 86400.0

	// VolatilityMultiplier amplifies the estimated volatility so the
	// projected feed stays visibly dynamic.
	VolatilityMultiplier = 2.0

	// MaxStepMove caps the relative move of a single step.
	MaxStepMove = 0.05

	// FloorRatio is the lowest fraction of the start price a path may reach.
	FloorRatio = 0.5

	// seedHashModulus bounds the symbol component of the seed.
	seedHashModulus = 10000
)

var (
	// ErrInvalidStartPrice is returned for non-positive or non-finite start prices.
	ErrInvalidStartPrice = errors.New("sim: start price must be positive and finite")

	// ErrInvalidSteps is returned when steps <= 0.
	ErrInvalidSteps = errors.New("sim: steps must be positive")

	// ErrNonFinite is returned when the path degenerates to NaN or Inf.
	ErrNonFinite = errors.New("sim: path is not finite")
)

// Params are the model inputs for one path.
type Params struct {
	StartPrice float64
	MeanReturn float64
	Volatility float64
	Trend      float64
	Steps      int
}

// Seed derives the generator seed for a batch anchor and symbol:
// the anchor's unix seconds plus a stable xxhash of the symbol reduced
// modulo 10000. The symbol hash also forms the second PCG word so that
// seeds colliding on the sum still yield distinct streams.
func Seed(anchor time.Time, symbol string) (uint64, uint64) {
	h := xxhash.Sum64String(symbol)
	return uint64(anchor.Unix()) + h%seedHashModulus, h
}

// NewRand returns the deterministic generator for (anchor, symbol).
func NewRand(anchor time.Time, symbol string) *rand.Rand {
	s1, s2 := Seed(anchor, symbol)
	return rand.New(rand.NewPCG(s1, s2))
}

// Simulate generates p.Steps prices starting from p.StartPrice. The start
// price itself is not part of the output; element 0 is the first step.
func Simulate(p Params, rng *rand.Rand) ([]float64, error) {
	if p.StartPrice <= 0 || math.IsNaN(p.StartPrice) || math.IsInf(p.StartPrice, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStartPrice, p.StartPrice)
	}
	if p.Steps <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSteps, p.Steps)
	}

	drift := p.MeanReturn + p.Trend/float64(p.Steps)
	vol := VolatilityMultiplier * p.Volatility
	sd := math.Sqrt(StepDT)
	floor := p.StartPrice * FloorRatio

	path := make([]float64, p.Steps)
	current := p.StartPrice
	for i := 0; i < p.Steps; i++ {
		dW := rng.NormFloat64() * sd
		next := current + drift*current + vol*current*dW

		next = math.Max(next, current*(1-MaxStepMove))
		next = math.Min(next, current*(1+MaxStepMove))
		next = math.Max(next, floor)

		if math.IsNaN(next) || math.IsInf(next, 0) {
			return nil, fmt.Errorf("%w: step %d", ErrNonFinite, i)
		}
		path[i] = next
		current = next
	}
	return path, nil
}
