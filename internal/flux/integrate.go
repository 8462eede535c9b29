// Package flux evaluates a sampled model light curve and averages it over
// finite exposures.
package flux

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrEmptyInput         = errors.New("empty input")
	ErrLengthMismatch     = errors.New("times and values differ in length")
	ErrNotIncreasing      = errors.New("times not strictly increasing")
	ErrNonFinite          = errors.New("non-finite value")
	ErrDegenerateSampling = errors.New("degenerate sampling")
	ErrUnknownRule        = errors.New("unknown integration rule")
)

// Rule selects how AverageFluxRule weights the samples.
type Rule int

const (
	// RuleTrapezoid weights the end samples by half. Exact for flat and
	// linear curves.
	RuleTrapezoid Rule = iota
	// RuleSum weights every sample by the mean spacing. On n evenly spaced
	// samples of a flat curve it returns n/(n-1) times the level.
	RuleSum
)

func (r Rule) String() string {
	switch r {
	case RuleTrapezoid:
		return "trapezoid"
	case RuleSum:
		return "sum"
	default:
		return fmt.Sprintf("Rule(%d)", int(r))
	}
}

// ParseRule maps "trapezoid" or "sum" to a Rule.
func ParseRule(s string) (Rule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "trapezoid":
		return RuleTrapezoid, nil
	case "sum":
		return RuleSum, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRule, s)
}

// AverageFlux returns the time-weighted mean of values over the span of
// times using RuleTrapezoid. This is not the historical sum*dt/span
// average, which over-weights the end samples; use AverageFluxRule with
// RuleSum to reproduce that formula exactly.
func AverageFlux(times, values []float64) (float64, error) {
	return AverageFluxRule(RuleTrapezoid, times, values)
}

// AverageFluxRule returns the time-weighted mean of values over
// [times[0], times[n-1]]. The spacing dt is the mean of consecutive time
// differences and the weighted sum is divided by the full span, so the grid
// should be close to uniform.
func AverageFluxRule(rule Rule, times, values []float64) (float64, error) {
	n := len(times)
	if n != len(values) {
		return 0, fmt.Errorf("%w: %d times, %d values", ErrLengthMismatch, n, len(values))
	}
	if n < 2 {
		return 0, fmt.Errorf("%w: %d samples", ErrDegenerateSampling, n)
	}
	span := times[n-1] - times[0]
	if !(span > 0) {
		return 0, fmt.Errorf("%w: span %g", ErrDegenerateSampling, span)
	}

	var diffs float64
	for i := 1; i < n; i++ {
		diffs += times[i] - times[i-1]
	}
	dt := diffs / float64(n-1)

	var sum float64
	for _, v := range values {
		sum += v
	}

	var avg float64
	switch rule {
	case RuleTrapezoid:
		avg = (sum - (values[0]+values[n-1])/2) * dt / span
	case RuleSum:
		avg = sum * dt / span
	default:
		return 0, fmt.Errorf("%w: %v", ErrUnknownRule, rule)
	}

	if math.IsNaN(avg) || math.IsInf(avg, 0) {
		return 0, fmt.Errorf("%w: average over [%g, %g]", ErrNonFinite, times[0], times[n-1])
	}
	return avg, nil
}

// Linspace returns n evenly spaced points from a to b inclusive.
func Linspace(a, b float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{a}
	}
	out := make([]float64, n)
	step := (b - a) / float64(n-1)
	for i := range out {
		out[i] = a + float64(i)*step
	}
	out[n-1] = b
	return out
}
