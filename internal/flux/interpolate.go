package flux

import (
	"fmt"
	"math"
	"sort"
)

// Interpolant is a piecewise-linear function through a set of samples.
// It evaluates to zero outside the sampled domain and never extrapolates.
// Immutable after construction; safe for concurrent use.
type Interpolant struct {
	times  []float64
	values []float64
}

// NewInterpolant copies the samples and checks that there are at least two,
// that times strictly increase and that everything is finite.
func NewInterpolant(times, values []float64) (*Interpolant, error) {
	if len(times) != len(values) {
		return nil, fmt.Errorf("%w: %d times, %d values", ErrLengthMismatch, len(times), len(values))
	}
	if len(times) < 2 {
		return nil, fmt.Errorf("%w: model has %d samples, need at least 2", ErrEmptyInput, len(times))
	}
	for i := range times {
		if !finite(times[i]) || !finite(values[i]) {
			return nil, fmt.Errorf("%w: model sample %d (%g, %g)", ErrNonFinite, i, times[i], values[i])
		}
		if i > 0 && times[i] <= times[i-1] {
			return nil, fmt.Errorf("%w: index %d (%g after %g)", ErrNotIncreasing, i, times[i], times[i-1])
		}
	}

	ip := &Interpolant{
		times:  make([]float64, len(times)),
		values: make([]float64, len(values)),
	}
	copy(ip.times, times)
	copy(ip.values, values)
	return ip, nil
}

// Domain returns the first and last sample time.
func (ip *Interpolant) Domain() (float64, float64) {
	return ip.times[0], ip.times[len(ip.times)-1]
}

// At evaluates the curve at t.
func (ip *Interpolant) At(t float64) float64 {
	n := len(ip.times)
	if t < ip.times[0] || t > ip.times[n-1] || math.IsNaN(t) {
		return 0
	}
	// First sample at or after t.
	i := sort.SearchFloat64s(ip.times, t)
	if ip.times[i] == t {
		return ip.values[i]
	}
	t0, t1 := ip.times[i-1], ip.times[i]
	v0, v1 := ip.values[i-1], ip.values[i]
	return v0 + (v1-v0)*(t-t0)/(t1-t0)
}

// Sample evaluates the curve at every time in ts.
func (ip *Interpolant) Sample(ts []float64) []float64 {
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = ip.At(t)
	}
	return out
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
