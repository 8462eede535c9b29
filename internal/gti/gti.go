// Package gti implements good-time-interval algebra: validation, joining of
// touching boundaries, and exact intersection of two interval lists.
//
// All times are float64 seconds on a caller-chosen axis. Lists are expected
// to be sorted and non-overlapping; touching intervals are legal.
package gti

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidInterval = errors.New("invalid interval")
	ErrUnordered       = errors.New("intervals not sorted or overlapping")
)

// Interval is a closed time range [Start, End].
type Interval struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
}

// Duration returns End - Start.
func (iv Interval) Duration() float64 {
	return iv.End - iv.Start
}

// Contains reports whether t lies in [Start, End].
func (iv Interval) Contains(t float64) bool {
	return t >= iv.Start && t <= iv.End
}

// Covers reports whether o lies entirely inside iv.
func (iv Interval) Covers(o Interval) bool {
	return o.Start >= iv.Start && o.End <= iv.End
}

// Valid reports whether the interval has finite bounds and Start < End.
func (iv Interval) Valid() bool {
	if math.IsNaN(iv.Start) || math.IsNaN(iv.End) || math.IsInf(iv.Start, 0) || math.IsInf(iv.End, 0) {
		return false
	}
	return iv.Start < iv.End
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%g, %g]", iv.Start, iv.End)
}

// List is an ordered sequence of intervals.
type List []Interval

// Duration returns the summed duration of all intervals.
func (l List) Duration() float64 {
	var total float64
	for _, iv := range l {
		total += iv.Duration()
	}
	return total
}

// Bounds returns the earliest start and the latest end in the list.
// ok is false for an empty list.
func (l List) Bounds() (start, end float64, ok bool) {
	if len(l) == 0 {
		return 0, 0, false
	}
	start, end = l[0].Start, l[0].End
	for _, iv := range l[1:] {
		start = math.Min(start, iv.Start)
		end = math.Max(end, iv.End)
	}
	return start, end, true
}

// Clone returns a copy of l that shares no memory with it.
func (l List) Clone() List {
	if l == nil {
		return nil
	}
	out := make(List, len(l))
	copy(out, l)
	return out
}

// Validate checks every interval and the ordering of the list.
func Validate(l List) error {
	for i, iv := range l {
		if !iv.Valid() {
			return fmt.Errorf("%w: index %d %s", ErrInvalidInterval, i, iv)
		}
		if i > 0 && iv.Start < l[i-1].End {
			return fmt.Errorf("%w: index %d %s starts before %s ends", ErrUnordered, i, iv, l[i-1])
		}
	}
	return nil
}

// FromPairs converts [][2]float64 pairs, as found in JSON and YAML window
// files, into a List. The result is not validated.
func FromPairs(pairs [][2]float64) List {
	if pairs == nil {
		return nil
	}
	out := make(List, len(pairs))
	for i, p := range pairs {
		out[i] = Interval{Start: p[0], End: p[1]}
	}
	return out
}

// Pairs is the inverse of FromPairs.
func (l List) Pairs() [][2]float64 {
	out := make([][2]float64, len(l))
	for i, iv := range l {
		out[i] = [2]float64{iv.Start, iv.End}
	}
	return out
}
