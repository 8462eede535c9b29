// Package visibility generates periodic orbital visibility windows: the
// time ranges in which a target can be observed from a satellite in a
// low Earth orbit.
package visibility

import (
	"errors"
	"fmt"
	"math"

	"github.com/snpike/duet-astro/internal/gti"
)

var (
	ErrInvalidOrbit   = errors.New("invalid orbit parameters")
	ErrTooManyWindows = errors.New("too many visibility windows")
)

// DefaultMaxWindows bounds Windows and a WindowsLimit call with no limit.
const DefaultMaxWindows = 1_000_000

// Orbit describes the periodic visibility of a target, in seconds.
type Orbit struct {
	Period           float64 `json:"period" mapstructure:"period"`                         // orbital period
	ExposurePerOrbit float64 `json:"exposure_per_orbit" mapstructure:"exposure_per_orbit"` // time on target per orbit
	PhaseStart       float64 `json:"phase_start" mapstructure:"phase_start"`               // orbital phase of the first window, in periods
}

// DefaultOrbit returns a 96 minute orbit with 35 minutes on target per orbit,
// starting at phase 0.
func DefaultOrbit() Orbit {
	return Orbit{
		Period:           96 * 60,
		ExposurePerOrbit: 35 * 60,
		PhaseStart:       0,
	}
}

// Validate checks the orbit for a positive, finite period and exposure.
func (o Orbit) Validate() error {
	switch {
	case !(o.Period > 0) || math.IsInf(o.Period, 0):
		return fmt.Errorf("%w: period %g", ErrInvalidOrbit, o.Period)
	case !(o.ExposurePerOrbit > 0) || math.IsInf(o.ExposurePerOrbit, 0):
		return fmt.Errorf("%w: exposure per orbit %g", ErrInvalidOrbit, o.ExposurePerOrbit)
	case math.IsNaN(o.PhaseStart) || math.IsInf(o.PhaseStart, 0):
		return fmt.Errorf("%w: phase start %g", ErrInvalidOrbit, o.PhaseStart)
	}
	return nil
}

// Windows returns one visibility window per orbit between obsStart and
// obsEnd. The first window opens at obsStart + Period*PhaseStart; each lasts
// ExposurePerOrbit (capped at one Period). Windows opening at or after
// obsEnd are dropped and the last one is clipped to end at obsEnd.
// More than DefaultMaxWindows windows is ErrTooManyWindows.
func Windows(obsStart, obsEnd float64, o Orbit) (gti.List, error) {
	return WindowsLimit(obsStart, obsEnd, o, DefaultMaxWindows)
}

// WindowsLimit is Windows with a caller-chosen bound on the window count;
// limit <= 0 means DefaultMaxWindows. The count is checked before any
// window is generated.
func WindowsLimit(obsStart, obsEnd float64, o Orbit, limit int) (gti.List, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if math.IsNaN(obsStart) || math.IsNaN(obsEnd) || math.IsInf(obsStart, 0) || math.IsInf(obsEnd, 0) {
		return nil, fmt.Errorf("%w: observation range [%g, %g]", gti.ErrInvalidInterval, obsStart, obsEnd)
	}
	if limit <= 0 {
		limit = DefaultMaxWindows
	}

	length := math.Min(o.ExposurePerOrbit, o.Period)
	first := obsStart + o.Period*o.PhaseStart
	if !(first < obsEnd) {
		return gti.List{}, nil
	}

	n := math.Ceil((obsEnd - first) / o.Period)
	if !(n <= float64(limit)) {
		return nil, fmt.Errorf("%w: %g s period over [%g, %g] exceeds limit %d",
			ErrTooManyWindows, o.Period, obsStart, obsEnd, limit)
	}

	// One spare iteration absorbs rounding in n; the start check ends the loop.
	windows := make(gti.List, 0, int(n))
	for k := 0; k <= int(n); k++ {
		start := first + float64(k)*o.Period
		if start >= obsEnd {
			break
		}
		end := math.Min(start+length, obsEnd)
		windows = append(windows, gti.Interval{Start: start, End: end})
	}
	return windows, nil
}
