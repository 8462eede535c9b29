// Package orbit derives target visibility from a satellite's real orbit:
// SGP4 propagation of a two-line element set and an Earth-limb occultation
// test against a fixed sky direction.
package orbit

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// State is a TEME position (km) and velocity (km/s).
type State struct {
	X, Y, Z    float64
	VX, VY, VZ float64
}

// Radius returns the distance from the Earth's centre in km.
func (s State) Radius() float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

// Propagator wraps go-satellite for a single element set.
//
// go-satellite's Propagate takes the Satellite by value, so SGP4 error codes
// never reach us; failures are detected from NaN/Inf output and
// unreasonable radii instead.
type Propagator struct {
	sat     satellite.Satellite
	noradID int
}

// NewPropagator initializes SGP4 for the element set. The set is validated
// first because go-satellite calls log.Fatal on malformed input.
func NewPropagator(e ElementSet) (*Propagator, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	sat := satellite.TLEToSat(e.Line1, e.Line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for NORAD %d: code=%d %s", e.NORADID, sat.Error, sat.ErrorStr)
	}
	return &Propagator{sat: sat, noradID: e.NORADID}, nil
}

// At propagates to t (UTC, whole seconds).
func (p *Propagator) At(t time.Time) (State, error) {
	t = t.UTC()
	pos, vel := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) ||
		math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return State{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: output is NaN/Inf", p.noradID)
	}

	s := State{X: pos.X, Y: pos.Y, Z: pos.Z, VX: vel.X, VY: vel.Y, VZ: vel.Z}
	if r := s.Radius(); r < 6200.0 || r > 50000.0 {
		return State{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: unreasonable position magnitude %.1f km", p.noradID, r)
	}
	return s, nil
}
