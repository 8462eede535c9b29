package synth

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/snpike/duet-astro/internal/flux"
	"github.com/snpike/duet-astro/internal/gti"
	"github.com/snpike/duet-astro/internal/visibility"
)

var (
	ErrInvalidExposure  = errors.New("exposure length must be positive and finite")
	ErrInvalidConfig    = errors.New("invalid synthesizer config")
	ErrMisaligned       = errors.New("tables have different time columns")
	ErrTooManyExposures = errors.New("too many exposures")
)

// Config holds synthesizer settings.
type Config struct {
	Workers            int       // Exposure integration goroutines (default: runtime.NumCPU())
	SamplesPerExposure int       // Grid points per exposure (default: 10)
	Rule               flux.Rule // Integration rule (default: trapezoid)
	MaxExposures       int       // Upper bound on exposures per synthesis, 0 for none (default: 0)
	MaxWindows         int       // Upper bound on generated visibility windows, 0 for visibility.DefaultMaxWindows
}

// DefaultConfig returns the standard settings: ten points per exposure,
// trapezoid weighting, one worker per CPU.
func DefaultConfig() Config {
	return Config{
		Workers:            runtime.NumCPU(),
		SamplesPerExposure: 10,
		Rule:               flux.RuleTrapezoid,
	}
}

func (c Config) validate() error {
	if c.SamplesPerExposure < 2 {
		return fmt.Errorf("%w: samples per exposure %d, need at least 2", ErrInvalidConfig, c.SamplesPerExposure)
	}
	if c.MaxExposures < 0 {
		return fmt.Errorf("%w: max exposures %d", ErrInvalidConfig, c.MaxExposures)
	}
	if c.MaxWindows < 0 {
		return fmt.Errorf("%w: max windows %d", ErrInvalidConfig, c.MaxWindows)
	}
	if c.Rule != flux.RuleTrapezoid && c.Rule != flux.RuleSum {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, flux.ErrUnknownRule)
	}
	return nil
}

// Request is one synthesis: a model curve, the windows to observe it
// through, and the exposure length. Times are seconds.
//
// A nil Schedule covers the model's full time span. A nil Visibility is
// generated from Orbit over the schedule's bounds; a zero Orbit means
// visibility.DefaultOrbit. Non-nil empty lists mean "never" and produce an
// empty table.
type Request struct {
	Times          []float64
	Values         []float64
	Schedule       gti.List
	Visibility     gti.List
	Orbit          visibility.Orbit
	ExposureLength float64
}

// Sample is one exposure of the synthesized light curve.
type Sample struct {
	Time     float64 `json:"time"`     // exposure midpoint
	Flux     float64 `json:"flux"`     // time-averaged model value
	Duration float64 `json:"duration"` // exposure length actually integrated
	NBin     int     `json:"nbin"`     // exposures averaged into this row
}

// Table is a chronologically ordered light curve.
type Table struct {
	Rows []Sample `json:"rows"`
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Times returns the time column.
func (t *Table) Times() []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Time
	}
	return out
}

// Fluxes returns the flux column.
func (t *Table) Fluxes() []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Flux
	}
	return out
}

// Scaled returns a copy with every flux multiplied by factor.
func (t *Table) Scaled(factor float64) *Table {
	rows := make([]Sample, len(t.Rows))
	for i, r := range t.Rows {
		r.Flux *= factor
		rows[i] = r
	}
	return &Table{Rows: rows}
}
