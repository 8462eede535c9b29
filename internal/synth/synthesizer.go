// Package synth turns a continuous model light curve into the light curve an
// orbiting telescope would record: the model is observed only inside the
// live windows (schedule intersected with visibility), cut into fixed-length
// exposures, and averaged over each exposure.
package synth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/snpike/duet-astro/internal/flux"
	"github.com/snpike/duet-astro/internal/gti"
	"github.com/snpike/duet-astro/internal/metrics"
	"github.com/snpike/duet-astro/internal/visibility"
)

// Synthesizer runs light-curve syntheses. It holds no state between calls
// and is safe for concurrent use.
type Synthesizer struct {
	config Config
	logger *slog.Logger
}

// New creates a Synthesizer. Workers below 1 are raised to 1.
func New(config Config, logger *slog.Logger) (*Synthesizer, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &Synthesizer{config: config, logger: logger}, nil
}

// Config returns the effective configuration.
func (s *Synthesizer) Config() Config {
	return s.config
}

// Synthesize produces the observed light curve for req. Any failure aborts
// the whole synthesis; a partial table is never returned.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (*Table, error) {
	start := time.Now()
	table, live, err := s.synthesize(ctx, req)
	duration := time.Since(start)

	exposures := 0
	if table != nil {
		exposures = table.Len()
	}
	metrics.RecordSynthesis(duration, exposures, live.Duration(), err)

	if err != nil {
		s.logger.Debug("synthesis failed", "error", err, "duration_ms", duration.Milliseconds())
		return nil, err
	}

	s.logger.Debug("synthesis complete",
		"model_samples", len(req.Times),
		"live_windows", len(live),
		"live_seconds", live.Duration(),
		"exposures", exposures,
		"duration_ms", duration.Milliseconds(),
	)
	return table, nil
}

func (s *Synthesizer) synthesize(ctx context.Context, req Request) (*Table, gti.List, error) {
	ip, err := flux.NewInterpolant(req.Times, req.Values)
	if err != nil {
		return nil, nil, fmt.Errorf("model curve: %w", err)
	}
	if !(req.ExposureLength > 0) {
		return nil, nil, fmt.Errorf("%w: %g", ErrInvalidExposure, req.ExposureLength)
	}

	live, err := s.LiveWindows(ip, req)
	if err != nil {
		return nil, nil, err
	}

	slices, err := Tile(live, req.ExposureLength, s.config.MaxExposures)
	if err != nil {
		return nil, live, err
	}

	rows, err := s.integrateAll(ctx, ip, slices)
	if err != nil {
		return nil, live, err
	}
	return &Table{Rows: rows}, live, nil
}

// LiveWindows resolves the request's schedule and visibility defaults
// against the model domain and intersects them. Generated visibility is
// bounded by the configured MaxWindows.
func (s *Synthesizer) LiveWindows(ip *flux.Interpolant, req Request) (gti.List, error) {
	schedule := req.Schedule
	if schedule == nil {
		lo, hi := ip.Domain()
		schedule = gti.List{{Start: lo, End: hi}}
	}

	vis := req.Visibility
	if vis == nil {
		obsStart, obsEnd, ok := schedule.Bounds()
		if !ok {
			return gti.List{}, nil
		}
		orbit := req.Orbit
		if orbit == (visibility.Orbit{}) {
			orbit = visibility.DefaultOrbit()
		}
		var err error
		vis, err = visibility.WindowsLimit(obsStart, obsEnd, orbit, s.config.MaxWindows)
		if err != nil {
			return nil, fmt.Errorf("visibility windows: %w", err)
		}
	}

	live, err := gti.Intersect(schedule, vis)
	if err != nil {
		return nil, fmt.Errorf("intersecting schedule with visibility: %w", err)
	}
	return live, nil
}
