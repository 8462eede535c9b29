package orbit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/snpike/duet-astro/internal/gti"
)

const earthRadiusKm = 6378.137

var ErrInvalidScan = errors.New("invalid scan parameters")

// Target is a fixed sky direction in equatorial coordinates (degrees).
type Target struct {
	RADeg  float64 `json:"ra_deg"`
	DecDeg float64 `json:"dec_deg"`
}

func (t Target) unit() [3]float64 {
	ra := t.RADeg * math.Pi / 180
	dec := t.DecDeg * math.Pi / 180
	return [3]float64{math.Cos(dec) * math.Cos(ra), math.Cos(dec) * math.Sin(ra), math.Sin(dec)}
}

// ScanConfig controls the occultation scan.
type ScanConfig struct {
	LimbMarginKm float64       // height above the surface the line of sight must clear
	CoarseStep   time.Duration // step of the initial scan
	FineStep     time.Duration // resolution of window edges
}

// DefaultScanConfig clears the limb by 100 km and finds edges to 1 s.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		LimbMarginKm: 100,
		CoarseStep:   30 * time.Second,
		FineStep:     1 * time.Second,
	}
}

func (c ScanConfig) validate() error {
	if c.CoarseStep <= 0 || c.FineStep <= 0 || c.FineStep > c.CoarseStep {
		return fmt.Errorf("%w: coarse %v, fine %v", ErrInvalidScan, c.CoarseStep, c.FineStep)
	}
	if c.LimbMarginKm < 0 || math.IsNaN(c.LimbMarginKm) {
		return fmt.Errorf("%w: limb margin %g km", ErrInvalidScan, c.LimbMarginKm)
	}
	return nil
}

// Visible reports whether the line of sight from s towards target clears
// the Earth plus margin.
func Visible(s State, target Target, marginKm float64) bool {
	u := target.unit()
	d := s.X*u[0] + s.Y*u[1] + s.Z*u[2]
	if d >= 0 {
		// Looking away from the Earth.
		return true
	}
	r2 := s.X*s.X + s.Y*s.Y + s.Z*s.Z
	limb := earthRadiusKm + marginKm
	return r2-d*d > limb*limb
}

// OccultationWindows returns the intervals of [start, end] (seconds after
// ref) during which target is not hidden by the Earth. The range is first
// scanned at CoarseStep; every change of state is then located to FineStep
// by stepping forward from the last coarse sample.
func OccultationWindows(ctx context.Context, p *Propagator, target Target, ref time.Time, start, end float64, cfg ScanConfig) (gti.List, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if !(end > start) {
		return gti.List{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	visibleAt := func(sec float64) (bool, error) {
		s, err := p.At(ref.Add(time.Duration(sec * float64(time.Second))))
		if err != nil {
			return false, err
		}
		return Visible(s, target, cfg.LimbMarginKm), nil
	}

	coarse := cfg.CoarseStep.Seconds()
	fine := cfg.FineStep.Seconds()

	windows := gti.List{}
	prev, err := visibleAt(start)
	if err != nil {
		return nil, err
	}
	openAt := start

	for t := start; t < end; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next := math.Min(t+coarse, end)
		cur, err := visibleAt(next)
		if err != nil {
			return nil, err
		}

		if cur != prev {
			edge, err := refineEdge(ctx, visibleAt, t, next, fine, prev)
			if err != nil {
				return nil, err
			}
			if prev {
				if edge > openAt {
					windows = append(windows, gti.Interval{Start: openAt, End: edge})
				}
			} else {
				openAt = edge
			}
			prev = cur
		}
		t = next
	}

	if prev && end > openAt {
		windows = append(windows, gti.Interval{Start: openAt, End: end})
	}
	return windows, nil
}

// refineEdge steps from lo towards hi and returns the first time at which the
// state differs from was.
func refineEdge(ctx context.Context, visibleAt func(float64) (bool, error), lo, hi, step float64, was bool) (float64, error) {
	for t := lo + step; t < hi; t += step {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		v, err := visibleAt(t)
		if err != nil {
			return 0, err
		}
		if v != was {
			return t, nil
		}
	}
	return hi, nil
}
