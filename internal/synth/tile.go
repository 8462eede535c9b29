package synth

import (
	"fmt"
	"math"

	"github.com/snpike/duet-astro/internal/gti"
)

// sliverTolerance is the fraction of an exposure below which a rounding
// remainder at the end of a window is folded into the previous exposure.
const sliverTolerance = 1e-9

// maxTileExposures bounds a tiling when no limit is configured.
const maxTileExposures = math.MaxInt32

// Tile cuts each live window into consecutive exposures of the given length,
// anchored at the window start. The last exposure of a window ends at the
// window end and may be shorter than length; a window shorter than length
// yields one exposure covering all of it.
//
// The exposure count is checked against limit (0 for no configured limit)
// before anything is allocated; exceeding it is ErrTooManyExposures.
func Tile(live gti.List, length float64, limit int) ([]gti.Interval, error) {
	if !(length > 0) || math.IsInf(length, 0) {
		return nil, fmt.Errorf("%w: %g", ErrInvalidExposure, length)
	}
	bound := maxTileExposures
	if limit > 0 && limit < bound {
		bound = limit
	}

	counts := make([]int, len(live))
	var total float64
	for i, w := range live {
		n := exposureCount(w.Duration(), length)
		total += n
		if total > float64(bound) {
			return nil, fmt.Errorf("%w: %g s of live time at %g s per exposure exceeds limit %d",
				ErrTooManyExposures, live.Duration(), length, bound)
		}
		counts[i] = int(n)
	}

	out := make([]gti.Interval, 0, int(total))
	for i, w := range live {
		n := counts[i]
		for k := 0; k < n; k++ {
			start := w.Start + float64(k)*length
			end := w.Start + float64(k+1)*length
			if k == n-1 {
				end = w.End
			}
			out = append(out, gti.Interval{Start: start, End: end})
		}
	}
	return out, nil
}

// exposureCount is ceil(d/length), ignoring remainders smaller than
// sliverTolerance exposures. Always at least 1. The result may be +Inf.
func exposureCount(d, length float64) float64 {
	q := d / length
	n := math.Floor(q)
	if q-n > sliverTolerance {
		n++
	}
	return math.Max(n, 1)
}
