package synth

import (
	"fmt"
	"math"
)

// Rebin averages rows that fall in the same bin of width resolution
// (grouped by floor(time/resolution)). Time and flux become means over the
// bin, Duration and NBin sums.
func Rebin(t *Table, resolution float64) (*Table, error) {
	if !(resolution > 0) || math.IsInf(resolution, 0) {
		return nil, fmt.Errorf("rebin resolution must be positive, got %g", resolution)
	}

	out := &Table{Rows: []Sample{}}
	var (
		key   float64
		acc   Sample
		count int
	)
	flush := func() {
		if count == 0 {
			return
		}
		acc.Time /= float64(count)
		acc.Flux /= float64(count)
		out.Rows = append(out.Rows, acc)
	}

	for _, r := range t.Rows {
		k := math.Floor(r.Time / resolution)
		if count > 0 && k != key {
			flush()
			acc, count = Sample{}, 0
		}
		key = k
		acc.Time += r.Time
		acc.Flux += r.Flux
		acc.Duration += r.Duration
		acc.NBin += max(r.NBin, 1)
		count++
	}
	flush()
	return out, nil
}

// Band is one flux column of a multi-band light curve.
type Band struct {
	Name string
	Flux []float64
}

// MultiTable is several light curves that share a time column.
type MultiTable struct {
	Time     []float64
	Duration []float64
	Bands    []Band
}

// Merge combines tables synthesized against the same windows into one
// multi-band table. All tables must have identical time columns.
func Merge(names []string, tables []*Table) (*MultiTable, error) {
	if len(names) != len(tables) {
		return nil, fmt.Errorf("%d names for %d tables", len(names), len(tables))
	}
	if len(tables) == 0 {
		return &MultiTable{}, nil
	}

	ref := tables[0]
	mt := &MultiTable{
		Time:     ref.Times(),
		Duration: make([]float64, ref.Len()),
	}
	for i, r := range ref.Rows {
		mt.Duration[i] = r.Duration
	}

	for i, t := range tables {
		if t.Len() != ref.Len() {
			return nil, fmt.Errorf("%w: %q has %d rows, %q has %d", ErrMisaligned, names[i], t.Len(), names[0], ref.Len())
		}
		for j, r := range t.Rows {
			if r.Time != ref.Rows[j].Time {
				return nil, fmt.Errorf("%w: %q row %d at %g, %q at %g", ErrMisaligned, names[i], j, r.Time, names[0], ref.Rows[j].Time)
			}
		}
		mt.Bands = append(mt.Bands, Band{Name: names[i], Flux: t.Fluxes()})
	}
	return mt, nil
}
