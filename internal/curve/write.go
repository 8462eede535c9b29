package curve

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/snpike/duet-astro/internal/gti"
	"github.com/snpike/duet-astro/internal/synth"
)

var ErrInvalidDistance = errors.New("distance must be positive and finite")

// referenceDistancePc is the distance model fluxes are quoted at.
const referenceDistancePc = 10.0

// DistanceFactor returns (10 pc / d)^2, the flux scale for a source moved
// from the reference distance to d parsecs.
func DistanceFactor(pc float64) (float64, error) {
	if !(pc > 0) || math.IsInf(pc, 0) {
		return 0, fmt.Errorf("%w: %g pc", ErrInvalidDistance, pc)
	}
	r := referenceDistancePc / pc
	return r * r, nil
}

// ScaleToDistance returns a copy of t with fluxes scaled from 10 pc to pc.
func ScaleToDistance(t *synth.Table, pc float64) (*synth.Table, error) {
	f, err := DistanceFactor(pc)
	if err != nil {
		return nil, err
	}
	return t.Scaled(f), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteTable writes t as CSV with a time,flux,duration,nbin header.
func WriteTable(w io.Writer, t *synth.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "flux", "duration", "nbin"}); err != nil {
		return err
	}
	for _, r := range t.Rows {
		rec := []string{formatFloat(r.Time), formatFloat(r.Flux), formatFloat(r.Duration), strconv.Itoa(r.NBin)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMulti writes a multi-band table as CSV: time, then one column per
// band, then duration.
func WriteMulti(w io.Writer, mt *synth.MultiTable) error {
	cw := csv.NewWriter(w)

	header := []string{"time"}
	for _, b := range mt.Bands {
		header = append(header, b.Name)
	}
	header = append(header, "duration")
	if err := cw.Write(header); err != nil {
		return err
	}

	for i, t := range mt.Time {
		rec := make([]string, 0, len(header))
		rec = append(rec, formatFloat(t))
		for _, b := range mt.Bands {
			rec = append(rec, formatFloat(b.Flux[i]))
		}
		rec = append(rec, formatFloat(mt.Duration[i]))
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteWindowsCSV writes l as CSV with a start,end header, readable by
// ReadWindowsTable.
func WriteWindowsCSV(w io.Writer, l gti.List) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"start", "end"}); err != nil {
		return err
	}
	for _, iv := range l {
		if err := cw.Write([]string{formatFloat(iv.Start), formatFloat(iv.End)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
