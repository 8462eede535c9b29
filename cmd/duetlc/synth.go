package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/snpike/duet-astro/internal/config"
	"github.com/snpike/duet-astro/internal/curve"
	"github.com/snpike/duet-astro/internal/synth"
)

type synthFlags struct {
	modelPath      string
	timeColumn     string
	fluxColumns    []string
	schedulePath   string
	visibilityPath string
	distancePc     float64
	rebin          float64
	outPath        string
	strict         bool
}

func newSynthCmd(a *app) *cobra.Command {
	var (
		sf synthFlags
		of orbitFlags
	)

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize an observed light curve from a model",
		Long: `Read a model light curve table (.asc/.dat whitespace separated, or .csv) and
write the light curve observed through the schedule and visibility windows,
one row per exposure, as CSV.

Each flux column is synthesized against the same windows. Without
--visibility, windows are generated per orbit, or from Earth occultation when
--tle, --ra and --dec are given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bindings := orbitBindings()
			bindings["exposure"] = config.KeyExposureLength
			bindings["workers"] = config.KeySynthWorkers
			bindings["samples"] = config.KeySamplesPerExposure
			bindings["rule"] = config.KeyRule
			if err := a.setup(cmd, bindings); err != nil {
				return err
			}
			return a.runSynth(cmd, &sf, &of)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&sf.modelPath, "model", "m", "", "model light curve table")
	f.StringVar(&sf.timeColumn, "time-column", "time", "name of the time column")
	f.StringSliceVar(&sf.fluxColumns, "flux-column", nil, "flux column to synthesize, repeatable (default: every column except time)")
	f.StringVar(&sf.schedulePath, "schedule", "", "observing schedule window file (default: the model's full time span)")
	f.StringVar(&sf.visibilityPath, "visibility", "", "visibility window file (default: generated)")
	f.Float64Var(&sf.distancePc, "distance", 0, "scale fluxes from 10 pc to this distance in pc")
	f.Float64Var(&sf.rebin, "rebin", 0, "average the output into bins of this many seconds")
	f.StringVarP(&sf.outPath, "output", "o", "", "output CSV file (default stdout)")
	f.BoolVar(&sf.strict, "strict", false, "fail if any model row is malformed instead of skipping it")
	f.String("exposure", "", "exposure length in seconds")
	f.String("workers", "", "integration goroutines")
	f.String("samples", "", "grid points per exposure")
	f.String("rule", "", "integration rule: trapezoid or sum")
	of.register(cmd)
	cmd.MarkFlagRequired("model")
	return cmd
}

func (a *app) runSynth(cmd *cobra.Command, sf *synthFlags, of *orbitFlags) error {
	started := time.Now()

	model, err := curve.ReadModelFile(sf.modelPath, a.logger)
	if err != nil {
		return err
	}
	if sf.strict {
		if err := model.CheckComplete(); err != nil {
			return fmt.Errorf("%s: %w", sf.modelPath, err)
		}
	}
	times, err := model.Column(sf.timeColumn)
	if err != nil {
		return err
	}
	columns := sf.fluxColumns
	if len(columns) == 0 {
		columns = model.FluxColumns(sf.timeColumn)
	}
	if len(columns) == 0 {
		return fmt.Errorf("%s: no flux columns besides %q", sf.modelPath, sf.timeColumn)
	}

	req := synth.Request{
		Times:          times,
		Orbit:          a.cfg.Orbit,
		ExposureLength: a.cfg.ExposureLength,
	}
	if sf.schedulePath != "" {
		if req.Schedule, err = curve.ReadWindowsFile(sf.schedulePath, a.logger); err != nil {
			return err
		}
	}

	if sf.visibilityPath != "" {
		if req.Visibility, err = curve.ReadWindowsFile(sf.visibilityPath, a.logger); err != nil {
			return err
		}
	} else {
		start, end := times[0], times[len(times)-1]
		if lo, hi, ok := req.Schedule.Bounds(); ok {
			start, end = lo, hi
		}
		if req.Visibility, req.Orbit, err = a.resolveVisibility(cmd, of, start, end); err != nil {
			return err
		}
	}

	s, err := synth.New(a.cfg.Synth, a.logger)
	if err != nil {
		return err
	}

	tables := make([]*synth.Table, len(columns))
	for i, col := range columns {
		values, err := model.Column(col)
		if err != nil {
			return err
		}
		r := req
		r.Values = values
		if tables[i], err = a.synthesizeColumn(cmd, s, r, sf); err != nil {
			return fmt.Errorf("column %q: %w", col, err)
		}
	}

	w, closeOut, err := output(cmd, sf.outPath)
	if err != nil {
		return err
	}
	if len(tables) == 1 {
		err = curve.WriteTable(w, tables[0])
	} else {
		var mt *synth.MultiTable
		if mt, err = synth.Merge(columns, tables); err == nil {
			err = curve.WriteMulti(w, mt)
		}
	}
	if err != nil {
		closeOut()
		return err
	}

	a.logger.Info("synthesis complete",
		"model", sf.modelPath,
		"columns", len(columns),
		"rows", tables[0].Len(),
		"exposure_length", req.ExposureLength,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return closeOut()
}

func (a *app) synthesizeColumn(cmd *cobra.Command, s *synth.Synthesizer, req synth.Request, sf *synthFlags) (*synth.Table, error) {
	t, err := s.Synthesize(cmd.Context(), req)
	if err != nil {
		return nil, err
	}
	if sf.distancePc != 0 {
		if t, err = curve.ScaleToDistance(t, sf.distancePc); err != nil {
			return nil, err
		}
	}
	if sf.rebin != 0 {
		if t, err = synth.Rebin(t, sf.rebin); err != nil {
			return nil, err
		}
	}
	return t, nil
}
