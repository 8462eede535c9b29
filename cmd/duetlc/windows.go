package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/snpike/duet-astro/internal/config"
	"github.com/snpike/duet-astro/internal/curve"
	"github.com/snpike/duet-astro/internal/gti"
	"github.com/snpike/duet-astro/internal/orbit"
	"github.com/snpike/duet-astro/internal/visibility"
)

// orbitFlags select how visibility windows are generated: periodic windows
// from the configured orbit, periodic windows with the period taken from an
// element set, or Earth-occultation windows for a target direction.
type orbitFlags struct {
	tlePath string
	epoch   string
	ra      float64
	dec     float64
}

func (of *orbitFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64("period", 0, "orbital period in seconds")
	f.Float64("exposure-per-orbit", 0, "time on target per orbit in seconds")
	f.Float64("phase", 0, "orbital phase of the first window, in periods")
	f.StringVar(&of.tlePath, "tle", "", "element set file; sets the orbital period, or with --ra/--dec enables occultation windows")
	f.String("tle-url", "", "fetch the element set from this URL instead of --tle")
	f.String("tle-cache-dir", "", "keep fetched element sets here and fall back to them when a fetch fails")
	f.Float64Var(&of.ra, "ra", 0, "target right ascension in degrees")
	f.Float64Var(&of.dec, "dec", 0, "target declination in degrees")
	f.StringVar(&of.epoch, "epoch", "", "RFC 3339 time of t=0 for occultation windows (default: element set epoch)")
	f.String("limb-margin", "", "height in km the line of sight must clear above the Earth")
	f.String("scan-step", "", "coarse occultation scan step, e.g. 30s")
}

func orbitBindings() map[string]string {
	return map[string]string{
		"period":             config.KeyOrbitPeriod,
		"exposure-per-orbit": config.KeyOrbitExposure,
		"phase":              config.KeyOrbitPhase,
		"tle-url":            config.KeyTLESourceURL,
		"tle-cache-dir":      config.KeyTLECacheDir,
		"limb-margin":        config.KeyLimbMargin,
		"scan-step":          config.KeyScanStep,
	}
}

// loadElements returns the first element set from --tle or the configured
// source URL. ok is false when neither is set.
func (a *app) loadElements(ctx context.Context, of *orbitFlags) (e orbit.ElementSet, ok bool, err error) {
	var data []byte
	switch {
	case of.tlePath != "":
		data, err = os.ReadFile(of.tlePath)
		if err != nil {
			return e, false, fmt.Errorf("reading element sets: %w", err)
		}
	case a.cfg.TLESourceURL != "":
		if data, err = a.fetchElements(ctx); err != nil {
			return e, false, err
		}
	default:
		return e, false, nil
	}

	sets, err := orbit.ParseElements(bytes.NewReader(data), a.logger)
	if err != nil {
		return e, false, err
	}
	if len(sets) > 1 {
		a.logger.Warn("several element sets found, using the first", "count", len(sets), "name", sets[0].Name)
	}
	return sets[0], true, nil
}

// fetchElements downloads from the configured source URL. With a cache
// directory configured, a successful download is cached and a failed one
// falls back to the newest cached copy.
func (a *app) fetchElements(ctx context.Context) ([]byte, error) {
	var cache *orbit.Cache
	if a.cfg.TLECacheDir != "" {
		cache = orbit.NewCache(a.cfg.TLECacheDir, a.cfg.TLECacheMaxFiles)
	}

	data, err := orbit.NewFetcher(a.cfg.TLESourceURL).Fetch(ctx)
	if err != nil {
		if cache == nil {
			return nil, err
		}
		cached, ts, cerr := cache.LoadLatest()
		if cerr != nil {
			return nil, fmt.Errorf("%w (cache: %v)", err, cerr)
		}
		a.logger.Warn("element set fetch failed, using cached copy",
			"url", a.cfg.TLESourceURL,
			"error", err,
			"cached_at", ts.Format(time.RFC3339),
		)
		return cached, nil
	}
	a.logger.Info("fetched element sets", "url", a.cfg.TLESourceURL, "bytes", len(data))

	if cache != nil {
		if err := cache.Write(data, time.Now()); err != nil {
			a.logger.Warn("failed to cache element sets", "dir", a.cfg.TLECacheDir, "error", err)
		}
	}
	return data, nil
}

// resolveVisibility returns explicit visibility windows over [start, end]
// when occultation is requested, otherwise nil together with the orbit to
// generate periodic windows from.
func (a *app) resolveVisibility(cmd *cobra.Command, of *orbitFlags, start, end float64) (gti.List, visibility.Orbit, error) {
	o := a.cfg.Orbit

	e, ok, err := a.loadElements(cmd.Context(), of)
	if err != nil || !ok {
		return nil, o, err
	}

	raSet, decSet := cmd.Flags().Changed("ra"), cmd.Flags().Changed("dec")
	if raSet != decSet {
		return nil, o, fmt.Errorf("--ra and --dec must be given together")
	}

	if !raSet {
		if cmd.Flags().Changed("period") {
			return nil, o, nil
		}
		if o.Period, err = e.Period(); err != nil {
			return nil, o, fmt.Errorf("element set %q: %w", e.Name, err)
		}
		a.logger.Info("orbital period from element set", "name", e.Name, "period_s", o.Period)
		return nil, o, nil
	}

	ref := e.Epoch
	if of.epoch != "" {
		if ref, err = time.Parse(time.RFC3339, of.epoch); err != nil {
			return nil, o, fmt.Errorf("invalid --epoch: %w", err)
		}
	}

	p, err := orbit.NewPropagator(e)
	if err != nil {
		return nil, o, err
	}
	target := orbit.Target{RADeg: of.ra, DecDeg: of.dec}

	started := time.Now()
	windows, err := orbit.OccultationWindows(cmd.Context(), p, target, ref, start, end, a.cfg.Scan)
	if err != nil {
		return nil, o, fmt.Errorf("occultation windows: %w", err)
	}
	a.logger.Info("occultation windows",
		"name", e.Name,
		"ra_deg", of.ra,
		"dec_deg", of.dec,
		"ref", ref.Format(time.RFC3339),
		"windows", len(windows),
		"visible_s", windows.Duration(),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return windows, o, nil
}

func writeWindows(w io.Writer, l gti.List, format string) error {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return curve.WriteWindowsYAML(w, l)
	case "csv":
		return curve.WriteWindowsCSV(w, l)
	}
	return fmt.Errorf("unknown format %q (want yaml or csv)", format)
}

func newVisibilityCmd(a *app) *cobra.Command {
	var (
		of         orbitFlags
		start, end float64
		outPath    string
		format     string
	)

	cmd := &cobra.Command{
		Use:   "visibility",
		Short: "Generate visibility windows for an observation",
		Long:  "Generate one visibility window per orbit between --start and --end, or, with --tle, --ra and --dec, the windows in which the target is not occulted by the Earth.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd, orbitBindings()); err != nil {
				return err
			}
			if !(end > start) {
				return fmt.Errorf("--end (%g) must be after --start (%g)", end, start)
			}

			windows, o, err := a.resolveVisibility(cmd, &of, start, end)
			if err != nil {
				return err
			}
			if windows == nil {
				if windows, err = visibility.WindowsLimit(start, end, o, a.cfg.Synth.MaxWindows); err != nil {
					return err
				}
			}

			w, closeOut, err := output(cmd, outPath)
			if err != nil {
				return err
			}
			if err := writeWindows(w, windows, format); err != nil {
				closeOut()
				return err
			}
			return closeOut()
		},
	}

	of.register(cmd)
	cmd.Flags().Float64Var(&start, "start", 0, "observation start in seconds")
	cmd.Flags().Float64Var(&end, "end", 0, "observation end in seconds")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml or csv")
	cmd.MarkFlagRequired("end")
	return cmd
}

func newIntersectCmd(a *app) *cobra.Command {
	var (
		outPath string
		format  string
	)

	cmd := &cobra.Command{
		Use:   "intersect FILE FILE [FILE...]",
		Short: "Intersect window lists",
		Long:  "Read two or more window lists (.yaml/.yml, or a table with start and end columns) and print the time covered by all of them.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd, map[string]string{}); err != nil {
				return err
			}

			lists := make([]gti.List, len(args))
			for i, path := range args {
				l, err := curve.ReadWindowsFile(path, a.logger)
				if err != nil {
					return err
				}
				lists[i] = l
			}

			out, err := gti.IntersectAll(lists...)
			if err != nil {
				return err
			}
			a.logger.Debug("intersected window lists", "lists", len(lists), "windows", len(out), "duration_s", out.Duration())

			w, closeOut, err := output(cmd, outPath)
			if err != nil {
				return err
			}
			if err := writeWindows(w, out, format); err != nil {
				closeOut()
				return err
			}
			return closeOut()
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml or csv")
	return cmd
}
