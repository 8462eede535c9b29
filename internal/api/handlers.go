package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/snpike/duet-astro/internal/curve"
	"github.com/snpike/duet-astro/internal/flux"
	"github.com/snpike/duet-astro/internal/gti"
	"github.com/snpike/duet-astro/internal/httputil"
	"github.com/snpike/duet-astro/internal/synth"
	"github.com/snpike/duet-astro/internal/visibility"
)

var errBadRequest = errors.New("bad request")

// inputErrors are caller mistakes and map to 400.
var inputErrors = []error{
	errBadRequest,
	httputil.ErrBadJSON,
	gti.ErrInvalidInterval,
	gti.ErrUnordered,
	flux.ErrEmptyInput,
	flux.ErrLengthMismatch,
	flux.ErrNotIncreasing,
	flux.ErrNonFinite,
	flux.ErrDegenerateSampling,
	visibility.ErrInvalidOrbit,
	visibility.ErrTooManyWindows,
	synth.ErrInvalidExposure,
	synth.ErrMisaligned,
	synth.ErrTooManyExposures,
	curve.ErrInvalidDistance,
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, httputil.ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	for _, target := range inputErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"component", "api",
			"request_id", httputil.RequestIDFrom(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}

	body := map[string]any{
		"error":      err.Error(),
		"request_id": httputil.RequestIDFrom(r.Context()),
	}
	if errors.Is(err, synth.ErrTooManyExposures) {
		body["max_exposures"] = s.synth.Config().MaxExposures
	}
	if errors.Is(err, visibility.ErrTooManyWindows) {
		body["max_windows"] = s.maxWindows()
	}
	httputil.WriteJSON(w, status, body)
}

type bandRequest struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// lightcurveRequest carries either a single flux column in Values or
// several named columns in Bands. Absent schedule/visibility fields take
// their defaults; an explicit empty list means no observable time.
type lightcurveRequest struct {
	Times          []float64         `json:"times"`
	Values         []float64         `json:"values"`
	Bands          []bandRequest     `json:"bands"`
	Schedule       [][2]float64      `json:"schedule"`
	Visibility     [][2]float64      `json:"visibility"`
	Orbit          *visibility.Orbit `json:"orbit"`
	ExposureLength float64           `json:"exposure_length"`
	DistancePc     float64           `json:"distance_pc"`
	Rebin          float64           `json:"rebin"`
}

type lightcurveResponse struct {
	RequestID string         `json:"request_id"`
	Exposures int            `json:"exposures"`
	Rows      []synth.Sample `json:"rows"`
}

type bandResponse struct {
	Name string    `json:"name"`
	Flux []float64 `json:"flux"`
}

type multiBandResponse struct {
	RequestID string         `json:"request_id"`
	Exposures int            `json:"exposures"`
	Time      []float64      `json:"time"`
	Duration  []float64      `json:"duration"`
	Bands     []bandResponse `json:"bands"`
}

func (s *Server) lightcurveHandler(w http.ResponseWriter, r *http.Request) {
	var req lightcurveRequest
	if err := httputil.DecodeJSON(w, r, s.cfg.MaxBodyBytes, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if (req.Values == nil) == (req.Bands == nil) {
		s.fail(w, r, fmt.Errorf("%w: exactly one of values or bands is required", errBadRequest))
		return
	}

	base := synth.Request{
		Times:          req.Times,
		Schedule:       gti.FromPairs(req.Schedule),
		Visibility:     gti.FromPairs(req.Visibility),
		Orbit:          s.cfg.Orbit,
		ExposureLength: req.ExposureLength,
	}
	if req.Orbit != nil {
		base.Orbit = *req.Orbit
	}
	if base.ExposureLength == 0 {
		base.ExposureLength = s.cfg.ExposureLength
	}

	bands := req.Bands
	if req.Bands != nil && len(req.Bands) == 0 {
		s.fail(w, r, fmt.Errorf("%w: bands is empty", errBadRequest))
		return
	}
	if req.Values != nil {
		bands = []bandRequest{{Name: "flux", Values: req.Values}}
	}

	names := make([]string, len(bands))
	tables := make([]*synth.Table, len(bands))
	for i, b := range bands {
		sreq := base
		sreq.Values = b.Values
		t, err := s.synthesizeBand(r.Context(), sreq, req.DistancePc, req.Rebin)
		if err != nil {
			if req.Bands != nil {
				err = fmt.Errorf("band %q: %w", b.Name, err)
			}
			s.fail(w, r, err)
			return
		}
		names[i], tables[i] = b.Name, t
	}

	id := httputil.RequestIDFrom(r.Context())
	if req.Values != nil {
		httputil.WriteJSON(w, http.StatusOK, lightcurveResponse{
			RequestID: id,
			Exposures: tables[0].Len(),
			Rows:      tables[0].Rows,
		})
		return
	}

	mt, err := synth.Merge(names, tables)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := multiBandResponse{
		RequestID: id,
		Exposures: len(mt.Time),
		Time:      mt.Time,
		Duration:  mt.Duration,
		Bands:     make([]bandResponse, len(mt.Bands)),
	}
	for i, b := range mt.Bands {
		resp.Bands[i] = bandResponse{Name: b.Name, Flux: b.Flux}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) synthesizeBand(ctx context.Context, req synth.Request, distancePc, rebin float64) (*synth.Table, error) {
	t, err := s.synth.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}
	if distancePc != 0 {
		if t, err = curve.ScaleToDistance(t, distancePc); err != nil {
			return nil, err
		}
	}
	if rebin != 0 {
		if t, err = synth.Rebin(t, rebin); err != nil {
			return nil, fmt.Errorf("%w: %w", errBadRequest, err)
		}
	}
	return t, nil
}

type intersectRequest struct {
	Lists [][][2]float64 `json:"lists"`
}

type windowsResponse struct {
	Windows  [][2]float64 `json:"windows"`
	Duration float64      `json:"duration"`
}

func (s *Server) intersectHandler(w http.ResponseWriter, r *http.Request) {
	var req intersectRequest
	if err := httputil.DecodeJSON(w, r, s.cfg.MaxBodyBytes, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if len(req.Lists) < 2 {
		s.fail(w, r, fmt.Errorf("%w: need at least two window lists, got %d", errBadRequest, len(req.Lists)))
		return
	}

	lists := make([]gti.List, len(req.Lists))
	for i, pairs := range req.Lists {
		lists[i] = gti.FromPairs(pairs)
	}
	out, err := gti.IntersectAll(lists...)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, windowsResponse{Windows: out.Pairs(), Duration: out.Duration()})
}

func (s *Server) visibilityHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := floatParam(q.Get("start"), "start", nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	end, err := floatParam(q.Get("end"), "end", nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if end < start {
		s.fail(w, r, fmt.Errorf("%w: end %g before start %g", errBadRequest, end, start))
		return
	}

	o := s.cfg.Orbit
	params := []struct {
		name string
		dst  *float64
	}{
		{"period", &o.Period},
		{"exposure_per_orbit", &o.ExposurePerOrbit},
		{"phase", &o.PhaseStart},
	}
	for _, p := range params {
		if *p.dst, err = floatParam(q.Get(p.name), p.name, p.dst); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	out, err := visibility.WindowsLimit(start, end, o, s.maxWindows())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, windowsResponse{Windows: out.Pairs(), Duration: out.Duration()})
}

// maxWindows is the generated-window bound shared with synthesis.
func (s *Server) maxWindows() int {
	if n := s.synth.Config().MaxWindows; n > 0 {
		return n
	}
	return visibility.DefaultMaxWindows
}

// floatParam parses a query value. An empty value returns *def, or an error
// when def is nil.
func floatParam(v, name string, def *float64) (float64, error) {
	if v == "" {
		if def == nil {
			return 0, fmt.Errorf("%w: %s is required", errBadRequest, name)
		}
		return *def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, v)
	}
	return f, nil
}
