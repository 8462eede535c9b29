package main

import (
	"bytes"
	"encoding/csv"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snpike/duet-astro/internal/curve"
	"github.com/snpike/duet-astro/internal/gti"
)

const (
	issName  = "ISS (ZARYA)"
	issLine1 = "1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9993"
	issLine2 = "2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495058"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func readCSV(t *testing.T, s string) [][]string {
	t.Helper()
	recs, err := csv.NewReader(strings.NewReader(s)).ReadAll()
	require.NoError(t, err)
	return recs
}

func parseFloat(t *testing.T, s string) float64 {
	t.Helper()
	f, err := strconv.ParseFloat(s, 64)
	require.NoError(t, err)
	return f
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestSynthSingleColumn(t *testing.T) {
	dir := t.TempDir()
	model := writeFile(t, dir, "model.csv", "time,flux\n0,1\n100,1\n200,1\n")

	out, err := run(t, "synth", "--model", model, "--exposure", "50")
	require.NoError(t, err)

	recs := readCSV(t, out)
	require.Len(t, recs, 5)
	assert.Equal(t, []string{"time", "flux", "duration", "nbin"}, recs[0])
	for i, want := range []float64{25, 75, 125, 175} {
		row := recs[i+1]
		assert.Equal(t, want, parseFloat(t, row[0]))
		assert.InDelta(t, 1.0, parseFloat(t, row[1]), 1e-12)
		assert.Equal(t, "50", row[2])
	}
}

func TestSynthBandsDistanceAndFiles(t *testing.T) {
	dir := t.TempDir()
	model := writeFile(t, dir, "model.asc", `# two bands
time photonflux_D1 photonflux_D2
0    4  8
1000 4  8
`)
	schedule := writeFile(t, dir, "schedule.yaml", "windows:\n  - [0, 400]\n  - [600, 1000]\n")
	vis := writeFile(t, dir, "vis.csv", "start,end\n100,700\n")
	outPath := filepath.Join(dir, "out.csv")

	_, err := run(t, "synth",
		"--model", model,
		"--schedule", schedule,
		"--visibility", vis,
		"--exposure", "100",
		"--distance", "20",
		"--output", outPath,
	)
	require.NoError(t, err)

	body, err := os.ReadFile(outPath)
	require.NoError(t, err)
	recs := readCSV(t, string(body))

	// Live windows [100, 400] and [600, 700]: three exposures plus one.
	require.Len(t, recs, 5)
	assert.Equal(t, []string{"time", "photonflux_D1", "photonflux_D2", "duration"}, recs[0])
	assert.Equal(t, []string{"150", "250", "350", "650"}, []string{recs[1][0], recs[2][0], recs[3][0], recs[4][0]})
	for _, row := range recs[1:] {
		assert.InDelta(t, 1.0, parseFloat(t, row[1]), 1e-12)
		assert.InDelta(t, 2.0, parseFloat(t, row[2]), 1e-12)
	}
}

func TestSynthRebinAndColumnSelection(t *testing.T) {
	dir := t.TempDir()
	model := writeFile(t, dir, "model.csv", "time,a,b\n0,1,5\n400,1,5\n")

	out, err := run(t, "synth", "--model", model, "--flux-column", "b", "--exposure", "100", "--rebin", "200")
	require.NoError(t, err)

	recs := readCSV(t, out)
	require.Len(t, recs, 3)
	assert.Equal(t, "100", recs[1][0])
	assert.InDelta(t, 5.0, parseFloat(t, recs[1][1]), 1e-12)
	assert.Equal(t, "200", recs[1][2])
	assert.Equal(t, "2", recs[1][3])
}

func TestSynthStrictModel(t *testing.T) {
	dir := t.TempDir()
	model := writeFile(t, dir, "model.csv", "time,flux\n0,1\n50,n/a\n100,1\n")

	out, err := run(t, "synth", "--model", model, "--exposure", "100")
	require.NoError(t, err)
	assert.Len(t, readCSV(t, out), 2)

	_, err = run(t, "synth", "--model", model, "--exposure", "100", "--strict")
	require.Error(t, err)
	assert.ErrorIs(t, err, curve.ErrSkippedRows)
}

func TestSynthEmptyVisibility(t *testing.T) {
	dir := t.TempDir()
	model := writeFile(t, dir, "model.csv", "time,flux\n0,1\n100,1\n")
	vis := writeFile(t, dir, "vis.yaml", "windows: []\n")

	out, err := run(t, "synth", "--model", model, "--visibility", vis)
	require.NoError(t, err)
	assert.Equal(t, "time,flux,duration,nbin\n", out)
}

func TestSynthErrors(t *testing.T) {
	dir := t.TempDir()
	model := writeFile(t, dir, "model.csv", "time,flux\n0,1\n100,1\n")
	unsorted := writeFile(t, dir, "unsorted.csv", "time,flux\n0,1\n100,1\n50,1\n")
	badWindows := writeFile(t, dir, "bad.yaml", "- [10, 0]\n")

	tests := []struct {
		name string
		args []string
	}{
		{"missing model flag", []string{"synth"}},
		{"missing file", []string{"synth", "--model", filepath.Join(dir, "nope.csv")}},
		{"unknown column", []string{"synth", "--model", model, "--flux-column", "nope"}},
		{"unsorted model", []string{"synth", "--model", unsorted}},
		{"bad window file", []string{"synth", "--model", model, "--schedule", badWindows}},
		{"negative distance", []string{"synth", "--model", model, "--distance", "-1"}},
		{"bad rule", []string{"synth", "--model", model, "--rule", "simpson"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestVisibilityPeriodic(t *testing.T) {
	out, err := run(t, "visibility", "--start", "0", "--end", "11520")
	require.NoError(t, err)

	l, err := curve.ReadWindowsYAML(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, gti.List{{Start: 0, End: 2100}, {Start: 5760, End: 7860}}, l)
}

func TestVisibilityCSVAndFlags(t *testing.T) {
	out, err := run(t, "visibility", "--start", "0", "--end", "1000",
		"--period", "400", "--exposure-per-orbit", "100", "--phase", "0.25", "--format", "csv")
	require.NoError(t, err)
	assert.Equal(t, "start,end\n100,200\n500,600\n900,1000\n", out)
}

func TestVisibilityPeriodFromElements(t *testing.T) {
	dir := t.TempDir()
	tle := writeFile(t, dir, "iss.tle", issName+"\n"+issLine1+"\n"+issLine2+"\n")

	out, err := run(t, "visibility", "--start", "0", "--end", "12000", "--tle", tle)
	require.NoError(t, err)

	l, err := curve.ReadWindowsYAML(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, l, 3)
	assert.InDelta(t, 86400/15.49874301, l[1].Start, 1e-3)
	assert.Equal(t, 2100.0, l[0].End)
}

func TestVisibilityOccultation(t *testing.T) {
	dir := t.TempDir()
	tle := writeFile(t, dir, "iss.tle", issName+"\n"+issLine1+"\n"+issLine2+"\n")

	out, err := run(t, "visibility", "--start", "0", "--end", "21600",
		"--tle", tle, "--ra", "193.5765", "--dec", "0", "--epoch", "2025-02-14T12:00:00Z")
	require.NoError(t, err)

	l, err := curve.ReadWindowsYAML(strings.NewReader(out))
	require.NoError(t, err)
	// A target in the orbital plane is hidden for part of every orbit.
	require.GreaterOrEqual(t, len(l), 3)
	assert.Less(t, l.Duration(), 21600.0)
	for _, iv := range l {
		assert.GreaterOrEqual(t, iv.Start, 0.0)
		assert.LessOrEqual(t, iv.End, 21600.0)
	}
}

func TestVisibilityFetchFallsBackToCache(t *testing.T) {
	body := issName + "\n" + issLine1 + "\n" + issLine2 + "\n"
	var down atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(body))
	}))
	defer server.Close()

	cacheDir := filepath.Join(t.TempDir(), "tle")
	args := []string{"visibility", "--start", "0", "--end", "12000", "--tle-url", server.URL, "--tle-cache-dir", cacheDir}

	first, err := run(t, args...)
	require.NoError(t, err)
	matches, err := filepath.Glob(filepath.Join(cacheDir, "*.tle"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	down.Store(true)
	second, err := run(t, args...)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Without a cache the failed fetch is an error.
	_, err = run(t, "visibility", "--start", "0", "--end", "12000", "--tle-url", server.URL)
	assert.Error(t, err)
}

func TestVisibilityErrors(t *testing.T) {
	dir := t.TempDir()
	tle := writeFile(t, dir, "iss.tle", issName+"\n"+issLine1+"\n"+issLine2+"\n")

	for _, args := range [][]string{
		{"visibility", "--start", "0"},
		{"visibility", "--start", "10", "--end", "5"},
		{"visibility", "--start", "0", "--end", "10", "--format", "xml"},
		{"visibility", "--start", "0", "--end", "10", "--tle", tle, "--ra", "10"},
		{"visibility", "--start", "0", "--end", "10", "--tle", tle, "--ra", "10", "--dec", "5", "--epoch", "yesterday"},
	} {
		_, err := run(t, args...)
		assert.Error(t, err, strings.Join(args, " "))
	}
}

func TestIntersect(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", "windows:\n  - [0, 10]\n  - [20, 30]\n")
	b := writeFile(t, dir, "b.csv", "start,end\n5,25\n")

	out, err := run(t, "intersect", a, b, "--format", "csv")
	require.NoError(t, err)
	assert.Equal(t, "start,end\n5,10\n20,25\n", out)

	_, err = run(t, "intersect", a)
	assert.Error(t, err)
}
