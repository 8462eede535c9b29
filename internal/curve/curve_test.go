package curve

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snpike/duet-astro/internal/gti"
	"github.com/snpike/duet-astro/internal/synth"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

const asciiModel = `# shock breakout model, 10 pc
time photonflux_D1 photonflux_D2
0    1.0   2.0
100  1.5   2.5

200  oops  3.0
300  2.0
400  3.0   4.0
`

func TestReadModelASCII(t *testing.T) {
	m, err := ReadModel(strings.NewReader(asciiModel), FormatASCII, testLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{"time", "photonflux_D1", "photonflux_D2"}, m.Names)
	assert.Equal(t, 3, m.Len())

	times, err := m.Column("time")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 100, 400}, times)

	d2, err := m.Column("photonflux_D2")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2.5, 4}, d2)

	assert.Equal(t, []string{"photonflux_D1", "photonflux_D2"}, m.FluxColumns("time"))

	_, err = m.Column("photflux_D3")
	assert.ErrorIs(t, err, ErrNoColumn)

	// "oops" and the short row.
	assert.Equal(t, 2, m.Skipped)
	assert.ErrorIs(t, m.CheckComplete(), ErrSkippedRows)
}

func TestReadModelCSV(t *testing.T) {
	in := "time, flux\n0, 1\n10, 2e1\n"
	m, err := ReadModel(strings.NewReader(in), FormatCSV, testLogger())
	require.NoError(t, err)

	flux, err := m.Column("flux")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 20}, flux)
	assert.NoError(t, m.CheckComplete())
}

func TestReadModelErrors(t *testing.T) {
	_, err := ReadModel(strings.NewReader("# only comments\n\n"), FormatASCII, testLogger())
	assert.ErrorIs(t, err, ErrNoHeader)

	_, err = ReadModel(strings.NewReader("time flux\nx y\n"), FormatASCII, testLogger())
	assert.ErrorIs(t, err, ErrNoRows)

	_, err = ReadModel(strings.NewReader("time time\n1 2\n"), FormatASCII, testLogger())
	assert.Error(t, err)
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, FormatCSV, FormatFor("model.CSV"))
	assert.Equal(t, FormatASCII, FormatFor("model.asc"))
	assert.Equal(t, FormatASCII, FormatFor("model"))
}

func TestReadModelFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.csv")
	require.NoError(t, os.WriteFile(path, []byte("time,flux\n0,1\n1,1\n"), 0o644))

	m, err := ReadModelFile(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())

	_, err = ReadModelFile(filepath.Join(t.TempDir(), "missing.asc"), testLogger())
	assert.Error(t, err)
}

func TestReadWindowsYAML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want gti.List
	}{
		{
			name: "mapping of pairs",
			in:   "windows:\n  - [0, 2100]\n  - [5760, 7860]\n",
			want: gti.List{{Start: 0, End: 2100}, {Start: 5760, End: 7860}},
		},
		{
			name: "bare sequence mixed",
			in:   "- [0, 10]\n- {start: 20, end: 30}\n",
			want: gti.List{{Start: 0, End: 10}, {Start: 20, End: 30}},
		},
		{
			name: "empty document",
			in:   "",
			want: gti.List{},
		},
		{
			name: "empty list",
			in:   "windows: []\n",
			want: gti.List{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadWindowsYAML(strings.NewReader(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadWindowsYAMLErrors(t *testing.T) {
	_, err := ReadWindowsYAML(strings.NewReader("- [0, 10, 20]\n"))
	assert.ErrorIs(t, err, ErrBadWindow)

	_, err = ReadWindowsYAML(strings.NewReader("- [10, 0]\n"))
	assert.ErrorIs(t, err, gti.ErrInvalidInterval)

	_, err = ReadWindowsYAML(strings.NewReader("- [0, 10]\n- [5, 20]\n"))
	assert.ErrorIs(t, err, gti.ErrUnordered)

	_, err = ReadWindowsYAML(strings.NewReader("just a string\n"))
	assert.ErrorIs(t, err, ErrBadWindow)
}

func TestWindowsYAMLRoundTrip(t *testing.T) {
	in := gti.List{{Start: 0, End: 2100}, {Start: 5760.5, End: 7860}}

	var buf bytes.Buffer
	require.NoError(t, WriteWindowsYAML(&buf, in))
	assert.Contains(t, buf.String(), "- [0, 2100]")

	out, err := ReadWindowsYAML(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReadWindowsFile(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "gti.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("start,end\n0,10\n20,30\n"), 0o644))
	l, err := ReadWindowsFile(csvPath, testLogger())
	require.NoError(t, err)
	assert.Equal(t, gti.List{{Start: 0, End: 10}, {Start: 20, End: 30}}, l)

	ymlPath := filepath.Join(dir, "gti.yml")
	require.NoError(t, os.WriteFile(ymlPath, []byte("windows:\n  - [1, 2]\n"), 0o644))
	l, err = ReadWindowsFile(ymlPath, testLogger())
	require.NoError(t, err)
	assert.Equal(t, gti.List{{Start: 1, End: 2}}, l)

	badPath := filepath.Join(dir, "bad.asc")
	require.NoError(t, os.WriteFile(badPath, []byte("begin stop\n0 1\n"), 0o644))
	_, err = ReadWindowsFile(badPath, testLogger())
	assert.ErrorIs(t, err, ErrNoColumn)
}

func TestDistanceFactor(t *testing.T) {
	f, err := DistanceFactor(10)
	require.NoError(t, err)
	assert.Equal(t, 1.0, f)

	f, err = DistanceFactor(100)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, f, 1e-15)

	for _, d := range []float64{0, -5} {
		_, err = DistanceFactor(d)
		assert.ErrorIs(t, err, ErrInvalidDistance)
	}
}

func TestScaleToDistance(t *testing.T) {
	in := &synth.Table{Rows: []synth.Sample{{Time: 1, Flux: 4, Duration: 1, NBin: 1}}}
	out, err := ScaleToDistance(in, 20)
	require.NoError(t, err)
	assert.Equal(t, 1.0, out.Rows[0].Flux)
	assert.Equal(t, 4.0, in.Rows[0].Flux)
}

func TestWriteTable(t *testing.T) {
	tbl := &synth.Table{Rows: []synth.Sample{
		{Time: 25, Flux: 1, Duration: 50, NBin: 1},
		{Time: 75, Flux: 0.5, Duration: 50, NBin: 1},
	}}
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, tbl))
	assert.Equal(t, "time,flux,duration,nbin\n25,1,50,1\n75,0.5,50,1\n", buf.String())
}

func TestWriteMulti(t *testing.T) {
	mt := &synth.MultiTable{
		Time:     []float64{25, 75},
		Duration: []float64{50, 50},
		Bands: []synth.Band{
			{Name: "photflux_D1", Flux: []float64{1, 2}},
			{Name: "photflux_D2", Flux: []float64{3, 4}},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteMulti(&buf, mt))
	assert.Equal(t, "time,photflux_D1,photflux_D2,duration\n25,1,3,50\n75,2,4,50\n", buf.String())
}

func TestWindowsCSVRoundTrip(t *testing.T) {
	in := gti.List{{Start: 0, End: 10.5}, {Start: 20, End: 30}}

	var buf bytes.Buffer
	require.NoError(t, WriteWindowsCSV(&buf, in))
	assert.Equal(t, "start,end\n0,10.5\n20,30\n", buf.String())

	out, err := ReadWindowsTable(&buf, FormatCSV, testLogger())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
