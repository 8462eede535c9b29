package visibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snpike/duet-astro/internal/gti"
)

func TestWindowsTwoOrbits(t *testing.T) {
	got, err := Windows(0, 11520, Orbit{Period: 5760, ExposurePerOrbit: 2100})
	require.NoError(t, err)
	assert.Equal(t, gti.List{{Start: 0, End: 2100}, {Start: 5760, End: 7860}}, got)
}

func TestWindowsDefaultOrbit(t *testing.T) {
	got, err := Windows(0, 5760*2, DefaultOrbit())
	require.NoError(t, err)
	assert.Equal(t, gti.List{{Start: 0, End: 2100}, {Start: 5760, End: 7860}}, got)
}

func TestWindowsClipsLastWindow(t *testing.T) {
	got, err := Windows(0, 6000, Orbit{Period: 5760, ExposurePerOrbit: 2100})
	require.NoError(t, err)
	assert.Equal(t, gti.List{{Start: 0, End: 2100}, {Start: 5760, End: 6000}}, got)
}

func TestWindowsPhase(t *testing.T) {
	got, err := Windows(100, 10000, Orbit{Period: 4000, ExposurePerOrbit: 1000, PhaseStart: 0.5})
	require.NoError(t, err)
	assert.Equal(t, gti.List{{Start: 2100, End: 3100}, {Start: 6100, End: 7100}}, got)
}

func TestWindowsEmptyRange(t *testing.T) {
	got, err := Windows(50, 50, DefaultOrbit())
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Windows(0, 100, Orbit{Period: 5760, ExposurePerOrbit: 2100, PhaseStart: 1})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWindowsExposureLongerThanPeriod(t *testing.T) {
	got, err := Windows(0, 25, Orbit{Period: 10, ExposurePerOrbit: 15})
	require.NoError(t, err)
	assert.Equal(t, gti.List{{Start: 0, End: 10}, {Start: 10, End: 20}, {Start: 20, End: 25}}, got)
	assert.Equal(t, gti.List{{Start: 0, End: 25}}, gti.Coalesce(got))
}

func TestWindowsInvalidOrbit(t *testing.T) {
	tests := []struct {
		name  string
		orbit Orbit
	}{
		{"zero period", Orbit{Period: 0, ExposurePerOrbit: 10}},
		{"negative period", Orbit{Period: -5, ExposurePerOrbit: 10}},
		{"zero exposure", Orbit{Period: 10, ExposurePerOrbit: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Windows(0, 100, tt.orbit)
			assert.ErrorIs(t, err, ErrInvalidOrbit)
		})
	}
}

func TestWindowsLimit(t *testing.T) {
	o := Orbit{Period: 10, ExposurePerOrbit: 5}

	got, err := WindowsLimit(0, 30, o, 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = WindowsLimit(0, 30, o, 2)
	assert.ErrorIs(t, err, ErrTooManyWindows)
}

func TestWindowsRunawayCount(t *testing.T) {
	tests := []struct {
		name     string
		start    float64
		end      float64
		orbit    Orbit
		maxCount int
	}{
		{"tiny period", 0, 1e15, Orbit{Period: 1e-3, ExposurePerOrbit: 1e-4}, 0},
		{"phase far in the past", 0, 10, Orbit{Period: 1, ExposurePerOrbit: 0.5, PhaseStart: -1e300}, 0},
		{"explicit limit", 0, 1e7, Orbit{Period: 1, ExposurePerOrbit: 0.5}, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := WindowsLimit(tt.start, tt.end, tt.orbit, tt.maxCount)
			assert.ErrorIs(t, err, ErrTooManyWindows)
		})
	}

	_, err := Windows(0, 1e15, Orbit{Period: 1e-3, ExposurePerOrbit: 1e-4})
	assert.ErrorIs(t, err, ErrTooManyWindows)
}
