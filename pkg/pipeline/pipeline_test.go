package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adisub/pkg/cube"
	"adisub/pkg/psfsub"
)

// staticCube repeats one speckle frame across all frames.
func staticCube(frames, h, w int) *cube.Cube {
	c := cube.New(frames, h, w)
	for f := 0; f < frames; f++ {
		row := c.Frame(f)
		for p := range row {
			row[p] = 1 + math.Sin(float64(p)*0.29)
		}
	}
	return c
}

// rotatingCube adds small per-frame variation on top of a static pattern.
func rotatingCube(frames, h, w int) *cube.Cube {
	c := staticCube(frames, h, w)
	for f := 0; f < frames; f++ {
		row := c.Frame(f)
		for p := range row {
			row[p] += 0.05 * float64(f) * math.Cos(float64(p)*0.13)
		}
	}
	return c
}

func TestRunFullFrame(t *testing.T) {
	c := staticCube(4, 12, 12)
	angles := []float64{0, 0, 0, 0}

	out, err := Run(psfsub.PCA{Rank: 1}, c, angles, Options{Workers: 1})
	require.NoError(t, err)
	require.Len(t, out, c.PixelsPerFrame())
	for _, v := range out {
		assert.InDelta(t, 0, v, 1e-8)
	}
}

func TestRunAnnulusGeometry(t *testing.T) {
	c := staticCube(4, 15, 15)
	angles := []float64{0, 0, 0, 0}

	out, err := Run(psfsub.PCA{Rank: 1}, c, angles, Options{
		Geometry:    GeometryAnnulus,
		InnerRadius: 2,
		OuterRadius: 6,
		Workers:     1,
	})
	require.NoError(t, err)
	require.Len(t, out, c.PixelsPerFrame())
	for _, v := range out {
		assert.InDelta(t, 0, v, 1e-8)
	}
}

func TestRunMultiAnnulusGeometry(t *testing.T) {
	c := staticCube(4, 31, 31)
	angles := []float64{0, 0, 0, 0}

	out, err := Run(psfsub.PCA{Rank: 1}, c, angles, Options{
		Geometry: GeometryMultiAnnulus,
		Width:    3,
		Radii:    []float64{3, 7, 11},
		Workers:  2,
	})
	require.NoError(t, err)
	require.Len(t, out, c.PixelsPerFrame())
}

func TestRunWithReference(t *testing.T) {
	c := staticCube(4, 12, 12)
	ref := staticCube(6, 12, 12)
	angles := []float64{0, 0, 0, 0}

	out, err := Run(psfsub.PCA{Rank: 1}, c, angles, Options{Reference: ref, Workers: 1})
	require.NoError(t, err)
	for _, v := range out {
		assert.InDelta(t, 0, v, 1e-8)
	}
}

func TestRunUnknownGeometry(t *testing.T) {
	c := staticCube(4, 12, 12)

	_, err := Run(psfsub.PCA{Rank: 1}, c, []float64{0, 0, 0, 0}, Options{Geometry: "spiral"})
	require.Error(t, err)
}

func TestRunAngleMismatch(t *testing.T) {
	c := staticCube(4, 12, 12)

	_, err := Run(psfsub.PCA{Rank: 1}, c, []float64{0, 0}, Options{})
	require.Error(t, err)
}

func TestRunFramewiseDeterministic(t *testing.T) {
	c := rotatingCube(8, 12, 12)
	angles := []float64{0, 10, 20, 30, 40, 50, 60, 70}

	serial, err := RunFramewise(psfsub.PCA{Rank: 1}, c, angles, Options{Workers: 1})
	require.NoError(t, err)
	parallel, err := RunFramewise(psfsub.PCA{Rank: 1}, c, angles, Options{Workers: 4})
	require.NoError(t, err)

	// Output rows are disjoint per frame: scheduling cannot change the result.
	require.Equal(t, serial, parallel)
}

func TestRunFramewiseAnnulus(t *testing.T) {
	c := rotatingCube(8, 15, 15)
	angles := []float64{0, 10, 20, 30, 40, 50, 60, 70}

	out, err := RunFramewise(psfsub.PCA{Rank: 1}, c, angles, Options{
		Geometry:    GeometryAnnulus,
		InnerRadius: 2,
		OuterRadius: 6,
		Workers:     1,
	})
	require.NoError(t, err)
	require.Len(t, out, c.PixelsPerFrame())
}

func TestRunFramewiseRejectsMultiAnnulus(t *testing.T) {
	c := rotatingCube(8, 31, 31)
	angles := []float64{0, 10, 20, 30, 40, 50, 60, 70}

	_, err := RunFramewise(psfsub.PCA{Rank: 1}, c, angles, Options{
		Geometry: GeometryMultiAnnulus,
		Width:    3,
		Radii:    []float64{3, 7},
	})
	require.Error(t, err)
}

func TestRunLocalFullPercentileMatchesFramewise(t *testing.T) {
	c := rotatingCube(8, 12, 12)
	angles := []float64{0, 10, 20, 30, 40, 50, 60, 70}
	opts := Options{Workers: 1, DistancePercentile: 100}

	local, err := RunLocal(psfsub.PCA{Rank: 1}, c, angles, opts)
	require.NoError(t, err)
	framewise, err := RunFramewise(psfsub.PCA{Rank: 1}, c, angles, opts)
	require.NoError(t, err)

	// Keeping the full percentile disables pruning.
	require.Equal(t, framewise, local)
}

func TestRunFramewiseLimit(t *testing.T) {
	c := rotatingCube(8, 12, 12)
	angles := []float64{0, 10, 20, 30, 40, 50, 60, 70}

	out, err := RunFramewise(psfsub.Classic{}, c, angles, Options{Workers: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, out, c.PixelsPerFrame())
}
