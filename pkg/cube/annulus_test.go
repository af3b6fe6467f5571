package cube

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestAnnulusIndices(t *testing.T) {
	c := rampCube(3, 21, 21)
	ann, err := NewAnnulus(c, 4, 7)
	require.NoError(t, err)

	cx := float64(c.Width-1) / 2
	cy := float64(c.Height-1) / 2
	prev := -1
	for _, idx := range ann.Indices() {
		x := float64(idx % c.Width)
		y := float64(idx / c.Width)
		r := math.Hypot(x-cx, y-cy)
		assert.GreaterOrEqual(t, r, 4.0)
		assert.Less(t, r, 7.0)
		assert.Greater(t, idx, prev, "indices must be ordered ascending")
		prev = idx
	}
}

func TestAnnulusMatrixStable(t *testing.T) {
	c := rampCube(3, 15, 15)
	ann, err := NewAnnulus(c, 2, 5)
	require.NoError(t, err)

	m1 := ann.Matrix()
	m2 := ann.Matrix()
	// Repeated calls return the same gathered matrix.
	require.Same(t, m1, m2)

	rows, cols := m1.Dims()
	assert.Equal(t, c.Frames, rows)
	assert.Equal(t, ann.PixelCount(), cols)
}

func TestAnnulusScatterRoundTrip(t *testing.T) {
	c := rampCube(2, 11, 11)
	ann, err := NewAnnulus(c, 1.5, 4)
	require.NoError(t, err)

	out, err := ann.Scatter(ann.Matrix())
	require.NoError(t, err)

	inRing := make(map[int]bool, ann.PixelCount())
	for _, idx := range ann.Indices() {
		inRing[idx] = true
	}
	for f := 0; f < c.Frames; f++ {
		src := c.Frame(f)
		dst := out.Frame(f)
		for p := range src {
			if inRing[p] {
				assert.Equal(t, src[p], dst[p])
			} else {
				assert.Zero(t, dst[p])
			}
		}
	}
}

func TestAnnulusScatterShapeMismatch(t *testing.T) {
	c := rampCube(2, 11, 11)
	ann, err := NewAnnulus(c, 1.5, 4)
	require.NoError(t, err)

	other := rampCube(2, 11, 11)
	wide, err := NewAnnulus(other, 1.5, 5)
	require.NoError(t, err)

	_, err = ann.Scatter(wide.Matrix())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestAnnulusInvalidBounds(t *testing.T) {
	c := rampCube(2, 11, 11)
	for _, tc := range []struct{ inner, outer float64 }{
		{-1, 4},
		{4, 4},
		{5, 3},
	} {
		_, err := NewAnnulus(c, tc.inner, tc.outer)
		assert.Error(t, err, "bounds [%g, %g)", tc.inner, tc.outer)
	}
}

func TestMultiAnnulusDisjoint(t *testing.T) {
	c := rampCube(3, 31, 31)
	multi, err := NewMultiAnnulus(c, 3, []float64{3, 6, 9, 12})
	require.NoError(t, err)

	seen := make(map[int]int)
	for _, ring := range multi.Rings() {
		for _, idx := range ring.Indices() {
			seen[idx]++
		}
	}
	for idx, count := range seen {
		require.Equal(t, 1, count, "pixel %d appears in %d rings", idx, count)
	}
	assert.Equal(t, multi.PixelCount(), len(seen))
}

func TestMultiAnnulusRejectsOverlap(t *testing.T) {
	c := rampCube(3, 31, 31)

	_, err := NewMultiAnnulus(c, 4, []float64{3, 5})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGeometryMismatch))

	_, err = NewMultiAnnulus(c, 2, []float64{6, 4})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGeometryMismatch))
}

func TestMultiAnnulusScatterAll(t *testing.T) {
	c := rampCube(2, 21, 21)
	multi, err := NewMultiAnnulus(c, 3, []float64{3, 7})
	require.NoError(t, err)

	rings := multi.Rings()
	out, err := multi.ScatterAll([]mat.Matrix{rings[0].Matrix(), rings[1].Matrix()})
	require.NoError(t, err)

	total := 0
	for f := 0; f < c.Frames; f++ {
		src := c.Frame(f)
		dst := out.Frame(f)
		for _, ring := range rings {
			for _, idx := range ring.Indices() {
				require.Equal(t, src[idx], dst[idx])
				if f == 0 {
					total++
				}
			}
		}
	}
	assert.Equal(t, multi.PixelCount(), total)
}
