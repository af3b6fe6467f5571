package psfsub

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"adisub/pkg/cube"
)

// speckleCube repeats the same synthetic speckle frame across all frames, so
// a rank-1 fit removes it completely.
func speckleCube(frames, h, w int) *cube.Cube {
	c := cube.New(frames, h, w)
	for f := 0; f < frames; f++ {
		row := c.Frame(f)
		for p := range row {
			row[p] = 1 + math.Sin(float64(p)*0.3)
		}
	}
	return c
}

func TestSubtract(t *testing.T) {
	data := mat.NewDense(3, 2, []float64{
		1, 10,
		2, 20,
		6, 60,
	})

	residual, err := Subtract(Classic{}, data, nil)
	require.NoError(t, err)

	// Per-pixel median is (2, 20); the residual is data minus that frame.
	want := mat.NewDense(3, 2, []float64{
		-1, -10,
		0, 0,
		4, 40,
	})
	assert.True(t, mat.EqualApprox(want, residual, 1e-12))
}

func TestProcessRemovesStaticPattern(t *testing.T) {
	c := speckleCube(4, 8, 8)
	angles := []float64{0, 0, 0, 0}

	out, err := Process(PCA{Rank: 1}, c, angles)
	require.NoError(t, err)
	require.Len(t, out, 64)
	for _, v := range out {
		assert.InDelta(t, 0, v, 1e-8)
	}
}

func TestSubtractSelfReferenceMatchesNil(t *testing.T) {
	data := mat.NewDense(4, 6, []float64{
		1.4, 2, 0.5, 1.5, 0.2, 1,
		0.9, 1.5, 2, 0.3, 1, 0.6,
		2.1, 4.1, 1.3, 2.7, 0.9, 1.8,
		0.7, 1.9, 2.9, 0.8, 1.6, 1.2,
	})

	for name, alg := range map[string]Algorithm{
		"PCA": PCA{Rank: 2},
		"NMF": NMF{Rank: 2, MaxIter: 300},
	} {
		t.Run(name, func(t *testing.T) {
			implicit, err := Subtract(alg, data, nil)
			require.NoError(t, err)
			explicit, err := Subtract(alg, data, mat.DenseCopyOf(data))
			require.NoError(t, err)

			// Passing the data as its own reference is the nil fast path.
			assert.True(t, mat.EqualApprox(implicit, explicit, 1e-9))
		})
	}
}

func TestProcessCollapseOption(t *testing.T) {
	c := speckleCube(3, 6, 6)
	angles := []float64{0, 0, 0}

	med, err := Process(PCA{Rank: 1}, c, angles, WithCollapse(cube.CollapseMedian), WithWorkers(1))
	require.NoError(t, err)
	mean, err := Process(PCA{Rank: 1}, c, angles, WithCollapse(cube.CollapseMean), WithWorkers(1))
	require.NoError(t, err)
	require.Len(t, mean, len(med))
}

func TestProcessAngleMismatch(t *testing.T) {
	c := speckleCube(4, 8, 8)

	_, err := Process(PCA{Rank: 1}, c, []float64{0, 0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestProcessReferenceShapeMismatch(t *testing.T) {
	c := speckleCube(4, 8, 8)
	ref := speckleCube(4, 6, 6)

	_, err := Process(PCA{Rank: 1}, c, []float64{0, 0, 0, 0}, WithReference(ref))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestProcessWithReference(t *testing.T) {
	c := speckleCube(4, 8, 8)
	ref := speckleCube(5, 8, 8)

	out, err := Process(PCA{Rank: 1}, c, []float64{0, 0, 0, 0}, WithReference(ref))
	require.NoError(t, err)
	// The reference carries the same static pattern, so it subtracts cleanly.
	for _, v := range out {
		assert.InDelta(t, 0, v, 1e-8)
	}
}
