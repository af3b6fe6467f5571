package greeds

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adisub/pkg/cube"
	"adisub/pkg/psfsub"
)

// observationCube is a deterministic cube with frame-to-frame variation so
// that successive ranks keep something to fit.
func observationCube(frames, h, w int) *cube.Cube {
	c := cube.New(frames, h, w)
	for f := 0; f < frames; f++ {
		row := c.Frame(f)
		for p := range row {
			row[p] = 1 + math.Sin(float64(p)*0.31) + 0.1*float64(f)*math.Cos(float64(p)*0.17)
		}
	}
	return c
}

func TestNewRejectsNonLinearKernel(t *testing.T) {
	_, err := New(psfsub.Classic{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, psfsub.ErrUnsupportedKernel))
}

func TestProcessGrowsRankSequentially(t *testing.T) {
	c := observationCube(4, 11, 11)
	angles := []float64{0, 3, 6, 9}

	var ranks []int
	g, err := New(psfsub.PCA{Rank: 3},
		WithWorkers(1),
		WithProgress(func(rank, maxRank int) {
			assert.Equal(t, 3, maxRank)
			ranks = append(ranks, rank)
		}),
	)
	require.NoError(t, err)

	estimate, design, err := g.Process(c, angles)
	require.NoError(t, err)
	require.Len(t, estimate, c.PixelsPerFrame())
	assert.Equal(t, []int{1, 2, 3}, ranks)
	assert.Equal(t, 3, design.Rank())
}

func TestProcessAngleMismatch(t *testing.T) {
	c := observationCube(4, 9, 9)

	g, err := New(psfsub.PCA{Rank: 2})
	require.NoError(t, err)

	_, _, err = g.Process(c, []float64{0, 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, psfsub.ErrShapeMismatch))
}

func TestProcessRankExceeded(t *testing.T) {
	c := observationCube(3, 9, 9)

	g, err := New(psfsub.PCA{Rank: 5})
	require.NoError(t, err)

	_, _, err = g.Process(c, []float64{0, 1, 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, psfsub.ErrRankExceeded))
}

func TestProcessRDINilReferenceMatchesADI(t *testing.T) {
	c := observationCube(4, 9, 9)
	angles := []float64{0, 2, 4, 6}

	g, err := New(psfsub.PCA{Rank: 2}, WithWorkers(1))
	require.NoError(t, err)

	adi, _, err := g.Process(c, angles)
	require.NoError(t, err)
	rdi, _, err := g.ProcessRDI(c.Clone(), nil, angles)
	require.NoError(t, err)
	assert.Equal(t, adi, rdi)
}

func TestProcessRDI(t *testing.T) {
	c := observationCube(4, 9, 9)
	ref := observationCube(6, 9, 9)
	angles := []float64{0, 2, 4, 6}

	g, err := New(psfsub.PCA{Rank: 2}, WithWorkers(1))
	require.NoError(t, err)

	estimate, design, err := g.ProcessRDI(c, ref, angles)
	require.NoError(t, err)
	require.Len(t, estimate, c.PixelsPerFrame())
	assert.Equal(t, 2, design.Rank())
}

func TestProcessRDIShapeMismatch(t *testing.T) {
	c := observationCube(4, 9, 9)
	ref := observationCube(4, 7, 7)

	g, err := New(psfsub.PCA{Rank: 2})
	require.NoError(t, err)

	_, _, err = g.ProcessRDI(c, ref, []float64{0, 2, 4, 6})
	require.Error(t, err)
	assert.True(t, errors.Is(err, psfsub.ErrShapeMismatch))
}

func TestClipFloorOption(t *testing.T) {
	c := observationCube(4, 9, 9)
	angles := []float64{0, 2, 4, 6}

	g, err := New(psfsub.PCA{Rank: 2}, WithClipFloor(-1), WithWorkers(1))
	require.NoError(t, err)

	estimate, _, err := g.Process(c, angles)
	require.NoError(t, err)
	require.Len(t, estimate, c.PixelsPerFrame())
}
