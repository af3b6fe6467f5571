package cube

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotateZeroIsIdentity(t *testing.T) {
	c := rampCube(1, 9, 9)
	out := Rotate(c.Frame(0), 9, 9, 0)
	require.Equal(t, c.Frame(0), out)
}

func TestRotateNinetyMovesDelta(t *testing.T) {
	const h, w = 11, 11
	frame := make([]float64, h*w)
	cx, cy := (w-1)/2, (h-1)/2
	frame[cy*w+cx+2] = 1 // delta two pixels right of center

	out := Rotate(frame, h, w, 90)

	// Under the sampling convention a 90-degree rotation carries the delta
	// from (cx+2, cy) to (cx, cy+2).
	assert.InDelta(t, 1.0, out[(cy+2)*w+cx], 1e-9)
	assert.InDelta(t, 0.0, out[cy*w+cx+2], 1e-9)
}

func TestRotateFullTurnIsIdentity(t *testing.T) {
	c := rampCube(1, 9, 9)
	out := Rotate(c.Frame(0), 9, 9, 360)
	for y := 1; y < 8; y++ {
		for x := 1; x < 8; x++ {
			assert.InDelta(t, c.Frame(0)[y*9+x], out[y*9+x], 1e-6)
		}
	}
}

func TestRotateQuarterTurnsClose(t *testing.T) {
	c := rampCube(1, 9, 9)
	out := c.Frame(0)
	for i := 0; i < 4; i++ {
		out = Rotate(out, 9, 9, 90)
	}
	// Four quarter turns compose back to the identity away from the edges.
	for y := 1; y < 8; y++ {
		for x := 1; x < 8; x++ {
			assert.InDelta(t, c.Frame(0)[y*9+x], out[y*9+x], 1e-6)
		}
	}
}

func TestRotateConstantInterior(t *testing.T) {
	const h, w = 15, 15
	frame := make([]float64, h*w)
	for i := range frame {
		frame[i] = 3.5
	}
	out := Rotate(frame, h, w, 37)

	// Away from the zero-filled corners, a constant frame stays constant.
	cx, cy := (w-1)/2, (h-1)/2
	for dy := -3; dy <= 3; dy++ {
		for dx := -3; dx <= 3; dx++ {
			assert.InDelta(t, 3.5, out[(cy+dy)*w+cx+dx], 1e-9)
		}
	}
}

func TestDerotate(t *testing.T) {
	c := rampCube(3, 9, 9)
	angles := []float64{0, 90, 180}

	out, err := Derotate(c, angles, 2)
	require.NoError(t, err)
	// Frame 0 is untouched (zero angle).
	assert.Equal(t, c.Frame(0), out.Frame(0))

	_, err = Derotate(c, []float64{0, 90}, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestCounterRotateClipsFloor(t *testing.T) {
	const h, w = 9, 9
	estimate := make([]float64, h*w)
	for i := range estimate {
		estimate[i] = -1
	}

	out, err := CounterRotate(estimate, h, w, []float64{0, 45}, 0, 1)
	require.NoError(t, err)
	require.Equal(t, 2, out.Frames)
	for _, v := range out.Data {
		assert.GreaterOrEqual(t, v, 0.0)
	}

	_, err = CounterRotate(estimate[:10], h, w, []float64{0}, 0, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}
