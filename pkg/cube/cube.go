// Package cube models a time sequence of 2-D image frames together with its
// parallactic-angle sequence, and provides the geometry views (full frame,
// annulus, multi-annulus) through which the post-processing algorithms see
// pixel data as flattened (frames x pixels) matrices.
package cube

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Cube is an ordered sequence of frames, each a Height x Width pixel grid.
// Data is stored frame-major, row-major within a frame, so frame f occupies
// Data[f*Height*Width : (f+1)*Height*Width].
type Cube struct {
	// Data is the pixel buffer in frame-major, row-major order.
	Data []float64

	// Frames is the number of frames in the sequence.
	Frames int

	// Height and Width are the pixel dimensions of every frame.
	Height int
	Width  int
}

// New allocates a zero-valued cube with the given dimensions.
func New(frames, height, width int) *Cube {
	return &Cube{
		Data:   make([]float64, frames*height*width),
		Frames: frames,
		Height: height,
		Width:  width,
	}
}

// FromFrames builds a cube from per-frame pixel buffers. Every frame must
// have length height*width.
func FromFrames(frames [][]float64, height, width int) (*Cube, error) {
	c := New(len(frames), height, width)
	size := height * width
	for i, f := range frames {
		if len(f) != size {
			return nil, fmt.Errorf("frame %d has %d pixels, want %d: %w", i, len(f), size, ErrShapeMismatch)
		}
		copy(c.Frame(i), f)
	}
	return c, nil
}

// Clone returns a deep copy of the cube.
func (c *Cube) Clone() *Cube {
	out := New(c.Frames, c.Height, c.Width)
	copy(out.Data, c.Data)
	return out
}

// PixelsPerFrame returns Height*Width.
func (c *Cube) PixelsPerFrame() int {
	return c.Height * c.Width
}

// Frame returns frame i as a subslice of the backing buffer. Writing through
// the returned slice mutates the cube.
func (c *Cube) Frame(i int) []float64 {
	size := c.PixelsPerFrame()
	return c.Data[i*size : (i+1)*size]
}

// Matrix returns the (Frames, Height*Width) flattened view of the cube.
// The matrix shares the cube's backing buffer: no pixels are copied, and
// writes through the matrix are visible in the cube.
func (c *Cube) Matrix() *mat.Dense {
	return mat.NewDense(c.Frames, c.PixelsPerFrame(), c.Data)
}

// ExpandMatrix is the inverse of Matrix: it reshapes a (frames, height*width)
// matrix back into a cube. Pixel ordering round-trips exactly.
func ExpandMatrix(m mat.Matrix, height, width int) (*Cube, error) {
	frames, pixels := m.Dims()
	if pixels != height*width {
		return nil, fmt.Errorf("matrix has %d columns, want %d: %w", pixels, height*width, ErrShapeMismatch)
	}
	c := New(frames, height, width)
	// The bulk copy only holds for a contiguous Dense; sliced views carry a
	// wider stride and must go through the element loop.
	if d, ok := m.(*mat.Dense); ok && d.RawMatrix().Stride == pixels {
		copy(c.Data, d.RawMatrix().Data)
		return c, nil
	}
	for f := 0; f < frames; f++ {
		row := c.Frame(f)
		for p := 0; p < pixels; p++ {
			row[p] = m.At(f, p)
		}
	}
	return c, nil
}

// CheckAngles verifies the angle sequence pairs 1:1 with the cube's frames.
func (c *Cube) CheckAngles(angles []float64) error {
	if len(angles) != c.Frames {
		return fmt.Errorf("%d angles for %d frames: %w", len(angles), c.Frames, ErrShapeMismatch)
	}
	return nil
}

// Geometry is the common surface of the three pixel geometries. Concrete
// kinds are *Cube (full frame), *Annulus and *MultiAnnulus; fitting code
// dispatches on the concrete type and uses Kind only for error reporting
// and mismatch checks.
type Geometry interface {
	// Kind names the geometry variant: "full", "annulus" or "multi-annulus".
	Kind() string

	// FrameCount returns the number of frames the geometry spans.
	FrameCount() int

	// PixelCount returns the number of pixels the geometry selects per frame.
	PixelCount() int
}

// Kind implements Geometry for the full-frame identity mapping.
func (c *Cube) Kind() string { return "full" }

// FrameCount implements Geometry.
func (c *Cube) FrameCount() int { return c.Frames }

// PixelCount implements Geometry.
func (c *Cube) PixelCount() int { return c.PixelsPerFrame() }

// Scatter reshapes a flattened matrix back into cube shape. For the full
// frame geometry this is exactly ExpandMatrix.
func (c *Cube) Scatter(m mat.Matrix) (*Cube, error) {
	frames, _ := m.Dims()
	if frames != c.Frames {
		return nil, fmt.Errorf("matrix has %d rows, want %d: %w", frames, c.Frames, ErrShapeMismatch)
	}
	return ExpandMatrix(m, c.Height, c.Width)
}
