package cube

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Annulus is a ring-shaped pixel subset of a cube: the ordered set of pixels
// whose distance r from the frame center satisfies inner <= r < outer.
// It exposes the same flattened-matrix contract as the full frame, restricted
// to that subset.
type Annulus struct {
	cube    *Cube
	inner   float64
	outer   float64
	indices []int

	// gathered caches the (frames, len(indices)) matrix built on first use.
	gathered *mat.Dense
}

// NewAnnulus builds the annulus view with inner <= r < outer measured from
// the frame center ((W-1)/2, (H-1)/2). Pixel indices are ordered ascending
// and computed once.
func NewAnnulus(c *Cube, inner, outer float64) (*Annulus, error) {
	if inner < 0 || outer <= inner {
		return nil, fmt.Errorf("invalid annulus bounds [%g, %g): %w", inner, outer, ErrGeometryMismatch)
	}
	cx := float64(c.Width-1) / 2
	cy := float64(c.Height-1) / 2

	var indices []int
	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			r := math.Hypot(float64(x)-cx, float64(y)-cy)
			if r >= inner && r < outer {
				indices = append(indices, y*c.Width+x)
			}
		}
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("annulus [%g, %g) selects no pixels in a %dx%d frame: %w",
			inner, outer, c.Height, c.Width, ErrGeometryMismatch)
	}
	return &Annulus{cube: c, inner: inner, outer: outer, indices: indices}, nil
}

// Kind implements Geometry.
func (a *Annulus) Kind() string { return "annulus" }

// FrameCount implements Geometry.
func (a *Annulus) FrameCount() int { return a.cube.Frames }

// PixelCount implements Geometry.
func (a *Annulus) PixelCount() int { return len(a.indices) }

// Bounds returns the inner and outer radius of the ring.
func (a *Annulus) Bounds() (inner, outer float64) { return a.inner, a.outer }

// Radius returns the center radius of the ring.
func (a *Annulus) Radius() float64 { return (a.inner + a.outer) / 2 }

// Indices returns the ordered pixel indices the annulus selects. The slice
// is owned by the annulus and must not be modified.
func (a *Annulus) Indices() []int { return a.indices }

// Matrix returns the (frames, pixels-in-ring) matrix of the annulus pixels,
// gathered through the index list. The matrix is built once and reused, so
// repeated calls are stable.
func (a *Annulus) Matrix() *mat.Dense {
	if a.gathered != nil {
		return a.gathered
	}
	m := mat.NewDense(a.cube.Frames, len(a.indices), nil)
	for f := 0; f < a.cube.Frames; f++ {
		frame := a.cube.Frame(f)
		for j, idx := range a.indices {
			m.Set(f, j, frame[idx])
		}
	}
	a.gathered = m
	return m
}

// Scatter inverse-maps a (frames, pixels-in-ring) matrix back onto the
// annulus's pixel indices in an otherwise zero cube.
func (a *Annulus) Scatter(m mat.Matrix) (*Cube, error) {
	out := New(a.cube.Frames, a.cube.Height, a.cube.Width)
	return out, a.ScatterInto(out, m)
}

// ScatterInto writes the annulus values into an existing cube, leaving pixels
// outside the ring untouched. Used to reassemble multi-annulus results.
func (a *Annulus) ScatterInto(dst *Cube, m mat.Matrix) error {
	frames, pixels := m.Dims()
	if frames != a.cube.Frames || pixels != len(a.indices) {
		return fmt.Errorf("scatter of %dx%d matrix onto annulus with %d frames and %d pixels: %w",
			frames, pixels, a.cube.Frames, len(a.indices), ErrShapeMismatch)
	}
	if dst.Frames != a.cube.Frames || dst.Height != a.cube.Height || dst.Width != a.cube.Width {
		return fmt.Errorf("scatter destination %dx%dx%d does not match source cube: %w",
			dst.Frames, dst.Height, dst.Width, ErrShapeMismatch)
	}
	for f := 0; f < frames; f++ {
		frame := dst.Frame(f)
		for j, idx := range a.indices {
			frame[idx] = m.At(f, j)
		}
	}
	return nil
}

// SameBounds reports whether two annuli select the same ring.
func (a *Annulus) SameBounds(b *Annulus) bool {
	return a.inner == b.inner && a.outer == b.outer
}

// MultiAnnulus is an ordered collection of disjoint annuli sharing one ring
// width, centered on increasing radii. Each ring is fit independently.
type MultiAnnulus struct {
	cube  *Cube
	width float64
	radii []float64
	rings []*Annulus
}

// NewMultiAnnulus builds rings [r-width/2, r+width/2) for each center radius.
// Radii must be strictly increasing and the rings must not overlap.
func NewMultiAnnulus(c *Cube, width float64, radii []float64) (*MultiAnnulus, error) {
	if width <= 0 {
		return nil, fmt.Errorf("annulus width %g must be positive: %w", width, ErrGeometryMismatch)
	}
	if len(radii) == 0 {
		return nil, fmt.Errorf("no annulus radii given: %w", ErrGeometryMismatch)
	}
	rings := make([]*Annulus, len(radii))
	for i, r := range radii {
		if i > 0 {
			if r <= radii[i-1] {
				return nil, fmt.Errorf("annulus radii must increase, got %g after %g: %w", r, radii[i-1], ErrGeometryMismatch)
			}
			if r-width/2 < radii[i-1]+width/2 {
				return nil, fmt.Errorf("annuli at radii %g and %g overlap with width %g: %w", radii[i-1], r, width, ErrGeometryMismatch)
			}
		}
		inner := math.Max(0, r-width/2)
		ring, err := NewAnnulus(c, inner, r+width/2)
		if err != nil {
			return nil, fmt.Errorf("annulus %d: %w", i, err)
		}
		rings[i] = ring
	}
	return &MultiAnnulus{cube: c, width: width, radii: radii, rings: rings}, nil
}

// Kind implements Geometry.
func (m *MultiAnnulus) Kind() string { return "multi-annulus" }

// FrameCount implements Geometry.
func (m *MultiAnnulus) FrameCount() int { return m.cube.Frames }

// PixelCount implements Geometry: the total pixels across all rings.
func (m *MultiAnnulus) PixelCount() int {
	n := 0
	for _, r := range m.rings {
		n += r.PixelCount()
	}
	return n
}

// Width returns the shared ring width.
func (m *MultiAnnulus) Width() float64 { return m.width }

// Radii returns the center radii, in increasing order.
func (m *MultiAnnulus) Radii() []float64 { return m.radii }

// Rings returns the per-annulus views in radius order.
func (m *MultiAnnulus) Rings() []*Annulus { return m.rings }

// ScatterAll reassembles a full-shaped cube from one matrix per ring, in
// radius order. Ring pixel sets are disjoint, so each matrix writes its own
// pixels and the rest of the frame stays zero.
func (m *MultiAnnulus) ScatterAll(mats []mat.Matrix) (*Cube, error) {
	if len(mats) != len(m.rings) {
		return nil, fmt.Errorf("%d matrices for %d annuli: %w", len(mats), len(m.rings), ErrShapeMismatch)
	}
	out := New(m.cube.Frames, m.cube.Height, m.cube.Width)
	for i, ring := range m.rings {
		if err := ring.ScatterInto(out, mats[i]); err != nil {
			return nil, fmt.Errorf("annulus %d: %w", i, err)
		}
	}
	return out, nil
}

// SameLayout reports whether two multi-annulus geometries share width and
// center radii.
func (m *MultiAnnulus) SameLayout(o *MultiAnnulus) bool {
	if m.width != o.width || len(m.radii) != len(o.radii) {
		return false
	}
	for i := range m.radii {
		if m.radii[i] != o.radii[i] {
			return false
		}
	}
	return true
}
