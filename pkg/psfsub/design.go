package psfsub

import "gonum.org/v1/gonum/mat"

// LinearDesign is the sufficient statistic of a rank-truncated linear fit:
// an orthonormal-or-nonnegative (rank x pixels) basis and a
// (frames x rank) weight matrix whose product reconstructs the model.
type LinearDesign struct {
	// Basis holds one model component per row.
	Basis *mat.Dense

	// Weights holds the per-frame projection coefficients.
	Weights *mat.Dense

	// Offset undoes a global input shift (non-negative fits only); it is
	// added back to every reconstructed value.
	Offset float64
}

// Reconstruct returns Weights * Basis (+ Offset).
func (d *LinearDesign) Reconstruct() *mat.Dense {
	var out mat.Dense
	out.Mul(d.Weights, d.Basis)
	if d.Offset != 0 {
		r, c := out.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				out.Set(i, j, out.At(i, j)+d.Offset)
			}
		}
	}
	return &out
}

// Rank returns the number of basis components.
func (d *LinearDesign) Rank() int {
	r, _ := d.Basis.Dims()
	return r
}

// ClassicDesign is the statistic design: a single reference frame tiled
// across the frame count of the fitted data.
type ClassicDesign struct {
	frame  []float64
	frames int
}

// Reconstruct tiles the statistic frame.
func (d *ClassicDesign) Reconstruct() *mat.Dense {
	out := mat.NewDense(d.frames, len(d.frame), nil)
	for f := 0; f < d.frames; f++ {
		out.SetRow(f, d.frame)
	}
	return out
}

// Rank is zero: a statistic design has no basis dimensionality.
func (d *ClassicDesign) Rank() int { return 0 }

// Frame returns the statistic frame backing the design.
func (d *ClassicDesign) Frame() []float64 { return d.frame }
