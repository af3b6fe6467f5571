package psfsub

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"adisub/internal/nmf"
)

// NMF is the non-negative factorization design: the reference matrix is
// factorized into non-negative basis and weight factors, and the target
// weights are re-projected onto the fitted basis.
//
// The solver requires non-negative input. When the data or reference carry
// negative values, both are shifted by the global minimum before fitting and
// a diagnostic is logged; the shift is undone on reconstruction. The shift
// is a destructive transform for downstream aperture photometry: absolute
// flux scales are no longer preserved.
type NMF struct {
	// Rank is the number of non-negative components. Required.
	Rank int

	// MaxIter bounds the multiplicative-update iterations (default 200).
	MaxIter int

	// Tol stops iteration early when the relative residual improvement
	// drops below it. Zero disables the early stop.
	Tol float64
}

// Fit factorizes the reference and projects data onto the fitted basis.
func (n NMF) Fit(data, ref *mat.Dense) (Design, error) {
	ref, err := checkFitShapes(data, ref)
	if err != nil {
		return nil, err
	}
	frames, _ := ref.Dims()
	if n.Rank <= 0 {
		return nil, fmt.Errorf("psfsub: non-negative fit requires a positive rank, got %d", n.Rank)
	}
	if n.Rank > frames {
		return nil, fmt.Errorf("requested rank %d with %d reference frames: %w", n.Rank, frames, ErrRankExceeded)
	}

	selfRef := ref == data
	offset := mat.Min(data)
	if v := mat.Min(ref); v < offset {
		offset = v
	}
	if offset < 0 {
		slog.Warn("negative input to non-negative factorization, shifting",
			slog.Float64("shift", -offset))
		data = shifted(data, -offset)
		if selfRef {
			ref = data
		} else {
			ref = shifted(ref, -offset)
		}
	} else {
		offset = 0
	}

	_, h, err := nmf.Factorize(ref, n.Rank, n.MaxIter, n.Tol)
	if err != nil {
		return nil, fmt.Errorf("psfsub: %w", err)
	}
	weights := nmf.ProjectWeights(data, h, n.MaxIter)
	return &LinearDesign{Basis: h, Weights: weights, Offset: offset}, nil
}

// ResolveRank returns the configured rank after validating it against the
// reference frame count. NMF has no automatic policy.
func (n NMF) ResolveRank(ref *mat.Dense) (int, error) {
	frames, _ := ref.Dims()
	if n.Rank <= 0 {
		return 0, fmt.Errorf("psfsub: non-negative fit requires a positive rank, got %d", n.Rank)
	}
	if n.Rank > frames {
		return 0, fmt.Errorf("requested rank %d with %d reference frames: %w", n.Rank, frames, ErrRankExceeded)
	}
	return n.Rank, nil
}

// WithRank pins the configuration to a fixed rank.
func (n NMF) WithRank(rank int) Linear {
	n.Rank = rank
	return n
}

func shifted(m *mat.Dense, by float64) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, m.At(i, j)+by)
		}
	}
	return out
}
