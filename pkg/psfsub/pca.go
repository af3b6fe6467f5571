package psfsub

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// RankPolicy selects how the truncation rank of a linear fit is chosen.
type RankPolicy string

const (
	// RankFixed uses the requested rank as-is.
	RankFixed RankPolicy = "fixed"

	// RankVarianceRatio picks the smallest rank whose cumulative normalized
	// singular-value mass reaches the variance target.
	RankVarianceRatio RankPolicy = "variance-ratio"

	// RankNoiseDecay grows the rank one step at a time, measuring the
	// residual pixel standard deviation after projection, and stops once
	// the improvement between consecutive ranks stays below the tolerance
	// for two consecutive steps. This is a local stopping heuristic, not a
	// global optimum: if the residual noise fluctuates non-monotonically the
	// first flat window wins.
	RankNoiseDecay RankPolicy = "noise-decay"
)

// PCA is the rank-truncated orthonormal-basis decomposition: a singular
// value decomposition of the reference matrix truncated to the resolved
// rank, with the target projected onto the truncated basis.
//
// The zero value is not useful; set Rank for a fixed fit or Policy for an
// automatic one.
type PCA struct {
	// Rank is the requested truncation target. With an automatic policy a
	// positive Rank acts as an upper bound; zero leaves the bound open.
	Rank int

	// Policy selects the rank policy; empty means RankFixed.
	Policy RankPolicy

	// VarianceTarget is the cumulative variance ratio for RankVarianceRatio,
	// in (0, 1]. Defaults to 0.95.
	VarianceTarget float64

	// NoiseTolerance is the residual-std improvement floor for
	// RankNoiseDecay. Defaults to 1e-3.
	NoiseTolerance float64
}

// Fit decomposes the reference and projects data onto the truncated basis.
func (p PCA) Fit(data, ref *mat.Dense) (Design, error) {
	ref, err := checkFitShapes(data, ref)
	if err != nil {
		return nil, err
	}

	var svd mat.SVD
	if !svd.Factorize(ref, mat.SVDThin) {
		return nil, fmt.Errorf("psfsub: SVD of reference failed to converge")
	}
	rank, err := p.resolveRank(ref, &svd)
	if err != nil {
		return nil, err
	}

	basis := truncatedBasis(&svd, rank)
	var weights mat.Dense
	weights.Mul(data, basis.T())
	return &LinearDesign{Basis: basis, Weights: &weights}, nil
}

// ResolveRank applies the configured rank policy to a reference matrix.
func (p PCA) ResolveRank(ref *mat.Dense) (int, error) {
	var svd mat.SVD
	if !svd.Factorize(ref, mat.SVDThin) {
		return 0, fmt.Errorf("psfsub: SVD of reference failed to converge")
	}
	return p.resolveRank(ref, &svd)
}

// WithRank pins the configuration to a fixed rank.
func (p PCA) WithRank(rank int) Linear {
	p.Rank = rank
	p.Policy = RankFixed
	return p
}

func (p PCA) resolveRank(ref *mat.Dense, svd *mat.SVD) (int, error) {
	frames, pixels := ref.Dims()
	available := frames
	if pixels < available {
		available = pixels
	}

	bound := available
	if p.Rank > 0 {
		if p.Rank > available {
			return 0, fmt.Errorf("requested rank %d with %d reference frames: %w", p.Rank, available, ErrRankExceeded)
		}
		bound = p.Rank
	}

	switch p.Policy {
	case RankFixed, "":
		if p.Rank <= 0 {
			return 0, fmt.Errorf("psfsub: fixed rank policy requires a positive rank, got %d", p.Rank)
		}
		return p.Rank, nil
	case RankVarianceRatio:
		r := rankByVariance(svd.Values(nil), p.varianceTarget())
		if r > bound {
			r = bound
		}
		return r, nil
	case RankNoiseDecay:
		r := rankByNoiseDecay(ref, svd, bound, p.noiseTolerance())
		return r, nil
	default:
		return 0, fmt.Errorf("psfsub: unknown rank policy %q", p.Policy)
	}
}

func (p PCA) varianceTarget() float64 {
	if p.VarianceTarget > 0 && p.VarianceTarget <= 1 {
		return p.VarianceTarget
	}
	return 0.95
}

func (p PCA) noiseTolerance() float64 {
	if p.NoiseTolerance > 0 {
		return p.NoiseTolerance
	}
	return 1e-3
}

// truncatedBasis returns the first rank right singular vectors as rows.
func truncatedBasis(svd *mat.SVD, rank int) *mat.Dense {
	var v mat.Dense
	svd.VTo(&v)
	pixels, _ := v.Dims()

	basis := mat.NewDense(rank, pixels, nil)
	for k := 0; k < rank; k++ {
		for j := 0; j < pixels; j++ {
			basis.Set(k, j, v.At(j, k))
		}
	}
	return basis
}

// rankByVariance finds the smallest rank whose cumulative squared
// singular-value mass reaches target.
func rankByVariance(values []float64, target float64) int {
	total := 0.0
	for _, s := range values {
		total += s * s
	}
	if total == 0 {
		return 1
	}
	cum := 0.0
	for i, s := range values {
		cum += s * s
		if cum/total >= target {
			return i + 1
		}
	}
	return len(values)
}

// rankByNoiseDecay measures the residual pixel standard deviation of the
// reference projected onto bases of growing rank and stops after two
// consecutive improvements below tol.
func rankByNoiseDecay(ref *mat.Dense, svd *mat.SVD, maxRank int, tol float64) int {
	prev := 0.0
	flat := 0
	for r := 1; r <= maxRank; r++ {
		basis := truncatedBasis(svd, r)
		var weights, recon mat.Dense
		weights.Mul(ref, basis.T())
		recon.Mul(&weights, basis)
		recon.Sub(ref, &recon)

		raw := recon.RawMatrix()
		std := stat.StdDev(raw.Data, nil)
		if r > 1 {
			if prev-std < tol {
				flat++
				if flat == 2 {
					return r - 2
				}
			} else {
				flat = 0
			}
		}
		prev = std
	}
	return maxRank
}
