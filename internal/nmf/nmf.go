// Package nmf provides a small multiplicative-update non-negative matrix
// factorization solver. It is the black-box factorization primitive behind
// the non-negative decomposition algorithm; callers guarantee non-negative
// input.
package nmf

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// eps keeps multiplicative updates away from division by zero.
const eps = 1e-12

// Factorize approximates V (n x m, non-negative) as W*H with W (n x rank)
// and H (rank x m), both non-negative, using Lee-Seung multiplicative
// updates. Iteration stops after maxIter rounds or when the relative
// Frobenius improvement between rounds drops below tol.
//
// Initialization is deterministic (scaled row/column means plus a small
// index-dependent perturbation to break symmetry), so repeated runs on the
// same input return the same factors.
func Factorize(v *mat.Dense, rank, maxIter int, tol float64) (w, h *mat.Dense, err error) {
	n, m := v.Dims()
	if rank <= 0 || rank > n || rank > m {
		return nil, nil, fmt.Errorf("nmf: rank %d invalid for %dx%d matrix", rank, n, m)
	}
	if maxIter <= 0 {
		maxIter = 200
	}

	w = initFactor(v, rank, true)
	h = initFactor(v, rank, false)

	var (
		wtv, wtw, wtwh mat.Dense
		vht, hht, whht mat.Dense
		wh             mat.Dense
	)
	prev := -1.0
	for iter := 0; iter < maxIter; iter++ {
		// H <- H .* (Wt V) ./ (Wt W H)
		wtv.Mul(w.T(), v)
		wtw.Mul(w.T(), w)
		wtwh.Mul(&wtw, h)
		updateInPlace(h, &wtv, &wtwh)

		// W <- W .* (V Ht) ./ (W H Ht)
		vht.Mul(v, h.T())
		hht.Mul(h, h.T())
		whht.Mul(w, &hht)
		updateInPlace(w, &vht, &whht)

		if tol > 0 {
			wh.Mul(w, h)
			wh.Sub(v, &wh)
			res := mat.Norm(&wh, 2)
			if prev >= 0 && prev-res < tol*(prev+eps) {
				break
			}
			prev = res
		}
	}
	return w, h, nil
}

// ProjectWeights solves for non-negative weights W approximating V ~= W*H
// with H held fixed. Used to re-project a new data matrix onto an already
// fitted basis.
func ProjectWeights(v, h *mat.Dense, maxIter int) *mat.Dense {
	rank, _ := h.Dims()
	if maxIter <= 0 {
		maxIter = 100
	}

	w := initFactor(v, rank, true)
	var vht, hht, whht mat.Dense
	vht.Mul(v, h.T())
	hht.Mul(h, h.T())
	for iter := 0; iter < maxIter; iter++ {
		whht.Mul(w, &hht)
		updateInPlace(w, &vht, &whht)
	}
	return w
}

// updateInPlace applies x <- x .* num ./ den elementwise.
func updateInPlace(x, num, den *mat.Dense) {
	r, c := x.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			x.Set(i, j, x.At(i, j)*num.At(i, j)/(den.At(i, j)+eps))
		}
	}
}

// initFactor builds a deterministic strictly-positive starting factor scaled
// to the magnitude of v. rows selects the (n x rank) left factor; otherwise
// the (rank x m) right factor is produced.
func initFactor(v *mat.Dense, rank int, rows bool) *mat.Dense {
	n, m := v.Dims()
	mean := mat.Sum(v) / float64(n*m)
	if mean <= 0 {
		mean = 1
	}
	scale := mean / float64(rank)

	var out *mat.Dense
	if rows {
		out = mat.NewDense(n, rank, nil)
		for i := 0; i < n; i++ {
			for k := 0; k < rank; k++ {
				out.Set(i, k, scale*(1+0.1*float64((i+k)%rank+1)))
			}
		}
		return out
	}
	out = mat.NewDense(rank, m, nil)
	for k := 0; k < rank; k++ {
		for j := 0; j < m; j++ {
			out.Set(k, j, scale*(1+0.1*float64((j+k)%rank+1)))
		}
	}
	return out
}
