// Package psfsub implements quasi-static speckle estimation and removal:
// an Algorithm fits a noise model to a flattened (frames x pixels) data
// matrix, optionally against a separate reference matrix, and returns a
// Design from which the model reconstruction is read back. Generic
// reconstruct/subtract/process operations and the geometry adapter are built
// on that single contract.
package psfsub

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Algorithm is an immutable fitting configuration. Fit is stateless and
// idempotent for a given (data, reference) pair; no data is retained between
// invocations.
//
// A nil reference selects the self-reference fast path, equivalent to
// passing data itself.
type Algorithm interface {
	Fit(data, ref *mat.Dense) (Design, error)
}

// Design is the minimal state a fit produces: enough to reconstruct the
// noise-model approximation of the data matrix it was fit to. A Design is
// owned by the invocation that created it and is never mutated afterwards.
type Design interface {
	// Reconstruct returns the model approximation with exactly the shape of
	// the data matrix passed to Fit.
	Reconstruct() *mat.Dense

	// Rank reports the model dimensionality; zero for statistic designs.
	Rank() int
}

// Linear is implemented by rank-truncated linear decomposition algorithms.
// The greedy refinement controller accepts only Linear kernels: it needs to
// resolve a terminal rank up front and re-fit at successive fixed ranks.
type Linear interface {
	Algorithm

	// ResolveRank applies the algorithm's rank-selection policy to a
	// reference matrix and returns the rank a plain fit would use.
	ResolveRank(ref *mat.Dense) (int, error)

	// WithRank returns a copy of the algorithm pinned to a fixed rank. The
	// receiver is not modified.
	WithRank(rank int) Linear
}

// checkFitShapes validates the shared-pixel-dimension contract and resolves
// a nil reference to the data matrix itself.
func checkFitShapes(data, ref *mat.Dense) (*mat.Dense, error) {
	if data == nil {
		return nil, fmt.Errorf("nil data matrix: %w", ErrShapeMismatch)
	}
	if ref == nil {
		return data, nil
	}
	_, dp := data.Dims()
	_, rp := ref.Dims()
	if dp != rp {
		return nil, fmt.Errorf("data has %d pixels, reference %d: %w", dp, rp, ErrShapeMismatch)
	}
	return ref, nil
}
