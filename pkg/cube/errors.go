package cube

import "errors"

// Sentinel errors for structural contract violations. Callers match these
// with errors.Is; wrapped context never hides the sentinel.
var (
	// ErrShapeMismatch indicates a frame-count or pixel-count disagreement
	// between a cube, a flattened matrix, a reference, or an angle sequence.
	ErrShapeMismatch = errors.New("cube: shape mismatch")

	// ErrGeometryMismatch indicates that a target and a reference geometry
	// differ in kind or in radius bounds. Fitting must not proceed.
	ErrGeometryMismatch = errors.New("cube: geometry mismatch")
)
