package psfsub

import (
	"errors"

	"adisub/pkg/cube"
)

// Structural contract errors. Shape and geometry violations share identity
// with the cube package sentinels so errors.Is matches either way.
var (
	// ErrShapeMismatch indicates disagreeing frame or pixel counts between
	// target, reference and angle inputs.
	ErrShapeMismatch = cube.ErrShapeMismatch

	// ErrGeometryMismatch indicates target and reference geometries that
	// differ in kind or bounds.
	ErrGeometryMismatch = cube.ErrGeometryMismatch

	// ErrRankExceeded is returned when a requested or auto-selected rank
	// exceeds the available reference frames. Ranks are never silently
	// clamped; silent clamping would change results without signal.
	ErrRankExceeded = errors.New("psfsub: rank exceeds available reference frames")

	// ErrUnsupportedKernel is returned when a rank-growing wrapper is built
	// around an algorithm that is not a linear decomposition.
	ErrUnsupportedKernel = errors.New("psfsub: inner algorithm is not a linear decomposition")
)
