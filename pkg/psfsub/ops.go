package psfsub

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"adisub/pkg/cube"
)

// Reconstruct fits the algorithm and returns the model reconstruction of the
// data matrix.
func Reconstruct(alg Algorithm, data, ref *mat.Dense) (*mat.Dense, error) {
	design, err := alg.Fit(data, ref)
	if err != nil {
		return nil, err
	}
	return design.Reconstruct(), nil
}

// Subtract fits the algorithm and returns data minus its reconstruction.
// The result has exactly the data matrix's shape.
func Subtract(alg Algorithm, data, ref *mat.Dense) (*mat.Dense, error) {
	recon, err := Reconstruct(alg, data, ref)
	if err != nil {
		return nil, err
	}
	var out mat.Dense
	out.Sub(data, recon)
	return &out, nil
}

// ProcessOption adjusts the generic full-frame pipeline run.
type ProcessOption func(*processConfig)

type processConfig struct {
	reference *cube.Cube
	collapse  cube.CollapseMethod
	workers   int
}

// WithReference supplies a distinct reference cube (RDI). Nil keeps the
// default self-reference.
func WithReference(ref *cube.Cube) ProcessOption {
	return func(c *processConfig) { c.reference = ref }
}

// WithCollapse selects the collapse method (default median).
func WithCollapse(method cube.CollapseMethod) ProcessOption {
	return func(c *processConfig) { c.collapse = method }
}

// WithWorkers bounds derotation parallelism; <= 0 uses one per CPU.
func WithWorkers(workers int) ProcessOption {
	return func(c *processConfig) { c.workers = workers }
}

// Process runs the four-stage full-frame reduction: fit, reconstruct and
// subtract the speckle model, then derotate the residual cube by the
// parallactic angles and collapse it into a single frame.
func Process(alg Algorithm, c *cube.Cube, angles []float64, opts ...ProcessOption) ([]float64, error) {
	cfg := processConfig{collapse: cube.CollapseMedian}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if err := c.CheckAngles(angles); err != nil {
		return nil, err
	}

	var ref *mat.Dense
	if cfg.reference != nil {
		if cfg.reference.PixelsPerFrame() != c.PixelsPerFrame() {
			return nil, fmt.Errorf("reference cube is %dx%d, target %dx%d: %w",
				cfg.reference.Height, cfg.reference.Width, c.Height, c.Width, ErrShapeMismatch)
		}
		ref = cfg.reference.Matrix()
	}

	residual, err := Subtract(alg, c.Matrix(), ref)
	if err != nil {
		return nil, err
	}
	resCube, err := cube.ExpandMatrix(residual, c.Height, c.Width)
	if err != nil {
		return nil, err
	}
	derotated, err := cube.Derotate(resCube, angles, cfg.workers)
	if err != nil {
		return nil, err
	}
	return cube.Collapse(derotated, cfg.collapse, angles)
}
