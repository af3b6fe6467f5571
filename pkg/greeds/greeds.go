// Package greeds implements the greedy iterative refinement controller: a
// strictly sequential rank-growing loop around a linear decomposition
// kernel, feeding each pass's partially converged signal estimate back into
// the reference set of the next pass.
package greeds

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"adisub/pkg/cube"
	"adisub/pkg/psfsub"
)

// GreeDS owns the refinement loop. Construct it with New; the zero value is
// not usable.
type GreeDS struct {
	inner    psfsub.Linear
	floor    float64
	collapse cube.CollapseMethod
	workers  int
	logger   *slog.Logger
	progress func(rank, maxRank int)
}

// Option adjusts a GreeDS controller at construction.
type Option func(*GreeDS)

// WithClipFloor sets the floor applied to the counter-rotated synthetic
// cube; values below it are clipped to it. Default 0, which suppresses
// negative self-subtraction artifacts.
func WithClipFloor(floor float64) Option {
	return func(g *GreeDS) { g.floor = floor }
}

// WithCollapse selects the collapse method for intermediate and final
// estimates (default median).
func WithCollapse(method cube.CollapseMethod) Option {
	return func(g *GreeDS) { g.collapse = method }
}

// WithWorkers bounds per-frame parallelism inside a rank pass.
func WithWorkers(workers int) Option {
	return func(g *GreeDS) { g.workers = workers }
}

// WithLogger sets the diagnostic logger (default slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(g *GreeDS) { g.logger = logger }
}

// WithProgress installs an iteration-counter callback invoked once per rank
// pass. It is an observability side channel only; results do not depend on
// it.
func WithProgress(fn func(rank, maxRank int)) Option {
	return func(g *GreeDS) { g.progress = fn }
}

// New validates the inner kernel and builds a controller. Only linear
// decomposition algorithms can seed the rank-growing loop; anything else is
// rejected with ErrUnsupportedKernel.
func New(inner psfsub.Algorithm, opts ...Option) (*GreeDS, error) {
	linear, ok := inner.(psfsub.Linear)
	if !ok {
		return nil, fmt.Errorf("greeds: %T: %w", inner, psfsub.ErrUnsupportedKernel)
	}
	g := &GreeDS{
		inner:    linear,
		collapse: cube.CollapseMedian,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// Process runs the refinement loop against the cube's own frames (ADI).
// It returns the final collapsed estimate and the final design, whose rank
// equals the terminal rank resolved from the inner algorithm's rank policy
// on the original data.
func (g *GreeDS) Process(c *cube.Cube, angles []float64) ([]float64, psfsub.Design, error) {
	return g.run(c, nil, angles)
}

// ProcessRDI runs the loop with a distinct reference cube: every
// intermediate fit builds its basis from the reference, and the final
// weight projection is redone against the target before returning.
func (g *GreeDS) ProcessRDI(c, reference *cube.Cube, angles []float64) ([]float64, psfsub.Design, error) {
	if reference == nil {
		return g.run(c, nil, angles)
	}
	if reference.PixelsPerFrame() != c.PixelsPerFrame() {
		return nil, nil, fmt.Errorf("greeds: reference frames are %dx%d, target %dx%d: %w",
			reference.Height, reference.Width, c.Height, c.Width, psfsub.ErrShapeMismatch)
	}
	return g.run(c, reference, angles)
}

func (g *GreeDS) run(c, reference *cube.Cube, angles []float64) ([]float64, psfsub.Design, error) {
	if err := c.CheckAngles(angles); err != nil {
		return nil, nil, err
	}

	data := c.Matrix()
	baseRef := data
	if reference != nil {
		baseRef = reference.Matrix()
	}

	// The terminal rank is resolved once, from the original reference.
	maxRank, err := g.inner.ResolveRank(baseRef)
	if err != nil {
		return nil, nil, err
	}

	var (
		estimate []float64
		design   psfsub.Design
	)
	for rank := 1; rank <= maxRank; rank++ {
		if g.progress != nil {
			g.progress(rank, maxRank)
		}
		g.logger.Debug("refinement pass", slog.Int("rank", rank), slog.Int("maxRank", maxRank))

		// Each pass owns a fresh configuration pinned to its rank; designs
		// from different passes never alias.
		alg := g.inner.WithRank(rank)

		ref := baseRef
		if estimate != nil && reference == nil {
			// Feed the previous pass back: remove the counter-rotated signal
			// estimate from the original frames before re-fitting.
			synthetic, err := cube.CounterRotate(estimate, c.Height, c.Width, angles, g.floor, g.workers)
			if err != nil {
				return nil, nil, err
			}
			var cleaned mat.Dense
			cleaned.Sub(data, synthetic.Matrix())
			ref = &cleaned
		}

		projected := data
		if reference != nil && estimate != nil && rank < maxRank {
			// RDI: the basis always comes from the reference cube, but the
			// intermediate weights are taken against the signal-removed
			// target. The terminal pass projects the original target again.
			synthetic, err := cube.CounterRotate(estimate, c.Height, c.Width, angles, g.floor, g.workers)
			if err != nil {
				return nil, nil, err
			}
			var cleaned mat.Dense
			cleaned.Sub(data, synthetic.Matrix())
			projected = &cleaned
		}

		design, err = alg.Fit(projected, ref)
		if err != nil {
			return nil, nil, fmt.Errorf("greeds: rank %d: %w", rank, err)
		}

		var residual mat.Dense
		residual.Sub(data, design.Reconstruct())
		resCube, err := cube.ExpandMatrix(&residual, c.Height, c.Width)
		if err != nil {
			return nil, nil, err
		}
		derotated, err := cube.Derotate(resCube, angles, g.workers)
		if err != nil {
			return nil, nil, err
		}
		estimate, err = cube.Collapse(derotated, g.collapse, angles)
		if err != nil {
			return nil, nil, err
		}
	}
	return estimate, design, nil
}
