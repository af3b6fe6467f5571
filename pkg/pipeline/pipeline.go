// Package pipeline orchestrates the four-stage reduction: fit a speckle
// model, reconstruct and subtract it, then derotate and collapse the
// residual cube. It carries the geometry dispatch (full frame, annulus,
// multi-annulus), the reference-cube (RDI) variant, and the frame-wise and
// local-combination variants built on the angular reference-selection
// policy.
package pipeline

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"adisub/internal/parallel"
	"adisub/pkg/cube"
	"adisub/pkg/psfsub"
	"adisub/pkg/refsel"
)

// GeometryKind selects the pixel geometry a reduction runs on.
type GeometryKind string

const (
	// GeometryFull fits all pixels at once.
	GeometryFull GeometryKind = "full"

	// GeometryAnnulus fits a single ring between InnerRadius and OuterRadius.
	GeometryAnnulus GeometryKind = "annulus"

	// GeometryMultiAnnulus fits disjoint rings of shared Width at Radii.
	GeometryMultiAnnulus GeometryKind = "multi-annulus"
)

// Options configures a pipeline run. The zero value runs a full-frame
// median-collapsed ADI reduction.
type Options struct {
	// Geometry selects the pixel geometry; empty means GeometryFull.
	Geometry GeometryKind

	// InnerRadius and OuterRadius bound the single-annulus geometry.
	InnerRadius float64
	OuterRadius float64

	// Width and Radii lay out the multi-annulus geometry.
	Width float64
	Radii []float64

	// Reference supplies a distinct reference cube (RDI); nil means the
	// cube is its own reference.
	Reference *cube.Cube

	// Collapse selects the final combination (default median).
	Collapse cube.CollapseMethod

	// Fwhm is the resolution element size in pixels and DeltaRot the
	// required rotation in FWHM units; both feed the angular threshold of
	// the frame-wise modes. Fwhm defaults to 4, DeltaRot to 1.
	Fwhm     float64
	DeltaRot float64

	// Limit caps the reference set per target frame (0 = unlimited).
	Limit int

	// DistanceMetric and DistancePercentile prune the reference set of the
	// local-combination mode; percentile 0 disables pruning.
	DistanceMetric     refsel.Metric
	DistancePercentile float64

	// Workers bounds fan-out parallelism (<= 0: one per CPU).
	Workers int

	// Logger receives progress diagnostics (default slog.Default()).
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) fwhm() float64 {
	if o.Fwhm > 0 {
		return o.Fwhm
	}
	return 4
}

func (o Options) deltaRot() float64 {
	if o.DeltaRot > 0 {
		return o.DeltaRot
	}
	return 1
}

// buildGeometry realizes the configured geometry over a cube.
func (o Options) buildGeometry(c *cube.Cube) (cube.Geometry, error) {
	switch o.Geometry {
	case GeometryFull, "":
		return c, nil
	case GeometryAnnulus:
		return cube.NewAnnulus(c, o.InnerRadius, o.OuterRadius)
	case GeometryMultiAnnulus:
		return cube.NewMultiAnnulus(c, o.Width, o.Radii)
	default:
		return nil, fmt.Errorf("pipeline: unknown geometry %q", o.Geometry)
	}
}

// Run performs the full four-stage reduction over the configured geometry
// and returns the collapsed residual frame.
func Run(alg psfsub.Algorithm, c *cube.Cube, angles []float64, opts Options) ([]float64, error) {
	if err := c.CheckAngles(angles); err != nil {
		return nil, err
	}
	geom, err := opts.buildGeometry(c)
	if err != nil {
		return nil, err
	}
	var refGeom cube.Geometry
	if opts.Reference != nil {
		refGeom, err = opts.buildGeometry(opts.Reference)
		if err != nil {
			return nil, fmt.Errorf("pipeline: reference geometry: %w", err)
		}
	}

	fitted, err := psfsub.FitGeometry(alg, geom, refGeom, opts.Workers)
	if err != nil {
		return nil, err
	}
	residual, err := fitted.ResidualCube()
	if err != nil {
		return nil, err
	}
	return derotateCollapse(residual, angles, opts)
}

// RunFramewise reduces each target frame against its own angularly
// independent reference set: per frame, the policy picks the references,
// the algorithm fits them, and only that frame's model row is
// reconstructed. Rows are disjoint, so frames run in parallel and the
// result is identical regardless of scheduling.
func RunFramewise(alg psfsub.Algorithm, c *cube.Cube, angles []float64, opts Options) ([]float64, error) {
	return runPerFrame(alg, c, angles, opts, false)
}

// RunLocal is the local-optimal-combination variant: frame-wise reduction
// with the reference set further pruned to the frames within a percentile
// of pixel distance from the target.
func RunLocal(alg psfsub.Algorithm, c *cube.Cube, angles []float64, opts Options) ([]float64, error) {
	return runPerFrame(alg, c, angles, opts, true)
}

func runPerFrame(alg psfsub.Algorithm, c *cube.Cube, angles []float64, opts Options, localPrune bool) ([]float64, error) {
	if err := c.CheckAngles(angles); err != nil {
		return nil, err
	}

	// Frame-wise reduction runs on the full frame or a single annulus.
	var (
		data    *mat.Dense
		radius  float64
		scatter func(*mat.Dense) (*cube.Cube, error)
	)
	switch opts.Geometry {
	case GeometryFull, "":
		data = c.Matrix()
		radius = float64(c.Height) / 4
		scatter = func(m *mat.Dense) (*cube.Cube, error) { return c.Scatter(m) }
	case GeometryAnnulus:
		ann, err := cube.NewAnnulus(c, opts.InnerRadius, opts.OuterRadius)
		if err != nil {
			return nil, err
		}
		data = ann.Matrix()
		radius = ann.Radius()
		scatter = func(m *mat.Dense) (*cube.Cube, error) { return ann.Scatter(m) }
	default:
		return nil, fmt.Errorf("pipeline: frame-wise reduction does not support geometry %q", opts.Geometry)
	}

	threshold := refsel.AngularThreshold(angles, radius, opts.fwhm(), opts.deltaRot())
	opts.logger().Debug("frame-wise reduction",
		slog.Float64("threshold", threshold),
		slog.Float64("radius", radius),
		slog.Bool("localPrune", localPrune))
	frames, pixels := data.Dims()
	residual := mat.NewDense(frames, pixels, nil)

	err := parallel.Map(opts.Workers, frames, func(t int) error {
		refs, err := refsel.SelectReferences(angles, t, threshold, opts.Limit)
		if err != nil {
			return err
		}
		if localPrune && opts.DistancePercentile > 0 {
			target := data.RawRowView(t)
			dists := make([]float64, len(refs))
			for i, r := range refs {
				d, err := refsel.Distance(target, data.RawRowView(r), opts.DistanceMetric)
				if err != nil {
					return err
				}
				dists[i] = d
			}
			refs, err = refsel.PruneByDistance(refs, dists, opts.DistancePercentile)
			if err != nil {
				return err
			}
		}
		if len(refs) == 0 {
			return fmt.Errorf("pipeline: frame %d has no angularly independent references", t)
		}

		ref := gatherRows(data, refs)
		target := mat.NewDense(1, pixels, nil)
		target.SetRow(0, data.RawRowView(t))

		design, err := alg.Fit(target, ref)
		if err != nil {
			return fmt.Errorf("pipeline: frame %d: %w", t, err)
		}
		recon := design.Reconstruct()
		// Each worker writes only its own output row.
		for p := 0; p < pixels; p++ {
			residual.Set(t, p, data.At(t, p)-recon.At(0, p))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resCube, err := scatter(residual)
	if err != nil {
		return nil, err
	}
	return derotateCollapse(resCube, angles, opts)
}

func derotateCollapse(residual *cube.Cube, angles []float64, opts Options) ([]float64, error) {
	derotated, err := cube.Derotate(residual, angles, opts.Workers)
	if err != nil {
		return nil, err
	}
	return cube.Collapse(derotated, opts.Collapse, angles)
}

// gatherRows copies the selected rows of m, in order, into a new matrix.
func gatherRows(m *mat.Dense, rows []int) *mat.Dense {
	_, cols := m.Dims()
	out := mat.NewDense(len(rows), cols, nil)
	for i, r := range rows {
		out.SetRow(i, m.RawRowView(r))
	}
	return out
}
