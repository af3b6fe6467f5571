package psfsub

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"adisub/internal/parallel"
	"adisub/pkg/cube"
)

// FittedGeometry holds the designs produced by fitting a geometry: one for
// the full frame or a single annulus, one per ring for a multi-annulus.
type FittedGeometry struct {
	geom    cube.Geometry
	designs []Design
}

// Designs returns the fitted designs in geometry order (a single element
// except for multi-annulus fits).
func (f *FittedGeometry) Designs() []Design { return f.designs }

// ReconstructCube reassembles the model reconstruction into cube shape,
// inverse-mapping annulus values back onto their pixel indices.
func (f *FittedGeometry) ReconstructCube() (*cube.Cube, error) {
	switch g := f.geom.(type) {
	case *cube.Cube:
		return g.Scatter(f.designs[0].Reconstruct())
	case *cube.Annulus:
		return g.Scatter(f.designs[0].Reconstruct())
	case *cube.MultiAnnulus:
		mats := make([]mat.Matrix, len(f.designs))
		for i, d := range f.designs {
			mats[i] = d.Reconstruct()
		}
		return g.ScatterAll(mats)
	default:
		return nil, fmt.Errorf("unsupported geometry %q: %w", f.geom.Kind(), ErrGeometryMismatch)
	}
}

// ResidualCube subtracts the reconstruction from the fitted pixels and
// reassembles the result into cube shape. Pixels outside the geometry are
// zero: they carry no model and do not belong to the residual.
func (f *FittedGeometry) ResidualCube() (*cube.Cube, error) {
	switch g := f.geom.(type) {
	case *cube.Cube:
		var res mat.Dense
		res.Sub(g.Matrix(), f.designs[0].Reconstruct())
		return g.Scatter(&res)
	case *cube.Annulus:
		var res mat.Dense
		res.Sub(g.Matrix(), f.designs[0].Reconstruct())
		return g.Scatter(&res)
	case *cube.MultiAnnulus:
		rings := g.Rings()
		mats := make([]mat.Matrix, len(f.designs))
		for i, d := range f.designs {
			var res mat.Dense
			res.Sub(rings[i].Matrix(), d.Reconstruct())
			mats[i] = &res
		}
		return g.ScatterAll(mats)
	default:
		return nil, fmt.Errorf("unsupported geometry %q: %w", f.geom.Kind(), ErrGeometryMismatch)
	}
}

// FitGeometry fits one algorithm over a geometry. The reference must be nil
// (self-reference) or a geometry of the same kind and bounds; multi-annulus
// rings are fit independently and in parallel.
func FitGeometry(alg Algorithm, data, ref cube.Geometry, workers int) (*FittedGeometry, error) {
	switch g := data.(type) {
	case *cube.Cube:
		refMat, err := fullFrameReference(g, ref)
		if err != nil {
			return nil, err
		}
		design, err := alg.Fit(g.Matrix(), refMat)
		if err != nil {
			return nil, err
		}
		return &FittedGeometry{geom: g, designs: []Design{design}}, nil

	case *cube.Annulus:
		refMat, err := annulusReference(g, ref)
		if err != nil {
			return nil, err
		}
		design, err := alg.Fit(g.Matrix(), refMat)
		if err != nil {
			return nil, err
		}
		return &FittedGeometry{geom: g, designs: []Design{design}}, nil

	case *cube.MultiAnnulus:
		algs := make([]Algorithm, len(g.Rings()))
		for i := range algs {
			algs[i] = alg
		}
		return FitGeometryEach(algs, g, ref, workers)

	default:
		return nil, fmt.Errorf("unsupported geometry %q: %w", data.Kind(), ErrGeometryMismatch)
	}
}

// FitGeometryEach fits a multi-annulus geometry with one algorithm per ring,
// in positional correspondence with the radius ordering.
func FitGeometryEach(algs []Algorithm, data *cube.MultiAnnulus, ref cube.Geometry, workers int) (*FittedGeometry, error) {
	rings := data.Rings()
	if len(algs) != len(rings) {
		return nil, fmt.Errorf("%d algorithms for %d annuli: %w", len(algs), len(rings), ErrShapeMismatch)
	}

	var refRings []*cube.Annulus
	if ref != nil && ref != cube.Geometry(data) {
		refMulti, ok := ref.(*cube.MultiAnnulus)
		if !ok {
			return nil, fmt.Errorf("multi-annulus target with %q reference: %w", ref.Kind(), ErrGeometryMismatch)
		}
		if !data.SameLayout(refMulti) {
			return nil, fmt.Errorf("reference annuli differ in width or radii: %w", ErrGeometryMismatch)
		}
		refRings = refMulti.Rings()
	}

	designs := make([]Design, len(rings))
	err := parallel.Map(workers, len(rings), func(i int) error {
		var refMat *mat.Dense
		if refRings != nil {
			refMat = refRings[i].Matrix()
		}
		design, err := algs[i].Fit(rings[i].Matrix(), refMat)
		if err != nil {
			return fmt.Errorf("annulus %d: %w", i, err)
		}
		designs[i] = design
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &FittedGeometry{geom: data, designs: designs}, nil
}

func fullFrameReference(data *cube.Cube, ref cube.Geometry) (*mat.Dense, error) {
	if ref == nil || ref == cube.Geometry(data) {
		return nil, nil
	}
	refCube, ok := ref.(*cube.Cube)
	if !ok {
		return nil, fmt.Errorf("full-frame target with %q reference: %w", ref.Kind(), ErrGeometryMismatch)
	}
	if refCube.PixelsPerFrame() != data.PixelsPerFrame() {
		return nil, fmt.Errorf("reference frames are %dx%d, target %dx%d: %w",
			refCube.Height, refCube.Width, data.Height, data.Width, ErrShapeMismatch)
	}
	return refCube.Matrix(), nil
}

func annulusReference(data *cube.Annulus, ref cube.Geometry) (*mat.Dense, error) {
	if ref == nil || ref == cube.Geometry(data) {
		return nil, nil
	}
	refAnn, ok := ref.(*cube.Annulus)
	if !ok {
		return nil, fmt.Errorf("annulus target with %q reference: %w", ref.Kind(), ErrGeometryMismatch)
	}
	if !data.SameBounds(refAnn) {
		di, do := data.Bounds()
		ri, ro := refAnn.Bounds()
		return nil, fmt.Errorf("annulus bounds [%g, %g) vs reference [%g, %g): %w", di, do, ri, ro, ErrGeometryMismatch)
	}
	if refAnn.PixelCount() != data.PixelCount() {
		return nil, fmt.Errorf("annulus selects %d pixels, reference %d: %w",
			data.PixelCount(), refAnn.PixelCount(), ErrShapeMismatch)
	}
	return refAnn.Matrix(), nil
}
