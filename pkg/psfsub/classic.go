package psfsub

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// StatMethod selects the statistic the classic design computes over the
// reference frames.
type StatMethod string

const (
	// StatMedian is the per-pixel median reference frame. Default.
	StatMedian StatMethod = "median"

	// StatMean is the per-pixel mean reference frame.
	StatMean StatMethod = "mean"
)

// Classic is the classic speckle model: a single per-pixel statistic frame
// of the reference, tiled across the target frames. It is not a linear
// decomposition and cannot seed rank-growing wrappers.
type Classic struct {
	// Method selects the statistic; empty means StatMedian.
	Method StatMethod
}

// Fit computes the statistic frame over the reference rows.
func (c Classic) Fit(data, ref *mat.Dense) (Design, error) {
	ref, err := checkFitShapes(data, ref)
	if err != nil {
		return nil, err
	}
	frames, _ := data.Dims()
	refFrames, pixels := ref.Dims()

	frame := make([]float64, pixels)
	column := make([]float64, refFrames)
	for p := 0; p < pixels; p++ {
		for f := 0; f < refFrames; f++ {
			column[f] = ref.At(f, p)
		}
		switch c.Method {
		case StatMedian, "":
			sort.Float64s(column)
			if refFrames%2 == 0 {
				frame[p] = (column[refFrames/2-1] + column[refFrames/2]) / 2
			} else {
				frame[p] = column[refFrames/2]
			}
		case StatMean:
			sum := 0.0
			for _, v := range column {
				sum += v
			}
			frame[p] = sum / float64(refFrames)
		default:
			return nil, fmt.Errorf("psfsub: unknown statistic %q", c.Method)
		}
	}
	return &ClassicDesign{frame: frame, frames: frames}, nil
}
