package cube

import (
	"fmt"
	"math"
	"sort"
)

// CollapseMethod selects how a derotated cube is combined into one frame.
type CollapseMethod string

const (
	// CollapseMedian takes the per-pixel median across frames. Default.
	CollapseMedian CollapseMethod = "median"

	// CollapseMean takes the per-pixel arithmetic mean.
	CollapseMean CollapseMethod = "mean"

	// CollapseSum takes the per-pixel sum.
	CollapseSum CollapseMethod = "sum"

	// CollapseWeighted averages with per-frame weights derived from the
	// parallactic-angle spacing, giving sparsely sampled rotations more say.
	CollapseWeighted CollapseMethod = "weighted"
)

// Collapse combines the frames of a cube into a single frame. The angles
// argument is only consulted by CollapseWeighted and may be nil otherwise.
func Collapse(c *Cube, method CollapseMethod, angles []float64) ([]float64, error) {
	switch method {
	case CollapseMedian, "":
		return collapseMedian(c), nil
	case CollapseMean:
		return collapseMean(c), nil
	case CollapseSum:
		return collapseSum(c), nil
	case CollapseWeighted:
		if err := c.CheckAngles(angles); err != nil {
			return nil, err
		}
		return collapseWeighted(c, angles), nil
	default:
		return nil, fmt.Errorf("unknown collapse method %q", method)
	}
}

func collapseMedian(c *Cube) []float64 {
	size := c.PixelsPerFrame()
	out := make([]float64, size)
	column := make([]float64, c.Frames)
	for p := 0; p < size; p++ {
		for f := 0; f < c.Frames; f++ {
			column[f] = c.Data[f*size+p]
		}
		out[p] = median(column)
	}
	return out
}

// median sorts in place; callers pass a scratch buffer.
func median(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n == 0 {
		return 0
	}
	if n%2 == 0 {
		return (values[n/2-1] + values[n/2]) / 2
	}
	return values[n/2]
}

func collapseMean(c *Cube) []float64 {
	out := collapseSum(c)
	inv := 1 / float64(c.Frames)
	for p := range out {
		out[p] *= inv
	}
	return out
}

func collapseSum(c *Cube) []float64 {
	size := c.PixelsPerFrame()
	out := make([]float64, size)
	for f := 0; f < c.Frames; f++ {
		frame := c.Frame(f)
		for p, v := range frame {
			out[p] += v
		}
	}
	return out
}

// collapseWeighted weights each frame by half the angular gap to its
// neighbours, so frames covering more unique rotation contribute more.
// Equal spacing degenerates to the plain mean.
func collapseWeighted(c *Cube, angles []float64) []float64 {
	n := c.Frames
	weights := make([]float64, n)
	total := 0.0
	for i := 0; i < n; i++ {
		var gap float64
		switch {
		case n == 1:
			gap = 1
		case i == 0:
			gap = math.Abs(angles[1] - angles[0])
		case i == n-1:
			gap = math.Abs(angles[n-1] - angles[n-2])
		default:
			gap = (math.Abs(angles[i]-angles[i-1]) + math.Abs(angles[i+1]-angles[i])) / 2
		}
		if gap == 0 {
			gap = math.SmallestNonzeroFloat64
		}
		weights[i] = gap
		total += gap
	}

	size := c.PixelsPerFrame()
	out := make([]float64, size)
	for f := 0; f < n; f++ {
		w := weights[f] / total
		frame := c.Frame(f)
		for p, v := range frame {
			out[p] += w * v
		}
	}
	return out
}
