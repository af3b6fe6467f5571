package cube

import (
	"math"

	"adisub/internal/parallel"
)

// Rotate resamples a height x width frame rotated by the given angle in
// degrees about the frame center, positive angles rotating counter-clockwise.
// Sampling is bilinear; destination pixels that map outside the source grid
// are filled with zero.
func Rotate(frame []float64, height, width int, degrees float64) []float64 {
	out := make([]float64, len(frame))
	if degrees == 0 {
		copy(out, frame)
		return out
	}

	theta := degrees * math.Pi / 180
	sin, cos := math.Sin(theta), math.Cos(theta)
	cx := float64(width-1) / 2
	cy := float64(height-1) / 2

	for y := 0; y < height; y++ {
		dy := float64(y) - cy
		for x := 0; x < width; x++ {
			dx := float64(x) - cx

			// Inverse mapping: sample the source at the location that the
			// forward rotation would move onto (x, y).
			srcX := cx + cos*dx + sin*dy
			srcY := cy - sin*dx + cos*dy

			x0 := int(math.Floor(srcX))
			y0 := int(math.Floor(srcY))
			if x0 < 0 || y0 < 0 || x0 >= width-1 || y0 >= height-1 {
				// Edge texels get nearest-neighbour treatment when they still
				// fall on the grid, zero otherwise.
				xn := int(math.Round(srcX))
				yn := int(math.Round(srcY))
				if xn >= 0 && yn >= 0 && xn < width && yn < height {
					out[y*width+x] = frame[yn*width+xn]
				}
				continue
			}

			tx := srcX - float64(x0)
			ty := srcY - float64(y0)
			v00 := frame[y0*width+x0]
			v01 := frame[y0*width+x0+1]
			v10 := frame[(y0+1)*width+x0]
			v11 := frame[(y0+1)*width+x0+1]

			top := (1-tx)*v00 + tx*v01
			bottom := (1-tx)*v10 + tx*v11
			out[y*width+x] = (1-ty)*top + ty*bottom
		}
	}
	return out
}

// Derotate rotates frame i by angles[i], aligning each residual frame with
// the sky. Frames are processed in parallel; each worker writes a disjoint
// frame of the output cube.
func Derotate(c *Cube, angles []float64, workers int) (*Cube, error) {
	if err := c.CheckAngles(angles); err != nil {
		return nil, err
	}
	out := New(c.Frames, c.Height, c.Width)
	err := parallel.Map(workers, c.Frames, func(i int) error {
		copy(out.Frame(i), Rotate(c.Frame(i), c.Height, c.Width, angles[i]))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CounterRotate expands a single 2-D estimate into a synthetic cube by
// rotating it back to each frame's original parallactic angle. Values below
// floor are clipped to floor, which keeps negative self-subtraction
// artifacts from compounding across refinement passes.
func CounterRotate(estimate []float64, height, width int, angles []float64, floor float64, workers int) (*Cube, error) {
	if len(estimate) != height*width {
		return nil, ErrShapeMismatch
	}
	out := New(len(angles), height, width)
	err := parallel.Map(workers, len(angles), func(i int) error {
		frame := Rotate(estimate, height, width, -angles[i])
		for p, v := range frame {
			if v < floor {
				frame[p] = floor
			}
		}
		copy(out.Frame(i), frame)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
