package main

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"adisub/pkg/cube"
)

// loadCube reads all PNG/JPEG frames in a directory, sorted by the numeric
// part of their filenames so the temporal order of the sequence is kept,
// and stacks them into a cube.
func loadCube(dir string) (*cube.Cube, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".png" || ext == ".jpg" || ext == ".jpeg" {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no PNG or JPEG frames found in %s", dir)
	}
	sort.Slice(files, func(i, j int) bool {
		return extractNumber(files[i]) < extractNumber(files[j])
	})

	var frames [][]float64
	width, height := 0, 0
	for _, name := range files {
		img, err := loadImage(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to load frame %s: %w", name, err)
		}
		bounds := img.Bounds()
		if width == 0 {
			width, height = bounds.Dx(), bounds.Dy()
		} else if bounds.Dx() != width || bounds.Dy() != height {
			return nil, fmt.Errorf("frame %s is %dx%d, want %dx%d: %w",
				name, bounds.Dy(), bounds.Dx(), height, width, cube.ErrShapeMismatch)
		}
		frames = append(frames, imageToFloat(img))
	}
	return cube.FromFrames(frames, height, width)
}

// extractNumber extracts the numeric part from a filename.
func extractNumber(filename string) int {
	numStr := ""
	for _, c := range filepath.Base(filename) {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}
	if numStr != "" {
		if num, err := strconv.Atoi(numStr); err == nil {
			return num
		}
	}
	return 0
}

func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if strings.ToLower(filepath.Ext(path)) == ".png" {
		return png.Decode(file)
	}
	return jpeg.Decode(file)
}

// imageToFloat converts an image to a row-major float frame in [0, 1].
func imageToFloat(img image.Image) []float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	result := make([]float64, width*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			result[y*width+x] = float64(r) / 65535.0
		}
	}
	return result
}

// loadAngles reads the parallactic angle list from a YAML file.
func loadAngles(path string) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var angles []float64
	if err := yaml.Unmarshal(data, &angles); err != nil {
		return nil, fmt.Errorf("error parsing angle file: %w", err)
	}
	if len(angles) == 0 {
		return nil, fmt.Errorf("angle file %s holds no angles", path)
	}
	return angles, nil
}

// saveFrame writes a residual frame as a 16-bit grayscale PNG, linearly
// normalized to the frame's own value range. PNG keeps the single-channel
// data lossless.
func saveFrame(path string, frame []float64, height, width int) error {
	if len(frame) != height*width {
		return fmt.Errorf("frame has %d pixels, want %d: %w", len(frame), height*width, cube.ErrShapeMismatch)
	}

	lo, hi := frame[0], frame[0]
	for _, v := range frame {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	scale := 0.0
	if hi > lo {
		scale = 65535.0 / (hi - lo)
	}

	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint16((frame[y*width+x] - lo) * scale)
			img.SetGray16(x, y, color.Gray16{Y: v})
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return png.Encode(file, img)
}
