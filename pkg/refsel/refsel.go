// Package refsel implements the angular-separation-based reference-frame
// selection policy shared by the frame-wise and local-combination reduction
// modes. Everything here is a pure function of its inputs; the only side
// channel is a diagnostic log line when a threshold is clamped.
package refsel

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// logger receives the package's diagnostic warnings; nil means
// slog.Default(). Replace it with SetLogger.
var logger *slog.Logger

// SetLogger installs the logger used for diagnostic warnings. Passing nil
// restores slog.Default().
func SetLogger(l *slog.Logger) { logger = l }

func warnLogger() *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// AngularThreshold returns the minimum parallactic rotation, in degrees,
// that moves a companion at the given radius by deltaRot resolution elements
// of size fwhm:
//
//	threshold = 2 * atan(deltaRot * fwhm / (2 * radius))
//
// A threshold at or beyond 0.9x half the observed angle range would reject
// the whole sequence, so it is clamped to that value and a diagnostic is
// logged. The clamp is non-fatal.
func AngularThreshold(angles []float64, radius, fwhm, deltaRot float64) float64 {
	threshold := 2 * math.Atan(deltaRot*fwhm/(2*radius)) * 180 / math.Pi

	lo, hi := minMax(angles)
	clamp := 0.9 * (hi - lo) / 2
	if threshold >= clamp {
		warnLogger().Warn("degenerate angular threshold clamped",
			slog.Float64("threshold", threshold),
			slog.Float64("clamp", clamp),
			slog.Float64("radius", radius))
		return clamp
	}
	return threshold
}

func minMax(values []float64) (lo, hi float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi = values[0], values[0]
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// SelectReferences returns the ordered, deduplicated frame indices that are
// angularly independent of the target: everything outside the exclusion
// window around target. The window spans from the lowest index below target
// still within threshold of angles[target] up to (exclusive) the first index
// above target whose angular distance exceeds threshold.
//
// A limit > 0 restricts each half to at most limit/2 indices nearest the
// window boundary, a sliding window rather than the full complement. A
// threshold of zero excludes only the target itself.
func SelectReferences(angles []float64, target int, threshold float64, limit int) ([]int, error) {
	n := len(angles)
	if target < 0 || target >= n {
		return nil, fmt.Errorf("refsel: target index %d out of range [0, %d)", target, n)
	}

	// Lowest index below target still inside the excluded window.
	p := target
	for i := target - 1; i >= 0; i-- {
		if math.Abs(angles[i]-angles[target]) >= threshold {
			break
		}
		p = i
	}
	// First index above target outside the excluded window.
	q := target + 1
	for q < n && math.Abs(angles[q]-angles[target]) <= threshold {
		q++
	}

	before := make([]int, 0, p)
	for i := 0; i < p; i++ {
		before = append(before, i)
	}
	after := make([]int, 0, n-q)
	for i := q; i < n; i++ {
		after = append(after, i)
	}

	if limit > 0 {
		half := limit / 2
		// Truncate toward the exclusion boundary, not toward the sequence ends.
		if len(before) > half {
			before = before[len(before)-half:]
		}
		if len(after) > half {
			after = after[:half]
		}
	}
	return append(before, after...), nil
}

// Metric names a pairwise frame-distance measure used to prune reference
// sets in the local-combination mode.
type Metric string

const (
	// MetricEuclidean is the L2 distance between flattened frames.
	MetricEuclidean Metric = "euclidean"

	// MetricManhattan is the L1 distance between flattened frames.
	MetricManhattan Metric = "manhattan"

	// MetricCorrelation is 1 - Pearson correlation, so identical frames are
	// at distance zero.
	MetricCorrelation Metric = "correlation"
)

// Distance computes the pairwise distance between two flattened frames.
func Distance(a, b []float64, metric Metric) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("refsel: frames have %d and %d pixels", len(a), len(b))
	}
	switch metric {
	case MetricEuclidean, "":
		sum := 0.0
		for i := range a {
			d := a[i] - b[i]
			sum += d * d
		}
		return math.Sqrt(sum), nil
	case MetricManhattan:
		sum := 0.0
		for i := range a {
			sum += math.Abs(a[i] - b[i])
		}
		return sum, nil
	case MetricCorrelation:
		return 1 - stat.Correlation(a, b, nil), nil
	default:
		return 0, fmt.Errorf("refsel: unknown distance metric %q", metric)
	}
}

// PruneByDistance keeps the reference indices whose distance to the target
// falls at or below the given percentile (0-100] of the candidate distances.
// The candidates slice pairs 1:1 with refs. Order is preserved.
func PruneByDistance(refs []int, distances []float64, percentile float64) ([]int, error) {
	if len(refs) != len(distances) {
		return nil, fmt.Errorf("refsel: %d references with %d distances", len(refs), len(distances))
	}
	if percentile <= 0 || percentile > 100 {
		return nil, fmt.Errorf("refsel: percentile %g outside (0, 100]", percentile)
	}
	if len(refs) == 0 {
		return nil, nil
	}

	sorted := append([]float64(nil), distances...)
	sort.Float64s(sorted)
	cutoff := stat.Quantile(percentile/100, stat.Empirical, sorted, nil)

	kept := make([]int, 0, len(refs))
	for i, r := range refs {
		if distances[i] <= cutoff {
			kept = append(kept, r)
		}
	}
	return kept, nil
}
