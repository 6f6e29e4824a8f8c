package numpy

import "sort"

// NthSmallest returns the nth smallest value (0-indexed) of values after
// sorting, or the largest value if values has fewer than n+1 elements.
// This mirrors the common "robust percentile" idiom of numpy.sort(x)[n]
// with a fallback to the last element, used to estimate a distribution's
// typical value while tolerating a handful of extreme outliers.
func NthSmallest(values []float64, n int) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	if n < len(sorted) {
		return sorted[n]
	}
	return sorted[len(sorted)-1]
}
