package stepcount

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Score maps a filtered series to per-tick step likelihood. The score is the
// squared positive part of the filtered value, less penalty times the
// population variance of the filtered values over the trailing window
// [i-window, i], floored at zero. Each score only looks backwards.
func Score(filtered ResampledSeries, window int, penalty float64) ResampledSeries {
	in := filtered.Values
	out := make([]float64, len(in))
	for i, f := range in {
		pos := math.Max(f, 0)
		score := pos * pos
		if penalty > 0 && score > 0 {
			lo := max(0, i-window)
			score -= penalty * stat.PopVariance(in[lo:i+1], nil)
		}
		out[i] = math.Max(score, 0)
	}
	return filtered.withValues(out)
}
