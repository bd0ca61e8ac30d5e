package stepcount

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DetectPeaks returns the local maxima of scores that exceed the threshold
// chosen by mode. A maximum must be entered by a strict rise and left by a
// strict fall; on a plateau the first index is reported. The first and last
// ticks are never peaks.
func DetectPeaks(scores ResampledSeries, mode ThresholdMode) []Peak {
	v := scores.Values
	if len(v) < 3 {
		return nil
	}
	limits := mode.thresholds(v, scores.Rate)

	var peaks []Peak
	for i := 1; i < len(v)-1; {
		if v[i] <= v[i-1] {
			i++
			continue
		}
		j := i + 1
		for j < len(v) && v[j] == v[i] {
			j++
		}
		if j < len(v) && v[j] < v[i] && v[i] > limits[i] {
			peaks = append(peaks, Peak{Index: i, Time: scores.Time(i), Score: v[i]})
		}
		i = j
	}
	return peaks
}

func (f Fixed) thresholds(scores []float64, _ float64) []float64 {
	out := make([]float64, len(scores))
	for i := range out {
		out[i] = f.Value
	}
	return out
}

// ticks returns the trailing window length in ticks at rate.
func (a Adaptive) ticks(rate float64) int {
	return max(1, int(math.Round(a.Window.Seconds()*rate)))
}

func (a Adaptive) thresholds(scores []float64, rate float64) []float64 {
	span := a.ticks(rate)
	out := make([]float64, len(scores))
	for i := range scores {
		lo := max(0, i-span+1)
		out[i] = math.Max(a.Floor, a.Fraction*floats.Max(scores[lo:i+1]))
	}
	return out
}
