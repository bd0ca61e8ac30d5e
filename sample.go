// Package stepcount counts walking and running steps in a window of wrist
// accelerometer samples.
//
// A run is five ordered stages over one Window: resample to a uniform rate,
// band-pass filter the magnitude, score each tick, detect thresholded peaks and
// debounce them into StepEvents. Nothing is carried between calls, so a caller
// splitting a live stream into successive windows must overlap them if steps
// at the seams matter.
package stepcount

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Vector is one acceleration reading, one component per spatial axis.
type Vector [3]float64

// Norm returns the Euclidean magnitude of v.
func (v Vector) Norm() float64 {
	return floats.Norm(v[:], 2)
}

func (v Vector) finite() bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Sample is one raw accelerometer reading.
type Sample struct {
	Time  time.Time
	Accel Vector
}

// NewMagnitudeSample builds a Sample for devices that report a single,
// already reduced magnitude.
func NewMagnitudeSample(t time.Time, magnitude float64) Sample {
	return Sample{Time: t, Accel: Vector{magnitude, 0, 0}}
}

// Window is an ordered batch of samples submitted for one run. Timestamps must
// be strictly increasing.
type Window []Sample

// ResampledSeries is a scalar series at a fixed sample rate. Value i sits at
// Start + i/Rate seconds. Filtered and score series share this shape.
type ResampledSeries struct {
	Start  time.Time
	Rate   float64
	Values []float64
}

// Len returns the number of ticks.
func (s ResampledSeries) Len() int { return len(s.Values) }

// Time returns the instant of tick i.
func (s ResampledSeries) Time(i int) time.Time {
	return s.Start.Add(time.Duration(math.Round(float64(i) / s.Rate * float64(time.Second))))
}

func (s ResampledSeries) withValues(values []float64) ResampledSeries {
	return ResampledSeries{Start: s.Start, Rate: s.Rate, Values: values}
}

// Peak is a candidate step before debouncing.
type Peak struct {
	Index int       `json:"index"`
	Time  time.Time `json:"time"`
	Score float64   `json:"score"`
}

// StepEvent is one counted step. Confidence carries the score of the peak
// that produced it and is zero when the event did not come from a peak.
type StepEvent struct {
	Time       time.Time `json:"time"`
	Confidence float64   `json:"confidence,omitempty"`
}
