package stepcount

import (
	"math"

	"gonum.org/v1/gonum/interp"
)

// tickEpsilon absorbs float error when the span is an exact multiple of the
// tick period.
const tickEpsilon = 1e-9

// MaxTicks bounds the length of one resampled series. At 25 Hz it covers
// more than a week.
const MaxTicks = 1 << 24

// Resample reduces each sample to its magnitude and linearly interpolates the
// result onto ticks spaced 1/rate seconds apart, starting at the first sample.
// The series has floor(span*rate)+1 ticks and never extrapolates.
func Resample(w Window, rate float64) (ResampledSeries, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return ResampledSeries{}, stageErr(StageResample, ErrInvalidInput, "sample rate must be positive, got %v", rate)
	}
	if err := w.Validate(); err != nil {
		return ResampledSeries{}, err
	}

	start := w[0].Time
	xs := make([]float64, len(w))
	ys := make([]float64, len(w))
	for i, s := range w {
		xs[i] = s.Time.Sub(start).Seconds()
		ys[i] = s.Accel.Norm()
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return ResampledSeries{}, stageErr(StageResample, ErrInvalidInput, "interpolate: %v", err)
	}

	span := xs[len(xs)-1]
	ticks := math.Floor(span*rate+tickEpsilon) + 1
	if ticks > MaxTicks {
		return ResampledSeries{}, stageErr(StageResample, ErrConfiguration, "%.0f ticks at %v Hz exceeds the limit of %d; shorten the window or lower the rate", ticks, rate, MaxTicks)
	}
	n := int(ticks)
	values := make([]float64, n)
	for i := range values {
		values[i] = pl.Predict(float64(i) / rate)
	}
	return ResampledSeries{Start: start, Rate: rate, Values: values}, nil
}

// Validate checks that w has at least two samples with finite readings and
// strictly increasing timestamps.
func (w Window) Validate() error {
	if len(w) < 2 {
		return stageErr(StageResample, ErrInsufficientData, "need at least 2 samples, got %d", len(w))
	}
	for i, s := range w {
		if !s.Accel.finite() {
			return stageErr(StageResample, ErrInvalidInput, "sample %d has a non-finite acceleration %v", i, s.Accel)
		}
		if i == 0 {
			continue
		}
		prev := w[i-1].Time
		switch {
		case s.Time.Equal(prev):
			return stageErr(StageResample, ErrInvalidInput, "sample %d duplicates timestamp %s", i, s.Time.Format("15:04:05.000000"))
		case s.Time.Before(prev):
			return stageErr(StageResample, ErrInvalidInput, "sample %d at %s precedes sample %d", i, s.Time.Format("15:04:05.000000"), i-1)
		}
	}
	return nil
}
