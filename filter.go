package stepcount

import "math"

// butterworthQ is the quality factor of a 2nd-order Butterworth section.
const butterworthQ = math.Sqrt2 / 2

// biquad holds normalised coefficients (a0 == 1) of one 2nd-order section.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

func lowPassBiquad(cutoff, rate float64) biquad {
	w0 := 2 * math.Pi * cutoff / rate
	cos, alpha := math.Cos(w0), math.Sin(w0)/(2*butterworthQ)
	a0 := 1 + alpha
	return biquad{
		b0: (1 - cos) / 2 / a0,
		b1: (1 - cos) / a0,
		b2: (1 - cos) / 2 / a0,
		a1: -2 * cos / a0,
		a2: (1 - alpha) / a0,
	}
}

func highPassBiquad(cutoff, rate float64) biquad {
	w0 := 2 * math.Pi * cutoff / rate
	cos, alpha := math.Cos(w0), math.Sin(w0)/(2*butterworthQ)
	a0 := 1 + alpha
	return biquad{
		b0: (1 + cos) / 2 / a0,
		b1: -(1 + cos) / a0,
		b2: (1 + cos) / 2 / a0,
		a1: -2 * cos / a0,
		a2: (1 - alpha) / a0,
	}
}

// apply runs the section over in, transposed direct form II, zero state.
func (q biquad) apply(in []float64) []float64 {
	out := make([]float64, len(in))
	var z1, z2 float64
	for i, x := range in {
		y := q.b0*x + z1
		z1 = q.b1*x - q.a1*y + z2
		z2 = q.b2*x - q.a2*y
		out[i] = y
	}
	return out
}

// bandPass is a high-pass section followed by a low-pass section. Values are
// immutable once built, so one instance may serve concurrent runs.
type bandPass struct {
	highPass biquad
	lowPass  biquad
}

type filterKey struct {
	rate, low, high float64
}

func newBandPass(k filterKey) *bandPass {
	return &bandPass{
		highPass: highPassBiquad(k.low, k.rate),
		lowPass:  lowPassBiquad(k.high, k.rate),
	}
}

// filter removes the gravity offset and sensor noise from s. The first value
// is subtracted before filtering so a constant signal maps to exactly zero;
// the start-up transient of the sections is otherwise left in place and may
// hide a step in the first second of the window.
func (bp *bandPass) filter(s ResampledSeries) ResampledSeries {
	if len(s.Values) == 0 {
		return s.withValues(nil)
	}
	base := s.Values[0]
	centred := make([]float64, len(s.Values))
	for i, v := range s.Values {
		centred[i] = v - base
	}
	return s.withValues(bp.lowPass.apply(bp.highPass.apply(centred)))
}
