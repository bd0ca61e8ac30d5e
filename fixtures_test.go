package stepcount

import (
	"math"
	"time"
)

const gravity = 9.81

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func at(seconds float64) time.Time {
	return epoch.Add(time.Duration(math.Round(seconds * float64(time.Second))))
}

// synthWindow samples magnitude(t) on the z axis at rate Hz for seconds,
// endpoints included.
func synthWindow(rate, seconds float64, magnitude func(t float64) float64) Window {
	n := int(math.Round(seconds*rate)) + 1
	w := make(Window, n)
	for k := range w {
		t := float64(k) / rate
		w[k] = Sample{Time: at(t), Accel: Vector{0, 0, magnitude(t)}}
	}
	return w
}

func walking(amplitude float64) func(float64) float64 {
	return func(t float64) float64 {
		return gravity + amplitude*math.Sin(2*math.Pi*t)
	}
}

// bump is a raised cosine of the given height centred at c with half-width hw.
func bump(t, c, hw, height float64) float64 {
	d := math.Abs(t - c)
	if d >= hw {
		return 0
	}
	return height * (1 + math.Cos(math.Pi*d/hw)) / 2
}

func eventTimes(events []StepEvent) []float64 {
	out := make([]float64, len(events))
	for i, e := range events {
		out[i] = e.Time.Sub(epoch).Seconds()
	}
	return out
}
