package pipeline

import (
	"math"
	"time"

	"github.com/lucasjlepore/stepcount"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	defaultBoutGap      = 3 * time.Second
	defaultMinBoutSteps = 6
)

// InferBouts groups events into walking bouts. Consecutive events at most
// gap apart share a bout; bouts with fewer than minSteps events are dropped.
// Offsets are measured from origin.
func InferBouts(events []stepcount.StepEvent, origin time.Time, gap time.Duration, minSteps int) []Bout {
	if gap <= 0 {
		gap = defaultBoutGap
	}
	if minSteps < 2 {
		minSteps = 2
	}

	var bouts []Bout
	flush := func(run []stepcount.StepEvent) {
		if len(run) < minSteps {
			return
		}
		bouts = append(bouts, buildBout(len(bouts)+1, run, origin))
	}

	start := 0
	for i := 1; i <= len(events); i++ {
		if i == len(events) || events[i].Time.Sub(events[i-1].Time) > gap {
			flush(events[start:i])
			start = i
		}
	}
	return bouts
}

func buildBout(index int, run []stepcount.StepEvent, origin time.Time) Bout {
	first, last := run[0].Time, run[len(run)-1].Time

	intervals := make([]float64, len(run)-1)
	for i := 1; i < len(run); i++ {
		intervals[i-1] = run[i].Time.Sub(run[i-1].Time).Seconds()
	}
	meanInterval, sdInterval := stat.MeanStdDev(intervals, nil)

	confidence := make([]float64, len(run))
	for i, e := range run {
		confidence[i] = e.Confidence
	}

	b := Bout{
		Index:          index,
		StartTSUTC:     first.UTC().Format(time.RFC3339Nano),
		EndTSUTC:       last.UTC().Format(time.RFC3339Nano),
		StartOffsetS:   first.Sub(origin).Seconds(),
		DurationS:      last.Sub(first).Seconds(),
		Steps:          len(run),
		MeanConfidence: stat.Mean(confidence, nil),
	}
	if meanInterval > 0 {
		b.CadenceSPM = 60 / meanInterval
		if len(intervals) > 1 {
			b.IntervalCV = sdInterval / meanInterval
		}
	}
	return b
}

// SummarizeBouts aggregates bout cadence and length.
func SummarizeBouts(bouts []Bout) BoutStats {
	s := BoutStats{Count: len(bouts)}
	if len(bouts) == 0 {
		return s
	}
	cadence := make([]float64, len(bouts))
	durations := make([]float64, len(bouts))
	for i, b := range bouts {
		s.StepsInBouts += b.Steps
		cadence[i] = b.CadenceSPM
		durations[i] = b.DurationS
	}
	s.MeanCadenceSPM = stat.Mean(cadence, nil)
	if len(bouts) > 1 {
		s.CadenceStdDevSPM = stat.StdDev(cadence, nil)
	}
	s.LongestBoutS = floats.Max(durations)
	return s
}

func roundToNearest(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return math.Round(v/step) * step
}
