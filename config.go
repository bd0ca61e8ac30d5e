package stepcount

import (
	"fmt"
	"math"
	"time"
)

// Config holds every tuning parameter of a run. It is a plain value: callers
// running windows concurrently with different tuning simply pass different
// values.
type Config struct {
	TargetSampleRateHz float64
	FilterLowCutoffHz  float64
	FilterHighCutoffHz float64

	// ScoreWindowSize is the trailing window, in ticks, used by the shake
	// penalty of the scorer.
	ScoreWindowSize int
	// ShakePenalty scales the trailing variance subtracted from each score.
	// Zero disables the penalty.
	ShakePenalty float64

	Threshold ThresholdMode

	MinStepInterval time.Duration
}

// ThresholdMode selects how the peak detector decides a local maximum is
// tall enough. It is either Fixed or Adaptive.
type ThresholdMode interface {
	fmt.Stringer
	thresholds(scores []float64, rate float64) []float64
	validate() error
}

// Fixed accepts peaks whose score exceeds Value.
type Fixed struct {
	Value float64
}

// Adaptive accepts peaks whose score exceeds
// max(Floor, Fraction * max(score over the trailing Window)).
type Adaptive struct {
	Window   time.Duration
	Fraction float64
	Floor    float64
}

// MaxTargetSampleRateHz bounds the resampling rate. Wrist accelerometers
// rarely sample above a few hundred hertz.
const MaxTargetSampleRateHz = 1000

// DefaultConfig returns the tuning used when nothing else is known about the
// wearer or device placement.
func DefaultConfig() Config {
	return Config{
		TargetSampleRateHz: 25,
		FilterLowCutoffHz:  0.5,
		FilterHighCutoffHz: 3,
		ScoreWindowSize:    5,
		ShakePenalty:       0,
		Threshold: Adaptive{
			Window:   2 * time.Second,
			Fraction: 0.5,
			Floor:    0.01,
		},
		MinStepInterval: 250 * time.Millisecond,
	}
}

// Validate checks c without looking at any samples.
func (c Config) Validate() error {
	checks := []struct {
		name  string
		value float64
	}{
		{"target_sample_rate_hz", c.TargetSampleRateHz},
		{"filter_low_cutoff_hz", c.FilterLowCutoffHz},
		{"filter_high_cutoff_hz", c.FilterHighCutoffHz},
	}
	for _, chk := range checks {
		if math.IsNaN(chk.value) || math.IsInf(chk.value, 0) || chk.value <= 0 {
			return stageErr(StageConfig, ErrInvalidInput, "%s must be positive and finite, got %v", chk.name, chk.value)
		}
	}
	if c.TargetSampleRateHz > MaxTargetSampleRateHz {
		return stageErr(StageConfig, ErrConfiguration, "target_sample_rate_hz %v exceeds %v Hz", c.TargetSampleRateHz, float64(MaxTargetSampleRateHz))
	}
	if c.FilterLowCutoffHz >= c.FilterHighCutoffHz {
		return stageErr(StageConfig, ErrConfiguration, "empty pass-band: low cutoff %v Hz >= high cutoff %v Hz", c.FilterLowCutoffHz, c.FilterHighCutoffHz)
	}
	if nyquist := c.TargetSampleRateHz / 2; c.FilterHighCutoffHz >= nyquist {
		return stageErr(StageConfig, ErrConfiguration, "high cutoff %v Hz must be below nyquist %v Hz", c.FilterHighCutoffHz, nyquist)
	}
	if c.ScoreWindowSize <= 0 {
		return stageErr(StageConfig, ErrInvalidInput, "score_window_size must be positive, got %d", c.ScoreWindowSize)
	}
	if math.IsNaN(c.ShakePenalty) || math.IsInf(c.ShakePenalty, 0) || c.ShakePenalty < 0 {
		return stageErr(StageConfig, ErrConfiguration, "shake_penalty must be a finite non-negative number, got %v", c.ShakePenalty)
	}
	if c.MinStepInterval < 0 {
		return stageErr(StageConfig, ErrInvalidInput, "min_step_interval must not be negative, got %s", c.MinStepInterval)
	}
	if c.Threshold == nil {
		return stageErr(StageConfig, ErrConfiguration, "threshold mode is required")
	}
	return c.Threshold.validate()
}

func (f Fixed) String() string {
	return fmt.Sprintf("fixed(%g)", f.Value)
}

func (a Adaptive) String() string {
	return fmt.Sprintf("adaptive(window=%s fraction=%g floor=%g)", a.Window, a.Fraction, a.Floor)
}

func (f Fixed) validate() error {
	if math.IsNaN(f.Value) || math.IsInf(f.Value, 0) || f.Value < 0 {
		return stageErr(StageConfig, ErrConfiguration, "fixed threshold must be a finite non-negative number, got %v", f.Value)
	}
	return nil
}

func (a Adaptive) validate() error {
	if a.Window <= 0 {
		return stageErr(StageConfig, ErrConfiguration, "adaptive window must be positive, got %s", a.Window)
	}
	// The rolling max includes the current tick, so a fraction of one or more
	// could never be exceeded.
	if math.IsNaN(a.Fraction) || a.Fraction <= 0 || a.Fraction >= 1 {
		return stageErr(StageConfig, ErrConfiguration, "adaptive fraction must be in (0, 1), got %v", a.Fraction)
	}
	if math.IsNaN(a.Floor) || math.IsInf(a.Floor, 0) || a.Floor < 0 {
		return stageErr(StageConfig, ErrConfiguration, "adaptive floor must be a finite non-negative number, got %v", a.Floor)
	}
	return nil
}
