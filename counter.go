package stepcount

import (
	"log/slog"
	"sync"
)

// Counter runs the step pipeline. It memoises filter coefficients per
// {rate, low cutoff, high cutoff}; apart from that cache it holds no state,
// and it is safe for concurrent use.
type Counter struct {
	logger *slog.Logger

	mu      sync.RWMutex
	filters map[filterKey]*bandPass
}

// Option configures a Counter.
type Option func(*Counter)

// WithLogger sets the logger used for per-run debug records.
func WithLogger(l *slog.Logger) Option {
	return func(c *Counter) { c.logger = l }
}

// NewCounter returns a Counter with an empty coefficient cache.
func NewCounter(opts ...Option) *Counter {
	c := &Counter{filters: make(map[filterKey]*bandPass)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var defaultCounter = NewCounter()

// CountSteps runs the pipeline with a process-wide Counter.
func CountSteps(w Window, cfg Config) ([]StepEvent, error) {
	return defaultCounter.CountSteps(w, cfg)
}

// CountSteps validates cfg, then resamples, filters, scores, detects and
// debounces w. It returns either the full event sequence or an *Error; no
// partial result is ever returned. w is not retained.
func (c *Counter) CountSteps(w Window, cfg Config) ([]StepEvent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	resampled, err := Resample(w, cfg.TargetSampleRateHz)
	if err != nil {
		return nil, err
	}
	filtered := c.bandPass(cfg).filter(resampled)
	scores := Score(filtered, cfg.ScoreWindowSize, cfg.ShakePenalty)
	peaks := DetectPeaks(scores, cfg.Threshold)
	kept := Debounce(peaks, cfg.MinStepInterval)

	if c.logger != nil {
		c.logger.Debug("counted steps",
			slog.Int("samples", len(w)),
			slog.Int("ticks", resampled.Len()),
			slog.Int("peaks", len(peaks)),
			slog.Int("steps", len(kept)),
		)
	}
	return Events(kept), nil
}

// Filter band-passes s with the coefficients cfg selects.
func (c *Counter) Filter(s ResampledSeries, cfg Config) (ResampledSeries, error) {
	if err := cfg.Validate(); err != nil {
		return ResampledSeries{}, err
	}
	if s.Rate != cfg.TargetSampleRateHz {
		return ResampledSeries{}, stageErr(StageFilter, ErrInvalidInput, "series rate %v Hz does not match configured %v Hz", s.Rate, cfg.TargetSampleRateHz)
	}
	return c.bandPass(cfg).filter(s), nil
}

func (c *Counter) bandPass(cfg Config) *bandPass {
	key := filterKey{rate: cfg.TargetSampleRateHz, low: cfg.FilterLowCutoffHz, high: cfg.FilterHighCutoffHz}

	c.mu.RLock()
	bp, ok := c.filters[key]
	c.mu.RUnlock()
	if ok {
		return bp
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if bp, ok := c.filters[key]; ok {
		return bp
	}
	bp = newBandPass(key)
	c.filters[key] = bp
	return bp
}
