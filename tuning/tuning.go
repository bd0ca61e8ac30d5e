// Package tuning loads step-counter tuning from JSON files.
//
// Every field is optional. Omitted fields fall back to stepcount.DefaultConfig,
// so a partial file only overrides what it names.
package tuning

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lucasjlepore/stepcount"
)

const maxFileSize = 1 << 20

// Threshold modes accepted in Threshold.Mode.
const (
	ModeFixed    = "fixed"
	ModeAdaptive = "adaptive"
)

// File is the on-disk tuning schema.
type File struct {
	TargetSampleRateHz *float64   `json:"target_sample_rate_hz,omitempty"`
	FilterLowCutoffHz  *float64   `json:"filter_low_cutoff_hz,omitempty"`
	FilterHighCutoffHz *float64   `json:"filter_high_cutoff_hz,omitempty"`
	ScoreWindowSize    *int       `json:"score_window_size,omitempty"`
	ShakePenalty       *float64   `json:"shake_penalty,omitempty"`
	Threshold          *Threshold `json:"threshold,omitempty"`
	MinStepInterval    *string    `json:"min_step_interval,omitempty"` // duration string like "250ms"
}

// Threshold selects the peak threshold mode. Value applies to "fixed";
// Window, Fraction and Floor apply to "adaptive".
type Threshold struct {
	Mode     string   `json:"mode"`
	Value    *float64 `json:"value,omitempty"`
	Window   *string  `json:"window,omitempty"` // duration string like "2s"
	Fraction *float64 `json:"fraction,omitempty"`
	Floor    *float64 `json:"floor,omitempty"`
}

// Load reads and validates a tuning file.
func Load(path string) (*File, error) {
	clean := filepath.Clean(path)
	if ext := filepath.Ext(clean); ext != ".json" {
		return nil, fmt.Errorf("tuning file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(clean)
	if err != nil {
		return nil, fmt.Errorf("stat tuning file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("tuning file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("read tuning file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates tuning JSON.
func Parse(data []byte) (*File, error) {
	f := &File{}
	if err := json.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse tuning JSON: %w", err)
	}
	if _, err := f.Config(); err != nil {
		return nil, fmt.Errorf("invalid tuning: %w", err)
	}
	return f, nil
}

// Config merges f over stepcount.DefaultConfig and validates the result.
func (f *File) Config() (stepcount.Config, error) {
	cfg := stepcount.DefaultConfig()
	cfg.TargetSampleRateHz = f.GetTargetSampleRateHz()
	cfg.FilterLowCutoffHz = f.GetFilterLowCutoffHz()
	cfg.FilterHighCutoffHz = f.GetFilterHighCutoffHz()
	cfg.ScoreWindowSize = f.GetScoreWindowSize()
	cfg.ShakePenalty = f.GetShakePenalty()

	interval, err := f.GetMinStepInterval()
	if err != nil {
		return stepcount.Config{}, err
	}
	cfg.MinStepInterval = interval

	mode, err := f.Threshold.mode()
	if err != nil {
		return stepcount.Config{}, err
	}
	if mode != nil {
		cfg.Threshold = mode
	}

	if err := cfg.Validate(); err != nil {
		return stepcount.Config{}, err
	}
	return cfg, nil
}

func (f *File) GetTargetSampleRateHz() float64 {
	if f.TargetSampleRateHz == nil {
		return stepcount.DefaultConfig().TargetSampleRateHz
	}
	return *f.TargetSampleRateHz
}

func (f *File) GetFilterLowCutoffHz() float64 {
	if f.FilterLowCutoffHz == nil {
		return stepcount.DefaultConfig().FilterLowCutoffHz
	}
	return *f.FilterLowCutoffHz
}

func (f *File) GetFilterHighCutoffHz() float64 {
	if f.FilterHighCutoffHz == nil {
		return stepcount.DefaultConfig().FilterHighCutoffHz
	}
	return *f.FilterHighCutoffHz
}

func (f *File) GetScoreWindowSize() int {
	if f.ScoreWindowSize == nil {
		return stepcount.DefaultConfig().ScoreWindowSize
	}
	return *f.ScoreWindowSize
}

func (f *File) GetShakePenalty() float64 {
	if f.ShakePenalty == nil {
		return stepcount.DefaultConfig().ShakePenalty
	}
	return *f.ShakePenalty
}

// GetMinStepInterval parses min_step_interval, defaulting when unset.
func (f *File) GetMinStepInterval() (time.Duration, error) {
	if f.MinStepInterval == nil || *f.MinStepInterval == "" {
		return stepcount.DefaultConfig().MinStepInterval, nil
	}
	d, err := time.ParseDuration(*f.MinStepInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid min_step_interval %q: %w", *f.MinStepInterval, err)
	}
	return d, nil
}

// mode returns nil when t is nil so the default mode is kept.
func (t *Threshold) mode() (stepcount.ThresholdMode, error) {
	if t == nil {
		return nil, nil
	}
	switch strings.ToLower(strings.TrimSpace(t.Mode)) {
	case ModeFixed:
		if t.Value == nil {
			return nil, fmt.Errorf("fixed threshold requires value")
		}
		return stepcount.Fixed{Value: *t.Value}, nil
	case ModeAdaptive, "":
		def, _ := stepcount.DefaultConfig().Threshold.(stepcount.Adaptive)
		a := def
		if t.Window != nil && *t.Window != "" {
			d, err := time.ParseDuration(*t.Window)
			if err != nil {
				return nil, fmt.Errorf("invalid threshold window %q: %w", *t.Window, err)
			}
			a.Window = d
		}
		if t.Fraction != nil {
			a.Fraction = *t.Fraction
		}
		if t.Floor != nil {
			a.Floor = *t.Floor
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unsupported threshold mode %q (expected fixed|adaptive)", t.Mode)
	}
}
