package stepcount

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		kind   error
	}{
		{"zero rate", func(c *Config) { c.TargetSampleRateHz = 0 }, ErrInvalidInput},
		{"rate above cap", func(c *Config) { c.TargetSampleRateHz = 1e12 }, ErrConfiguration},
		{"negative low cutoff", func(c *Config) { c.FilterLowCutoffHz = -1 }, ErrInvalidInput},
		{"nan high cutoff", func(c *Config) { c.FilterHighCutoffHz = math.NaN() }, ErrInvalidInput},
		{"empty pass-band", func(c *Config) { c.FilterLowCutoffHz = 4 }, ErrConfiguration},
		{"above nyquist", func(c *Config) { c.FilterHighCutoffHz = 12.5 }, ErrConfiguration},
		{"zero score window", func(c *Config) { c.ScoreWindowSize = 0 }, ErrInvalidInput},
		{"negative penalty", func(c *Config) { c.ShakePenalty = -1 }, ErrConfiguration},
		{"negative interval", func(c *Config) { c.MinStepInterval = -time.Millisecond }, ErrInvalidInput},
		{"no threshold", func(c *Config) { c.Threshold = nil }, ErrConfiguration},
		{"negative fixed", func(c *Config) { c.Threshold = Fixed{Value: -1} }, ErrConfiguration},
		{"zero fraction", func(c *Config) { c.Threshold = Adaptive{Window: time.Second} }, ErrConfiguration},
		{"fraction of one", func(c *Config) { c.Threshold = Adaptive{Window: time.Second, Fraction: 1} }, ErrConfiguration},
		{"fraction above one", func(c *Config) { c.Threshold = Adaptive{Window: time.Second, Fraction: 1.5} }, ErrConfiguration},
		{"zero adaptive window", func(c *Config) { c.Threshold = Adaptive{Fraction: 0.5} }, ErrConfiguration},
		{"negative floor", func(c *Config) { c.Threshold = Adaptive{Window: time.Second, Fraction: 0.5, Floor: -1} }, ErrConfiguration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, tc.kind)
		})
	}
}

func TestConfigAllowsZeroInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinStepInterval = 0
	cfg.Threshold = Fixed{Value: 0}
	assert.NoError(t, cfg.Validate())
}

func TestAdaptiveFractionJustBelowOneCounts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Threshold = Adaptive{Window: 2 * time.Second, Fraction: 0.99, Floor: 0.01}
	require.NoError(t, cfg.Validate())

	events, err := CountSteps(synthWindow(25, 10, walking(3)), cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, events)
}

func TestThresholdModeString(t *testing.T) {
	assert.Equal(t, "fixed(0.2)", Fixed{Value: 0.2}.String())
	assert.Equal(t, "adaptive(window=2s fraction=0.5 floor=0.01)", DefaultConfig().Threshold.String())
}
