package tuning

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lucasjlepore/stepcount"
)

func TestEmptyFileUsesDefaults(t *testing.T) {
	f, err := Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	cfg, err := f.Config()
	if err != nil {
		t.Fatalf("Config() error: %v", err)
	}
	def := stepcount.DefaultConfig()
	if cfg != def {
		t.Errorf("Config() = %+v, want defaults %+v", cfg, def)
	}
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wrist.json")
	body := `{
  "target_sample_rate_hz": 50,
  "filter_high_cutoff_hz": 4,
  "min_step_interval": "300ms",
  "threshold": {"mode": "adaptive", "fraction": 0.6}
}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write tuning file: %v", err)
	}

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	cfg, err := f.Config()
	if err != nil {
		t.Fatalf("Config() error: %v", err)
	}
	if cfg.TargetSampleRateHz != 50 {
		t.Errorf("TargetSampleRateHz = %v, want 50", cfg.TargetSampleRateHz)
	}
	if cfg.FilterLowCutoffHz != 0.5 {
		t.Errorf("FilterLowCutoffHz = %v, want default 0.5", cfg.FilterLowCutoffHz)
	}
	if cfg.MinStepInterval != 300*time.Millisecond {
		t.Errorf("MinStepInterval = %s, want 300ms", cfg.MinStepInterval)
	}
	a, ok := cfg.Threshold.(stepcount.Adaptive)
	if !ok {
		t.Fatalf("Threshold = %T, want Adaptive", cfg.Threshold)
	}
	if a.Fraction != 0.6 || a.Window != 2*time.Second || a.Floor != 0.01 {
		t.Errorf("Adaptive = %+v, want fraction 0.6 with default window and floor", a)
	}
}

func TestFixedThreshold(t *testing.T) {
	f, err := Parse([]byte(`{"threshold": {"mode": "fixed", "value": 0.2}}`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	cfg, _ := f.Config()
	if got, ok := cfg.Threshold.(stepcount.Fixed); !ok || got.Value != 0.2 {
		t.Errorf("Threshold = %#v, want Fixed{0.2}", cfg.Threshold)
	}
}

func TestParseRejectsInvalidTuning(t *testing.T) {
	cases := map[string]string{
		"bad json":       `{`,
		"bad interval":   `{"min_step_interval": "soon"}`,
		"bad window":     `{"threshold": {"window": "x"}}`,
		"unknown mode":   `{"threshold": {"mode": "median"}}`,
		"fixed no value": `{"threshold": {"mode": "fixed"}}`,
	}
	for name, body := range cases {
		if _, err := Parse([]byte(body)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestParseSurfacesConfigurationKind(t *testing.T) {
	_, err := Parse([]byte(`{"filter_low_cutoff_hz": 3, "filter_high_cutoff_hz": 2}`))
	if !errors.Is(err, stepcount.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	_, err = Parse([]byte(`{"min_step_interval": "-5ms"}`))
	if !errors.Is(err, stepcount.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestLoadChecksExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), ".json") {
		t.Fatalf("expected extension error, got %v", err)
	}
}
