package pipeline

import (
	"log/slog"
	"time"

	"github.com/lucasjlepore/stepcount"
)

// Settings are the analysis knobs shared by Run and RunBytes.
type Settings struct {
	// Config tunes the core counter. Nil selects stepcount.DefaultConfig.
	Config *stepcount.Config
	// Activity is an externally classified label copied into the summary.
	Activity string
	Profile  Profile

	WindowDuration time.Duration // default 5m
	// WindowOverlap is the context added on each side of a window. Nil
	// selects 10s; a zero value disables overlap.
	WindowOverlap          *time.Duration
	Workers                int           // default 4
	BoutGap                time.Duration // default 3s
	MinBoutSteps           int           // default 6
	NearZeroStepsPerMinute float64       // default 2
	GPSMaxKmh              float64       // default gps.DefaultMaxWalkingKmh

	// Counter is reused across runs when set so its coefficient cache is shared.
	Counter *stepcount.Counter
	Logger  *slog.Logger
}

// Profile carries wearer attributes needed by the GPS and virtual-step
// estimates. Zero values disable the estimates that need them.
type Profile struct {
	AgeYears     float64 `json:"age_years,omitempty"`
	RestingHRBPM float64 `json:"resting_hr_bpm,omitempty"`
	WeightKG     float64 `json:"weight_kg,omitempty"`
	HeightM      float64 `json:"height_m,omitempty"`
	MET          float64 `json:"met,omitempty"`
	// TargetZone names the intensity zone heart rate must reach before
	// virtual steps are credited. Empty selects warm_up.
	TargetZone string `json:"target_zone,omitempty"`
}

// Options configures the stepcount file pipeline.
type Options struct {
	Settings

	CSVPath   string // accelerometer recording
	FitPath   string // optional FIT activity for heart rate and GPS
	OutDir    string
	Format    string // parquet|csv
	Overwrite bool
}

// Result returns generated output paths.
type Result struct {
	OutputDir   string   `json:"output_dir"`
	EventsPath  string   `json:"events_path"`
	SummaryPath string   `json:"summary_path"`
	NotesPath   string   `json:"notes_path"`
	Summary     *Summary `json:"summary"`
	Warnings    []string `json:"warnings,omitempty"`
}

// BytesOptions configures an in-memory run.
type BytesOptions struct {
	Settings

	SourceFileName string
	CSVData        []byte
	FitData        []byte
	Format         string // parquet|csv
}

// BytesResult holds artifacts keyed by file name.
type BytesResult struct {
	Files    map[string][]byte
	Summary  *Summary
	Warnings []string
}

// Summary is written to step_summary.json.
type Summary struct {
	SchemaVersion  string           `json:"schema_version"`
	Source         string           `json:"source"`
	Activity       string           `json:"activity,omitempty"`
	StartTSUTC     string           `json:"start_ts_utc"`
	EndTSUTC       string           `json:"end_ts_utc"`
	DurationS      float64          `json:"duration_s"`
	Samples        int              `json:"samples"`
	Windows        int              `json:"windows"`
	SkippedWindows int              `json:"skipped_windows,omitempty"`
	Steps          int              `json:"steps"`
	CadenceSPM     float64          `json:"cadence_spm"`
	MeanConfidence float64          `json:"mean_confidence"`
	Bouts          []Bout           `json:"bouts,omitempty"`
	BoutStats      BoutStats        `json:"bout_stats"`
	Evaluation     *Evaluation      `json:"evaluation,omitempty"`
	GPSSteps       *int             `json:"gps_steps,omitempty"`
	Exertion       *ExertionSummary `json:"exertion,omitempty"`
	TotalSteps     int              `json:"total_steps"`
	Config         ConfigSummary    `json:"config"`
	Warnings       []string         `json:"warnings,omitempty"`
}

// Bout is a run of closely spaced steps.
type Bout struct {
	Index          int     `json:"index"`
	StartTSUTC     string  `json:"start_ts_utc"`
	EndTSUTC       string  `json:"end_ts_utc"`
	StartOffsetS   float64 `json:"start_offset_s"`
	DurationS      float64 `json:"duration_s"`
	Steps          int     `json:"steps"`
	CadenceSPM     float64 `json:"cadence_spm"`
	IntervalCV     float64 `json:"interval_cv"`
	MeanConfidence float64 `json:"mean_confidence"`
}

// BoutStats aggregates bouts.
type BoutStats struct {
	Count            int     `json:"count"`
	StepsInBouts     int     `json:"steps_in_bouts"`
	MeanCadenceSPM   float64 `json:"mean_cadence_spm"`
	CadenceStdDevSPM float64 `json:"cadence_stddev_spm"`
	LongestBoutS     float64 `json:"longest_bout_s"`
}

// Evaluation compares the count against annotated ground truth.
type Evaluation struct {
	Expected  int     `json:"expected"`
	Actual    int     `json:"actual"`
	Precision float64 `json:"precision"`
}

// ExertionSummary reports the virtual-step decision.
type ExertionSummary struct {
	AvgHeartRateBPM float64 `json:"avg_hr_bpm"`
	TargetZone      string  `json:"target_zone"`
	TargetHRBPM     float64 `json:"target_hr_bpm"`
	VirtualSteps    int     `json:"virtual_steps"`
	Applied         bool    `json:"applied"`
	Reason          string  `json:"reason"`
}

// ConfigSummary records the tuning a run used.
type ConfigSummary struct {
	TargetSampleRateHz float64 `json:"target_sample_rate_hz"`
	FilterLowCutoffHz  float64 `json:"filter_low_cutoff_hz"`
	FilterHighCutoffHz float64 `json:"filter_high_cutoff_hz"`
	ScoreWindowSize    int     `json:"score_window_size"`
	ShakePenalty       float64 `json:"shake_penalty"`
	Threshold          string  `json:"threshold"`
	MinStepIntervalMS  int64   `json:"min_step_interval_ms"`
}
