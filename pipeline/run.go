package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lucasjlepore/stepcount"
	"github.com/lucasjlepore/stepcount/exertion"
	"github.com/lucasjlepore/stepcount/gps"
	"github.com/lucasjlepore/stepcount/ingest"
	"gonum.org/v1/gonum/stat"
)

const (
	summarySchemaVersion = "step_summary_v1"

	defaultNearZeroStepsPerMinute = 2.0

	eventsBaseName = "step_events"
	summaryName    = "step_summary.json"
	notesName      = "step_notes.md"
)

// Run counts steps in an accelerometer CSV and writes all artifacts to
// opts.OutDir.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if strings.TrimSpace(opts.CSVPath) == "" {
		return nil, fmt.Errorf("accelerometer csv path is required")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	format, err := normalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	if err := prepareOutDir(opts.OutDir, opts.Overwrite); err != nil {
		return nil, err
	}

	rec, err := ingest.ReadCSVFile(opts.CSVPath)
	if err != nil {
		return nil, err
	}
	var act *ingest.Activity
	if strings.TrimSpace(opts.FitPath) != "" {
		act, err = ingest.ReadFITFile(opts.FitPath)
		if err != nil {
			return nil, err
		}
	}

	an, err := analyze(ctx, filepath.Base(opts.CSVPath), rec, act, opts.Settings)
	if err != nil {
		return nil, err
	}

	eventsPath := filepath.Join(opts.OutDir, eventsBaseName+"."+format)
	switch format {
	case "csv":
		if err := writeEventsCSV(eventsPath, an.rows); err != nil {
			return nil, fmt.Errorf("write step events csv: %w", err)
		}
	case "parquet":
		if err := writeEventsParquet(eventsPath, an.rows); err != nil {
			return nil, fmt.Errorf("write step events parquet: %w", err)
		}
	}

	summaryPath := filepath.Join(opts.OutDir, summaryName)
	if err := writeJSON(summaryPath, an.summary); err != nil {
		return nil, fmt.Errorf("write %s: %w", summaryName, err)
	}

	notesPath := filepath.Join(opts.OutDir, notesName)
	if err := os.WriteFile(notesPath, []byte(BuildStepNotes(an.summary)+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", notesName, err)
	}

	return &Result{
		OutputDir:   opts.OutDir,
		EventsPath:  eventsPath,
		SummaryPath: summaryPath,
		NotesPath:   notesPath,
		Summary:     an.summary,
		Warnings:    an.summary.Warnings,
	}, nil
}

// RunBytes is Run over in-memory inputs; artifacts are returned instead of
// written.
func RunBytes(ctx context.Context, opts BytesOptions) (*BytesResult, error) {
	if len(opts.CSVData) == 0 {
		return nil, fmt.Errorf("accelerometer csv data is required")
	}
	format, err := normalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	source := strings.TrimSpace(opts.SourceFileName)
	if source == "" {
		source = "input.csv"
	}

	rec, err := ingest.ReadCSV(bytes.NewReader(opts.CSVData))
	if err != nil {
		return nil, err
	}
	var act *ingest.Activity
	if len(opts.FitData) > 0 {
		act, err = ingest.ReadFITBytes(opts.FitData)
		if err != nil {
			return nil, err
		}
	}

	an, err := analyze(ctx, source, rec, act, opts.Settings)
	if err != nil {
		return nil, err
	}

	files := make(map[string][]byte, 3)
	switch format {
	case "csv":
		var buf bytes.Buffer
		if err := encodeEventsCSV(&buf, an.rows); err != nil {
			return nil, fmt.Errorf("encode step events csv: %w", err)
		}
		files[eventsBaseName+".csv"] = buf.Bytes()
	case "parquet":
		data, err := marshalEventsParquet(an.rows)
		if err != nil {
			return nil, fmt.Errorf("encode step events parquet: %w", err)
		}
		files[eventsBaseName+".parquet"] = data
	}

	summary, err := marshalJSON(an.summary)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", summaryName, err)
	}
	files[summaryName] = summary
	files[notesName] = []byte(BuildStepNotes(an.summary) + "\n")

	return &BytesResult{
		Files:    files,
		Summary:  an.summary,
		Warnings: an.summary.Warnings,
	}, nil
}

type analysis struct {
	summary *Summary
	events  []stepcount.StepEvent
	rows    []eventRow
}

func analyze(ctx context.Context, source string, rec *ingest.Recording, act *ingest.Activity, s Settings) (*analysis, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := stepcount.DefaultConfig()
	if s.Config != nil {
		cfg = *s.Config
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	overlap, err := windowOverlap(s.WindowOverlap)
	if err != nil {
		return nil, err
	}
	zone, err := targetZone(s.Profile.TargetZone)
	if err != nil {
		return nil, err
	}
	counter := s.Counter
	if counter == nil {
		counter = stepcount.NewCounter(stepcount.WithLogger(logger))
	}

	var warnings []string
	if rec.SkippedRows > 0 {
		warnings = append(warnings, fmt.Sprintf("skipped %d unparseable csv rows", rec.SkippedRows))
		logger.Warn("skipped csv rows", slog.String("source", source), slog.Int("rows", rec.SkippedRows))
	}
	if err := rec.Samples.Validate(); err != nil {
		return nil, fmt.Errorf("recording %s: %w", source, err)
	}

	spans := splitWindows(rec.Samples,
		durationOr(s.WindowDuration, defaultWindowDuration),
		overlap)
	workers := s.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	events, windowWarnings, err := countWindows(ctx, counter, cfg, spans, workers, logger)
	if err != nil {
		return nil, fmt.Errorf("recording %s: %w", source, err)
	}
	warnings = append(warnings, windowWarnings...)

	start := rec.Samples[0].Time
	end := rec.Samples[len(rec.Samples)-1].Time
	duration := end.Sub(start).Seconds()

	summary := &Summary{
		SchemaVersion:  summarySchemaVersion,
		Source:         source,
		Activity:       s.Activity,
		StartTSUTC:     start.UTC().Format(time.RFC3339Nano),
		EndTSUTC:       end.UTC().Format(time.RFC3339Nano),
		DurationS:      duration,
		Samples:        len(rec.Samples),
		Windows:        len(spans),
		SkippedWindows: len(windowWarnings),
		Steps:          len(events),
		Config:         summarizeConfig(cfg),
	}
	if duration > 0 {
		summary.CadenceSPM = roundToNearest(float64(len(events))/(duration/60), 0.1)
	}
	if len(events) > 0 {
		confidence := make([]float64, len(events))
		for i, e := range events {
			confidence[i] = e.Confidence
		}
		summary.MeanConfidence = stat.Mean(confidence, nil)
	}

	summary.Bouts = InferBouts(events, start, s.BoutGap, s.MinBoutSteps)
	summary.BoutStats = SummarizeBouts(summary.Bouts)

	if rec.HasAnnotations {
		summary.Evaluation = evaluate(rec.Expected, len(events))
	}

	if act != nil {
		if w := applyActivity(summary, act, s, zone, start, end); w != "" {
			logger.Warn(w, slog.String("source", source))
			warnings = append(warnings, w)
		}
	}
	summary.TotalSteps = summary.Steps
	if summary.Exertion != nil && summary.Exertion.Applied {
		summary.TotalSteps += summary.Exertion.VirtualSteps
	}
	summary.Warnings = warnings

	logger.Info("steps counted",
		slog.String("source", source),
		slog.Int("samples", summary.Samples),
		slog.Int("windows", summary.Windows),
		slog.Int("steps", summary.Steps),
		slog.Int("bouts", summary.BoutStats.Count),
	)

	return &analysis{
		summary: summary,
		events:  events,
		rows:    buildEventRows(events, start, summary.Bouts),
	}, nil
}

// applyActivity fills the GPS and exertion sections from a FIT activity and
// returns a warning when the profile is too thin to use it.
func applyActivity(summary *Summary, act *ingest.Activity, s Settings, zone exertion.Zone, start, end time.Time) string {
	var warning string
	if len(act.Points) >= 2 {
		if s.Profile.HeightM > 0 {
			n := gps.StepsFromGPS(act.Points, s.Profile.HeightM, s.GPSMaxKmh)
			summary.GPSSteps = &n
		} else {
			warning = "gps fixes present but height is unset; gps steps skipped"
		}
	}

	hr := act.HeartRateBetween(start, end.Add(time.Nanosecond))
	if len(hr) == 0 {
		return warning
	}
	nearZero := s.NearZeroStepsPerMinute
	if nearZero <= 0 {
		nearZero = defaultNearZeroStepsPerMinute
	}
	summary.Exertion = decideVirtualSteps(stat.Mean(hr, nil), summary.CadenceSPM, nearZero, s.Profile, zone)
	return warning
}

// decideVirtualSteps credits MET-based steps when the wearer barely moved
// while their heart rate sat at or above the zone target.
func decideVirtualSteps(avgHR, cadence, nearZero float64, p Profile, zone exertion.Zone) *ExertionSummary {
	out := &ExertionSummary{AvgHeartRateBPM: avgHR, TargetZone: zone.String()}
	if p.AgeYears <= 0 || p.RestingHRBPM <= 0 {
		out.Reason = "age and resting heart rate required"
		return out
	}
	out.TargetHRBPM = exertion.TargetHeartRate(p.AgeYears, p.RestingHRBPM, zone)
	switch {
	case cadence >= nearZero:
		out.Reason = "cadence above near-zero"
	case avgHR < out.TargetHRBPM:
		out.Reason = fmt.Sprintf("heart rate below %s target", zone)
	case p.MET <= 0 || p.WeightKG <= 0:
		out.Reason = "met and weight required"
	default:
		out.VirtualSteps = exertion.VirtualSteps(p.MET, p.WeightKG)
		out.Applied = true
		out.Reason = "low cadence with elevated heart rate"
	}
	return out
}

func evaluate(expected, actual int) *Evaluation {
	e := &Evaluation{Expected: expected, Actual: actual, Precision: 1}
	lo, hi := min(expected, actual), max(expected, actual)
	if hi > 0 {
		e.Precision = float64(lo) / float64(hi)
	}
	return e
}

func summarizeConfig(cfg stepcount.Config) ConfigSummary {
	return ConfigSummary{
		TargetSampleRateHz: cfg.TargetSampleRateHz,
		FilterLowCutoffHz:  cfg.FilterLowCutoffHz,
		FilterHighCutoffHz: cfg.FilterHighCutoffHz,
		ScoreWindowSize:    cfg.ScoreWindowSize,
		ShakePenalty:       cfg.ShakePenalty,
		Threshold:          cfg.Threshold.String(),
		MinStepIntervalMS:  cfg.MinStepInterval.Milliseconds(),
	}
}

// boutEdgeTolerance absorbs float error when matching event offsets to
// bout bounds.
const boutEdgeTolerance = 1e-9

// eventRow is one line of step_events.
type eventRow struct {
	Index      int
	TSUTCISO   string
	ElapsedS   float64
	Confidence float64
	Bout       int // 0 when outside every bout
}

func buildEventRows(events []stepcount.StepEvent, origin time.Time, bouts []Bout) []eventRow {
	rows := make([]eventRow, len(events))
	b := 0
	for i, e := range events {
		elapsed := e.Time.Sub(origin).Seconds()
		for b < len(bouts) && elapsed > bouts[b].StartOffsetS+bouts[b].DurationS+boutEdgeTolerance {
			b++
		}
		bout := 0
		if b < len(bouts) && elapsed >= bouts[b].StartOffsetS-boutEdgeTolerance {
			bout = bouts[b].Index
		}
		rows[i] = eventRow{
			Index:      i,
			TSUTCISO:   e.Time.UTC().Format(time.RFC3339Nano),
			ElapsedS:   elapsed,
			Confidence: e.Confidence,
			Bout:       bout,
		}
	}
	return rows
}

func normalizeFormat(format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "parquet"
	}
	if format != "parquet" && format != "csv" {
		return "", fmt.Errorf("unsupported format %q (expected parquet|csv)", format)
	}
	return format, nil
}

func prepareOutDir(dir string, overwrite bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if overwrite {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("output directory %s is not empty (set overwrite to replace artifacts)", dir)
	}
	return nil
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func windowOverlap(d *time.Duration) (time.Duration, error) {
	if d == nil {
		return defaultWindowOverlap, nil
	}
	if *d < 0 {
		return 0, fmt.Errorf("window overlap must not be negative, got %s", *d)
	}
	return *d, nil
}

func targetZone(name string) (exertion.Zone, error) {
	if strings.TrimSpace(name) == "" {
		return exertion.ZoneWarmUp, nil
	}
	zone, err := exertion.ParseZone(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return 0, fmt.Errorf("profile target zone: %w", err)
	}
	return zone, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var eventsHeader = []string{"index", "ts_utc_iso", "elapsed_s", "confidence", "bout"}

func writeEventsCSV(path string, rows []eventRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return encodeEventsCSV(f, rows)
}

func encodeEventsCSV(out io.Writer, rows []eventRow) error {
	w := csv.NewWriter(out)
	if err := w.Write(eventsHeader); err != nil {
		return err
	}
	for _, r := range rows {
		row := []string{
			strconv.Itoa(r.Index),
			r.TSUTCISO,
			formatFloat(r.ElapsedS),
			formatFloat(r.Confidence),
			strconv.Itoa(r.Bout),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
