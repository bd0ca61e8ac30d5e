package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/lucasjlepore/stepcount"
	"github.com/lucasjlepore/stepcount/internal/monitoring"
	"github.com/tormoder/fit"
)

var recordingStart = time.Date(2026, 2, 26, 23, 0, 0, 0, time.UTC)

type burst struct {
	offset  float64 // seconds from recordingStart
	seconds float64
	walking bool
}

// buildTestCSV samples 25 Hz bursts. Walking bursts are a 1 Hz sine on z
// with an annotation at every crest.
func buildTestCSV(t *testing.T, bursts ...burst) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"timestamp", "x", "y", "z", "annotation"}); err != nil {
		t.Fatalf("write header: %v", err)
	}
	const rate = 25.0
	for _, b := range bursts {
		n := int(math.Round(b.seconds*rate)) + 1
		for k := range n {
			local := float64(k) / rate
			z := 9.81
			annotation := 0
			if b.walking {
				z += 3 * math.Sin(2*math.Pi*local)
				if k%25 == 6 {
					annotation = 1
				}
			}
			ts := recordingStart.Add(time.Duration(math.Round((b.offset + local) * float64(time.Second))))
			row := []string{ts.Format(time.RFC3339Nano), "0", "0", fmt.Sprintf("%.6f", z), fmt.Sprint(annotation)}
			if err := w.Write(row); err != nil {
				t.Fatalf("write row: %v", err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("flush csv: %v", err)
	}
	return buf.Bytes()
}

func buildTestFIT(t *testing.T, bpm uint8) []byte {
	t.Helper()

	header := fit.NewHeader(fit.V20, true)
	file, err := fit.NewFile(fit.FileTypeActivity, header)
	if err != nil {
		t.Fatalf("new fit file: %v", err)
	}
	activity, err := file.Activity()
	if err != nil {
		t.Fatalf("activity accessor: %v", err)
	}

	for i := range 10 {
		record := fit.NewRecordMsg()
		record.Timestamp = recordingStart.Add(time.Duration(i*3) * time.Second)
		record.HeartRate = bpm
		activity.Records = append(activity.Records, record)
	}
	for i, p := range [][2]float64{
		{49.235835445219784, 28.48586563389628},
		{49.23297532196681, 28.493329182275833},
	} {
		record := fit.NewRecordMsg()
		record.Timestamp = recordingStart.Add(time.Duration(40+i*1000) * time.Second)
		record.PositionLat = fit.NewLatitudeDegrees(p[0])
		record.PositionLong = fit.NewLongitudeDegrees(p[1])
		activity.Records = append(activity.Records, record)
	}

	var buf bytes.Buffer
	if err := fit.Encode(&buf, file, binary.LittleEndian); err != nil {
		t.Fatalf("encode fit: %v", err)
	}
	return buf.Bytes()
}

func quietSettings() Settings {
	return Settings{Logger: monitoring.Discard()}
}

func TestRunWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "P01_wrist25.csv")
	if err := os.WriteFile(csvPath, buildTestCSV(t, burst{seconds: 60, walking: true}), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	settings := quietSettings()
	settings.Activity = "walking"
	outDir := filepath.Join(dir, "out")
	res, err := Run(context.Background(), Options{
		Settings: settings,
		CSVPath:  csvPath,
		OutDir:   outDir,
		Format:   "csv",
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	f, err := os.Open(res.EventsPath)
	if err != nil {
		t.Fatalf("open step events: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read step events csv: %v", err)
	}
	if len(rows) != 61 {
		t.Fatalf("expected 60 step rows, got %d", len(rows)-1)
	}
	for i, col := range eventsHeader {
		if rows[0][i] != col {
			t.Fatalf("unexpected header column %d: got %q want %q", i, rows[0][i], col)
		}
	}
	if rows[1][4] != "1" {
		t.Fatalf("first step should belong to bout 1, got %q", rows[1][4])
	}

	data, err := os.ReadFile(res.SummaryPath)
	if err != nil {
		t.Fatalf("read step summary: %v", err)
	}
	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("unmarshal step summary: %v", err)
	}
	if summary.Steps != 60 || summary.TotalSteps != 60 {
		t.Fatalf("expected 60 steps, got %d (total %d)", summary.Steps, summary.TotalSteps)
	}
	if summary.Activity != "walking" {
		t.Fatalf("activity label not passed through: %q", summary.Activity)
	}
	if summary.Evaluation == nil || summary.Evaluation.Expected != 60 || summary.Evaluation.Precision != 1 {
		t.Fatalf("unexpected evaluation: %+v", summary.Evaluation)
	}
	if summary.BoutStats.Count != 1 || summary.Bouts[0].Steps != 60 {
		t.Fatalf("expected one 60-step bout, got %+v", summary.BoutStats)
	}
	if math.Abs(summary.Bouts[0].CadenceSPM-60) > 1 {
		t.Fatalf("bout cadence %.2f, want ~60 spm", summary.Bouts[0].CadenceSPM)
	}
	if summary.Config.Threshold != stepcount.DefaultConfig().Threshold.String() {
		t.Fatalf("config summary threshold %q", summary.Config.Threshold)
	}

	notes, err := os.ReadFile(res.NotesPath)
	if err != nil {
		t.Fatalf("read notes: %v", err)
	}
	if !strings.Contains(string(notes), "Total steps: 60") {
		t.Fatalf("notes missing total:\n%s", notes)
	}
}

func TestRunRefusesNonEmptyOutDir(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "in.csv")
	if err := os.WriteFile(csvPath, buildTestCSV(t, burst{seconds: 5, walking: true}), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	_, err := Run(context.Background(), Options{Settings: quietSettings(), CSVPath: csvPath, OutDir: dir, Format: "csv"})
	if err == nil || !strings.Contains(err.Error(), "not empty") {
		t.Fatalf("expected non-empty output dir error, got %v", err)
	}
}

func TestRunBytesParquet(t *testing.T) {
	res, err := RunBytes(context.Background(), BytesOptions{
		Settings:       quietSettings(),
		SourceFileName: "wrist.csv",
		CSVData:        buildTestCSV(t, burst{seconds: 20, walking: true}),
		Format:         "parquet",
	})
	if err != nil {
		t.Fatalf("RunBytes() error: %v", err)
	}
	for _, name := range []string{"step_events.parquet", "step_summary.json", "step_notes.md"} {
		if _, ok := res.Files[name]; !ok {
			t.Fatalf("missing artifact %s", name)
		}
	}
	events := res.Files["step_events.parquet"]
	if len(events) < 8 || string(events[:4]) != "PAR1" || string(events[len(events)-4:]) != "PAR1" {
		t.Fatalf("step_events.parquet is not a parquet file (%d bytes)", len(events))
	}
	if res.Summary.Source != "wrist.csv" || res.Summary.Steps != 20 {
		t.Fatalf("unexpected summary: source %q steps %d", res.Summary.Source, res.Summary.Steps)
	}
}

func TestWindowingMatchesSingleWindow(t *testing.T) {
	data := buildTestCSV(t, burst{seconds: 60, walking: true})

	single, err := RunBytes(context.Background(), BytesOptions{Settings: quietSettings(), CSVData: data, Format: "csv"})
	if err != nil {
		t.Fatalf("single window: %v", err)
	}

	settings := quietSettings()
	settings.WindowDuration = 20 * time.Second
	overlap := 5 * time.Second
	settings.WindowOverlap = &overlap
	settings.Workers = 2
	chunked, err := RunBytes(context.Background(), BytesOptions{Settings: settings, CSVData: data, Format: "csv"})
	if err != nil {
		t.Fatalf("chunked: %v", err)
	}

	if chunked.Summary.Windows != 3 || single.Summary.Windows != 1 {
		t.Fatalf("windows: single %d chunked %d", single.Summary.Windows, chunked.Summary.Windows)
	}
	want := readEventRows(t, single.Files["step_events.csv"])
	got := readEventRows(t, chunked.Files["step_events.csv"])
	if len(got) != len(want) {
		t.Fatalf("chunked run found %d steps, single window %d", len(got)-1, len(want)-1)
	}
	for i := 1; i < len(want); i++ {
		if got[i][1] != want[i][1] {
			t.Fatalf("step %d at %s, single window at %s", i-1, got[i][1], want[i][1])
		}
		// Filter state differs slightly after a seam, so only confidence may drift.
		if d := math.Abs(parseFloat(t, got[i][3]) - parseFloat(t, want[i][3])); d > 1e-3 {
			t.Fatalf("step %d confidence drifted by %v", i-1, d)
		}
	}
}

func readEventRows(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("read events csv: %v", err)
	}
	return rows
}

func parseFloat(t *testing.T, s string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		t.Fatalf("parse float %q: %v", s, err)
	}
	return v
}

func TestGapWindowsAreSkipped(t *testing.T) {
	settings := quietSettings()
	settings.WindowDuration = 20 * time.Second
	overlap := 5 * time.Second
	settings.WindowOverlap = &overlap
	res, err := RunBytes(context.Background(), BytesOptions{
		Settings: settings,
		CSVData:  buildTestCSV(t, burst{seconds: 30, walking: true}, burst{offset: 300, seconds: 30, walking: true}),
		Format:   "csv",
	})
	if err != nil {
		t.Fatalf("RunBytes() error: %v", err)
	}
	s := res.Summary
	if s.Windows != 17 || s.SkippedWindows != 12 {
		t.Fatalf("windows %d skipped %d, want 17 and 12", s.Windows, s.SkippedWindows)
	}
	if len(res.Warnings) != 12 {
		t.Fatalf("expected one warning per skipped window, got %v", res.Warnings)
	}
	if s.Steps != 60 || s.BoutStats.Count != 2 {
		t.Fatalf("steps %d bouts %d, want 60 and 2", s.Steps, s.BoutStats.Count)
	}
}

func TestVirtualStepsWhenStationaryWithElevatedHR(t *testing.T) {
	settings := quietSettings()
	settings.Profile = Profile{AgeYears: 30, RestingHRBPM: 60, WeightKG: 70, HeightM: 1.9, MET: 3}
	res, err := RunBytes(context.Background(), BytesOptions{
		Settings: settings,
		CSVData:  buildTestCSV(t, burst{seconds: 30}),
		FitData:  buildTestFIT(t, 130),
		Format:   "csv",
	})
	if err != nil {
		t.Fatalf("RunBytes() error: %v", err)
	}
	s := res.Summary
	if s.Steps != 0 {
		t.Fatalf("stationary recording counted %d steps", s.Steps)
	}
	if s.Exertion == nil || !s.Exertion.Applied || s.Exertion.VirtualSteps != 245 || s.Exertion.TargetZone != "warm_up" {
		t.Fatalf("unexpected exertion: %+v", s.Exertion)
	}
	if s.TotalSteps != 245 {
		t.Fatalf("total steps %d, want 245", s.TotalSteps)
	}
	if s.GPSSteps == nil || *s.GPSSteps != 806 {
		t.Fatalf("unexpected gps steps: %v", s.GPSSteps)
	}
}

func TestNoVirtualStepsBelowWarmUp(t *testing.T) {
	settings := quietSettings()
	settings.Profile = Profile{AgeYears: 30, RestingHRBPM: 60, WeightKG: 70, MET: 3}
	res, err := RunBytes(context.Background(), BytesOptions{
		Settings: settings,
		CSVData:  buildTestCSV(t, burst{seconds: 30}),
		FitData:  buildTestFIT(t, 90),
		Format:   "csv",
	})
	if err != nil {
		t.Fatalf("RunBytes() error: %v", err)
	}
	x := res.Summary.Exertion
	if x == nil || x.Applied || x.Reason != "heart rate below warm_up target" {
		t.Fatalf("unexpected exertion: %+v", x)
	}
	if res.Summary.GPSSteps != nil || len(res.Warnings) != 1 {
		t.Fatalf("expected gps skipped with a warning, got %v / %v", res.Summary.GPSSteps, res.Warnings)
	}
}

func TestWindowingWithoutOverlap(t *testing.T) {
	settings := quietSettings()
	settings.WindowDuration = 20 * time.Second
	zero := time.Duration(0)
	settings.WindowOverlap = &zero
	res, err := RunBytes(context.Background(), BytesOptions{
		Settings: settings,
		CSVData:  buildTestCSV(t, burst{seconds: 60, walking: true}),
		Format:   "csv",
	})
	if err != nil {
		t.Fatalf("RunBytes() error: %v", err)
	}
	if res.Summary.Windows != 3 || res.Summary.SkippedWindows != 0 {
		t.Fatalf("windows %d skipped %d, want 3 and 0", res.Summary.Windows, res.Summary.SkippedWindows)
	}

	negative := -time.Second
	settings.WindowOverlap = &negative
	if _, err := RunBytes(context.Background(), BytesOptions{Settings: settings, CSVData: buildTestCSV(t, burst{seconds: 5}), Format: "csv"}); err == nil {
		t.Fatalf("expected error for negative overlap")
	}
}

func TestVirtualStepsTargetZone(t *testing.T) {
	settings := quietSettings()
	settings.Profile = Profile{AgeYears: 30, RestingHRBPM: 60, WeightKG: 70, MET: 3, TargetZone: "aerobic"}
	res, err := RunBytes(context.Background(), BytesOptions{
		Settings: settings,
		CSVData:  buildTestCSV(t, burst{seconds: 30}),
		FitData:  buildTestFIT(t, 130),
		Format:   "csv",
	})
	if err != nil {
		t.Fatalf("RunBytes() error: %v", err)
	}
	x := res.Summary.Exertion
	if x == nil || x.Applied || x.TargetZone != "aerobic" || x.Reason != "heart rate below aerobic target" {
		t.Fatalf("unexpected exertion: %+v", x)
	}
	if math.Abs(x.TargetHRBPM-148.2) > 1e-9 {
		t.Fatalf("aerobic target %.3f, want 148.2", x.TargetHRBPM)
	}

	settings.Profile.TargetZone = "sprint"
	if _, err := RunBytes(context.Background(), BytesOptions{Settings: settings, CSVData: buildTestCSV(t, burst{seconds: 5}), Format: "csv"}); err == nil {
		t.Fatalf("expected error for unknown target zone")
	}
}

func TestRunBytesRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	if _, err := RunBytes(ctx, BytesOptions{Format: "csv"}); err == nil {
		t.Fatalf("expected error for empty csv")
	}
	if _, err := RunBytes(ctx, BytesOptions{CSVData: []byte("x"), Format: "xlsx"}); err == nil {
		t.Fatalf("expected error for bad format")
	}

	cfg := stepcount.DefaultConfig()
	cfg.FilterHighCutoffHz = 20
	settings := quietSettings()
	settings.Config = &cfg
	_, err := RunBytes(ctx, BytesOptions{Settings: settings, CSVData: buildTestCSV(t, burst{seconds: 5}), Format: "csv"})
	if err == nil {
		t.Fatalf("expected configuration error")
	}
	if !strings.Contains(err.Error(), "config") {
		t.Fatalf("error should name the config stage: %v", err)
	}

	one := []byte("timestamp,x,y,z\n2026-02-26T23:00:00Z,0,0,9.81\n")
	if _, err := RunBytes(ctx, BytesOptions{Settings: quietSettings(), CSVData: one, Format: "csv"}); !errors.Is(err, stepcount.ErrInsufficientData) {
		t.Fatalf("expected insufficient data error, got %v", err)
	}

	nan := []byte("timestamp,x,y,z\n1.0,0,0,9.8\n1.04,NaN,0,9.8\n1.08,0,0,9.8\n")
	if _, err := RunBytes(ctx, BytesOptions{Settings: quietSettings(), CSVData: nan, Format: "csv"}); !errors.Is(err, stepcount.ErrInvalidInput) {
		t.Fatalf("expected invalid input for a NaN reading, got %v", err)
	}
}

func TestEvaluatePrecision(t *testing.T) {
	cases := []struct {
		expected, actual int
		want             float64
	}{
		{0, 0, 1},
		{100, 80, 0.8},
		{80, 100, 0.8},
		{10, 0, 0},
	}
	for _, tc := range cases {
		if got := evaluate(tc.expected, tc.actual).Precision; math.Abs(got-tc.want) > 1e-12 {
			t.Fatalf("evaluate(%d, %d) = %v, want %v", tc.expected, tc.actual, got, tc.want)
		}
	}
}
