package pipeline

import (
	"strings"
	"testing"
)

func TestBuildStepNotes(t *testing.T) {
	gpsSteps := 806
	s := &Summary{
		Source:         "P01_wrist25.csv",
		Activity:       "walking",
		StartTSUTC:     "2026-02-26T23:00:00Z",
		DurationS:      605,
		Samples:        15126,
		Windows:        3,
		SkippedWindows: 1,
		Steps:          600,
		CadenceSPM:     59.5,
		Bouts:          []Bout{{Index: 1, StartOffsetS: 2, DurationS: 598, Steps: 600, CadenceSPM: 60}},
		BoutStats:      BoutStats{Count: 1, StepsInBouts: 600, MeanCadenceSPM: 60, LongestBoutS: 598},
		Evaluation:     &Evaluation{Expected: 610, Actual: 600, Precision: 600.0 / 610},
		GPSSteps:       &gpsSteps,
		Exertion:       &ExertionSummary{AvgHeartRateBPM: 101, Reason: "cadence above near-zero"},
		TotalSteps:     600,
		Warnings:       []string{"window 1 skipped"},
	}
	notes := BuildStepNotes(s)
	for _, want := range []string{
		"Activity: walking",
		"Start: 2026-02-26 23:00:00",
		"Duration 10m05s | Steps 600",
		", 1 skipped",
		"- #1 at +2s: 600 steps over 9m58s, 60 spm",
		"precision 98.4%",
		"GPS estimate: 806 steps",
		"No virtual steps: cadence above near-zero",
		"Total steps: 600",
		"consistent with walking",
		"- window 1 skipped",
	} {
		if !strings.Contains(notes, want) {
			t.Fatalf("notes missing %q:\n%s", want, notes)
		}
	}
}

func TestBuildStepNotesNil(t *testing.T) {
	if BuildStepNotes(nil) != "" {
		t.Fatalf("nil summary should produce empty notes")
	}
	if !strings.Contains(BuildStepNotes(&Summary{}), "No steps detected") {
		t.Fatalf("empty summary should report no steps")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[float64]string{0: "0s", 59.4: "59s", 61: "1m01s", 3725: "1h02m05s"}
	for in, want := range cases {
		if got := formatDuration(in); got != want {
			t.Fatalf("formatDuration(%v) = %q, want %q", in, got, want)
		}
	}
}
