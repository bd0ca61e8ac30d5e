package pipeline

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// BuildStepNotes turns a run summary into a short human-readable report.
func BuildStepNotes(s *Summary) string {
	if s == nil {
		return ""
	}

	var b strings.Builder

	b.WriteString("# Step summary\n\n")
	fmt.Fprintf(&b, "Source: %s\n", s.Source)
	if s.Activity != "" {
		fmt.Fprintf(&b, "Activity: %s\n", s.Activity)
	}
	if start, err := time.Parse(time.RFC3339Nano, s.StartTSUTC); err == nil {
		fmt.Fprintf(&b, "Start: %s\n", start.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(
		&b,
		"Duration %s | Steps %d | Cadence %.1f spm | Confidence %.3f avg\n",
		formatDuration(s.DurationS),
		s.Steps,
		s.CadenceSPM,
		s.MeanConfidence,
	)
	fmt.Fprintf(&b, "Samples %d in %d window(s)", s.Samples, s.Windows)
	if s.SkippedWindows > 0 {
		fmt.Fprintf(&b, ", %d skipped", s.SkippedWindows)
	}
	b.WriteByte('\n')

	if s.BoutStats.Count > 0 {
		fmt.Fprintf(
			&b,
			"\n## Bouts\n\n%d bout(s), %d of %d steps | Cadence %.1f avg (sd %.1f) spm | Longest %s\n",
			s.BoutStats.Count,
			s.BoutStats.StepsInBouts,
			s.Steps,
			s.BoutStats.MeanCadenceSPM,
			s.BoutStats.CadenceStdDevSPM,
			formatDuration(s.BoutStats.LongestBoutS),
		)
		for _, bout := range s.Bouts {
			fmt.Fprintf(
				&b,
				"- #%d at +%s: %d steps over %s, %.0f spm\n",
				bout.Index,
				formatDuration(bout.StartOffsetS),
				bout.Steps,
				formatDuration(bout.DurationS),
				bout.CadenceSPM,
			)
		}
	}

	if s.Evaluation != nil || s.GPSSteps != nil || s.Exertion != nil {
		b.WriteString("\n## Cross-checks\n\n")
	}
	if e := s.Evaluation; e != nil {
		fmt.Fprintf(&b, "- Annotated %d vs counted %d: precision %.1f%%\n", e.Expected, e.Actual, e.Precision*100)
	}
	if s.GPSSteps != nil {
		fmt.Fprintf(&b, "- GPS estimate: %d steps\n", *s.GPSSteps)
	}
	if x := s.Exertion; x != nil {
		switch {
		case x.Applied:
			fmt.Fprintf(&b, "- Virtual steps: +%d (HR %.0f bpm vs %s %.0f bpm)\n", x.VirtualSteps, x.AvgHeartRateBPM, x.TargetZone, x.TargetHRBPM)
		default:
			fmt.Fprintf(&b, "- No virtual steps: %s (HR %.0f bpm)\n", x.Reason, x.AvgHeartRateBPM)
		}
	}

	fmt.Fprintf(&b, "\nTotal steps: %d\n", s.TotalSteps)
	b.WriteString("\n")
	b.WriteString(assessment(s))
	b.WriteByte('\n')

	if len(s.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range s.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	return strings.TrimSpace(b.String())
}

func assessment(s *Summary) string {
	switch {
	case s.Steps == 0:
		return "No steps detected; the wearer was likely stationary or the device was off-wrist."
	case s.Evaluation != nil && s.Evaluation.Precision < 0.8:
		return "Count disagrees with the annotations by more than 20%; consider retuning the threshold for this placement."
	case s.BoutStats.Count > 0 && s.BoutStats.MeanCadenceSPM >= 140:
		return "Cadence is in the running range for most bouts."
	case s.BoutStats.Count > 0:
		return "Cadence is consistent with walking."
	default:
		return "Steps were scattered with no sustained bouts."
	}
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "0s"
	}
	s := int(math.Round(seconds))
	h := s / 3600
	m := (s % 3600) / 60
	sec := s % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, sec)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}
