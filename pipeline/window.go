package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/lucasjlepore/stepcount"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWindowDuration = 5 * time.Minute
	defaultWindowOverlap  = 10 * time.Second
	defaultWorkers        = 4
)

// span is one processing window. Samples cover the owned interval plus the
// overlap on each side; only events inside [ownStart, ownEnd) are kept, and
// the last span also keeps events at ownEnd.
type span struct {
	index    int
	ownStart time.Time
	ownEnd   time.Time
	last     bool
	samples  stepcount.Window
}

func (s span) owns(t time.Time) bool {
	if t.Before(s.ownStart) {
		return false
	}
	if s.last {
		return !t.After(s.ownEnd)
	}
	return t.Before(s.ownEnd)
}

// splitWindows cuts a validated recording into overlapping spans.
func splitWindows(w stepcount.Window, duration, overlap time.Duration) []span {
	if len(w) == 0 {
		return nil
	}
	start, end := w[0].Time, w[len(w)-1].Time
	total := end.Sub(start)
	n := 1
	if total > duration {
		n = int((total + duration - 1) / duration)
	}

	spans := make([]span, 0, n)
	for k := range n {
		ownStart := start.Add(time.Duration(k) * duration)
		ownEnd := ownStart.Add(duration)
		last := k == n-1
		if last {
			ownEnd = end
		}
		lo := sort.Search(len(w), func(i int) bool {
			return !w[i].Time.Before(ownStart.Add(-overlap))
		})
		hi := sort.Search(len(w), func(i int) bool {
			return w[i].Time.After(ownEnd.Add(overlap))
		})
		spans = append(spans, span{
			index:    k,
			ownStart: ownStart,
			ownEnd:   ownEnd,
			last:     last,
			samples:  w[lo:hi],
		})
	}
	return spans
}

type windowOutcome struct {
	events  []stepcount.StepEvent
	skipped bool
}

// countWindows runs the counter over every span concurrently and merges the
// owned events. Spans too short to resample are skipped with a warning;
// any other failure aborts the run.
func countWindows(ctx context.Context, counter *stepcount.Counter, cfg stepcount.Config, spans []span, workers int, logger *slog.Logger) ([]stepcount.StepEvent, []string, error) {
	outcomes := make([]windowOutcome, len(spans))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, sp := range spans {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			events, err := counter.CountSteps(sp.samples, cfg)
			if errors.Is(err, stepcount.ErrInsufficientData) {
				outcomes[i].skipped = true
				return nil
			}
			if err != nil {
				return fmt.Errorf("window %d: %w", sp.index, err)
			}
			owned := events[:0]
			for _, e := range events {
				if sp.owns(e.Time) {
					owned = append(owned, e)
				}
			}
			outcomes[i].events = owned
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var merged []stepcount.StepEvent
	var warnings []string
	for i, o := range outcomes {
		if o.skipped {
			sp := spans[i]
			msg := fmt.Sprintf("window %d (%s) has fewer than 2 samples; skipped", sp.index, sp.ownStart.UTC().Format(time.RFC3339))
			logger.Warn("window skipped", slog.Int("window", sp.index), slog.Int("samples", len(sp.samples)))
			warnings = append(warnings, msg)
			continue
		}
		merged = append(merged, o.events...)
	}
	return stepcount.DebounceEvents(merged, cfg.MinStepInterval), warnings, nil
}
