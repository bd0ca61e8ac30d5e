package stepcount

import "time"

// Debounce drops every peak that follows the last kept peak by no more than
// minInterval. The earlier peak always wins. peaks must be in time order.
func Debounce(peaks []Peak, minInterval time.Duration) []Peak {
	return debounce(peaks, func(p Peak) time.Time { return p.Time }, minInterval)
}

// DebounceEvents applies the same reduction to step events, which lets
// callers merge events from overlapping windows.
func DebounceEvents(events []StepEvent, minInterval time.Duration) []StepEvent {
	return debounce(events, func(e StepEvent) time.Time { return e.Time }, minInterval)
}

func debounce[T any](items []T, at func(T) time.Time, minInterval time.Duration) []T {
	if len(items) == 0 {
		return nil
	}
	kept := make([]T, 0, len(items))
	kept = append(kept, items[0])
	last := at(items[0])
	for _, it := range items[1:] {
		if at(it).Sub(last) > minInterval {
			kept = append(kept, it)
			last = at(it)
		}
	}
	return kept
}

// Events converts debounced peaks to step events.
func Events(peaks []Peak) []StepEvent {
	if len(peaks) == 0 {
		return nil
	}
	events := make([]StepEvent, len(peaks))
	for i, p := range peaks {
		events[i] = StepEvent{Time: p.Time, Confidence: p.Score}
	}
	return events
}
