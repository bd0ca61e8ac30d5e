package stepcount

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func peaksAt(seconds ...float64) []Peak {
	out := make([]Peak, len(seconds))
	for i, s := range seconds {
		out[i] = Peak{Index: i, Time: at(s), Score: float64(i + 1)}
	}
	return out
}

func TestDebounceFirstWins(t *testing.T) {
	// The 5.35 s follower is dropped even though it scores higher.
	kept := Debounce(peaksAt(5.25, 5.35), 250*time.Millisecond)
	require.Len(t, kept, 1)
	assert.Equal(t, at(5.25), kept[0].Time)
}

func TestDebounceMeasuresFromLastAccepted(t *testing.T) {
	kept := Debounce(peaksAt(0, 0.1, 0.3, 0.5, 0.56), 250*time.Millisecond)
	got := make([]time.Time, len(kept))
	for i, p := range kept {
		got[i] = p.Time
	}
	assert.Equal(t, []time.Time{at(0), at(0.3), at(0.56)}, got)
}

func TestDebounceBoundaryIsExclusive(t *testing.T) {
	kept := Debounce(peaksAt(0, 0.25, 0.5), 250*time.Millisecond)
	assert.Len(t, kept, 2)
}

func TestDebounceIdempotent(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	var seconds []float64
	var s float64
	for range 200 {
		s += rng.Float64() * 0.6
		seconds = append(seconds, s)
	}

	once := Debounce(peaksAt(seconds...), 250*time.Millisecond)
	twice := Debounce(once, 250*time.Millisecond)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("debounce is not idempotent (-once +twice):\n%s", diff)
	}

	events := Events(once)
	if diff := cmp.Diff(events, DebounceEvents(events, 250*time.Millisecond)); diff != "" {
		t.Fatalf("event debounce is not idempotent:\n%s", diff)
	}
}

func TestDebounceEmpty(t *testing.T) {
	assert.Nil(t, Debounce(nil, time.Second))
	assert.Nil(t, Events(nil))
}

func TestEventsCarryScore(t *testing.T) {
	events := Events(peaksAt(1, 2))
	assert.Equal(t, []StepEvent{{Time: at(1), Confidence: 1}, {Time: at(2), Confidence: 2}}, events)
}
