package ingest

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/lucasjlepore/stepcount/gps"
	"github.com/tormoder/fit"
)

// HeartRateSample is one valid heart-rate reading.
type HeartRateSample struct {
	Time time.Time `json:"time"`
	BPM  float64   `json:"bpm"`
}

// Activity holds the record streams a FIT activity contributes to step
// estimation.
type Activity struct {
	Sport     string
	Start     time.Time
	End       time.Time
	HeartRate []HeartRateSample
	Points    []gps.Point
}

// ReadFITFile opens path and decodes it with ReadFIT.
func ReadFITFile(path string) (*Activity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FIT file: %w", err)
	}
	defer f.Close()
	return ReadFIT(f)
}

// ReadFITBytes decodes an in-memory FIT activity.
func ReadFITBytes(data []byte) (*Activity, error) {
	return ReadFIT(bytes.NewReader(data))
}

// ReadFIT decodes a FIT activity file and extracts heart-rate samples and
// GPS fixes from its records. Records with invalid timestamps are dropped;
// invalid fields are left out of their stream.
func ReadFIT(r io.Reader) (*Activity, error) {
	decoded, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode FIT file: %w", err)
	}
	activity, err := decoded.Activity()
	if err != nil {
		return nil, fmt.Errorf("activity FIT expected: %w", err)
	}

	out := &Activity{}
	if len(activity.Sessions) > 0 {
		out.Sport = fmt.Sprint(activity.Sessions[0].Sport)
	}
	for _, rec := range activity.Records {
		ts := validTimeOrZero(rec.Timestamp)
		if ts.IsZero() {
			continue
		}
		if out.Start.IsZero() {
			out.Start = ts
		}
		out.End = ts

		if bpm, ok := extractHeartRate(rec); ok {
			out.HeartRate = append(out.HeartRate, HeartRateSample{Time: ts, BPM: bpm})
		}
		if p, ok := extractPoint(rec, ts); ok {
			out.Points = append(out.Points, p)
		}
	}
	return out, nil
}

// HeartRateBetween returns the samples with from <= Time < to.
func (a *Activity) HeartRateBetween(from, to time.Time) []float64 {
	var out []float64
	for _, s := range a.HeartRate {
		if !s.Time.Before(from) && s.Time.Before(to) {
			out = append(out, s.BPM)
		}
	}
	return out
}

func extractHeartRate(rec *fit.RecordMsg) (float64, bool) {
	if rec.HeartRate == math.MaxUint8 || rec.HeartRate == 0 {
		return 0, false
	}
	return float64(rec.HeartRate), true
}

func extractPoint(rec *fit.RecordMsg, ts time.Time) (gps.Point, bool) {
	if rec.PositionLat.Invalid() || rec.PositionLong.Invalid() {
		return gps.Point{}, false
	}
	p := gps.Point{
		Time: ts,
		Lat:  rec.PositionLat.Degrees(),
		Lon:  rec.PositionLong.Degrees(),
	}
	if alt, ok := extractAltitude(rec); ok {
		p.Alt = &alt
	}
	return p, true
}

func extractAltitude(rec *fit.RecordMsg) (float64, bool) {
	alt := rec.GetEnhancedAltitudeScaled()
	if isFinite(alt) {
		return alt, true
	}
	alt = rec.GetAltitudeScaled()
	if isFinite(alt) {
		return alt, true
	}
	return 0, false
}

func validTimeOrZero(t time.Time) time.Time {
	if t.IsZero() || fit.IsBaseTime(t) {
		return time.Time{}
	}
	return t
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
