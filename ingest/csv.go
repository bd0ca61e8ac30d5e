// Package ingest reads recordings from disk: accelerometer CSV exports and
// FIT activity files for the heart-rate and GPS collaborators.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lucasjlepore/stepcount"
)

// Recording is an accelerometer capture decoded from CSV.
type Recording struct {
	Samples stepcount.Window
	// Expected is the sum of the annotation column. Only meaningful when
	// HasAnnotations is set.
	Expected       int
	HasAnnotations bool
	SkippedRows    int
}

// Layouts tried in order for textual timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

type csvColumns struct {
	timestamp  int
	x, y, z    int
	magnitude  int
	annotation int
}

var positionalColumns = csvColumns{timestamp: 0, x: 1, y: 2, z: 3, magnitude: -1, annotation: 4}

// ReadCSVFile opens path and decodes it with ReadCSV.
func ReadCSVFile(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open accelerometer csv: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV decodes rows of timestamp,x,y,z[,annotation]. A header row is
// optional; when present columns are matched by name and a single
// "magnitude" column may replace x,y,z. Timestamps are RFC3339,
// "2006-01-02 15:04:05.999" (UTC) or unix seconds. Rows that fail to parse
// are skipped and counted. NaN and infinite readings are kept so that
// Window.Validate rejects the recording.
func ReadCSV(r io.Reader) (*Recording, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rec := &Recording{}
	cols := positionalColumns
	first := true
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read accelerometer csv: %w", err)
		}
		if first {
			first = false
			if isHeader(row) {
				cols, err = columnsFromHeader(row)
				if err != nil {
					return nil, err
				}
				continue
			}
		}

		sample, annotation, hasAnnotation, ok := parseRow(row, cols)
		if !ok {
			rec.SkippedRows++
			continue
		}
		rec.Samples = append(rec.Samples, sample)
		if hasAnnotation {
			rec.HasAnnotations = true
			rec.Expected += annotation
		}
	}
	return rec, nil
}

func isHeader(row []string) bool {
	if len(row) == 0 {
		return false
	}
	_, err := parseTimestamp(row[0])
	return err != nil
}

func columnsFromHeader(row []string) (csvColumns, error) {
	cols := csvColumns{timestamp: -1, x: -1, y: -1, z: -1, magnitude: -1, annotation: -1}
	for i, name := range row {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "timestamp", "time", "ts":
			cols.timestamp = i
		case "x":
			cols.x = i
		case "y":
			cols.y = i
		case "z":
			cols.z = i
		case "magnitude", "mag":
			cols.magnitude = i
		case "annotation", "steps":
			cols.annotation = i
		}
	}
	if cols.timestamp < 0 {
		return cols, fmt.Errorf("accelerometer csv header has no timestamp column: %v", row)
	}
	hasAxes := cols.x >= 0 && cols.y >= 0 && cols.z >= 0
	if !hasAxes && cols.magnitude < 0 {
		return cols, fmt.Errorf("accelerometer csv header needs x,y,z or magnitude columns: %v", row)
	}
	if hasAxes {
		cols.magnitude = -1
	}
	return cols, nil
}

func parseRow(row []string, cols csvColumns) (stepcount.Sample, int, bool, bool) {
	field := func(i int) (string, bool) {
		if i < 0 || i >= len(row) {
			return "", false
		}
		return strings.TrimSpace(row[i]), true
	}

	tsRaw, ok := field(cols.timestamp)
	if !ok {
		return stepcount.Sample{}, 0, false, false
	}
	ts, err := parseTimestamp(tsRaw)
	if err != nil {
		return stepcount.Sample{}, 0, false, false
	}

	var sample stepcount.Sample
	if cols.magnitude >= 0 {
		m, ok := parseFloatField(field(cols.magnitude))
		if !ok {
			return stepcount.Sample{}, 0, false, false
		}
		sample = stepcount.NewMagnitudeSample(ts, m)
	} else {
		var v stepcount.Vector
		for axis, idx := range [3]int{cols.x, cols.y, cols.z} {
			f, ok := parseFloatField(field(idx))
			if !ok {
				return stepcount.Sample{}, 0, false, false
			}
			v[axis] = f
		}
		sample = stepcount.Sample{Time: ts, Accel: v}
	}

	raw, present := field(cols.annotation)
	if !present || raw == "" {
		return sample, 0, false, true
	}
	annotation, err := strconv.Atoi(raw)
	if err != nil || annotation < 0 {
		return stepcount.Sample{}, 0, false, false
	}
	return sample, annotation, true, true
}

func parseFloatField(raw string, ok bool) (float64, bool) {
	if !ok || raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if errors.Is(err, strconv.ErrRange) && math.IsInf(v, 0) {
		return v, true
	}
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))).UTC(), nil
}
