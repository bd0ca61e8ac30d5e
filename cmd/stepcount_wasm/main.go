//go:build js && wasm

package main

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"sort"
	"syscall/js"
	"time"

	"github.com/lucasjlepore/stepcount/internal/monitoring"
	"github.com/lucasjlepore/stepcount/pipeline"
	"github.com/lucasjlepore/stepcount/tuning"
)

func main() {
	js.Global().Set("countSteps", js.FuncOf(countSteps))
	select {}
}

// countSteps(csvBytes Uint8Array, options object) returns
// {ok, zip, summary, warnings, files} or {ok: false, error}.
func countSteps(_ js.Value, args []js.Value) any {
	if len(args) < 2 {
		return failure("expected arguments: csvBytes(Uint8Array), options(object)")
	}
	csvBytes, ok := copyBytes(args[0])
	if !ok {
		return failure("accelerometer csv bytes are required")
	}
	optsArg := args[1]

	settings := pipeline.Settings{
		Activity: getString(optsArg, "activity", ""),
		Profile: pipeline.Profile{
			AgeYears:     getFloat(optsArg, "age_years"),
			RestingHRBPM: getFloat(optsArg, "resting_hr_bpm"),
			WeightKG:     getFloat(optsArg, "weight_kg"),
			HeightM:      getFloat(optsArg, "height_m"),
			MET:          getFloat(optsArg, "met"),
			TargetZone:   getString(optsArg, "target_zone", ""),
		},
		Workers: 1,
		Logger:  monitoring.Discard(),
	}
	if raw := getString(optsArg, "tuning_json", ""); raw != "" {
		t, err := tuning.Parse([]byte(raw))
		if err != nil {
			return failure(err.Error())
		}
		cfg, err := t.Config()
		if err != nil {
			return failure(err.Error())
		}
		settings.Config = &cfg
	}

	opts := pipeline.BytesOptions{
		Settings:       settings,
		SourceFileName: getString(optsArg, "source_file_name", "input.csv"),
		CSVData:        csvBytes,
		Format:         getString(optsArg, "format", "csv"),
	}
	if optsArg.Type() == js.TypeObject {
		if data, ok := copyBytes(optsArg.Get("fit_bytes")); ok {
			opts.FitData = data
		}
	}

	result, err := pipeline.RunBytes(context.Background(), opts)
	if err != nil {
		return failure(err.Error())
	}

	zipBytes, err := zipArtifacts(result.Files)
	if err != nil {
		return failure(fmt.Sprintf("create zip: %v", err))
	}
	payload := js.Global().Get("Uint8Array").New(len(zipBytes))
	js.CopyBytesToJS(payload, zipBytes)

	fileNames := make([]string, 0, len(result.Files))
	for name := range result.Files {
		fileNames = append(fileNames, name)
	}
	sort.Strings(fileNames)

	return map[string]any{
		"ok":          true,
		"zip":         payload,
		"steps":       result.Summary.Steps,
		"total_steps": result.Summary.TotalSteps,
		"summary":     string(result.Files["step_summary.json"]),
		"warnings":    stringsToAny(result.Warnings),
		"files":       stringsToAny(fileNames),
	}
}

func failure(msg string) map[string]any {
	return map[string]any{
		"ok":    false,
		"error": msg,
	}
}

func copyBytes(v js.Value) ([]byte, bool) {
	if v.IsUndefined() || v.IsNull() || v.Get("length").Int() == 0 {
		return nil, false
	}
	out := make([]byte, v.Get("length").Int())
	if n := js.CopyBytesToGo(out, v); n == 0 {
		return nil, false
	}
	return out, true
}

func zipArtifacts(files map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fixedTime := time.Unix(0, 0).UTC()

	for _, name := range names {
		h := &zip.FileHeader{
			Name:   name,
			Method: zip.Deflate,
		}
		h.SetModTime(fixedTime)
		w, err := zw.CreateHeader(h)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(files[name]); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func getString(v js.Value, key, fallback string) string {
	if v.IsUndefined() || v.IsNull() {
		return fallback
	}
	out := v.Get(key)
	if out.IsUndefined() || out.IsNull() {
		return fallback
	}
	s := out.String()
	if s == "" || s == "undefined" || s == "null" {
		return fallback
	}
	return s
}

func getFloat(v js.Value, key string) float64 {
	if v.IsUndefined() || v.IsNull() {
		return 0
	}
	out := v.Get(key)
	if out.IsUndefined() || out.IsNull() || out.Type() != js.TypeNumber {
		return 0
	}
	return out.Float()
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
