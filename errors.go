package stepcount

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a run wraps exactly one of them.
var (
	// ErrInsufficientData reports a window too short to interpolate.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidInput reports bad sensor data or a non-positive parameter.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration reports a structurally invalid Config.
	ErrConfiguration = errors.New("configuration error")
)

// Stage names the pipeline stage that rejected a run.
type Stage string

const (
	StageConfig   Stage = "config"
	StageResample Stage = "resample"
	StageFilter   Stage = "filter"
	StageScore    Stage = "score"
	StageDetect   Stage = "detect"
	StageDebounce Stage = "debounce"
)

// Error is the error type returned by CountSteps.
type Error struct {
	Stage  Stage
	Kind   error
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("stepcount %s: %v: %s", e.Stage, e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Kind }

func stageErr(stage Stage, kind error, format string, args ...any) error {
	return &Error{Stage: stage, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
