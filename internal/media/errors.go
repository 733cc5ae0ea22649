package media

import (
	"errors"
	"fmt"
)

// ErrNoContent is returned when removals cover the whole timeline.
var ErrNoContent = &ValidationError{Field: "segments", Reason: "no content survives trimming"}

// ValidationError reports malformed input, a missing catalog asset or an
// edit that leaves nothing to encode.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ExternalProcessFailure carries the diagnostic output of a failed engine or
// transcription call.
type ExternalProcessFailure struct {
	Stage      string
	Tool       string
	ExitCode   int
	Diagnostic string
	Err        error
}

func (e *ExternalProcessFailure) Error() string {
	msg := fmt.Sprintf("%s: %s failed", e.Stage, e.Tool)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Diagnostic != "" {
		msg += "\n" + e.Diagnostic
	}
	return msg
}

func (e *ExternalProcessFailure) Unwrap() error { return e.Err }

// HardStageFailure aborts the pipeline.
type HardStageFailure struct {
	Stage string
	Err   error
}

func (e *HardStageFailure) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *HardStageFailure) Unwrap() error { return e.Err }

// SoftStageFailure is logged and the pipeline continues with the prior
// artifact.
type SoftStageFailure struct {
	Stage string
	Err   error
}

func (e *SoftStageFailure) Error() string {
	return fmt.Sprintf("stage %s skipped: %v", e.Stage, e.Err)
}

func (e *SoftStageFailure) Unwrap() error { return e.Err }

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
