package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dusk-indust/agentforge/internal/validate"
)

// The pipeline distinguishes expected, recoverable stage outcomes from fatal
// configuration errors with distinct error types, so callers handle each kind
// explicitly instead of catching broadly.

// UnknownStageError reports a stage id outside the configured sequence.
// It is a programmer or configuration error and is never recovered; the
// scheduler refuses further builds until the configuration is fixed.
type UnknownStageError struct {
	Stage Stage
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("pipeline: unknown stage %q", e.Stage)
}

// GenerationTimeoutError reports that the content generator did not answer
// within the per-request deadline across every allowed attempt. The stage is
// retriable on a future build request.
type GenerationTimeoutError struct {
	Stage    Stage
	Attempts int
	Err      error
}

func (e *GenerationTimeoutError) Error() string {
	return fmt.Sprintf("pipeline: generation for stage %q timed out after %d attempts: %v",
		e.Stage, e.Attempts, e.Err)
}

func (e *GenerationTimeoutError) Unwrap() error { return e.Err }

// GenerationRejectedError reports that the content generator explicitly
// refused the request. Retrying within the same run cannot help.
type GenerationRejectedError struct {
	Stage  Stage
	Reason string
}

func (e *GenerationRejectedError) Error() string {
	return fmt.Sprintf("pipeline: generation for stage %q rejected: %s", e.Stage, e.Reason)
}

// ValidationFailedError reports that candidate content failed structural
// validation. The staged artifact was discarded; a future build request
// produces new candidate content for the stage.
type ValidationFailedError struct {
	Stage    Stage
	Artifact string
	Result   validate.Result
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("pipeline: artifact %q for stage %q failed validation (%s): %s",
		e.Artifact, e.Stage, e.Result.RuleSet, strings.Join(e.Result.Violations, "; "))
}

// ErrHalted is returned when a run stops at a stage boundary because a
// cooperative cancel or pause was requested. Completed stages keep their
// status; the project resumes on the next build request.
var ErrHalted = errors.New("pipeline: run halted at stage boundary")
