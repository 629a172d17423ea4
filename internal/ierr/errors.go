// Package ierr defines the closed taxonomy of error kinds the runtime uses
// to decide how a failure propagates: captured into a step result, surfaced
// to the caller as a run-aborting error, or retried by the uploader.
package ierr

import "errors"

// Kind discriminates the taxonomy described in spec §7.
type Kind string

const (
	KindValidation     Kind = "VALIDATION_ERROR"
	KindConfig         Kind = "CONFIG_ERROR"
	KindDuplicateKey   Kind = "DUPLICATE_KEY"
	KindStepHandler    Kind = "STEP_HANDLER_ERROR"
	KindUploadRetry    Kind = "UPLOAD_RETRIABLE"
	KindUploadFatal    Kind = "UPLOAD_FATAL"
	KindSyncAPI        Kind = "SYNC_API_ERROR"
	KindCannotShrink   Kind = "CANNOT_SHRINK"
	KindStartStates    Kind = "START_STATES_MISSING"
	KindCyclicDeps     Kind = "CYCLIC_DEPENDENCY"
)

// Error wraps an underlying cause with a Kind so callers can discriminate
// with errors.Is/errors.As without string matching.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, &Error{Kind: KindDuplicateKey}) to match any
// *Error with the same Kind, regardless of the wrapped cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs an *Error of the given Kind wrapping cause.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

// Of reports the Kind of err, if it (or something it wraps) is an *Error.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Sentinel values for errors.Is comparisons where the cause doesn't matter.
var (
	ErrDuplicateKey  = &Error{Kind: KindDuplicateKey}
	ErrValidation    = &Error{Kind: KindValidation}
	ErrConfig        = &Error{Kind: KindConfig}
	ErrUploadFatal   = &Error{Kind: KindUploadFatal}
	ErrSyncAPI       = &Error{Kind: KindSyncAPI}
	ErrCannotShrink  = &Error{Kind: KindCannotShrink}
	ErrStartStates   = &Error{Kind: KindStartStates}
	ErrCyclicDeps    = &Error{Kind: KindCyclicDeps}
)
