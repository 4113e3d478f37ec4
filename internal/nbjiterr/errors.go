// Package nbjiterr defines the error-kind taxonomy from spec §7. Every stage
// of the compilation pipeline that can fail wraps its underlying cause in an
// *Error carrying one of the Kind values below, following the
// positional-error-with-suggestion pattern the retrieval pack's
// instrumentation tooling uses for compiler-adjacent diagnostics
// (cmd/racedetector/instrument/errors.go was consulted for the shape of
// "kind: message: cause" formatting with an optional actionable hint; no
// code from it is reused verbatim since our errors are not source-position
// based).
package nbjiterr

import (
	"errors"
	"fmt"
)

// Kind tags the category of failure. CacheInvariantViolation is always
// fatal; the others propagate to the caller of run_cell per §7.
type Kind string

const (
	InvalidAST              Kind = "invalid_ast"
	PartialEvalFailure      Kind = "partial_eval_failure"
	IRBuildError             Kind = "ir_build_error"
	VerificationFailure      Kind = "verification_failure"
	BackendFailure           Kind = "backend_failure"
	LoadFailure              Kind = "load_failure"
	CacheInvariantViolation  Kind = "cache_invariant_violation"
)

// Error is the single error type surfaced across package boundaries. Kind is
// comparable, so callers use errors.As to recover it and compare Kind
// directly — no sentinel-per-kind package variables are needed.
type Error struct {
	Kind       Kind
	Message    string
	Suggestion string
	Cause      error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	if e.Suggestion != "" {
		s += "\nSuggestion: " + e.Suggestion
	}
	return s
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error that wraps cause. If cause is nil, Wrap behaves
// like New.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithSuggestion attaches an actionable hint and returns the receiver for
// chaining at the call site, e.g. return nbjiterr.New(...).WithSuggestion(...).
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// Is reports whether err (or anything it wraps) is an *Error of kind k.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
