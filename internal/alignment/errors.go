package alignment

import (
	"errors"
	"fmt"
)

// FailureKind classifies why an analysis could not produce a result
type FailureKind string

const (
	KindMissingDate            FailureKind = "MissingDate"
	KindUnparseableDate        FailureKind = "UnparseableDate"
	KindNoArticlesFound        FailureKind = "NoArticlesFound"
	KindInsufficientSeriesData FailureKind = "InsufficientSeriesData"
	KindAlignmentFailed        FailureKind = "AlignmentFailed"
)

// Sentinels for errors.Is matching against a *Failure of the same kind.
var (
	ErrMissingDate            = &Failure{Kind: KindMissingDate}
	ErrUnparseableDate        = &Failure{Kind: KindUnparseableDate}
	ErrNoArticlesFound        = &Failure{Kind: KindNoArticlesFound}
	ErrInsufficientSeriesData = &Failure{Kind: KindInsufficientSeriesData}
	ErrAlignmentFailed        = &Failure{Kind: KindAlignmentFailed}
)

// Failure is a classified analysis error with diagnostic context
type Failure struct {
	Kind    FailureKind
	Message string
	Context map[string]interface{}
	Cause   error
}

// Error implements the error interface
func (f *Failure) Error() string {
	msg := f.Message
	if msg == "" {
		msg = string(f.Kind)
	}
	if f.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", f.Kind, msg, f.Cause)
	}
	return fmt.Sprintf("[%s] %s", f.Kind, msg)
}

// Unwrap allows errors.Is and errors.As to reach the cause
func (f *Failure) Unwrap() error {
	return f.Cause
}

// Is reports whether target is a *Failure of the same kind
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	if !ok {
		return false
	}
	return t.Kind == f.Kind
}

// WithContext adds a diagnostic value to the failure
func (f *Failure) WithContext(key string, value interface{}) *Failure {
	if f.Context == nil {
		f.Context = make(map[string]interface{})
	}
	f.Context[key] = value
	return f
}

// NewFailure creates a failure of the given kind
func NewFailure(kind FailureKind, message string, cause error) *Failure {
	return &Failure{
		Kind:    kind,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// KindOf returns the failure kind of err, or "" if err is not a *Failure
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}
