package services

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies orchestration failures that happen around the
// alignment itself. Alignment failures keep their own *alignment.Failure.
type ErrorKind string

const (
	KindInvalidInput        ErrorKind = "InvalidInput"
	KindRateLimited         ErrorKind = "RateLimited"
	KindUpstreamInvalid     ErrorKind = "UpstreamInvalid"
	KindUpstreamUnavailable ErrorKind = "UpstreamUnavailable"
	KindMisconfigured       ErrorKind = "Misconfigured"
)

// ServiceError is returned by the services for failures callers map to HTTP.
type ServiceError struct {
	Kind       ErrorKind
	Message    string
	RetryAfter time.Duration // set for KindRateLimited
	Debug      map[string]interface{}
	Cause      error
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// Is matches another *ServiceError of the same kind.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	return ok && t.Kind == e.Kind && t.Message == ""
}

func (e *ServiceError) withDebug(key string, value interface{}) *ServiceError {
	if e.Debug == nil {
		e.Debug = make(map[string]interface{})
	}
	e.Debug[key] = value
	return e
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidInput        = &ServiceError{Kind: KindInvalidInput}
	ErrRateLimited         = &ServiceError{Kind: KindRateLimited}
	ErrUpstreamInvalid     = &ServiceError{Kind: KindUpstreamInvalid}
	ErrUpstreamUnavailable = &ServiceError{Kind: KindUpstreamUnavailable}
	ErrMisconfigured       = &ServiceError{Kind: KindMisconfigured}
)

// ServiceKindOf returns the kind of a *ServiceError in err's chain, or "".
func ServiceKindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
