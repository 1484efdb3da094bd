package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"quotepulse/internal/alignment"
	"quotepulse/internal/infrastructure"
	"quotepulse/internal/services"
)

// Common error types following RFC 7807
const (
	TypeValidation       = "/errors/validation"
	TypeNotFound         = "/errors/not-found"
	TypeMethodNotAllowed = "/errors/method-not-allowed"
	TypeRateLimit        = "/errors/rate-limit"
	TypeInternal         = "/errors/internal"
	TypeServiceDown      = "/errors/service-unavailable"
	TypeTimeout          = "/errors/timeout"
	TypePayloadTooLarge  = "/errors/payload-too-large"
)

// Analysis error types
const (
	TypeNoArticles          = "/errors/analysis/no-articles"
	TypeMissingDate         = "/errors/analysis/missing-date"
	TypeUnparseableDate     = "/errors/analysis/unparseable-date"
	TypeInsufficientSeries  = "/errors/analysis/insufficient-series"
	TypeAlignmentFailed     = "/errors/analysis/alignment-failed"
	TypeUpstreamInvalid     = "/errors/upstream/invalid-response"
	TypeUpstreamUnavailable = "/errors/upstream/unavailable"
	TypeMisconfigured       = "/errors/misconfigured"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	problem := h.Problem(r, err)
	_ = render.Render(w, r, problem)
}

// Problem logs err and converts it to problem details carrying the trace id.
// Callers that render the problem themselves use this instead of HandleError.
func (h *ErrorHandler) Problem(r *http.Request, err error) *ProblemDetails {
	traceID := requestTraceID(r.Context())

	level := slog.LevelError
	problem := h.ErrorToProblem(err, r)
	if problem.Status < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", traceID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)

	problem.WithExtension("trace_id", traceID)
	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", getStackTrace())
	}
	return problem
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	var failure *alignment.Failure
	if errors.As(err, &failure) {
		return failureToProblem(failure, r)
	}

	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		return serviceErrorToProblem(svcErr, r)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			r.URL.Path,
		)
	}

	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred while processing your request",
		r.URL.Path,
	)
}

func failureToProblem(f *alignment.Failure, r *http.Request) *ProblemDetails {
	status, problemType, title := http.StatusBadGateway, TypeInternal, "Analysis Failed"
	switch f.Kind {
	case alignment.KindNoArticlesFound:
		status, problemType, title = http.StatusNotFound, TypeNoArticles, "No Articles Found"
	case alignment.KindMissingDate:
		problemType, title = TypeMissingDate, "Article Date Missing"
	case alignment.KindUnparseableDate:
		problemType, title = TypeUnparseableDate, "Article Date Unparseable"
	case alignment.KindInsufficientSeriesData:
		problemType, title = TypeInsufficientSeries, "Insufficient Market Data"
	case alignment.KindAlignmentFailed:
		status, problemType, title = http.StatusUnprocessableEntity, TypeAlignmentFailed, "Alignment Failed"
	}

	detail := f.Message
	if detail == "" {
		detail = string(f.Kind)
	}

	problem := NewProblemDetails(status, problemType, title, detail, r.URL.Path).
		WithExtension("kind", string(f.Kind))
	if len(f.Context) > 0 {
		problem.WithExtension("context", f.Context)
	}
	return problem
}

func serviceErrorToProblem(e *services.ServiceError, r *http.Request) *ProblemDetails {
	var problem *ProblemDetails
	switch e.Kind {
	case services.KindInvalidInput:
		problem = NewProblemDetails(http.StatusBadRequest, TypeValidation, "Invalid Input", e.Message, r.URL.Path)
	case services.KindRateLimited:
		problem = NewProblemDetails(http.StatusTooManyRequests, TypeRateLimit, "Rate Limit Exceeded", e.Message, r.URL.Path).
			WithExtension("retry_after", retryAfterSeconds(e.RetryAfter))
	case services.KindUpstreamInvalid:
		problem = NewProblemDetails(http.StatusBadGateway, TypeUpstreamInvalid, "Upstream Returned Invalid Data", e.Message, r.URL.Path)
	case services.KindUpstreamUnavailable:
		problem = NewProblemDetails(http.StatusBadGateway, TypeUpstreamUnavailable, "Upstream Unavailable", e.Message, r.URL.Path)
	case services.KindMisconfigured:
		problem = NewProblemDetails(http.StatusInternalServerError, TypeMisconfigured, "Service Misconfigured", e.Message, r.URL.Path)
	default:
		problem = NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error", e.Message, r.URL.Path)
	}

	problem.WithExtension("kind", string(e.Kind))
	if len(e.Debug) > 0 {
		problem.WithExtension("debug", e.Debug)
	}
	return problem
}

// retryAfterSeconds rounds up so clients never retry early
func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// apiErrorToProblem converts APIError to ProblemDetails
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case "VALIDATION_FAILED", "INVALID_REQUEST", "INVALID_JSON", "MISSING_PARAMETER", "INVALID_PARAMETER":
		problemType = TypeValidation
	case "NOT_FOUND":
		problemType = TypeNotFound
	case "PAYLOAD_TOO_LARGE":
		problemType = TypePayloadTooLarge
	case "RATE_LIMIT_EXCEEDED":
		problemType = TypeRateLimit
	case "SERVICE_UNAVAILABLE":
		problemType = TypeServiceDown
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}

	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	traceID := requestTraceID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", traceID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", traceID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	_ = render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", requestTraceID(r.Context()))

	_ = render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeMethodNotAllowed,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", requestTraceID(r.Context()))

	_ = render.Render(w, r, problem)
}

// Recoverer returns middleware that turns panics into problem responses
func (h *ErrorHandler) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.HandlePanic(w, r, rec)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requestTraceID prefers the trace id the request middleware stored and
// falls back to chi's request id.
func requestTraceID(ctx context.Context) string {
	if id := infrastructure.GetTraceID(ctx); id != "" {
		return id
	}
	return middleware.GetReqID(ctx)
}

// getStackTrace returns the current stack trace
func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
