package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotepulse/internal/alignment"
	"quotepulse/internal/infrastructure"
	"quotepulse/internal/services"
	"quotepulse/internal/shared/testutil"
)

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func tracedRequest(method, path, traceID string) *http.Request {
	r := httptest.NewRequest(method, path, nil)
	return r.WithContext(infrastructure.WithTraceID(r.Context(), traceID))
}

func TestNewErrorHandler(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)

	handler := NewErrorHandler(logger, true)

	assert.True(t, handler.includeStack)
	assert.NotNil(t, handler.logger)
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantKind   string
	}{
		{
			name:       "no articles",
			err:        alignment.NewFailure(alignment.KindNoArticlesFound, "no articles matched", nil),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNoArticles,
			wantKind:   "NoArticlesFound",
		},
		{
			name:       "missing date",
			err:        alignment.NewFailure(alignment.KindMissingDate, "earliest article has no date", nil),
			wantStatus: http.StatusBadGateway,
			wantType:   TypeMissingDate,
			wantKind:   "MissingDate",
		},
		{
			name:       "unparseable date",
			err:        alignment.NewFailure(alignment.KindUnparseableDate, "bad date", nil),
			wantStatus: http.StatusBadGateway,
			wantType:   TypeUnparseableDate,
			wantKind:   "UnparseableDate",
		},
		{
			name:       "insufficient series",
			err:        alignment.NewFailure(alignment.KindInsufficientSeriesData, "too few rows", nil),
			wantStatus: http.StatusBadGateway,
			wantType:   TypeInsufficientSeries,
			wantKind:   "InsufficientSeriesData",
		},
		{
			name:       "alignment failed",
			err:        alignment.NewFailure(alignment.KindAlignmentFailed, "event after series end", nil),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeAlignmentFailed,
			wantKind:   "AlignmentFailed",
		},
		{
			name:       "wrapped failure",
			err:        fmt.Errorf("analyze: %w", alignment.NewFailure(alignment.KindNoArticlesFound, "", nil)),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNoArticles,
			wantKind:   "NoArticlesFound",
		},
		{
			name:       "invalid input",
			err:        &services.ServiceError{Kind: services.KindInvalidInput, Message: "quote is empty"},
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantKind:   "InvalidInput",
		},
		{
			name:       "upstream invalid",
			err:        &services.ServiceError{Kind: services.KindUpstreamInvalid, Message: "stooq returned HTML"},
			wantStatus: http.StatusBadGateway,
			wantType:   TypeUpstreamInvalid,
			wantKind:   "UpstreamInvalid",
		},
		{
			name:       "upstream unavailable",
			err:        &services.ServiceError{Kind: services.KindUpstreamUnavailable, Message: "connection refused"},
			wantStatus: http.StatusBadGateway,
			wantType:   TypeUpstreamUnavailable,
			wantKind:   "UpstreamUnavailable",
		},
		{
			name:       "misconfigured",
			err:        &services.ServiceError{Kind: services.KindMisconfigured, Message: "missing key"},
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeMisconfigured,
			wantKind:   "Misconfigured",
		},
		{
			name:       "api error",
			err:        ErrInvalidRequest,
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
		},
		{
			name:       "deadline exceeded",
			err:        fmt.Errorf("fetch: %w", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "unknown error",
			err:        fmt.Errorf("something went wrong"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logHandler := testutil.NewTestLogger(t)
			handler := NewErrorHandler(logger, false)

			w := httptest.NewRecorder()
			r := tracedRequest(http.MethodPost, "/api/analyze", "trace-123")

			handler.HandleError(w, r, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			body := decodeProblem(t, w)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/analyze", body["instance"])
			assert.Equal(t, "trace-123", body["trace_id"])
			if tt.wantKind != "" {
				assert.Equal(t, tt.wantKind, body["kind"])
			}
			assert.NotContains(t, body, "stack")

			assert.True(t, logHandler.ContainsMessage("request failed"))
		})
	}
}

func TestErrorHandler_HandleError_Nil(t *testing.T) {
	logger, logHandler := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	handler.HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Equal(t, 0, w.Body.Len())
	assert.Equal(t, 0, logHandler.Count())
}

func TestErrorHandler_RateLimited(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	err := &services.ServiceError{
		Kind:       services.KindRateLimited,
		Message:    "rate limited to protect GDELT, wait 3s and try again",
		RetryAfter: 2100 * time.Millisecond,
		Debug:      map[string]interface{}{"waitMs": int64(2100)},
	}

	w := httptest.NewRecorder()
	handler.HandleError(w, tracedRequest(http.MethodPost, "/api/analyze", "t"), err)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3", w.Header().Get("Retry-After"))

	body := decodeProblem(t, w)
	assert.Equal(t, float64(3), body["retry_after"])
	assert.Equal(t, map[string]interface{}{"waitMs": float64(2100)}, body["debug"])
}

func TestErrorHandler_FailureContext(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	failure := alignment.NewFailure(alignment.KindUnparseableDate, "could not parse article date", nil).
		WithContext("raw", "yesterday").
		WithContext("gdeltStatus", 200)

	problem := handler.ErrorToProblem(failure, httptest.NewRequest(http.MethodGet, "/api/analyze", nil))

	assert.Equal(t, http.StatusBadGateway, problem.Status)
	assert.Equal(t, "could not parse article date", problem.Detail)
	assert.Equal(t, failure.Context, problem.Extensions["context"])
}

func TestErrorHandler_Problem(t *testing.T) {
	t.Run("client errors log at warn", func(t *testing.T) {
		logger, logHandler := testutil.NewTestLogger(t)
		handler := NewErrorHandler(logger, true)

		problem := handler.Problem(tracedRequest(http.MethodGet, "/api/analyze", "abc"),
			alignment.NewFailure(alignment.KindNoArticlesFound, "", nil))

		assert.Equal(t, "NoArticlesFound", problem.Detail)
		assert.Equal(t, "abc", problem.Extensions["trace_id"])
		assert.NotContains(t, problem.Extensions, "stack")
		testutil.AssertLogContains(t, logHandler, slog.LevelWarn, "request failed")
	})

	t.Run("server errors carry a stack when enabled", func(t *testing.T) {
		logger, logHandler := testutil.NewTestLogger(t)
		handler := NewErrorHandler(logger, true)

		problem := handler.Problem(httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("boom"))

		assert.Equal(t, http.StatusInternalServerError, problem.Status)
		assert.Contains(t, problem.Extensions, "stack")
		assert.Len(t, logHandler.GetRecordsByLevel(slog.LevelError), 1)
	})
}

func TestErrorHandler_apiErrorToProblem(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)
	r := httptest.NewRequest(http.MethodGet, "/api/analyze/export", nil)

	tests := []struct {
		name     string
		apiErr   *APIError
		wantType string
	}{
		{name: "validation", apiErr: ErrValidationFailed, wantType: TypeValidation},
		{name: "missing parameter", apiErr: ErrMissingParameter, wantType: TypeValidation},
		{name: "not found", apiErr: ErrNotFound, wantType: TypeNotFound},
		{name: "payload too large", apiErr: ErrPayloadTooLarge, wantType: TypePayloadTooLarge},
		{name: "rate limit", apiErr: ErrRateLimitExceeded, wantType: TypeRateLimit},
		{name: "service unavailable", apiErr: ErrServiceUnavailable, wantType: TypeServiceDown},
		{name: "export", apiErr: ExportError("csv", fmt.Errorf("short write")), wantType: TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problem := handler.apiErrorToProblem(tt.apiErr, r)

			assert.Equal(t, tt.apiErr.StatusCode, problem.Status)
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, http.StatusText(tt.apiErr.StatusCode), problem.Title)
			assert.Equal(t, tt.apiErr.ErrorCode, problem.Extensions["error_code"])
			if tt.apiErr.Details != nil {
				assert.Equal(t, tt.apiErr.Details, problem.Extensions["details"])
			}
		})
	}
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	tests := []struct {
		name         string
		recovered    interface{}
		includeStack bool
		wantMsg      string
	}{
		{name: "string panic with stack", recovered: "something went wrong", includeStack: true, wantMsg: "something went wrong"},
		{name: "error panic without stack", recovered: fmt.Errorf("error occurred")},
		{name: "integer panic with stack", recovered: 42, includeStack: true, wantMsg: "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logHandler := testutil.NewTestLogger(t)
			handler := NewErrorHandler(logger, tt.includeStack)

			w := httptest.NewRecorder()
			handler.HandlePanic(w, tracedRequest(http.MethodGet, "/test", "test-request-id"), tt.recovered)

			assert.Equal(t, http.StatusInternalServerError, w.Code)

			body := decodeProblem(t, w)
			assert.Equal(t, TypeInternal, body["type"])
			assert.Equal(t, "An unexpected error occurred", body["detail"])
			assert.Equal(t, "test-request-id", body["trace_id"])

			if tt.includeStack {
				assert.Equal(t, tt.wantMsg, body["panic"])
				assert.Contains(t, body, "stack")
			} else {
				assert.NotContains(t, body, "panic")
			}

			assert.True(t, logHandler.ContainsMessage("panic recovered"))
		})
	}
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	router := chi.NewRouter()
	router.NotFound(handler.NotFound)
	router.MethodNotAllowed(handler.MethodNotAllowed)
	router.Get("/api/today", func(w http.ResponseWriter, r *http.Request) {})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, TypeNotFound, decodeProblem(t, w)["type"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/today", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	body := decodeProblem(t, w)
	assert.Equal(t, TypeMethodNotAllowed, body["type"])
	assert.Equal(t, "Method DELETE is not allowed for this endpoint", body["detail"])
}

func TestErrorHandler_Recoverer(t *testing.T) {
	logger, logHandler := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	h := handler.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analyze", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.True(t, logHandler.ContainsMessage("panic recovered"))

	aborting := handler.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		aborting.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 6, retryAfterSeconds(6*time.Second))
	assert.Equal(t, 6, retryAfterSeconds(5001*time.Millisecond))
}

func TestGetStackTrace(t *testing.T) {
	stack := getStackTrace()

	assert.True(t, strings.Contains(stack, "TestGetStackTrace"))
}

func TestErrorHandlerConcurrency(t *testing.T) {
	logger, logHandler := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := httptest.NewRecorder()
			r := tracedRequest(http.MethodGet, fmt.Sprintf("/test-%d", i), fmt.Sprintf("req-%d", i))
			handler.HandleError(w, r, fmt.Errorf("error %d", i))
			assert.Equal(t, http.StatusInternalServerError, w.Code)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, logHandler.Count())
}
