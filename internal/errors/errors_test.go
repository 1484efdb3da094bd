package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError_Error(t *testing.T) {
	err := New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	assert.Equal(t, "Invalid request format", err.Error())
	assert.Equal(t, "", (&APIError{}).Error())
}

func TestAPIError_Render(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
	}{
		{name: "bad request", apiError: ErrInvalidRequest},
		{name: "not found", apiError: ErrNotFound},
		{name: "payload too large", apiError: ErrPayloadTooLarge},
		{name: "rate limited", apiError: ErrRateLimitExceeded},
		{name: "internal", apiError: ErrInternalServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)

			require.NoError(t, render.Render(w, r, tt.apiError))
			assert.Equal(t, tt.apiError.StatusCode, w.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.apiError.ErrorCode, body["error_code"])
			assert.Equal(t, tt.apiError.Message, body["message"])
		})
	}
}

func TestHelpers(t *testing.T) {
	tests := []struct {
		name       string
		got        *APIError
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "invalid request with cause",
			got:        InvalidRequestWithError(fmt.Errorf("unexpected EOF")),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
			wantMsg:    "Invalid request format",
		},
		{
			name:       "field validation",
			got:        ErrValidation("quote", "quote is required"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
			wantMsg:    "Request validation failed",
		},
		{
			name:       "export",
			got:        ExportError("xlsx", fmt.Errorf("disk full")),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "EXPORT_FAILED",
			wantMsg:    "Failed to export xlsx",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, tt.got.StatusCode)
			assert.Equal(t, tt.wantCode, tt.got.ErrorCode)
			assert.Equal(t, tt.wantMsg, tt.got.Message)
		})
	}

	assert.Equal(t, "unexpected EOF", InvalidRequestWithError(fmt.Errorf("unexpected EOF")).Details)
	assert.Equal(t, ValidationError{Field: "quote", Message: "too long"}, ErrValidation("quote", "too long").Details)
}

func TestNewValidationErrors(t *testing.T) {
	fields := []ValidationError{
		{Field: "quote", Message: "quote is required"},
		{Field: "format", Message: "format must be one of: csv, xlsx"},
	}

	err := NewValidationErrors(fields)

	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", err.ErrorCode)
	assert.Equal(t, ValidationErrors{Errors: fields}, err.Details)
}
