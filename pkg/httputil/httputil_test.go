package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ivankomartin/deposit-console/pkg/errors"
	"github.com/ivankomartin/deposit-console/pkg/logger"
	"github.com/ivankomartin/deposit-console/pkg/validator"
)

func testLogger() *slog.Logger {
	return logger.Discard()
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp), rec.Body.String())
	return resp
}

// --- WriteJSON ---

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusAccepted, Response{Data: []int{1, 2}})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":[1,2]}`, rec.Body.String())
}

func TestResponse_OmitsEmptyParts(t *testing.T) {
	data, err := json.Marshal(Response{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))

	data, err = json.Marshal(ErrorResponse{Code: "NOT_FOUND", Message: "gone"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "request_id")
	assert.NotContains(t, string(data), "fields")
}

// --- WriteError ---

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{
			name:    "app not found",
			err:     apperrors.NotFound("product", "42"),
			status:  http.StatusNotFound,
			code:    "NOT_FOUND",
			message: "product with id 42 not found",
		},
		{
			name:    "wrapped not found sentinel",
			err:     fmt.Errorf("find product 7: %w", apperrors.ErrNotFound),
			status:  http.StatusNotFound,
			code:    "NOT_FOUND",
			message: "resource not found",
		},
		{
			name:    "invalid input sentinel keeps message",
			err:     fmt.Errorf("limit 7: %w", apperrors.ErrInvalidInput),
			status:  http.StatusBadRequest,
			code:    "INVALID_INPUT",
			message: "limit 7: invalid input",
		},
		{
			name:    "unknown error hides details",
			err:     errors.New("nil pointer somewhere"),
			status:  http.StatusInternalServerError,
			code:    "INTERNAL_ERROR",
			message: "an internal error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/console/products/42", nil)

			WriteError(rec, req, tt.err, testLogger())

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeResponse(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.message, resp.Error.Message)
		})
	}
}

func TestWriteError_RequestID(t *testing.T) {
	for _, err := range []error{apperrors.ErrNotFound, apperrors.NotFound("product", "1")} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/console/products/1", nil)
		req = req.WithContext(logger.WithCorrelationID(req.Context(), "corr-123"))

		WriteError(rec, req, err, testLogger())

		assert.Equal(t, "corr-123", decodeResponse(t, rec).Error.RequestID)
	}

	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), apperrors.ErrNotFound, testLogger())
	assert.Empty(t, decodeResponse(t, rec).Error.RequestID)
}

// --- WriteValidationError ---

func TestWriteValidationError_PlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteValidationError(rec, errors.New("invalid JSON: unexpected EOF"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
	assert.Equal(t, "invalid JSON: unexpected EOF", resp.Error.Message)
}

func TestWriteValidationError_Fields(t *testing.T) {
	type input struct {
		Volume int `json:"volume" validate:"gt=0"`
	}
	rec := httptest.NewRecorder()
	WriteValidationError(rec, validator.Validate(input{}))

	resp := decodeResponse(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "volume")
}

func TestWriteError_UpstreamSentinels(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"upstream", fmt.Errorf("list: %w", apperrors.ErrUpstream), http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"unavailable", apperrors.ErrServiceUnavail, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"conflict", apperrors.ErrConflict, http.StatusConflict, "CONFLICT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/console/products", nil)

			WriteError(rec, req, tt.err, testLogger())

			assert.Equal(t, tt.status, rec.Code)
			var resp Response
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestWriteError_Canceled_WritesNoBody(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/console/products", nil)

	WriteError(rec, req, fmt.Errorf("fetch page 2: %w", context.Canceled), testLogger())

	assert.Equal(t, StatusClientClosedRequest, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestWriteError_ValidationError(t *testing.T) {
	type input struct {
		Name string `json:"name" validate:"required,min=2"`
	}
	verr := validator.Validate(input{Name: "x"})
	require.Error(t, verr)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/console/products", nil)
	WriteError(rec, req, verr, testLogger())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "must be at least 2 characters", resp.Error.Fields["name"])
}

func TestWriteData_WrapsEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, http.StatusCreated, map[string]int{"id": 7})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"data":{"id":7}}`, rec.Body.String())
}

// --- ParseID ---

func TestParseID(t *testing.T) {
	tests := []struct {
		param string
		want  int64
		ok    bool
	}{
		{"1250", 1250, true},
		{"1", 1, true},
		{"0", 0, false},
		{"-4", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			rec := httptest.NewRecorder()
			id, ok := ParseID(rec, tt.param)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, id)
			if !ok {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				var resp Response
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, "INVALID_PARAMETER", resp.Error.Code)
			}
		})
	}
}
