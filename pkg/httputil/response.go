package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/ivankomartin/deposit-console/pkg/errors"
	"github.com/ivankomartin/deposit-console/pkg/logger"
	"github.com/ivankomartin/deposit-console/pkg/validator"
)

// StatusClientClosedRequest is the non-standard status logged when the client
// went away before the response was written.
const StatusClientClosedRequest = 499

// Response is the JSON envelope of every /console response.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the error half of Response.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData wraps v in the envelope.
func WriteData(w http.ResponseWriter, status int, v any) {
	WriteJSON(w, status, Response{Data: v})
}

// sentinelReply is the fixed reply for errors matching one of the
// apperrors sentinels without carrying an *apperrors.AppError.
type sentinelReply struct {
	target  error
	status  int
	code    string
	message string // empty echoes err.Error()
}

var sentinelReplies = []sentinelReply{
	{apperrors.ErrNotFound, http.StatusNotFound, "NOT_FOUND", "resource not found"},
	{apperrors.ErrConflict, http.StatusConflict, "CONFLICT", "resource conflict"},
	{apperrors.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT", ""},
	{apperrors.ErrUpstream, http.StatusBadGateway, "UPSTREAM_ERROR", "product API request failed"},
	{apperrors.ErrServiceUnavail, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "product API unavailable"},
	{context.DeadlineExceeded, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "product API unavailable"},
}

// classify maps err to a status and error body. Validation errors carry their
// field messages; application errors keep their own code and message.
func classify(err error) (int, ErrorResponse) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		return http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "request validation failed",
			Fields:  valErr.Fields(),
		}
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Status, ErrorResponse{Code: appErr.Code, Message: appErr.Message}
	}

	for _, r := range sentinelReplies {
		if !errors.Is(err, r.target) {
			continue
		}
		msg := r.message
		if msg == "" {
			msg = err.Error()
		}
		return r.status, ErrorResponse{Code: r.code, Message: msg}
	}
	return http.StatusInternalServerError, ErrorResponse{Code: "INTERNAL_ERROR", Message: "an internal error occurred"}
}

// WriteError answers with the envelope for err. Server-side failures are
// logged with the request-scoped logger, or fallback when the request has
// none. A canceled request only gets status 499 since nobody reads the body.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	ctx := r.Context()
	if errors.Is(err, context.Canceled) {
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			w.WriteHeader(StatusClientClosedRequest)
			return
		}
	}

	status, body := classify(err)
	body.RequestID = logger.CorrelationIDFromContext(ctx)

	if status >= http.StatusInternalServerError {
		l := logger.FromContext(ctx)
		if l == slog.Default() && fallback != nil {
			l = fallback
		}
		level := slog.LevelWarn
		if status == http.StatusInternalServerError {
			level = slog.LevelError
		}
		l.LogAttrs(ctx, level, "request failed",
			slog.Int("status", status),
			slog.String("code", body.Code),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	WriteJSON(w, status, Response{Error: &body})
}

// WriteValidationError answers 400 for a request body that failed decoding or
// validation. Field errors are included when err carries them.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		status, body := classify(err)
		WriteJSON(w, status, Response{Error: &body})
		return
	}
	WriteJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()},
	})
}

// ParseID parses a positive numeric id from a path parameter. On failure it
// has already answered 400 INVALID_PARAMETER and returns false.
func ParseID(w http.ResponseWriter, param string) (int64, bool) {
	id, err := strconv.ParseInt(param, 10, 64)
	if err == nil && id > 0 {
		return id, true
	}
	WriteJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorResponse{Code: "INVALID_PARAMETER", Message: "invalid id: " + param},
	})
	return 0, false
}
