package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/ivankomartin/deposit-console/pkg/errors"
)

// ServerError is a 5xx response reported by Breaker.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Status, e.Body)
}

// upstreamErrorBody covers the error shapes the product API emits:
// {"success":false,"error":"..."}, {"success":false,"message":"..."} and
// {"error":{"code":"...","message":"..."}}.
type upstreamErrorBody struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

type structuredError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an AppError. The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperrors.Upstream(fmt.Sprintf("%s returned status %d (failed to read body: %v)", serviceName, resp.StatusCode, err))
	}

	code, message := decodeErrorBody(bodyBytes)
	if message == "" {
		message = fmt.Sprintf("status %d: %s", resp.StatusCode, string(bodyBytes))
	}
	return mapUpstreamError(resp.StatusCode, code, message, serviceName)
}

func decodeErrorBody(body []byte) (code, message string) {
	var parsed upstreamErrorBody
	if json.Unmarshal(body, &parsed) != nil {
		return "", ""
	}
	if len(parsed.Error) > 0 {
		var text string
		if json.Unmarshal(parsed.Error, &text) == nil && text != "" {
			return "", text
		}
		var se structuredError
		if json.Unmarshal(parsed.Error, &se) == nil && se.Message != "" {
			return se.Code, se.Message
		}
	}
	return "", parsed.Message
}

// mapUpstreamError translates the product API's status code into an AppError
// that preserves the error semantics.
func mapUpstreamError(status int, code, message, serviceName string) error {
	qualifiedMsg := fmt.Sprintf("%s: %s", serviceName, message)

	switch {
	case status == http.StatusNotFound:
		return &apperrors.AppError{
			Code:    "NOT_FOUND",
			Message: qualifiedMsg,
			Status:  http.StatusNotFound,
			Err:     apperrors.ErrNotFound,
		}
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return apperrors.InvalidInput(qualifiedMsg)
	case status == http.StatusConflict:
		return apperrors.Conflict(qualifiedMsg)
	case status == http.StatusServiceUnavailable:
		return apperrors.Unavailable(qualifiedMsg)
	default:
		appErr := apperrors.Upstream(qualifiedMsg)
		if code != "" {
			appErr.Code = code
		}
		return appErr
	}
}

// TranslateError converts a transport-level failure into an AppError.
// Context cancellation and deadline errors are returned unchanged so callers
// can tell an aborted request from a failed one.
func TranslateError(err error, serviceName string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, ErrCircuitOpen) {
		return apperrors.Unavailable(fmt.Sprintf("%s: circuit open", serviceName))
	}
	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		code, message := decodeErrorBody([]byte(srvErr.Body))
		if message == "" {
			message = srvErr.Error()
		}
		return mapUpstreamError(srvErr.Status, code, message, serviceName)
	}
	return &apperrors.AppError{
		Code:    "UPSTREAM_ERROR",
		Message: fmt.Sprintf("%s: request failed", serviceName),
		Status:  http.StatusBadGateway,
		Err:     fmt.Errorf("%w: %v", apperrors.ErrUpstream, err),
	}
}
