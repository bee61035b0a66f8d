package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is a structured backend failure. Code carries the backend's
// error_code (INVALID_CREDENTIALS, ACCOUNT_DISABLED, TENANT_INACTIVE, ...)
// when the response included one.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: %s (%s, status %d)", e.Message, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("api: %s (status %d)", e.Message, e.StatusCode)
}

// Unauthorized reports whether the backend rejected the caller's credential.
func (e *Error) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsUnauthorized reports whether err carries a 401 from the backend. This is
// the signal that classifies a renewal failure as terminal.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}

// IsCode reports whether err carries the given backend error_code.
func IsCode(err error, code string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// errorBody matches the backend's error envelope: detail is either a plain
// string or {message, error_code}.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type errorDetail struct {
	Message   string `json:"message"`
	ErrorCode string `json:"error_code"`
}

func decodeError(statusCode int, body []byte) *Error {
	apiErr := &Error{
		StatusCode: statusCode,
		Message:    http.StatusText(statusCode),
	}
	var envelope errorBody
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return apiErr
	}

	var detail errorDetail
	if err := json.Unmarshal(envelope.Detail, &detail); err == nil && detail.Message != "" {
		apiErr.Message = detail.Message
		apiErr.Code = detail.ErrorCode
		return apiErr
	}

	var plain string
	if err := json.Unmarshal(envelope.Detail, &plain); err == nil && plain != "" {
		apiErr.Message = plain
	}
	return apiErr
}
