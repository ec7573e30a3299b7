package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrConflict       ErrorCode = "CONFLICT"
	ErrBadRequest     ErrorCode = "BAD_REQUEST"
	ErrInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"

	// ErrValidation marks misconfiguration: a malformed template or an
	// unusable transaction line. Fatal to the current run, never retried.
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	// ErrRateResolution marks a non-fatal rate lookup failure; the affected
	// contribution degrades to zero and the run continues.
	ErrRateResolution ErrorCode = "RATE_RESOLUTION_FAILURE"
	// ErrTransient marks recoverable infrastructure failures. Bounded retries
	// apply before the entry is dead-lettered.
	ErrTransient ErrorCode = "TRANSIENT_ERROR"
	// ErrResourceExhausted signals the execution-unit budget ran out. It is
	// expected, pauses the entry without consuming a retry, and requests a
	// follow-up invocation.
	ErrResourceExhausted ErrorCode = "RESOURCE_EXHAUSTED"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	logrus.Error(details)
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Is lets errors.Is match on the code, so callers can classify wrapped
// failures without unwrapping by hand.
func (e APIError) Is(target error) bool {
	var apiErr APIError
	if errors.As(target, &apiErr) {
		return e.Code == apiErr.Code
	}
	return false
}

// CodeOf extracts the error code from err, or ErrInternalServer when err is
// not an APIError.
func CodeOf(err error) ErrorCode {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ErrInternalServer
}

func MapErrorToHTTPStatus(err error) int {
	if apiErr, ok := err.(APIError); ok {
		switch apiErr.Code {
		case ErrNotFound:
			return http.StatusNotFound
		case ErrConflict:
			return http.StatusConflict
		case ErrBadRequest, ErrValidation:
			return http.StatusBadRequest
		case ErrResourceExhausted:
			return http.StatusTooManyRequests
		case ErrInternalServer, ErrTransient:
			return http.StatusInternalServerError
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
