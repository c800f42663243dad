package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is a failed backend call that carried an HTTP status code.
type StatusError struct {
	// Provider names the backend that failed (e.g. "openai").
	Provider string

	// Code is the HTTP status code returned by the backend.
	Code int

	Err error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %v", e.Provider, e.Code, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status code carried by err, or 0 when err does
// not wrap a [*StatusError].
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// IsRetryable reports whether err is a transient backend failure: HTTP 429
// or any 5xx status. Everything else, including transport errors without a
// status, is treated as permanent.
func IsRetryable(err error) bool {
	code := StatusCode(err)
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
