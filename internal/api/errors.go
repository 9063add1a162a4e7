package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a server rejection: the request reached the backend and came back
// non-2xx. The raw body is kept because the upload flow is operator-facing
// and the backend's diagnostic text is the most useful thing we can show.
type Error struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: server returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.StatusCode, e.Body)
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not a
// server rejection (network failure, decode failure, ...).
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 rejection.
func IsNotFound(err error) bool { return StatusCode(err) == http.StatusNotFound }

// IsUnauthorized reports whether err is a 401 rejection.
func IsUnauthorized(err error) bool { return StatusCode(err) == http.StatusUnauthorized }
