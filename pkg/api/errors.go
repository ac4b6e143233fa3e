package api

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCredentials is returned by New without an instance id and token.
	ErrNoCredentials = errors.New("instance id and api token are required")

	// ErrNoFile is returned when an upload has neither a path nor content.
	ErrNoFile = errors.New("file path or content is required")
)

// Error is a non-2xx answer from the API.
type Error struct {
	Method     string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("green api %s: status %d", e.Method, e.StatusCode)
	}
	return fmt.Sprintf("green api %s: status %d: %s", e.Method, e.StatusCode, e.Body)
}

// IsStatus reports whether err is an API error with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
