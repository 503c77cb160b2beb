package remote

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnsuccessful is returned when the API answers 2xx with success=false.
	ErrUnsuccessful = errors.New("remote: request unsuccessful")
	// ErrNotConfigured is returned when no company setup exists yet.
	ErrNotConfigured = errors.New("remote: company setup not configured")
	// ErrNoBaseURL is returned by NewClient without a base URL.
	ErrNoBaseURL = errors.New("remote: base URL is required")
)

// NetworkError describes a transport failure or a non-2xx response.
type NetworkError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("remote: %s: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("remote: %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("remote: %s: status %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	}
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the request may succeed.
func (e *NetworkError) Temporary() bool {
	return e.Err != nil || e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// IsStatus reports whether err is a NetworkError carrying status.
func IsStatus(err error, status int) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr) && netErr.StatusCode == status
}
