package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	ErrAuth             = errors.New("invalid API key")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrServer           = errors.New("server error")
	ErrTimeout          = errors.New("request timeout")
	ErrUnexpectedStatus = errors.New("API error")
)

// StatusError is returned for every non-2xx response. It unwraps to one of
// the sentinel errors above.
type StatusError struct {
	Provider   string
	URL        string
	StatusCode int
	Body       string
	kind       error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %v (status %d): %s", e.Provider, e.kind, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.kind
}

// Classify maps an HTTP status code to a sentinel error, nil for 2xx.
func Classify(statusCode int) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return ErrAuth
	case statusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case statusCode >= 500:
		return ErrServer
	default:
		return ErrUnexpectedStatus
	}
}

// HasStatus reports whether err carries a response with the given status code.
func HasStatus(err error, statusCode int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == statusCode
}

// Kind returns a short label for metrics and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrRateLimited):
		return "rate_limit"
	case errors.Is(err, ErrServer):
		return "server"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnexpectedStatus):
		return "status"
	default:
		return "other"
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
