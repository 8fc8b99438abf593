package upstream

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel kinds for upstream failures. Typed errors below match these with errors.Is.
var (
	ErrTokenAcquisition  = errors.New("token acquisition failed")
	ErrUpstream          = errors.New("upstream request failed")
	ErrUpstreamTimeout   = errors.New("upstream request timed out")
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// maxErrorBody bounds how much of a response body is kept inside an error.
const maxErrorBody = 512

// Truncate shortens a response body for diagnostics.
func Truncate(body []byte) string {
	if len(body) <= maxErrorBody {
		return string(body)
	}
	return string(body[:maxErrorBody]) + "...(truncated)"
}

// TokenError reports a failed client-credentials exchange.
// Status is 0 when no response was received.
type TokenError struct {
	Provider string
	Status   int
	Body     string
	Err      error
}

func (e *TokenError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: token acquisition failed: status %d: %s", e.Provider, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: token acquisition failed: %v", e.Provider, e.Err)
}

func (e *TokenError) Unwrap() error { return e.Err }

// Is matches ErrTokenAcquisition.
func (e *TokenError) Is(target error) bool { return target == ErrTokenAcquisition }

// StatusError reports a non-2xx response or a transport failure (Status 0).
type StatusError struct {
	Provider string
	Status   int
	Body     string
	Err      error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: request failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.Status, e.Body)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Is matches ErrUpstream.
func (e *StatusError) Is(target error) bool { return target == ErrUpstream }

// IsNotFound reports a 404 response.
func (e *StatusError) IsNotFound() bool { return e.Status == http.StatusNotFound }

// Unauthorized reports a 401 or 403 response, i.e. a rejected bearer token.
func (e *StatusError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// TimeoutError reports a call that exceeded its deadline.
type TimeoutError struct {
	Provider string
	Timeout  time.Duration
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: request timed out after %s", e.Provider, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Is matches ErrUpstreamTimeout.
func (e *TimeoutError) Is(target error) bool { return target == ErrUpstreamTimeout }

// MalformedError reports a response that could not be decoded.
type MalformedError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: malformed response: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: malformed response: %s", e.Provider, e.Reason)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Is matches ErrMalformedResponse.
func (e *MalformedError) Is(target error) bool { return target == ErrMalformedResponse }

// IsNotFound reports whether err carries a 404 from an upstream.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.IsNotFound()
}
