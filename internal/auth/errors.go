package auth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExchangeRejected is returned when the token endpoint answers with a non-2xx status.
	ErrExchangeRejected = errors.New("token exchange rejected")
	// ErrNoRefreshToken is returned when a refresh is required but no refresh token is stored.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrNotAuthorized is returned when no credential has been linked yet.
	ErrNotAuthorized = errors.New("google account not authorized")
	// ErrTokenEndpointUnavailable marks a token endpoint that could not be reached.
	ErrTokenEndpointUnavailable = errors.New("token endpoint unavailable")
	// ErrUnauthorized marks a request that was still rejected after a refresh and retry.
	ErrUnauthorized = errors.New("request unauthorized after token refresh")
)

const maxErrorBody = 512

// AuthError reports a failure that requires the operator to re-authorize.
type AuthError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	var b strings.Builder
	b.WriteString("auth")
	if e.Op != "" {
		b.WriteString(" " + e.Op)
	}
	b.WriteString(": ")
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString("failed")
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Body != "" {
		b.WriteString(": " + e.Body)
	}
	return b.String()
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransientError reports a token endpoint failure that is worth retrying
// later, such as a timeout or a refused connection.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("token %s: %v: %v", e.Op, ErrTokenEndpointUnavailable, e.Err)
}

func (e *TransientError) Unwrap() []error { return []error{ErrTokenEndpointUnavailable, e.Err} }

// IsTransient reports whether err is a retryable token endpoint failure.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// HTTPError reports a non-2xx response from an authorized request.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s returned %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += " (" + e.Err.Error() + ")"
	}
	return msg
}

func (e *HTTPError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status carried by err, or 0 when err is not an HTTPError.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// IsAuthError reports whether err requires re-authorization.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) || errors.Is(err, ErrUnauthorized)
}

func truncateBody(data []byte) string {
	body := strings.TrimSpace(string(data))
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}
	return body
}
