package oidc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrNilParameter      = errors.New("nil parameter")
	ErrInvalidCACert     = errors.New("invalid CA certificate")
	ErrIDGeneratorFailed = errors.New("id generation failed")
	ErrExpiredState      = errors.New("state is expired")
	ErrNotFound          = errors.New("not found")

	// ErrInvalidConfig is returned for missing or invalid static
	// configuration. It is never retried.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrAccessDenied is returned when a callback is missing its code, target
	// or state, or when the state doesn't match the pending one. No upstream
	// call is made once it has been returned.
	ErrAccessDenied = errors.New("access denied")

	// ErrUpstream is returned for transport failures, non-2xx statuses and
	// malformed responses from any ssoFACT endpoint.
	ErrUpstream = errors.New("upstream error")

	// ErrValidation is returned for business responses of the registration
	// API which should be shown to the user as field errors.
	ErrValidation = errors.New("validation error")
)

// MaxErrorBodyLen is the number of bytes of an upstream response body kept in an
// UpstreamError.
const MaxErrorBodyLen = 512

// UpstreamError describes a failed call to an ssoFACT endpoint. It never
// contains request credentials.
type UpstreamError struct {
	Op         string
	Endpoint   string
	StatusCode int
	Body       string
	Msg        string
	Wrapped    error
}

// NewUpstreamError creates an UpstreamError, truncating the body to
// MaxErrorBodyLen.
func NewUpstreamError(op, endpoint string, statusCode int, body []byte, msg string, wrapped error) *UpstreamError {
	return &UpstreamError{
		Op:         op,
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Body:       truncate(string(body), MaxErrorBodyLen),
		Msg:        msg,
		Wrapped:    wrapped,
	}
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Msg)
	if e.Endpoint != "" {
		fmt.Fprintf(&b, " (endpoint %s", e.Endpoint)
		if e.StatusCode != 0 {
			fmt.Fprintf(&b, ", status %d", e.StatusCode)
		}
		b.WriteString(")")
	}
	if e.Wrapped != nil {
		b.WriteString(": ")
		b.WriteString(e.Wrapped.Error())
	}
	return b.String()
}

// Is reports whether target is ErrUpstream
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

func (e *UpstreamError) Unwrap() error { return e.Wrapped }

// ValidationError carries the messages ssoFACT returned for a field of a
// registration request.
type ValidationError struct {
	Field    string
	Messages []string
}

func (e *ValidationError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("%s: invalid %s", ErrValidation, e.Field)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, strings.Join(e.Messages, "; "))
}

// Is reports whether target is ErrValidation
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}

// ValidationErrors returns every *ValidationError in err, including the ones
// aggregated in a *multierror.Error.
func ValidationErrors(err error) []*ValidationError {
	if err == nil {
		return nil
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		var out []*ValidationError
		for _, e := range merr.WrappedErrors() {
			out = append(out, ValidationErrors(e)...)
		}
		return out
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return []*ValidationError{verr}
	}
	return nil
}
