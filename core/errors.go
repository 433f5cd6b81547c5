package core

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// CredentialError indicates a missing, unreadable or malformed credential
// (RSA private key file, SPCS token file). It is fatal at startup.
type CredentialError struct {
	Path string
	Err  error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential error (%s): %v", e.Path, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// APIError indicates a non-2xx response from the Cortex Agent endpoint.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("cortex agent API error: status %d: %s (request_id: %s)", e.StatusCode, e.Message, e.RequestID)
	}
	return fmt.Sprintf("cortex agent API error: status %d: %s", e.StatusCode, e.Message)
}

// TimeoutError indicates the outbound Cortex call exceeded its deadline.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timed out: %v", e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ParseError indicates the Cortex response body had an unexpected shape.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse cortex response: %s", e.Reason)
}

// SlackPostError indicates a failure posting a message back to Slack.
type SlackPostError struct {
	Channel string
	Err     error
}

func (e *SlackPostError) Error() string {
	return fmt.Sprintf("failed to post to slack channel %s: %v", e.Channel, e.Err)
}

func (e *SlackPostError) Unwrap() error { return e.Err }

// IsTimeoutError checks if an error is a timeout, whether it is our own
// TimeoutError, a context deadline, or a net.Error reporting a timeout.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
