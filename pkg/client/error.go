package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an error response from the Earshot API.
type Error struct {
	// Status is the HTTP status code.
	Status int

	// Message is the server-reported error message.
	Message string

	// RequestID is the X-Request-ID the server assigned, for log
	// correlation.
	RequestID string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("earshot: %s (status=%d, request_id=%s)", e.Message, e.Status, e.RequestID)
	}
	return fmt.Sprintf("earshot: %s (status=%d)", e.Message, e.Status)
}

// Unauthorized reports whether the bearer token was rejected.
func (e *Error) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// NotEnrolled reports whether the caller has no voiceprint yet and must
// enroll before transcribing.
func (e *Error) NotEnrolled() bool {
	return e.Status == http.StatusPreconditionFailed
}

// Retryable reports whether the request can be retried.
func (e *Error) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// AsError extracts an *Error from an error chain.
//
//	if e, ok := client.AsError(err); ok && e.NotEnrolled() {
//	    // prompt the user to enroll first
//	}
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
