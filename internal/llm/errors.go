// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypePrecondition
	ErrTypeConnection
	ErrTypeHTTPStatus
	ErrTypeCancelled
	ErrTypeInvalidResponse
	ErrTypeUnsupported
)

// ClientError represents an error from a provider adapter.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil && e.Type != ErrTypePrecondition && e.Type != ErrTypeCancelled {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches sentinel ClientErrors by type and message.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Message == t.Message
}

// Sentinel errors for easy checking.
var (
	ErrMissingModel    = errors.New("model undefined")
	ErrMissingEndpoint = errors.New("endpoint undefined")
	ErrCancelled       = &ClientError{Type: ErrTypeCancelled, Message: "Cancelled"}
	ErrNoProvider      = errors.New("no provider available")
	ErrUnsupported     = errors.New("operation not supported by provider")
)

// MethodNotAllowedHint is appended to 405 status errors.
const MethodNotAllowedHint = "Possible cause: Invalid endpoint URL (e.g. missing /api/chat) or protocol mismatch (HTTP vs HTTPS)."

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("AI API error : %d\n%s", e.Code, e.Body)
	if e.Code == http.StatusMethodNotAllowed {
		msg += "\n" + MethodNotAllowedHint
	}
	return msg
}

// =============================================================================
// PREDICATES
// =============================================================================

// IsCancelled reports whether err is a cancellation.
func IsCancelled(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeCancelled
	}
	return false
}

// IsPrecondition reports whether err is a missing-configuration failure.
func IsPrecondition(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypePrecondition
	}
	return errors.Is(err, ErrMissingModel) || errors.Is(err, ErrMissingEndpoint)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}
	return 0
}

// Unsupported builds the error returned for an operation a provider lacks.
func Unsupported(provider, op string) error {
	return &ClientError{
		Type:    ErrTypeUnsupported,
		Message: fmt.Sprintf("%s does not support %s", provider, op),
		Cause:   ErrUnsupported,
	}
}
