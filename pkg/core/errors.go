package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType categorizes a failure for retry and propagation decisions.
type ErrorType int

// Error type constants. Transport and rate-limit errors are recoverable;
// credential, signature, and auth-rejection errors are fatal for the
// affected credential until the caller intervenes.
const (
	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeCredential indicates a missing or unusable credential.
	ErrorTypeCredential
	// ErrorTypeSignature indicates the request could not be signed.
	ErrorTypeSignature
	// ErrorTypeRateLimit indicates a venue or client-side rate limit.
	ErrorTypeRateLimit
	// ErrorTypeTransport indicates a network-level failure (connect, timeout, 5xx).
	ErrorTypeTransport
	// ErrorTypeProtocol indicates a malformed or unexpected venue response.
	ErrorTypeProtocol
	// ErrorTypeAuthRejected indicates the venue rejected the signature or nonce.
	ErrorTypeAuthRejected
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	return [...]string{
		"UNKNOWN",
		"CREDENTIAL",
		"SIGNATURE",
		"RATE_LIMIT",
		"TRANSPORT",
		"PROTOCOL",
		"AUTH_REJECTED",
	}[t]
}

// Sentinel errors for common conditions.
var (
	// ErrNotConnected is returned when the websocket session has no live transport.
	ErrNotConnected = errors.New("websocket not connected")
	// ErrSessionClosed is returned when using a session after Close.
	ErrSessionClosed = errors.New("session is closed")
	// ErrSubscriptionClosed is returned when a subscription has been removed.
	ErrSubscriptionClosed = errors.New("subscription is closed")
	// ErrCircuitOpen is returned when the request breaker refuses a call.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyOrders is returned when the in-flight order cap is reached.
	ErrTooManyOrders = errors.New("too many in-flight orders")
)

// VenueError is a structured error for a failed venue interaction.
type VenueError struct {
	// Type categorizes the error for programmatic handling.
	Type ErrorType `json:"type"`
	// StatusCode is the HTTP status code, if any.
	StatusCode int `json:"status_code,omitempty"`
	// Code is the venue error code (e.g. "EAPI:Invalid nonce").
	Code string `json:"code,omitempty"`
	// Message is the human-readable description.
	Message string `json:"message"`
	// RetryAfter is the suggested wait before retrying, when known.
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	// Timestamp is when the error occurred.
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface.
func (e *VenueError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%d/%s): %s", e.Type, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.Type, e.StatusCode, e.Message)
}

// NewVenueError creates a VenueError with the current timestamp.
func NewVenueError(errorType ErrorType, statusCode int, message string) *VenueError {
	return &VenueError{
		Type:       errorType,
		StatusCode: statusCode,
		Message:    message,
		Timestamp:  time.Now(),
	}
}

// WithCode attaches the venue error code and returns the error for chaining.
func (e *VenueError) WithCode(code string) *VenueError {
	e.Code = code
	return e
}

// WithRetryAfter attaches a suggested wait and returns the error for chaining.
func (e *VenueError) WithRetryAfter(d time.Duration) *VenueError {
	e.RetryAfter = d
	return e
}

// IsTransient returns true if the error may succeed on retry.
func IsTransient(err error) bool {
	var ve *VenueError
	if errors.As(err, &ve) {
		return ve.Type == ErrorTypeTransport || ve.Type == ErrorTypeRateLimit
	}
	return false
}

// IsRateLimited returns true if the error is a rate-limit violation.
func IsRateLimited(err error) bool {
	var ve *VenueError
	if errors.As(err, &ve) {
		return ve.Type == ErrorTypeRateLimit
	}
	return false
}

// IsAuthRejected returns true if the venue rejected the signature or nonce.
// Retrying with the same credential repeats the failure.
func IsAuthRejected(err error) bool {
	var ve *VenueError
	if errors.As(err, &ve) {
		return ve.Type == ErrorTypeAuthRejected
	}
	return false
}

// ParseErrorArray classifies the venue's error-array format, e.g.
// ["EAPI:Invalid nonce"]. Returns nil when the array is empty.
func ParseErrorArray(errs []string) *VenueError {
	if len(errs) == 0 {
		return nil
	}
	code := errs[0]

	var errorType ErrorType
	switch {
	case strings.Contains(code, "Rate limit"):
		errorType = ErrorTypeRateLimit
	case strings.Contains(code, "Invalid nonce"),
		strings.Contains(code, "Invalid key"),
		strings.Contains(code, "Invalid signature"),
		strings.Contains(code, "Permission denied"):
		errorType = ErrorTypeAuthRejected
	case strings.HasPrefix(code, "EService:"):
		errorType = ErrorTypeTransport
	default:
		errorType = ErrorTypeProtocol
	}

	msg := code
	if _, after, found := strings.Cut(code, ":"); found {
		msg = after
	}

	return NewVenueError(errorType, 0, msg).WithCode(code)
}
