package eox

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the client.
var (
	// ErrRateLimitExhausted is returned when the service keeps answering 429.
	ErrRateLimitExhausted = errors.New("rate limit retries exhausted")

	// ErrContextCancelled is returned when the context is cancelled while waiting on Retry-After.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrNoSerials is returned when Lookup is called with an empty batch.
	ErrNoSerials = errors.New("no serial numbers to look up")
)

// ErrorClass represents a classification of lookup failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors (bad token, malformed request).
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a 2xx response whose body is not a valid EoX payload.
	ErrorClassDecode ErrorClass = "decode"
)

// APIError represents a failed EoX request with additional context.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("EoX %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("EoX %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to an ErrorClass. Success codes yield "".
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}
