package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorClass categorizes REST errors by their nature so callers can decide
// whether a retry is worthwhile.
type ErrorClass string

const (
	// ClassTransient indicates temporary failures that may resolve on retry.
	// Examples: transport errors, HTTP 5xx, rate limits
	ClassTransient ErrorClass = "transient"

	// ClassPermanent indicates failures a retry cannot fix.
	// Examples: HTTP 4xx validation rejections, missing resources
	ClassPermanent ErrorClass = "permanent"
)

// Standard error codes used across client operations.
const (
	CodeNetworkError = "NETWORK_ERROR"
	CodeDecodeError  = "DECODE_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeValidation   = "VALIDATION_FAILED"
	CodeRateLimited  = "RATE_LIMITED"
	CodeServerError  = "SERVER_ERROR"
)

// RESTError is a structured error for failed API calls. It records the
// request that failed, the HTTP status (zero for transport failures), and
// the error class that drives the retry policy.
type RESTError struct {
	// Op is the client operation that failed (e.g., "Client.UpdateStatus").
	Op string

	// Method and Path identify the request.
	Method string
	Path   string

	// StatusCode is the HTTP status, or 0 for transport-level failures.
	StatusCode int

	// Code is a standard error code constant.
	Code string

	// Message is the server-provided or synthesized error message.
	Message string

	// Class categorizes the error for retry decisions.
	Class ErrorClass

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
// Format: "op [METHOD path/CODE]: message: cause"
func (e *RESTError) Error() string {
	s := fmt.Sprintf("%s [%s %s/%s]", e.Op, e.Method, e.Path, e.Code)
	if e.Message != "" {
		s += ": " + e.Message
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

// Unwrap returns the underlying cause error.
func (e *RESTError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the failure is transient and worth retrying.
func (e *RESTError) Retryable() bool {
	return e.Class == ClassTransient
}

// classify maps an HTTP status code to an error code and class.
// 5xx and 429 are transient; the remaining 4xx are permanent.
func classify(statusCode int) (string, ErrorClass) {
	switch {
	case statusCode == http.StatusNotFound:
		return CodeNotFound, ClassPermanent
	case statusCode == http.StatusUnauthorized:
		return CodeUnauthorized, ClassPermanent
	case statusCode == http.StatusForbidden:
		return CodeForbidden, ClassPermanent
	case statusCode == http.StatusTooManyRequests:
		return CodeRateLimited, ClassTransient
	case statusCode >= 500:
		return CodeServerError, ClassTransient
	default:
		return CodeValidation, ClassPermanent
	}
}

// IsNotFound reports whether err is a RESTError for a missing resource.
func IsNotFound(err error) bool {
	var rerr *RESTError
	return errors.As(err, &rerr) && rerr.Code == CodeNotFound
}
