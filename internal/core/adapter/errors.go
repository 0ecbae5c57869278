package adapter

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Code classifies adapter failures for retry decisions upstream.
type Code string

const (
	CodeRateLimit   Code = "RATE_LIMIT"
	CodeNotFound    Code = "NOT_FOUND"
	CodeBlocked     Code = "BLOCKED"
	CodeNetwork     Code = "NETWORK"
	CodeServerError Code = "SERVER_ERROR"
)

// Error is the uniform failure shape every adapter returns. NOT_FOUND is
// terminal for the resource; everything else is retryable after the
// appropriate backoff.
type Error struct {
	Code       Code
	Retailer   string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Retailer, e.Code)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCode reports whether err carries the given adapter error code.
func IsCode(err error, code Code) bool {
	var adapterErr *Error
	if !errors.As(err, &adapterErr) {
		return false
	}
	return adapterErr.Code == code
}

// RateLimitError marks requests refused locally (window or open breaker) or
// remotely (429).
func RateLimitError(retailer string, statusCode int) *Error {
	return &Error{Code: CodeRateLimit, Retailer: retailer, StatusCode: statusCode, Retryable: true}
}

// FromStatus maps an HTTP response status onto the taxonomy. Statuses below
// 400 return nil.
func FromStatus(retailer string, statusCode int) *Error {
	switch {
	case statusCode < 400:
		return nil
	case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
		return &Error{Code: CodeNotFound, Retailer: retailer, StatusCode: statusCode}
	case statusCode == http.StatusTooManyRequests:
		return RateLimitError(retailer, statusCode)
	case statusCode == http.StatusForbidden || statusCode == http.StatusProxyAuthRequired:
		return &Error{Code: CodeBlocked, Retailer: retailer, StatusCode: statusCode, Retryable: true}
	case statusCode >= 500:
		return &Error{Code: CodeServerError, Retailer: retailer, StatusCode: statusCode, Retryable: true}
	default:
		return &Error{Code: CodeNetwork, Retailer: retailer, StatusCode: statusCode, Retryable: true}
	}
}

// NetworkError wraps a transport-level failure. DNS and dial errors are
// retryable; the candidate URL may resolve on a later pass.
func NetworkError(retailer string, err error) *Error {
	return &Error{Code: CodeNetwork, Retailer: retailer, Retryable: true, Err: err}
}

// IsTimeout reports whether err (possibly wrapped) is a network timeout.
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
