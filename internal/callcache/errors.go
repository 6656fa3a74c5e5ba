package callcache

import (
	"errors"
	"fmt"
)

// ErrNilLiveFunc is returned when FetchOrCall is given no live call.
var ErrNilLiveFunc = errors.New("live call function cannot be nil")

// StatusCoder is implemented by errors that carry an upstream status code.
type StatusCoder interface {
	StatusCode() int
}

// CallError wraps a failed live call with the identity of the request.
type CallError struct {
	Service     string
	Endpoint    string
	Fingerprint Fingerprint
	Err         error
}

// Error implements the error interface.
func (e *CallError) Error() string {
	return fmt.Sprintf("%s %s (fingerprint %s): %v", e.Service, e.Endpoint, e.Fingerprint.Short(), e.Err)
}

// Unwrap returns the underlying live-call error.
func (e *CallError) Unwrap() error {
	return e.Err
}

// statusCodeOf extracts an upstream status code from err, or 0.
func statusCodeOf(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}
