package gateway

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest is returned when a request cannot be built.
var ErrInvalidRequest = errors.New("invalid gateway request")

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Service  string
	Endpoint string
	Code     int
	Body     string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s returned status %d", e.Service, e.Endpoint, e.Code)
	}
	return fmt.Sprintf("%s %s returned status %d: %s", e.Service, e.Endpoint, e.Code, e.Body)
}

// StatusCode returns the upstream HTTP status.
func (e *StatusError) StatusCode() int {
	return e.Code
}

// IsStatus reports whether err carries the given upstream status code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
