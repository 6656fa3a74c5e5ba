package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// MaxBodyBytes bounds request bodies read by DecodeJSON and ReadBody.
const MaxBodyBytes = 1 << 20

// ErrBodyTooLarge is returned when a request body exceeds MaxBodyBytes.
var ErrBodyTooLarge = errors.New("request body too large")

var validate = validator.New()

// DecodeJSON decodes a single JSON object from the request body. Unknown
// fields are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return ErrBodyTooLarge
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("invalid JSON body: trailing data")
	}
	return nil
}

// ReadBody reads the raw request body up to MaxBodyBytes.
func ReadBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, ErrBodyTooLarge
		}
		return nil, err
	}
	return body, nil
}

// ValidateRequest validates v with its Validate method when it has one and
// with struct tags otherwise.
func ValidateRequest(v any) error {
	if val, ok := v.(interface{ Validate() error }); ok {
		return val.Validate()
	}
	return validate.Struct(v)
}
