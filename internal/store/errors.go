package store

import (
	"errors"
	"fmt"
)

// Base errors. Backends wrap these so callers can branch with errors.Is
// without knowing which store produced them.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("already exists")
	ErrInvalidEntity     = errors.New("invalid entity")
	ErrTransactionFailed = errors.New("transaction failed")
)

var (
	ErrCallNotFound    = fmt.Errorf("cached call %w", ErrNotFound)
	ErrCounterNotFound = fmt.Errorf("rate limit counter %w", ErrNotFound)
	ErrTaskNotFound    = fmt.Errorf("generation task %w", ErrNotFound)
	ErrSongNotFound    = fmt.Errorf("song %w", ErrNotFound)
	ErrTaskExists      = fmt.Errorf("generation task %w", ErrDuplicate)
)

// StoreError records which table and operation failed alongside the cause.
type StoreError struct {
	Entity    string
	Operation string
	Message   string
	Err       error
}

func (e *StoreError) Error() string {
	msg := fmt.Sprintf("store: %s %s: %s", e.Entity, e.Operation, e.Message)
	if e.Err == nil {
		return msg
	}
	return msg + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError wraps err for the given entity (table) and operation.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{Entity: entity, Operation: operation, Message: message, Err: err}
}
