package kiosk

import (
	"errors"
	"fmt"

	"github.com/inmapper/kiosk-server/internal/storage"
)

var (
	// ErrNotFound is returned when a device or landing page id is unknown
	ErrNotFound = errors.New("not found")

	// ErrExhaustedRetries marks a display id generation that ran out of
	// random attempts. It is logged, not returned: generation falls back to a
	// timestamp code.
	ErrExhaustedRetries = errors.New("display id generation exhausted retries")
)

// ValidationError reports input rejected before any write is attempted
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// StorageError wraps a failure of the underlying store
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// storeErr maps storage.ErrNotFound to ErrNotFound and wraps everything else
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return &StorageError{Op: op, Err: err}
}
