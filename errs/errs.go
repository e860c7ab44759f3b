// Package errs contains the sentinel errors shared by the store, service, cache and
// transport layers. Wrap them with fmt.Errorf("%w: ...") and test with errors.Is.
package errs

import "errors"

var (
	// ErrValidation indicates a missing or malformed field. Raised before any write.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates the referenced flashcard does not exist.
	ErrNotFound = errors.New("flashcard not found")

	// ErrStorage indicates the underlying read or write failed.
	ErrStorage = errors.New("storage failure")
)
