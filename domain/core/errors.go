package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound          = errors.New("resource not found")
	ErrRunNotFound       = fmt.Errorf("%w: run", ErrNotFound)
	ErrSweepNotFound     = fmt.Errorf("%w: sweep", ErrNotFound)
	ErrCandidateNotFound = fmt.Errorf("%w: candidate", ErrNotFound)
	ErrArtifactNotFound  = fmt.Errorf("%w: artifact", ErrNotFound)

	// Validation errors
	ErrConfigInvalid    = errors.New("invalid run configuration")
	ErrInvalidCandidate = errors.New("invalid candidate")
	ErrEmptySignal      = errors.New("signal contains no samples")
	ErrInvalidGrid      = errors.New("invalid injection grid")

	// Sampling errors
	ErrInsufficientData = errors.New("insufficient data for null sampling")
	ErrZeroVariance     = errors.New("region variance is zero")
	ErrNullConsumed     = errors.New("null sample set already consumed")

	// Determinism errors
	ErrNonDeterministic = errors.New("non-deterministic result")
	ErrSeedMismatch     = errors.New("seed mismatch")
	ErrHashMismatch     = errors.New("hash mismatch")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

func NewInsufficientDataError(label string, have, need int) error {
	return fmt.Errorf("%w: candidate %s has region length %d, need %d", ErrInsufficientData, label, have, need)
}

func NewDeterminismError(label string, expected, got Hash) error {
	return fmt.Errorf("%w: candidate %s null fingerprint %s != %s", ErrNonDeterministic, label, got, expected)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfigInvalid) ||
		errors.Is(err, ErrInvalidGrid)
}

func IsInsufficientDataError(err error) bool {
	return errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrZeroVariance)
}

func IsDeterminismError(err error) bool {
	return errors.Is(err, ErrNonDeterministic) ||
		errors.Is(err, ErrSeedMismatch) ||
		errors.Is(err, ErrHashMismatch)
}
