package vaccination

import (
	"errors"
	"fmt"
)

var (
	ErrDecodeFailure    = errors.New("credential could not be decoded")
	ErrNoCredential     = errors.New("no credential loaded")
	ErrInvalidRootShape = errors.New("incorrect root element")
	ErrMultiplePatients = errors.New("multiple patients")
	ErrPatientMismatch  = errors.New("patient reference mismatch")
	ErrMissingPatient   = errors.New("no patient in bundle")
	ErrIndexOutOfRange  = errors.New("immunization index out of range")

	// ErrUndatedImmunizations rejects a bundle whose immunizations carry no
	// calendar date at all, e.g. only partial dates or free text.
	ErrUndatedImmunizations = errors.New("no immunization has a usable date")

	// ErrNoResolvableOccurrence is raised as a panic, never returned.
	ErrNoResolvableOccurrence = errors.New("no immunization has a resolvable occurrence")
)

// DecodeError carries the decoder's message verbatim.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return e.Err.Error() }

func (e *DecodeError) Unwrap() []error { return []error{ErrDecodeFailure, e.Err} }

// IndexOutOfRangeError reports an accessor call past the end of the
// immunization list.
type IndexOutOfRangeError struct {
	Index int
	Count int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("immunization index %d out of range (count %d)", e.Index, e.Count)
}

func (e *IndexOutOfRangeError) Is(target error) bool { return target == ErrIndexOutOfRange }

// IsValidationError reports whether err came from bundle validation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRootShape) ||
		errors.Is(err, ErrMultiplePatients) ||
		errors.Is(err, ErrPatientMismatch) ||
		errors.Is(err, ErrMissingPatient) ||
		errors.Is(err, ErrUndatedImmunizations)
}
