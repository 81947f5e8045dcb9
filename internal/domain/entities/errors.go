package entities

import (
	"errors"
	"fmt"
)

// Sentinel errors. Stores return ErrNotFound and ErrConflict (optionally
// wrapped); services return ResolutionError values that match them.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrNoDuplicates    = fmt.Errorf("no duplicates resolved: %w", ErrNotFound)
	ErrConflict        = errors.New("conflict")
	ErrAlreadyArchived = fmt.Errorf("already archived: %w", ErrConflict)
)

// ErrorKind classifies resolution failures.
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindNotFound        ErrorKind = "not_found"
	KindNoDuplicates    ErrorKind = "no_duplicates"
	KindConflict        ErrorKind = "conflict"
	KindAlreadyArchived ErrorKind = "already_archived"
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindNoDuplicates:
		return ErrNoDuplicates
	case KindConflict:
		return ErrConflict
	case KindAlreadyArchived:
		return ErrAlreadyArchived
	default:
		return nil
	}
}

// ResolutionError is returned by the resolver and archive operations.
type ResolutionError struct {
	Kind     ErrorKind
	RecordID string
	Message  string
	Err      error
}

// NewResolutionError creates a ResolutionError.
func NewResolutionError(kind ErrorKind, recordID, message string, err error) *ResolutionError {
	return &ResolutionError{Kind: kind, RecordID: recordID, Message: message, Err: err}
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	msg := e.Message
	if e.RecordID != "" {
		msg = fmt.Sprintf("%s (record %s)", msg, e.RecordID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap supports error unwrapping.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind, and any sentinel that one wraps.
func (e *ResolutionError) Is(target error) bool {
	s := e.Kind.sentinel()
	if s == nil {
		return false
	}
	return s == target || errors.Is(s, target)
}

// KindOf returns the kind of a ResolutionError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Kind
	}
	switch {
	case errors.Is(err, ErrAlreadyArchived):
		return KindAlreadyArchived
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrNoDuplicates):
		return KindNoDuplicates
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	}
	return ""
}
