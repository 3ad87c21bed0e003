package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource, role, or share.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidName signals a malformed or unsafe identifier.
	ErrInvalidName = errors.New("invalid name")
	// ErrInvalidFilter signals a filter expression that failed to parse or compile.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrInvalidQuery signals malformed query parameters (paging, bbox, datetime).
	ErrInvalidQuery = errors.New("invalid query")
	// ErrForbidden signals a failed ownership or authorization check.
	ErrForbidden = errors.New("forbidden")

	// ErrVersionConflict signals an optimistic locking conflict.
	ErrVersionConflict = errors.New("version conflict")
	// ErrNotImplemented signals an unimplemented feature.
	ErrNotImplemented = errors.New("not implemented")
)

// VersionConflictError wraps ErrVersionConflict with the current resource version.
type VersionConflictError struct {
	CurrentVersion int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("%s: current version is %d", ErrVersionConflict.Error(), e.CurrentVersion)
}

func (e *VersionConflictError) Unwrap() error { return ErrVersionConflict }

// NewVersionConflict creates a version conflict error.
func NewVersionConflict(currentVersion int64) error {
	return &VersionConflictError{CurrentVersion: currentVersion}
}
