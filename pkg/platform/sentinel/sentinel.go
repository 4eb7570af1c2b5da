// Package sentinel declares the comparable errors stores report. Stores
// return these (optionally wrapped) and services translate them into domain
// errors; validation failures never use them, those are pkg/domain-errors
// territory.
package sentinel

import "errors"

var (
	// ErrNotFound reports that the entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a lost conditional write: a CAS miss, an optimistic
	// version mismatch, or a held lease.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState reports an entity in the wrong state for the operation.
	ErrInvalidState = errors.New("invalid state")
)
