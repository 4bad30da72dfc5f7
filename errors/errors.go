// Package errors provides error handling for Doxa.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//   - Network portability for distributed systems
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Add hints for users
//	return errors.WithHint(err, "try a wider interval")
//
//	// Check errors
//	if errors.Is(err, errors.ErrUnknownEntity) {
//	    // handle missing entity
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapOnce    = crdb.UnwrapOnce
	UnwrapAll     = crdb.UnwrapAll
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
	FlattenHints  = crdb.FlattenHints
)

// Assertions and panics
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors for the reasoning engine. All of them are recoverable:
// every mutating operation validates its inputs before touching state, so a
// returned sentinel means nothing was modified. Check with errors.Is() or the
// IsX helpers below; wrap with errors.Wrap() to add context while preserving
// the kind.
var (
	// ErrDuplicateEntity indicates an entity id is already registered
	ErrDuplicateEntity = New("duplicate entity")

	// ErrUnknownEntity indicates a referenced entity does not exist
	ErrUnknownEntity = New("unknown entity")

	// ErrDuplicateRelation indicates a (subject, type, object) triple already exists
	ErrDuplicateRelation = New("duplicate relation")

	// ErrUnknownRelation indicates a referenced relation does not exist
	ErrUnknownRelation = New("unknown relation")

	// ErrOverlappingInterval indicates a truth assertion collides with an
	// existing interval on the same relation
	ErrOverlappingInterval = New("overlapping interval")

	// ErrInvalidInterval indicates a malformed interval (start >= end)
	ErrInvalidInterval = New("invalid interval")

	// ErrInvalidWeight indicates a superposition weight outside [0, 1]
	ErrInvalidWeight = New("invalid weight")

	// ErrStructural indicates a malformed context or rule structure,
	// e.g. a cyclic context reference or an unbound rule variable
	ErrStructural = New("structural error")

	// ErrContradiction indicates a derivation produced a definite value that
	// conflicts with an asserted definite value over the same span
	ErrContradiction = New("contradiction")

	// ErrNonTermination indicates an inference run exhausted its budget
	// before reaching a fixpoint; facts derived so far remain valid
	ErrNonTermination = New("inference budget exhausted")

	// ErrSnapshotVersion indicates a snapshot written by an incompatible
	// format version
	ErrSnapshotVersion = New("incompatible snapshot version")
)

// IsDuplicateEntity checks if an error is or wraps ErrDuplicateEntity
func IsDuplicateEntity(err error) bool {
	return err != nil && Is(err, ErrDuplicateEntity)
}

// IsUnknownEntity checks if an error is or wraps ErrUnknownEntity
func IsUnknownEntity(err error) bool {
	return err != nil && Is(err, ErrUnknownEntity)
}

// IsDuplicateRelation checks if an error is or wraps ErrDuplicateRelation
func IsDuplicateRelation(err error) bool {
	return err != nil && Is(err, ErrDuplicateRelation)
}

// IsUnknownRelation checks if an error is or wraps ErrUnknownRelation
func IsUnknownRelation(err error) bool {
	return err != nil && Is(err, ErrUnknownRelation)
}

// IsOverlappingInterval checks if an error is or wraps ErrOverlappingInterval
func IsOverlappingInterval(err error) bool {
	return err != nil && Is(err, ErrOverlappingInterval)
}

// IsInvalidInterval checks if an error is or wraps ErrInvalidInterval
func IsInvalidInterval(err error) bool {
	return err != nil && Is(err, ErrInvalidInterval)
}

// IsInvalidWeight checks if an error is or wraps ErrInvalidWeight
func IsInvalidWeight(err error) bool {
	return err != nil && Is(err, ErrInvalidWeight)
}

// IsStructural checks if an error is or wraps ErrStructural
func IsStructural(err error) bool {
	return err != nil && Is(err, ErrStructural)
}

// IsContradiction checks if an error is or wraps ErrContradiction
func IsContradiction(err error) bool {
	return err != nil && Is(err, ErrContradiction)
}

// IsNonTermination checks if an error is or wraps ErrNonTermination
func IsNonTermination(err error) bool {
	return err != nil && Is(err, ErrNonTermination)
}

// IsSnapshotVersion checks if an error is or wraps ErrSnapshotVersion
func IsSnapshotVersion(err error) bool {
	return err != nil && Is(err, ErrSnapshotVersion)
}

// WrapUnknownEntity marks an error as unknown-entity, naming the offender
func WrapUnknownEntity(id string) error {
	return Wrapf(ErrUnknownEntity, "entity %q", id)
}

// WrapUnknownRelation marks an error as unknown-relation, naming the triple
func WrapUnknownRelation(subject, typ, object string) error {
	return Wrapf(ErrUnknownRelation, "relation %s(%s, %s)", typ, subject, object)
}

// NewStructural creates a structural error with a formatted message
func NewStructural(format string, args ...interface{}) error {
	return Wrap(ErrStructural, Newf(format, args...).Error())
}
