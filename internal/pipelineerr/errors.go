// Package pipelineerr classifies pipeline failures into the kinds the
// processor needs to decide between a retry and a terminal status.
package pipelineerr

import (
	"errors"
	"fmt"
)

// Kind is one row of the error taxonomy in spec §7.
type Kind string

const (
	// KindTransient covers network, DB, subprocess-spawn and timeout
	// failures. The processor retries these with backoff.
	KindTransient Kind = "transient"
	// KindPermanentStructural covers unparseable carriers and
	// unrecognised XML roots.
	KindPermanentStructural Kind = "permanent_structural"
	// KindPermanentMapping covers missing mandatory fields and
	// zero BasisQuantity/BaseQuantity divisors.
	KindPermanentMapping Kind = "permanent_mapping"
	// KindProgrammer covers assertion failures and other bugs; the
	// processor terminates the transaction as ERROR without retrying.
	KindProgrammer Kind = "programmer"
)

// Error wraps a cause with a Kind so the processor can classify it
// with errors.As instead of matching on message text.
type Error struct {
	Kind   Kind
	Field  string // populated for KindPermanentMapping, e.g. an XPath
	Op     string // component/operation that raised it, for logging
	Absent bool   // KindPermanentMapping: field was missing, not just invalid
	Err    error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s): %v", e.Op, e.Kind, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as a retryable failure.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// Mapping wraps err as a MappingError with the offending field path.
// This is the constructor behind spec §4.5/§4.6's MappingError for a
// field that was present but held an invalid value.
func Mapping(op, field string, err error) error {
	return &Error{Kind: KindPermanentMapping, Op: op, Field: field, Err: err}
}

// MappingAbsent wraps err as a MappingError for a mandatory field that
// had no matching node (or empty/blank text) at all — the distinction
// callers use to choose MAP_FIELD_MISSING over MAP_INVALID_VALUE
// without matching on message text.
func MappingAbsent(op, field string, err error) error {
	return &Error{Kind: KindPermanentMapping, Op: op, Field: field, Absent: true, Err: err}
}

// Structural wraps err as a permanent structural failure (unparseable
// carrier, unrecognised XML root, unsupported carrier).
func Structural(op string, err error) error {
	return &Error{Kind: KindPermanentStructural, Op: op, Err: err}
}

// Programmer wraps a recovered panic or invariant violation.
func Programmer(op string, err error) error {
	return &Error{Kind: KindProgrammer, Op: op, Err: err}
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, k Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == k
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to KindProgrammer for
// errors that were never classified — an unclassified error is a bug,
// not a transient hiccup, so it must not be silently retried forever.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindProgrammer
}

// FieldOf extracts the offending field path, if any.
func FieldOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Field
	}
	return ""
}

// IsAbsent reports whether err is a MappingError raised for a
// mandatory field that had no value at all, as opposed to one that was
// present but invalid.
func IsAbsent(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Absent
	}
	return false
}
