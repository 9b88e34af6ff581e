// Package cgimaperr defines the error taxonomy from spec §7: configuration
// errors, database errors, malformed rows, and programmer errors (invariant
// violations). Each is a distinct type so callers can distinguish them with
// errors.As while still getting a useful %w-wrapped message.
package cgimaperr

import (
	"errors"
	"fmt"
)

// ConfigError is raised at factory construction: unparseable cachesize,
// a missing required option, or an unsupported DB server version. Fatal
// to process startup.
type ConfigError struct {
	Option string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Option == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error (%s): %v", e.Option, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError wraps err as a ConfigError for the named option.
func NewConfigError(option string, err error) error {
	return &ConfigError{Option: option, Err: err}
}

// DatabaseError wraps any failure surfaced by the driver: connection
// lost, query failed, timeout. The current request should fail with a
// 5xx-equivalent and its engine discarded.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error during %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// NewDatabaseError wraps err as a DatabaseError for operation op. Returns
// nil if err is nil, so callers can write `return NewDatabaseError(op, err)`
// directly after a driver call.
func NewDatabaseError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DatabaseError{Op: op, Err: err}
}

// MalformedRowError indicates a length mismatch across parallel
// aggregated-array columns (tags, way nodes, members, comments), or an
// unrecognized member-type first character. Fatal to the current request.
type MalformedRowError struct {
	Reason string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed row: %s", e.Reason)
}

// NewMalformedRowError builds a MalformedRowError with the given reason.
func NewMalformedRowError(reason string) error {
	return &MalformedRowError{Reason: reason}
}

// InvariantError is the "programmer error" class: calling
// select_nodes_from_bbox with non-empty working sets. Not recoverable at
// runtime; callers are expected to surface this as an internal error with
// a bug-report pointer, matching the reference implementation.
type InvariantError struct {
	Detail string
}

const bugReportURL = "https://github.com/jronak/cgimap-go/issues"

func (e *InvariantError) Error() string {
	return fmt.Sprintf("design-invariant violation: %s. please report this to %s", e.Detail, bugReportURL)
}

// NewInvariantError builds an InvariantError with the given detail.
func NewInvariantError(detail string) error {
	return &InvariantError{Detail: detail}
}

// As is a small helper around errors.As so callers don't need to import
// both "errors" and this package just to type-switch.
func As[T error](err error) (T, bool) {
	var target T
	ok := errors.As(err, &target)
	return target, ok
}
