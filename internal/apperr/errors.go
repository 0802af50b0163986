// Package apperr carries the error taxonomy shared by the store, the
// executor, and the dispatcher.
//
// Four kinds exist: I/O (filesystem access), Serialization (malformed or
// unencodable documents), Config (cannot resolve the storage location), and
// Execution (process failed to spawn). A command that runs and exits non-zero
// is NOT an Execution error; it is a normal result with Success=false.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindIO Kind = iota
	KindSerialization
	KindConfig
	KindExecution
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "I/O error"
	case KindSerialization:
		return "Serialization error"
	case KindConfig:
		return "Configuration error"
	case KindExecution:
		return "Execution error"
	default:
		return "error"
	}
}

// Error wraps an underlying error with a kind. The zero Kind is KindIO, so
// always build values through the constructors below.
type Error struct {
	kind Kind
	err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.kind, e.err) }
func (e *Error) Unwrap() error { return e.err }
func (e *Error) Kind() Kind    { return e.kind }

func wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, err: err}
}

// IO marks err as a filesystem-access failure.
func IO(err error) error { return wrap(KindIO, err) }

// Serialization marks err as a malformed/unencodable document failure.
func Serialization(err error) error { return wrap(KindSerialization, err) }

// Config marks err as a storage-location resolution failure.
func Config(err error) error { return wrap(KindConfig, err) }

// Execution marks err as a process-spawn failure.
func Execution(err error) error { return wrap(KindExecution, err) }

// Configf is Config with formatting.
func Configf(format string, args ...any) error {
	return wrap(KindConfig, fmt.Errorf(format, args...))
}

// Executionf is Execution with formatting.
func Executionf(format string, args ...any) error {
	return wrap(KindExecution, fmt.Errorf(format, args...))
}

// KindOf reports the kind of err, if it carries one.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.kind, true
	}
	return 0, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
