// Package errors defines the agent-wide error taxonomy and small helpers
// for wrapping and classifying errors that cross subsystem boundaries.
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard errors package functions so callers only ever
// import this package for error handling.
var (
	As     = errors.As
	Is     = errors.Is
	New    = errors.New
	Unwrap = errors.Unwrap
)

// Kind sentinels, one per taxonomy entry consumed across core-bus, the
// IPC broker, the config adapter and the lifecycle executor.
var (
	ErrInvalid     = errors.New("invalid argument")
	ErrRange       = errors.New("range exceeded")
	ErrParse       = errors.New("parse failure")
	ErrNoMem       = errors.New("out of memory")
	ErrNoEntry     = errors.New("no such entry")
	ErrNoConn      = errors.New("connection closed")
	ErrConfig      = errors.New("wrong value shape")
	ErrUnsupported = errors.New("unsupported")
	ErrRemote      = errors.New("remote error")
	ErrFailure     = errors.New("failure")
	ErrFatal       = errors.New("fatal")
)

var allKinds = []error{
	ErrInvalid,
	ErrRange,
	ErrParse,
	ErrNoMem,
	ErrNoEntry,
	ErrNoConn,
	ErrConfig,
	ErrUnsupported,
	ErrRemote,
	ErrFailure,
	ErrFatal,
}

// Wrap wraps an error with additional context, preserving it for errors.Is/As.
func Wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// WrapKind wraps an error with one of the taxonomy kinds above, so callers
// further up the stack can recover the kind via GetKind without caring about
// the wrapped message.
func WrapKind(err error, kind error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf(format+": %w", append(args, err)...)
	return fmt.Errorf("%w: %w", kind, wrapped)
}

// GetKind extracts the taxonomy kind from an error, or nil if it carries none.
// When kinds are nested (WrapKind over an error that already has one), the
// outermost kind is returned.
func GetKind(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range allKinds {
		if err == kind {
			return kind
		}
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if kind := GetKind(inner); kind != nil {
				return kind
			}
		}
	case interface{ Unwrap() error }:
		return GetKind(u.Unwrap())
	}
	return nil
}

// KindString returns the wire-level name of an error's kind, used when an
// error crosses a bus in a response frame (REMOTE + inner code).
func KindString(err error) string {
	kind := GetKind(err)
	if kind == nil {
		return "FAILURE"
	}
	switch kind {
	case ErrInvalid:
		return "INVALID"
	case ErrRange:
		return "RANGE"
	case ErrParse:
		return "PARSE"
	case ErrNoMem:
		return "NOMEM"
	case ErrNoEntry:
		return "NOENTRY"
	case ErrNoConn:
		return "NOCONN"
	case ErrConfig:
		return "CONFIG"
	case ErrUnsupported:
		return "UNSUPPORTED"
	case ErrRemote:
		return "REMOTE"
	case ErrFatal:
		return "FATAL"
	default:
		return "FAILURE"
	}
}

// KindFromString is the inverse of KindString, used when decoding a remote
// error code out of a response frame payload.
func KindFromString(s string) error {
	switch s {
	case "INVALID":
		return ErrInvalid
	case "RANGE":
		return ErrRange
	case "PARSE":
		return ErrParse
	case "NOMEM":
		return ErrNoMem
	case "NOENTRY":
		return ErrNoEntry
	case "NOCONN":
		return ErrNoConn
	case "CONFIG":
		return ErrConfig
	case "UNSUPPORTED":
		return ErrUnsupported
	case "REMOTE":
		return ErrRemote
	case "FATAL":
		return ErrFatal
	default:
		return ErrFailure
	}
}
