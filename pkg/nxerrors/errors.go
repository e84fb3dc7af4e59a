package nxerrors

import (
	"errors"
	"fmt"
)

// Kind identifies the high level class of an error surfaced by uciconfig.
type Kind string

const (
	// KindValidation indicates caller supplied options or data failed validation.
	KindValidation Kind = "validation"
	// KindParse indicates UCI text could not be parsed.
	KindParse Kind = "parse"
	// KindEmpty indicates a source configuration exists but carries no content.
	KindEmpty Kind = "empty_config"
	// KindPathSafety indicates a path was rejected before any file I/O.
	KindPathSafety Kind = "path_safety"
	// KindConflict marks a disagreement between two trees. A merge records
	// conflicts and never fails on them; callers may surface them with this kind.
	KindConflict Kind = "conflict"
	// KindNetworkSafety indicates a merge was refused because it would disconnect the device.
	KindNetworkSafety Kind = "network_safety"
	// KindIO indicates a filesystem read or write failed.
	KindIO Kind = "io"
	// KindRender indicates report or UCI rendering failed.
	KindRender Kind = "render"
	// KindUnsupported indicates a feature that is not available.
	KindUnsupported Kind = "unsupported"
	// KindInternal indicates an unknown or internal error.
	KindInternal Kind = "internal"
)

// Error wraps an underlying error and tags it with a Kind so callers can branch on the class.
type Error struct {
	Kind Kind
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap lets errors.Is/As reach the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates an error of the given Kind.
func New(kind Kind, err error) error {
	if err == nil {
		err = errors.New(string(kind))
	}
	return &Error{Kind: kind, Err: err}
}

// Errorf formats a message and wraps it with kind.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the outermost *Error in err's chain, or
// KindInternal when err carries no Kind at all.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether any *Error in err's chain has the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
