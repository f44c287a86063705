package archive

import (
	"errors"
	"fmt"
)

// Kind classifies install failures.
type Kind int

const (
	// UnexpectedLayout means the archive could not be read or did not
	// contain exactly one top-level directory.
	UnexpectedLayout Kind = iota + 1
	// MissingHeader means the header is absent from the install root
	// after copying.
	MissingHeader
	// MissingLibrary means the shared library is absent from the install
	// root after copying.
	MissingLibrary
	// PermissionDenied means the install root is not writable.
	PermissionDenied
	// IO covers other filesystem failures while copying.
	IO
)

func (k Kind) String() string {
	switch k {
	case UnexpectedLayout:
		return "unexpected layout"
	case MissingHeader:
		return "missing header"
	case MissingLibrary:
		return "missing library"
	case PermissionDenied:
		return "permission denied"
	case IO:
		return "i/o error"
	}
	return "unknown"
}

var (
	ErrUnexpectedLayout = errors.New("unexpected archive layout")
	ErrMissingHeader    = errors.New("header missing after install")
	ErrMissingLibrary   = errors.New("library missing after install")
	ErrPermissionDenied = errors.New("permission denied")
)

// Error is returned by Install.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("install: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("install %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnexpectedLayout:
		return e.Kind == UnexpectedLayout
	case ErrMissingHeader:
		return e.Kind == MissingHeader
	case ErrMissingLibrary:
		return e.Kind == MissingLibrary
	case ErrPermissionDenied:
		return e.Kind == PermissionDenied
	}
	return false
}
