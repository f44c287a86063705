package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies download failures.
type Kind int

const (
	// Network covers transport failures and unusable responses.
	Network Kind = iota + 1
	// Incomplete means the body ended before the advertised length.
	Incomplete
)

func (k Kind) String() string {
	switch k {
	case Network:
		return "network"
	case Incomplete:
		return "incomplete"
	}
	return "unknown"
}

var (
	ErrNetwork    = errors.New("download failed")
	ErrIncomplete = errors.New("download incomplete")
)

// Error is returned by Fetch. URL is sanitized for display.
type Error struct {
	Kind Kind
	URL  string
	Err  error

	permanent bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == Network
	case ErrIncomplete:
		return e.Kind == Incomplete
	}
	return false
}

// retryable reports whether another attempt could succeed.
func retryable(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return !fe.permanent
	}
	return true
}
