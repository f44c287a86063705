package release

import (
	"errors"
	"fmt"

	"github.com/tsukumogami/nativedep/internal/platform"
)

// Kind classifies resolution failures.
type Kind int

const (
	// Unreachable means the API call or response decoding failed.
	Unreachable Kind = iota + 1
	// NoMatch means the release carries no asset for this platform and
	// channel, or its version is below the configured minimum.
	NoMatch
	// UnsupportedArchitecture means the platform has no asset mapping.
	UnsupportedArchitecture
)

func (k Kind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case NoMatch:
		return "no match"
	case UnsupportedArchitecture:
		return "unsupported architecture"
	}
	return "unknown"
}

// Sentinels for errors.Is against an *Error of the same kind.
var (
	ErrUnreachable             = errors.New("release API unreachable")
	ErrNoMatch                 = errors.New("no matching release asset")
	ErrUnsupportedArchitecture = errors.New("unsupported architecture")
)

// Error is returned by Resolve.
type Error struct {
	Kind     Kind
	Channel  Channel
	Platform string
	Err      error
}

func newError(k Kind, ch Channel, p platform.Profile, err error) *Error {
	return &Error{Kind: k, Channel: ch, Platform: p.String(), Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("resolve %s asset for %s: %s: %v", e.Channel, e.Platform, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnreachable:
		return e.Kind == Unreachable
	case ErrNoMatch:
		return e.Kind == NoMatch
	case ErrUnsupportedArchitecture:
		return e.Kind == UnsupportedArchitecture
	}
	return false
}
