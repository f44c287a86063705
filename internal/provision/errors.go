package provision

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tsukumogami/nativedep/internal/acquire"
	"github.com/tsukumogami/nativedep/internal/platform"
)

// ErrNoStrategy is matched by a ProbeError that found no runnable strategy.
var ErrNoStrategy = errors.New("no acquisition strategy applies to this host")

// Skip records why a strategy did not run.
type Skip struct {
	Strategy acquire.Name
	Reason   error
}

// ProbeError is returned when the host could not be described, or when
// every configured strategy was unavailable on it.
type ProbeError struct {
	Profile platform.Profile

	// Manager is the detected package manager, empty for none.
	Manager string

	Skipped []Skip

	// Err is set when platform detection itself failed.
	Err error
}

func (e *ProbeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("probe host: %v", e.Err)
	}
	parts := make([]string, len(e.Skipped))
	for i, s := range e.Skipped {
		parts[i] = fmt.Sprintf("%s: %v", s.Strategy, s.Reason)
	}
	manager := e.Manager
	if manager == "" {
		manager = "none"
	}
	return fmt.Sprintf("no strategy applies on %s (package manager: %s): %s",
		e.Profile, manager, strings.Join(parts, "; "))
}

func (e *ProbeError) Unwrap() error { return e.Err }

func (e *ProbeError) Is(target error) bool {
	return target == ErrNoStrategy && e.Err == nil
}
