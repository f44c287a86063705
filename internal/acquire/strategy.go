// Package acquire implements the strategies that put the native library on
// the machine: the system package manager, a Python wheel, or the upstream
// release archive. Each produces the same Result.
package acquire

import (
	"context"
	"fmt"
	"strings"

	"github.com/tsukumogami/nativedep/internal/fetch"
	"github.com/tsukumogami/nativedep/internal/log"
	"github.com/tsukumogami/nativedep/internal/pkgmgr"
	"github.com/tsukumogami/nativedep/internal/platform"
	"github.com/tsukumogami/nativedep/internal/release"
	"github.com/tsukumogami/nativedep/internal/sysexec"
)

// Name identifies a strategy in configuration and state.
type Name string

const (
	System  Name = "system"
	Wheel   Name = "wheel"
	Archive Name = "archive"
)

// Names lists every strategy in the default priority order.
var Names = []Name{System, Wheel, Archive}

// ParseName validates a strategy name.
func ParseName(s string) (Name, error) {
	for _, n := range Names {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown strategy %q (valid: %s)", s, strings.Join(nameStrings(Names), ", "))
}

func nameStrings(ns []Name) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = string(n)
	}
	return out
}

// Env is what a strategy sees of the host.
type Env struct {
	Profile platform.Profile

	// Manager is the detected package manager, nil when none was found.
	Manager pkgmgr.Manager

	Runner sysexec.Runner
	Logger log.Logger
}

func (e *Env) logger() log.Logger {
	if e.Logger == nil {
		return log.Default()
	}
	return e.Logger
}

// Strategy is one acquisition path.
type Strategy interface {
	Name() Name

	// Available returns nil when the strategy can run on env, otherwise
	// the reason it is skipped.
	Available(env *Env) error

	Acquire(ctx context.Context, env *Env) (*Result, error)
}

// Resolver is the subset of release.Resolver strategies need.
type Resolver interface {
	Resolve(ctx context.Context, p platform.Profile, ch release.Channel) (*release.Release, error)
}

// Fetcher is the subset of fetch.Fetcher strategies need.
type Fetcher interface {
	Fetch(ctx context.Context, t fetch.Target, dir string) (string, error)
}

// Paths describes the library being provisioned.
type Paths struct {
	// Header is the header file name, e.g. "z3.h".
	Header string
	// Library is the library base name, e.g. "z3".
	Library string
}
