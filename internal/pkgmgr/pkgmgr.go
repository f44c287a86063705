// Package pkgmgr detects the host's system package manager and drives it
// non-interactively.
//
// Managers are probed in a fixed priority order. Adding a manager means
// adding an implementation to Default; callers only see the Manager
// interface.
package pkgmgr

import (
	"context"
	"strings"

	"github.com/tsukumogami/nativedep/internal/platform"
	"github.com/tsukumogami/nativedep/internal/sysexec"
)

// Kind names a package manager.
type Kind string

const (
	Yum  Kind = "yum"
	Dnf  Kind = "dnf"
	Apt  Kind = "apt"
	Brew Kind = "brew"
)

// Locations are the directories a manager installs headers and shared
// libraries into, most specific first.
type Locations struct {
	IncludeDirs []string
	LibDirs     []string
}

// Manager is one system package manager.
type Manager interface {
	Kind() Kind

	// Executable is the program whose presence on PATH selects this manager.
	Executable() string

	// Install installs packages, escalating with sudo or doas when the
	// manager needs root and the process is not root.
	Install(ctx context.Context, r sysexec.Runner, packages ...string) error

	// Locations reports where installed packages place their files.
	Locations(ctx context.Context, r sysexec.Runner, p platform.Profile) Locations

	// Describe returns the install command an operator could run by hand.
	Describe(packages ...string) string
}

// Default returns the managers in probe priority order.
func Default() []Manager {
	return []Manager{
		&rpmManager{kind: Yum},
		&rpmManager{kind: Dnf},
		&aptManager{},
		&brewManager{},
	}
}

// Detect returns the first manager whose executable resolves, or nil when
// none do. It has no side effects.
func Detect(r sysexec.Runner, managers []Manager) Manager {
	for _, m := range managers {
		if _, err := r.LookPath(m.Executable()); err == nil {
			return m
		}
	}
	return nil
}

// ByKind finds the manager of the given kind.
func ByKind(managers []Manager, k Kind) Manager {
	for _, m := range managers {
		if m.Kind() == k {
			return m
		}
	}
	return nil
}

// elevate prefixes argv with sudo or doas when the process is not root.
// doas wins when both exist, matching Alpine and BSD conventions.
func elevate(r sysexec.Runner, argv []string) []string {
	if effectiveUID() == 0 {
		return argv
	}
	for _, tool := range []string{"doas", "sudo"} {
		if _, err := r.LookPath(tool); err == nil {
			return append([]string{tool}, argv...)
		}
	}
	return argv
}

func describe(root bool, argv []string) string {
	cmd := strings.Join(argv, " ")
	if root {
		return "sudo " + cmd
	}
	return cmd
}
