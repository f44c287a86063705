package pkgmgr

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/tsukumogami/nativedep/internal/platform"
	"github.com/tsukumogami/nativedep/internal/sysexec"
)

var linuxIncludeDirs = []string{"/usr/include", "/usr/include/z3", "/usr/local/include"}

// rpmManager covers yum and dnf, which share a command line.
type rpmManager struct {
	kind Kind
}

func (m *rpmManager) Kind() Kind         { return m.kind }
func (m *rpmManager) Executable() string { return string(m.kind) }

func (m *rpmManager) argv(packages []string) []string {
	return append([]string{string(m.kind), "install", "-y"}, packages...)
}

func (m *rpmManager) Install(ctx context.Context, r sysexec.Runner, packages ...string) error {
	argv := elevate(r, m.argv(packages))
	return r.Run(ctx, argv[0], argv[1:]...)
}

func (m *rpmManager) Locations(_ context.Context, _ sysexec.Runner, _ platform.Profile) Locations {
	return Locations{
		IncludeDirs: linuxIncludeDirs,
		LibDirs:     []string{"/usr/lib64", "/usr/lib", "/usr/local/lib64", "/usr/local/lib"},
	}
}

func (m *rpmManager) Describe(packages ...string) string {
	return describe(true, m.argv(packages))
}

type aptManager struct{}

func (m *aptManager) Kind() Kind         { return Apt }
func (m *aptManager) Executable() string { return "apt-get" }

func (m *aptManager) argv(packages []string) []string {
	return append([]string{"apt-get", "install", "-y", "--no-install-recommends"}, packages...)
}

// Install refreshes the package index first. A failed refresh is not fatal
// on its own since the cached index may still carry the package; it is
// reported alongside the install error if that fails too.
func (m *aptManager) Install(ctx context.Context, r sysexec.Runner, packages ...string) error {
	noninteractive := []string{"env", "DEBIAN_FRONTEND=noninteractive"}

	update := elevate(r, append(noninteractive, "apt-get", "update", "-q"))
	updateErr := r.Run(ctx, update[0], update[1:]...)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	install := elevate(r, append(noninteractive, m.argv(packages)...))
	if err := r.Run(ctx, install[0], install[1:]...); err != nil {
		return errors.Join(err, updateErr)
	}
	return nil
}

func (m *aptManager) Locations(_ context.Context, _ sysexec.Runner, p platform.Profile) Locations {
	libDirs := []string{"/usr/lib", "/usr/local/lib"}
	if triplet := multiarchTriplet(p.Arch); triplet != "" {
		libDirs = append([]string{filepath.Join("/usr/lib", triplet)}, libDirs...)
	}
	return Locations{IncludeDirs: linuxIncludeDirs, LibDirs: libDirs}
}

func (m *aptManager) Describe(packages ...string) string {
	return describe(true, m.argv(packages))
}

func multiarchTriplet(a platform.Arch) string {
	switch a {
	case platform.X86_64:
		return "x86_64-linux-gnu"
	case platform.Aarch64:
		return "aarch64-linux-gnu"
	}
	return ""
}

// brewManager never escalates; Homebrew refuses to run as root.
type brewManager struct{}

func (m *brewManager) Kind() Kind         { return Brew }
func (m *brewManager) Executable() string { return "brew" }

func (m *brewManager) Install(ctx context.Context, r sysexec.Runner, packages ...string) error {
	return r.Run(ctx, "brew", append([]string{"install"}, packages...)...)
}

func (m *brewManager) Locations(ctx context.Context, r sysexec.Runner, p platform.Profile) Locations {
	prefix := defaultBrewPrefix(p)
	if out, err := r.Output(ctx, "brew", "--prefix"); err == nil {
		if s := strings.TrimSpace(string(out)); s != "" {
			prefix = s
		}
	}
	return Locations{
		IncludeDirs: []string{filepath.Join(prefix, "include")},
		LibDirs:     []string{filepath.Join(prefix, "lib")},
	}
}

func (m *brewManager) Describe(packages ...string) string {
	return describe(false, append([]string{"brew", "install"}, packages...))
}

func defaultBrewPrefix(p platform.Profile) string {
	switch {
	case p.OS == platform.MacOS && p.Arch == platform.Aarch64:
		return "/opt/homebrew"
	case p.OS == platform.Linux:
		return "/home/linuxbrew/.linuxbrew"
	default:
		return "/usr/local"
	}
}
