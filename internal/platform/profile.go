// Package platform captures the host OS family and CPU architecture.
//
// A Profile is computed once at startup and never mutated. Asset matching
// and system package selection read it; nothing else in the process
// inspects runtime.GOOS or runtime.GOARCH directly.
package platform

import (
	"fmt"
	"runtime"
)

// OSFamily is the operating system family.
type OSFamily string

const (
	Linux   OSFamily = "linux"
	MacOS   OSFamily = "macos"
	Windows OSFamily = "windows"
)

// Arch is a CPU architecture. X86_64 and Aarch64 are the only values with
// known asset mappings; anything else is carried verbatim (e.g. "ppc64le").
type Arch string

const (
	X86_64  Arch = "x86_64"
	Aarch64 Arch = "aarch64"
)

// SupportedTargets lists the architectures accepted as an explicit target.
var SupportedTargets = []string{string(X86_64), string(Aarch64)}

// IsKnown reports whether a is one of the mapped architectures.
func (a Arch) IsKnown() bool {
	return a == X86_64 || a == Aarch64
}

// Profile is the immutable platform description of the build machine.
type Profile struct {
	OS   OSFamily
	Arch Arch

	// Libc is "glibc" or "musl" on linux, empty elsewhere.
	Libc string

	// LinuxFamily is the distro family (debian, rhel, ...) on linux.
	// Empty when /etc/os-release is absent or on other systems.
	LinuxFamily string
}

// String renders the profile as "os/arch".
func (p Profile) String() string {
	return fmt.Sprintf("%s/%s", p.OS, p.Arch)
}

// WithArch returns a copy of p targeting a different architecture.
func (p Profile) WithArch(a Arch) Profile {
	p.Arch = a
	return p
}

// ParseArch normalizes an architecture name. Go and uname spellings are
// both accepted ("amd64", "x86_64", "arm64", "aarch64"). Unrecognized
// names are returned unchanged as an "other" architecture.
func ParseArch(s string) Arch {
	switch s {
	case "amd64", "x86_64", "x64":
		return X86_64
	case "arm64", "aarch64":
		return Aarch64
	default:
		return Arch(s)
	}
}

// ParseOSFamily maps a GOOS value to an OSFamily.
func ParseOSFamily(goos string) (OSFamily, error) {
	switch goos {
	case "linux":
		return Linux, nil
	case "darwin":
		return MacOS, nil
	case "windows":
		return Windows, nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", goos)
	}
}

// Detect computes the Profile for the running host.
func Detect() (Profile, error) {
	osFamily, err := ParseOSFamily(runtime.GOOS)
	if err != nil {
		return Profile{}, err
	}

	p := Profile{
		OS:   osFamily,
		Arch: detectArch(),
	}
	if osFamily != Linux {
		return p, nil
	}

	family, err := DetectFamily()
	if err != nil {
		// An unknown distro still gets a usable profile; only the system
		// package strategy needs the family.
		family = ""
	}
	p.LinuxFamily = family
	p.Libc = DetectLibc()
	return p, nil
}

// detectArch prefers runtime.GOARCH for the two mapped architectures and
// falls back to the kernel's machine string for everything else, so an
// unsupported host reports its native spelling ("ppc64", "s390x").
func detectArch() Arch {
	if a := ParseArch(runtime.GOARCH); a.IsKnown() {
		return a
	}
	if m := machine(); m != "" {
		return ParseArch(m)
	}
	return Arch(runtime.GOARCH)
}
