package release

import (
	"fmt"
	"strings"

	"github.com/tsukumogami/nativedep/internal/platform"
)

// Channel is the distribution format an asset is resolved for.
type Channel string

const (
	// Archive is the upstream binary release archive.
	Archive Channel = "archive"
	// Wheel is the prebuilt Python wheel carrying the shared library.
	Wheel Channel = "wheel"
)

// Asset is one downloadable file attached to a release.
type Asset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"download_url"`
	Size        int64  `json:"size,omitempty"`
}

// Pattern selects an asset by name. Every Contains substring and the Suffix
// must be present. Matching is case-sensitive.
type Pattern struct {
	Contains []string `toml:"contains"`
	Suffix   string   `toml:"suffix"`
}

// Match reports whether name satisfies the pattern.
func (p Pattern) Match(name string) bool {
	if p.Suffix != "" && !strings.HasSuffix(name, p.Suffix) {
		return false
	}
	for _, s := range p.Contains {
		if !strings.Contains(name, s) {
			return false
		}
	}
	return true
}

func (p Pattern) String() string {
	return fmt.Sprintf("*%s*%s", strings.Join(p.Contains, "*"), p.Suffix)
}

// Select returns the first asset in document order that matches p.
func Select(assets []Asset, p Pattern) (Asset, bool) {
	for _, a := range assets {
		if p.Match(a.Name) {
			return a, true
		}
	}
	return Asset{}, false
}

// Table maps a lookup key (see Key) to the pattern for that platform.
type Table map[string]Pattern

// Key builds the table key "channel/os/arch". Linux hosts on musl use the
// OS component "linux-musl".
func Key(ch Channel, p platform.Profile) string {
	os := string(p.OS)
	if p.OS == platform.Linux && p.Libc == "musl" {
		os += "-musl"
	}
	return fmt.Sprintf("%s/%s/%s", ch, os, p.Arch)
}

// DefaultTable follows the upstream naming scheme. Upstream publishes no
// musl builds; those entries exist so musl hosts fail with a clean
// no-match instead of picking a glibc binary.
func DefaultTable() Table {
	return Table{
		"archive/linux/x86_64":       {Contains: []string{"x64-glibc"}, Suffix: ".zip"},
		"archive/linux/aarch64":      {Contains: []string{"arm64-glibc"}, Suffix: ".zip"},
		"archive/linux-musl/x86_64":  {Contains: []string{"x64-musl"}, Suffix: ".zip"},
		"archive/linux-musl/aarch64": {Contains: []string{"arm64-musl"}, Suffix: ".zip"},
		"archive/macos/x86_64":       {Contains: []string{"x64-osx"}, Suffix: ".zip"},
		"archive/macos/aarch64":      {Contains: []string{"arm64-osx"}, Suffix: ".zip"},
		"archive/windows/x86_64":     {Contains: []string{"x64-win"}, Suffix: ".zip"},
		"archive/windows/aarch64":    {Contains: []string{"arm64-win"}, Suffix: ".zip"},

		"wheel/linux/x86_64":       {Contains: []string{"manylinux", "x86_64"}, Suffix: ".whl"},
		"wheel/linux/aarch64":      {Contains: []string{"manylinux", "aarch64"}, Suffix: ".whl"},
		"wheel/linux-musl/x86_64":  {Contains: []string{"musllinux", "x86_64"}, Suffix: ".whl"},
		"wheel/linux-musl/aarch64": {Contains: []string{"musllinux", "aarch64"}, Suffix: ".whl"},
		"wheel/macos/x86_64":       {Contains: []string{"macosx", "x86_64"}, Suffix: ".whl"},
		"wheel/macos/aarch64":      {Contains: []string{"macosx", "arm64"}, Suffix: ".whl"},
		"wheel/windows/x86_64":     {Contains: []string{"win_amd64"}, Suffix: ".whl"},
		"wheel/windows/aarch64":    {Contains: []string{"win_arm64"}, Suffix: ".whl"},
	}
}

// Merge returns a copy of t with the entries of override replacing its own.
func (t Table) Merge(override Table) Table {
	out := make(Table, len(t)+len(override))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// Lookup finds the pattern for a channel and profile. Architectures outside
// the mapped set are rejected before the table is consulted.
func (t Table) Lookup(ch Channel, p platform.Profile) (Pattern, error) {
	if !p.Arch.IsKnown() {
		return Pattern{}, newError(UnsupportedArchitecture, ch, p,
			fmt.Errorf("no %s asset mapping for architecture %q", ch, p.Arch))
	}
	pat, ok := t[Key(ch, p)]
	if !ok {
		return Pattern{}, newError(UnsupportedArchitecture, ch, p,
			fmt.Errorf("no %s asset mapping for %s", ch, Key(ch, p)))
	}
	return pat, nil
}
