// Package buildinfo reports what binary is running, from linker flags when
// a release build sets them and from Go build metadata otherwise.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// version is set by release builds:
//
//	go build -ldflags "-X github.com/tsukumogami/nativedep/internal/buildinfo.version=v1.2.0"
var version string

// Info is the version report printed by `nativedep version`.
type Info struct {
	Version   string
	Revision  string
	GoVersion string
	Platform  string

	// Deps lists the module versions of the libraries that talk to the
	// outside world, for bug reports.
	Deps map[string]string
}

// watched are the dependencies worth reporting.
var watched = []string{
	"github.com/google/go-github/v57",
	"github.com/klauspost/compress",
	"github.com/ulikunitz/xz",
	"golang.org/x/oauth2",
}

// Version returns the version string for the current build: the linker
// value, the module tag from go install, or a dev pseudo-version
// ("dev-<hash>[-dirty]", "dev", or "unknown" without build info).
func Version() string {
	if version != "" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return devVersion(info)
}

// Read collects the full report.
func Read() Info {
	out := Info{
		Version:   Version(),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Deps:      map[string]string{},
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		out.Revision, _ = vcs(info)
		out.Deps = deps(info)
	}
	return out
}

// String renders the report, one field per line after the version.
func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "nativedep %s\n", i.Version)
	if i.Revision != "" {
		fmt.Fprintf(&b, "  revision: %s\n", i.Revision)
	}
	fmt.Fprintf(&b, "  go:       %s\n", i.GoVersion)
	fmt.Fprintf(&b, "  platform: %s\n", i.Platform)
	for _, path := range watched {
		if v, ok := i.Deps[path]; ok {
			fmt.Fprintf(&b, "  %s %s\n", path, v)
		}
	}
	return b.String()
}

func deps(info *debug.BuildInfo) map[string]string {
	out := make(map[string]string)
	for _, d := range info.Deps {
		for _, w := range watched {
			if d.Path == w {
				out[d.Path] = d.Version
			}
		}
	}
	return out
}

func vcs(info *debug.BuildInfo) (revision string, modified bool) {
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	return revision, modified
}

// devVersion returns "dev-<hash>[-dirty]" if VCS info is available,
// otherwise "dev".
func devVersion(info *debug.BuildInfo) string {
	revision, modified := vcs(info)
	if revision == "" {
		return "dev"
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	v := "dev-" + revision
	if modified {
		v += "-dirty"
	}
	return v
}
