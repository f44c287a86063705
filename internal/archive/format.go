package archive

import (
	"fmt"
	"strings"

	"github.com/tsukumogami/nativedep/internal/platform"
)

// Format is an archive container and compression pair.
type Format string

const (
	Zip    Format = "zip"
	TarGz  Format = "tar.gz"
	TarXz  Format = "tar.xz"
	TarZst Format = "tar.zst"
	TarLz  Format = "tar.lz"
	Tar    Format = "tar"
)

// DetectFormat infers the format from a file name. Wheels are zip files.
func DetectFormat(name string) (Format, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"), strings.HasSuffix(lower, ".whl"):
		return Zip, nil
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return TarGz, nil
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return TarXz, nil
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return TarZst, nil
	case strings.HasSuffix(lower, ".tar.lz"), strings.HasSuffix(lower, ".tlz"):
		return TarLz, nil
	case strings.HasSuffix(lower, ".tar"):
		return Tar, nil
	}
	return "", fmt.Errorf("unrecognized archive format: %s", name)
}

// SharedLibraryName returns the platform file name for library base, e.g.
// "libz3.so" on linux for base "z3".
func SharedLibraryName(os platform.OSFamily, base string) string {
	switch os {
	case platform.MacOS:
		return "lib" + base + ".dylib"
	case platform.Windows:
		return "lib" + base + ".dll"
	default:
		return "lib" + base + ".so"
	}
}
