// Package envfile writes the hand-off file a later build sources before
// compiling against the provisioned library.
package envfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tsukumogami/nativedep/internal/acquire"
	"github.com/tsukumogami/nativedep/internal/archive"
	"github.com/tsukumogami/nativedep/internal/platform"
)

// Vars names the exported variables.
type Vars struct {
	// Header receives the full header path.
	Header string

	// LibraryPath receives the library directory. Empty selects the
	// loader search variable for the OS. Search-list variables (see
	// IsSearchList) get the directory prepended to their inherited value;
	// any other name, such as Z3_PYTHON_LIB, is set to the directory alone.
	LibraryPath string

	// LibraryFile receives the full shared library path when the exporter
	// is asked to write it.
	LibraryFile string
}

// DefaultVars returns the names the z3-sys build script reads.
func DefaultVars() Vars {
	return Vars{
		Header:      "Z3_SYS_Z3_HEADER",
		LibraryFile: "Z3_LIBRARY_FILE",
	}
}

// SearchPathVar returns the dynamic loader search variable for os.
func SearchPathVar(os platform.OSFamily) string {
	switch os {
	case platform.MacOS:
		return "DYLD_LIBRARY_PATH"
	case platform.Windows:
		return "PATH"
	}
	return "LD_LIBRARY_PATH"
}

// searchLists are the variables that hold a separator-joined list of
// directories rather than a single path.
var searchLists = map[string]bool{
	"LD_LIBRARY_PATH":            true,
	"DYLD_LIBRARY_PATH":          true,
	"DYLD_FALLBACK_LIBRARY_PATH": true,
	"LIBRARY_PATH":               true,
	"PATH":                       true,
}

// IsSearchList reports whether name is a directory list variable.
func IsSearchList(name string) bool {
	return searchLists[name]
}

// Error is returned when the file cannot be written.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("export environment to %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Exporter renders a Result as shell assignments.
type Exporter struct {
	Vars Vars
	OS   platform.OSFamily

	// Library is the library base name, used to derive the file name when
	// the result does not carry one.
	Library string

	// ExportLibraryFile adds the third assignment.
	ExportLibraryFile bool
}

// Render returns the file contents for r, one assignment per line.
func (e *Exporter) Render(r *acquire.Result) []byte {
	searchVar := e.Vars.LibraryPath
	if searchVar == "" {
		searchVar = SearchPathVar(e.OS)
	}
	sep := ":"
	if e.OS == platform.Windows {
		sep = ";"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "export %s=%s\n", e.Vars.Header, quote(r.HeaderPath))
	if IsSearchList(searchVar) {
		fmt.Fprintf(&b, "export %s=%s${%s:+%s$%s}\n", searchVar, quote(r.LibraryDir), searchVar, sep, searchVar)
	} else {
		fmt.Fprintf(&b, "export %s=%s\n", searchVar, quote(r.LibraryDir))
	}
	if e.ExportLibraryFile && e.Vars.LibraryFile != "" {
		file := r.LibraryFile
		if file == "" {
			file = filepath.Join(r.LibraryDir, archive.SharedLibraryName(e.OS, e.Library))
		}
		fmt.Fprintf(&b, "export %s=%s\n", e.Vars.LibraryFile, quote(file))
	}
	return []byte(b.String())
}

// Export replaces the file at path with the assignments for r. The
// content is written to a temporary file in the same directory and
// renamed into place, so readers never see a partial or merged file.
func (e *Exporter) Export(r *acquire.Result, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &Error{Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return &Error{Path: path, Err: err}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(e.Render(r)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return &Error{Path: path, Err: err}
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return &Error{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return &Error{Path: path, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return &Error{Path: path, Err: err}
	}
	return nil
}

// quote leaves plain paths alone and single-quotes anything a POSIX shell
// would interpret.
func quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, special) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func special(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("_-./:@%+=,", r)
}
