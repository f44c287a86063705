package acquire

import (
	"fmt"
	"os"
)

// Result is the output contract of every strategy: a header file and the
// directory holding the shared library. Downstream builds depend on these
// paths only, never on how they were produced.
type Result struct {
	HeaderPath string `json:"header_path"`
	LibraryDir string `json:"library_dir"`

	// LibraryFile is the shared library itself, when known.
	LibraryFile string `json:"library_file,omitempty"`

	// Provenance, for status output and the skip check.
	Strategy Name   `json:"strategy"`
	Version  string `json:"version,omitempty"`
	Source   string `json:"source,omitempty"`
}

// Validate checks that the header is a readable file and the library
// directory exists. A result that fails validation is never exported.
func (r Result) Validate() error {
	if r.HeaderPath == "" || r.LibraryDir == "" {
		return fmt.Errorf("incomplete result: header %q, library dir %q", r.HeaderPath, r.LibraryDir)
	}
	f, err := os.Open(r.HeaderPath)
	if err != nil {
		return fmt.Errorf("header: %w", err)
	}
	info, err := f.Stat()
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("header: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("header %s is a directory", r.HeaderPath)
	}

	info, err = os.Stat(r.LibraryDir)
	if err != nil {
		return fmt.Errorf("library dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("library dir %s is not a directory", r.LibraryDir)
	}
	if r.LibraryFile != "" {
		if _, err := os.Stat(r.LibraryFile); err != nil {
			return fmt.Errorf("library: %w", err)
		}
	}
	return nil
}
