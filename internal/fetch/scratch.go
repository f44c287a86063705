package fetch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Scratch is a process-private temporary directory. Everything a strategy
// downloads or extracts lives here until Close removes it.
type Scratch struct {
	dir  string
	once sync.Once
	err  error
}

// NewScratch creates a fresh directory under the system temp dir.
func NewScratch() (*Scratch, error) {
	dir, err := os.MkdirTemp("", "nativedep-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	return &Scratch{dir: dir}, nil
}

// Dir returns the scratch root.
func (s *Scratch) Dir() string { return s.dir }

// Path joins elem onto the scratch root.
func (s *Scratch) Path(elem ...string) string {
	return filepath.Join(append([]string{s.dir}, elem...)...)
}

// Close removes the directory tree. It is safe to call more than once.
func (s *Scratch) Close() error {
	s.once.Do(func() {
		s.err = os.RemoveAll(s.dir)
	})
	return s.err
}
