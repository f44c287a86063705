// Package state records the last successful acquisition so repeated runs
// on a provisioned machine can skip straight to re-exporting.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/tsukumogami/nativedep/internal/acquire"
)

// Key is what a recorded install was produced under. A record is only
// reused for an identical key.
type Key struct {
	// Profile is the PlatformProfile string.
	Profile string `json:"profile"`

	// Strategies is the priority list in effect for the run.
	Strategies []acquire.Name `json:"strategies"`

	Repo       string `json:"repo"`
	IncludeDir string `json:"include_dir"`
	LibDir     string `json:"lib_dir"`
	Header     string `json:"header"`
	Library    string `json:"library"`
}

// Record is the persisted form of one successful run.
type Record struct {
	Key

	Result      acquire.Result `json:"result"`
	InstalledAt time.Time      `json:"installed_at"`
}

// Matches reports whether the record was produced under k.
func (r *Record) Matches(k Key) bool {
	return r.Profile == k.Profile &&
		slices.Equal(r.Strategies, k.Strategies) &&
		r.Repo == k.Repo &&
		r.IncludeDir == k.IncludeDir &&
		r.LibDir == k.LibDir &&
		r.Header == k.Header &&
		r.Library == k.Library
}

// Store reads and writes the state file.
type Store struct {
	path string
}

// NewStore returns a Store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the state file location.
func (s *Store) Path() string { return s.path }

// Load returns the stored record, or nil when none exists.
func (s *Store) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", s.path, err)
	}
	return &rec, nil
}

// Save writes rec atomically: temp file, then rename.
func (s *Store) Save(rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}

// Clear removes the state file. A missing file is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}
