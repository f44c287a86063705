// Package lock keeps two provisioning runs from writing the same install
// root and env file at once.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrBusy is returned when another process holds the lock.
var ErrBusy = errors.New("another nativedep run holds the lock")

// Metadata is written into the lock file for debugging stuck runs.
type Metadata struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Lock is an acquired exclusive lock.
type Lock struct {
	file *os.File
}

// Acquire takes the lock at path without blocking. It returns ErrBusy
// (wrapped with the holder's metadata when readable) if the lock is held.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := tryLock(file); err != nil {
		_ = file.Close()
		if errors.Is(err, ErrBusy) {
			if md, rerr := Read(path); rerr == nil {
				return nil, fmt.Errorf("%w (pid %d since %s)", ErrBusy, md.PID, md.AcquiredAt.Format(time.RFC3339))
			}
		}
		return nil, err
	}

	md := Metadata{PID: os.Getpid(), AcquiredAt: time.Now()}
	if err := file.Truncate(0); err == nil {
		if _, err := file.Seek(0, 0); err == nil {
			_ = json.NewEncoder(file).Encode(md)
		}
	}
	return &Lock{file: file}, nil
}

// Release drops the lock. The file stays in place: a process blocked on
// the old file must contend with later runs for the same inode. Safe to
// call twice.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unlock(l.file)
	closeErr := l.file.Close()
	l.file = nil

	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close lock file: %w", closeErr)
	}
	return nil
}

// Read returns the metadata stored in the lock file at path.
func Read(path string) (Metadata, error) {
	var md Metadata
	data, err := os.ReadFile(path)
	if err != nil {
		return md, err
	}
	err = json.Unmarshal(data, &md)
	return md, err
}
