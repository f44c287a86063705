//go:build unix

package lock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAcquire_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nativedep.lock")

	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	md, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if md.PID != os.Getpid() {
		t.Errorf("PID = %d, want %d", md.PID, os.Getpid())
	}

	// flock locks belong to the open file description, so a second open
	// in the same process conflicts like another process would.
	if _, err := Acquire(path); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Acquire() error = %v, want ErrBusy", err)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("second Release() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("lock file removed by Release: %v", err)
	}

	l2, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() after Release error = %v", err)
	}
	_ = l2.Release()
}

// A process that opened the lock file before it was released must
// exclude later runs once it takes the lock.
func TestRelease_KeepsInodeForWaiters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nativedep.lock")

	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	waiter, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = waiter.Close() }()

	if err := l.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := tryLock(waiter); err != nil {
		t.Fatalf("waiter could not take the released lock: %v", err)
	}
	defer func() { _ = unlock(waiter) }()

	if third, err := Acquire(path); !errors.Is(err, ErrBusy) {
		_ = third.Release()
		t.Fatalf("Acquire() while the waiter holds the lock: error = %v, want ErrBusy", err)
	}
}
