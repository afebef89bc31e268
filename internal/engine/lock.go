package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFile is the single-writer lock file inside an index directory.
const LockFile = "writer.lock"

// writerLock provides cross-process exclusion for an index directory
// using gofrs/flock. Two sessions in the same process also exclude each
// other because each lock holds its own file descriptor.
type writerLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

func newWriterLock(dir string) *writerLock {
	lockPath := filepath.Join(dir, LockFile)
	return &writerLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false if it's held elsewhere.
func (l *writerLock) TryLock() (bool, error) {
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Safe to call on an unlocked writerLock.
func (l *writerLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// lockHeld reports whether another holder owns the writer lock of dir.
// A missing lock file means nobody has opened the index for writing.
func lockHeld(dir string) (bool, error) {
	lockPath := filepath.Join(dir, LockFile)
	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		return false, nil
	}

	probe := newWriterLock(dir)
	acquired, err := probe.TryLock()
	if err != nil {
		return false, err
	}
	if !acquired {
		return true, nil
	}
	return false, probe.Unlock()
}
