package workflow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrPassInProgress is returned when another process holds the pass lock.
var ErrPassInProgress = errors.New("another triage pass is in progress")

// PassLock guarantees one running pass per data directory.
type PassLock struct {
	path string
	lock *flock.Flock
}

// NewPassLock returns an unlocked PassLock for path.
func NewPassLock(path string) *PassLock {
	return &PassLock{path: path, lock: flock.New(path)}
}

// Path returns the lock file location.
func (l *PassLock) Path() string {
	return l.path
}

// Acquire takes the lock without blocking. It returns ErrPassInProgress when
// the lock is held elsewhere.
func (l *PassLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire pass lock: %w", err)
	}
	if !ok {
		return ErrPassInProgress
	}
	return nil
}

// Release drops the lock.
func (l *PassLock) Release() error {
	return l.lock.Unlock()
}
