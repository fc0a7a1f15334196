package night

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked reports that another coordinator owns the night.
var ErrLocked = errors.New("night is locked by another process")

// Lock is an exclusive advisory lock on one night.
type Lock struct {
	path string
	fl   *flock.Flock
}

// LockPath returns the lock file of n inside dir.
func LockPath(dir string, n Night) string {
	name := fmt.Sprintf("%s_%s_%s_%s.lock", n.Calibration, n.Model, n.Source, n.Date)
	return filepath.Join(dir, name)
}

// Acquire takes the lock without blocking. It returns ErrLocked when
// another process holds it.
func Acquire(dir string, n Night) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	path := LockPath(dir, n)
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, n)
	}
	return &Lock{path: path, fl: fl}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// Release drops the lock.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
