package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// RebuildLock guards an alias against concurrent rebuilds from several
// processes sharing a state directory.
type RebuildLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewRebuildLock returns the lock for alias under dir. The lock file is
// <dir>/<alias>.rebuild.lock.
func NewRebuildLock(dir, alias string) *RebuildLock {
	name := strings.NewReplacer("/", "_", string(filepath.Separator), "_").Replace(alias)
	path := filepath.Join(dir, name+".rebuild.lock")
	return &RebuildLock{path: path, flock: flock.New(path)}
}

// TryLock acquires the lock without blocking. It returns false when
// another process holds it.
func (l *RebuildLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.locked = acquired
	return acquired, nil
}

// Unlock releases the lock. Calling it on an unlocked lock is a no-op.
func (l *RebuildLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *RebuildLock) Path() string {
	return l.path
}
