// Package lockfile provides directory-based locking to prevent multiple
// clario instances from sharing one state directory.
//
// The lock is held via an OS-level flock that is released automatically when
// the process exits, gracefully or not, so a crash never strands the lock.
package lockfile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the name of the lock file created in the state directory.
const LockFileName = "clario.lock"

// Lock represents an active state directory lock.
type Lock struct {
	fl       *flock.Flock
	path     string
	acquired bool
}

// AcquireLock attempts to acquire an exclusive lock on the state directory.
// It fails immediately, without blocking, when another instance already holds
// the lock.
func AcquireLock(stateDir string) (*Lock, error) {
	lockPath := filepath.Join(stateDir, LockFileName)

	slog.Debug("lockfile.AcquireLock: attempting to acquire lock", "lockPath", lockPath)

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock on %s: %w", lockPath, err)
	}
	if !locked {
		slog.Error("lockfile.AcquireLock: lock already held by another instance", "lockPath", lockPath)
		return nil, &LockError{LockPath: lockPath}
	}

	// Record our pid for operators diagnosing a held lock.
	if err := os.WriteFile(lockPath, []byte(fmt.Sprintf("pid=%d\n", os.Getpid())), 0o644); err != nil {
		slog.Warn("lockfile.AcquireLock: failed to write lock information", "error", err, "lockPath", lockPath)
	}

	slog.Info("lockfile.AcquireLock: acquired state directory lock", "lockPath", lockPath, "pid", os.Getpid())
	return &Lock{fl: fl, path: lockPath, acquired: true}, nil
}

// Release releases the lock and removes the lock file. Safe to call more
// than once.
func (l *Lock) Release() error {
	if !l.acquired || l.fl == nil {
		return nil
	}

	if err := l.fl.Unlock(); err != nil {
		slog.Error("lockfile.Release: failed to release flock", "error", err, "lockPath", l.path)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("lockfile.Release: failed to remove lock file", "error", err, "lockPath", l.path)
	}

	l.acquired = false
	l.fl = nil
	slog.Info("lockfile.Release: released state directory lock", "lockPath", l.path)
	return nil
}

// LockError reports that another instance holds the state directory lock.
type LockError struct {
	LockPath string
}

func (e *LockError) Error() string {
	return fmt.Sprintf("another clario instance is already running using the same state directory (lock file: %s). "+
		"If no other instance is running, remove the stale lock file with: rm %s", e.LockPath, e.LockPath)
}
