// SPDX-License-Identifier: AGPL-3.0-only
package singleton

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock represents an acquired singleton lock for a database path.
type Lock struct {
	flock *flock.Flock
}

// TryAcquire attempts to acquire a singleton lock for the given database
// path, creating parent directories if needed. It returns the lock and true
// if acquired (this instance owns the history DB), or nil and false if the
// lock is already held by another process. Callers that lose the race should
// run with history disabled rather than refuse to start.
func TryAcquire(dbPath string) (*Lock, bool, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, false, fmt.Errorf("singleton: create lock directory: %w", err)
	}
	lockPath := dbPath + ".lock"

	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("singleton: try lock %s: %w", lockPath, err)
	}
	if !locked {
		return nil, false, nil
	}
	return &Lock{flock: fl}, true, nil
}

// Release releases the singleton lock.
func (l *Lock) Release() error {
	return l.flock.Unlock()
}
