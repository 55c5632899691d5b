// Package workspace owns the jobs root directory on disk.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockName = ".montage.lock"

// Workspace is an exclusively locked jobs root. Each job gets its own
// subdirectory.
type Workspace struct {
	root string
	lock *flock.Flock
}

// Open creates root if needed and takes the lock. It fails fast when another
// process holds it.
func Open(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve jobs root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create jobs root: %w", err)
	}

	lock := flock.New(filepath.Join(abs, lockName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("jobs root %s is in use by another process", abs)
	}
	return &Workspace{root: abs, lock: lock}, nil
}

func (w *Workspace) Root() string { return w.root }

// JobDir is the working directory for jobID. It is not created here.
func (w *Workspace) JobDir(jobID string) string {
	return filepath.Join(w.root, jobID)
}

// LockPath is the lock file location.
func (w *Workspace) LockPath() string {
	return w.lock.Path()
}

func (w *Workspace) Close() error {
	return w.lock.Unlock()
}
