package runlock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/nodewarden/nodewarden/internal/config"
	"github.com/nodewarden/nodewarden/internal/logger"
)

// ErrHeld is returned when another live process holds the lock.
var ErrHeld = errors.New("run lock is held")

// Lock is a file-based mutual exclusion guard holding the owner's pid.
// A second invocation finding a live holder must exit immediately rather
// than queue.
type Lock struct {
	// path is the filesystem location of the lock file.
	path string
	// acquired marks whether this process currently owns the lock.
	acquired bool
}

// New creates a lock at the provided path. The lock is not acquired yet.
func New(path string) *Lock {
	return &Lock{
		path: filepath.Clean(path),
	}
}

// TryAcquire takes the lock or returns ErrHeld when a live holder exists.
// A lock file whose holder pid is no longer alive is reclaimed.
func (l *Lock) TryAcquire(ctx context.Context) error {
	contents, err := os.ReadFile(l.path)

	switch {
	case err == nil:
		holder, parseErr := strconv.Atoi(strings.TrimSpace(string(contents)))
		if parseErr == nil && holderAlive(holder) {
			return fmt.Errorf("%w by pid %d", ErrHeld, holder)
		}

		logger.InfoKV(ctx, "Reclaiming stale run lock", "path", l.path)

		if err = os.Remove(l.path); err != nil {
			return fmt.Errorf("remove stale lock: %w", err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("read lock file: %w", err)
	}

	pid := strconv.Itoa(os.Getpid())
	if err = os.WriteFile(l.path, []byte(pid), config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write lock file: %w", err)
	}

	l.acquired = true

	return nil
}

// Release removes the lock file. It is safe to call unconditionally and is
// intended for defer so the lock is dropped on every exit path.
func (l *Lock) Release(ctx context.Context) {
	if !l.acquired {
		return
	}

	l.acquired = false

	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Failed to release run lock", "path", l.path, "error", err)
	}
}

// holderAlive reports whether the pid still names a running process.
func holderAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		// When the process table cannot be read, assume the holder is alive
		// rather than break mutual exclusion.
		return true
	}

	return process != nil
}
