package monitor

import (
	"fmt"
	"syscall"
)

// FreeDiskBytes reports the bytes available to unprivileged users on the
// filesystem holding path.
func FreeDiskBytes(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}

	//nolint:gosec,unconvert // Bavail and Bsize are non-negative block counts.
	return uint64(stat.Bavail) * uint64(stat.Bsize), nil
}
