package pidlock

import (
	"errors"
	"fmt"
	"os"

	"github.com/gofrs/flock"
)

// Held reports whether some process currently holds the exclusive lock on
// path. It is a read-only probe for status and stop --wait; starting always
// goes through TryAcquire. A missing file is reported as not held.
func Held(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat pid file: %w", err)
	}

	probe := flock.New(path)
	locked, err := probe.TryRLock()
	if err != nil {
		return false, fmt.Errorf("probe pid file lock: %w", err)
	}
	if !locked {
		return true, nil
	}
	if err := probe.Unlock(); err != nil {
		return false, fmt.Errorf("release probe lock: %w", err)
	}
	return false, nil
}
