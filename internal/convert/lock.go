package convert

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"ac3mux/internal/services"
)

// BatchLock guards against two batches running against the same state dir.
type BatchLock struct {
	lock *flock.Flock
}

// AcquireLock takes the process-wide batch lock at path without blocking.
func AcquireLock(path string) (*BatchLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "convert", "lock", "create state directory", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "convert", "lock", "acquire batch lock", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "convert", "lock", fmt.Sprintf("another ac3mux batch holds %s", path), nil)
	}
	return &BatchLock{lock: lock}, nil
}

// Release drops the lock.
func (l *BatchLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
