package indexer

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/neoarchlinux/pkgdex/pkg/types"
)

// IndexLock provides non-blocking lock semantics using atomic operations.
// It guards against concurrent update runs within a single process; the
// advisory file lock below covers separate processes sharing one cache.
type IndexLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
// Returns true if the lock was successfully acquired, false otherwise.
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// lockRetryInterval is how often a blocked update re-checks the file lock.
const lockRetryInterval = 200 * time.Millisecond

// acquireFileLock takes an exclusive advisory lock on path, retrying until
// timeout elapses. A zero timeout means a single attempt. The returned
// function releases the lock.
func acquireFileLock(path string, timeout time.Duration) (func(), error) {
	fl := flock.New(path)
	deadline := time.Now().Add(timeout)
	for {
		locked, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("cannot acquire update lock: %w", err)
		}
		if locked {
			return func() { _ = fl.Unlock() }, nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w (lock: %s)", types.ErrUpdateInProgress, path)
		}
		time.Sleep(lockRetryInterval)
	}
}
