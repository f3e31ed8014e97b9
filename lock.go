// OS-level file locking for single-instance enforcement.
//
// fileLock wraps flock(2) / LockFileEx with a mutex that guards the
// file handle's lifetime. The mutex is held for the entire duration of
// the lock syscall so that Fd() cannot race with Close() on the same
// *os.File. Only exclusive locking is needed: the archive has exactly
// one writer and in-process readers share its handle.
package ledger

import (
	"os"
	"sync"
)

// fileLock coordinates an exclusive OS-level lock with safe handle
// teardown. The mu field serialises lock syscalls against setFile so
// that a concurrent Close cannot invalidate the fd mid-syscall.
type fileLock struct {
	mu sync.Mutex
	f  *os.File
}

// Lock acquires an exclusive lock on the whole file, blocking until it
// is available. Returns nil immediately if the handle has been cleared
// via setFile(nil).
func (l *fileLock) Lock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	return l.lock()
}

// Unlock releases the lock. Returns nil immediately if the handle has
// been cleared via setFile(nil).
func (l *fileLock) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	return l.unlock()
}

// setFile swaps the underlying file handle. Passing nil drains any
// in-flight lock syscall and disables further locking.
func (l *fileLock) setFile(f *os.File) {
	l.mu.Lock()
	l.f = f
	l.mu.Unlock()
}
