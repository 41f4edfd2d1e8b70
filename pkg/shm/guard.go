//go:build unix

package shm

import (
	"sync"

	"golang.org/x/sys/unix"
)

// Guard is the reader-writer lock shared by every process attached to a
// segment. Cross-process exclusion uses flock(2) on the segment file;
// the embedded RWMutex serializes goroutines within one attachment,
// because flock does not exclude holders of the same file description.
//
// Acquisition blocks with no timeout and no cancellation. Exclusive
// access is required for any mutation; shared access suffices for
// read-only scans and permits concurrent readers. Callers must release
// on every exit path.
type Guard struct {
	mu sync.RWMutex

	// readerMu protects readers and the flock transitions tied to it.
	// Only the first in-process reader takes the shared flock and only
	// the last one drops it.
	readerMu sync.Mutex
	readers  int

	fd int
}

func newGuard(fd int) *Guard {
	return &Guard{fd: fd}
}

// Lock acquires the guard exclusively, blocking until every other
// holder, in this process or any other, has released.
func (g *Guard) Lock() error {
	g.mu.Lock()
	if err := flock(g.fd, unix.LOCK_EX); err != nil {
		g.mu.Unlock()
		return err
	}
	return nil
}

// Unlock releases an exclusive hold.
func (g *Guard) Unlock() error {
	err := flock(g.fd, unix.LOCK_UN)
	g.mu.Unlock()
	return err
}

// RLock acquires the guard shared.
func (g *Guard) RLock() error {
	g.mu.RLock()
	g.readerMu.Lock()
	defer g.readerMu.Unlock()

	if g.readers == 0 {
		if err := flock(g.fd, unix.LOCK_SH); err != nil {
			g.mu.RUnlock()
			return err
		}
	}
	g.readers++
	return nil
}

// RUnlock releases a shared hold.
func (g *Guard) RUnlock() error {
	g.readerMu.Lock()
	g.readers--
	var err error
	if g.readers == 0 {
		err = flock(g.fd, unix.LOCK_UN)
	}
	g.readerMu.Unlock()

	g.mu.RUnlock()
	return err
}

// flock retries on EINTR; flock(2) has no deadline semantics.
func flock(fd int, how int) error {
	for {
		err := unix.Flock(fd, how)
		if err != unix.EINTR {
			return err
		}
	}
}
