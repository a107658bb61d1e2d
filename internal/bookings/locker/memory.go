package locker

import (
	"context"
	"fmt"
	"sync"
	"time"

	bookingserrors "docslot/internal/bookings/errors"
)

// MemoryLocker is an in-process keyed mutex. Entries are reference counted and removed
// once nobody holds or waits for them.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[Key]*memoryEntry
	timeout time.Duration
}

type memoryEntry struct {
	sem  chan struct{}
	refs int
}

func NewMemoryLocker(timeout time.Duration) *MemoryLocker {
	return &MemoryLocker{
		entries: make(map[Key]*memoryEntry),
		timeout: timeout,
	}
}

func (l *MemoryLocker) Backend() string {
	return "memory"
}

func (l *MemoryLocker) Acquire(ctx context.Context, key Key) (Lease, error) {
	e := l.ref(key)

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case e.sem <- struct{}{}:
		return &memoryLease{locker: l, key: key, entry: e}, nil
	case <-timer.C:
		l.unref(key, e)
		return nil, fmt.Errorf("%w: %s after %s", bookingserrors.ErrLockTimeout, key, l.timeout)
	case <-ctx.Done():
		l.unref(key, e)
		return nil, fmt.Errorf("%w: %s: %v", bookingserrors.ErrLockTimeout, key, ctx.Err())
	}
}

func (l *MemoryLocker) ref(key Key) *memoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &memoryEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *MemoryLocker) unref(key Key, e *memoryEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// size reports the number of live keys.
func (l *MemoryLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

type memoryLease struct {
	locker *MemoryLocker
	key    Key
	entry  *memoryEntry
	once   sync.Once
}

func (ls *memoryLease) Release(context.Context) error {
	ls.once.Do(func() {
		<-ls.entry.sem
		ls.locker.unref(ls.key, ls.entry)
	})
	return nil
}
