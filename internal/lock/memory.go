package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is a process-local Locker for unit tests and single-instance
// local development. TTL expiry is honored so tests can exercise the
// slow-holder scenario.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time // key -> expiry
	clock func() time.Time
}

// NewMemoryLocker creates an empty in-memory locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held:  make(map[string]time.Time),
		clock: time.Now,
	}
}

// Acquire takes the lock unless a non-expired holder exists.
func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (bool, func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if expiry, ok := l.held[key]; ok && expiry.After(now) {
		return false, nil, nil
	}
	l.held[key] = now.Add(ttl)

	release := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}
	return true, release, nil
}

// Compile-time assertion that MemoryLocker implements Locker.
var _ Locker = (*MemoryLocker)(nil)
