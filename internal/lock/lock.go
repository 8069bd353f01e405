// Package lock provides the distributed lock used to serialize scheduled
// jobs across worker instances. Each job wraps its run in RunExclusively
// with a job-unique key; when another instance already holds the key, the
// run is skipped silently (expected contention, not an error).
package lock

import (
	"context"
	"time"
)

// Locker is the acquire/release abstraction over a named, TTL-boxed lock.
// Production uses the Redis implementation; tests use the in-memory one.
type Locker interface {
	// Acquire attempts to take the named lock for at most ttl. It returns
	// acquired=false without error when another holder owns the key. The
	// returned release function is non-nil only when acquired; calling it
	// releases the lock early (the TTL covers crashed holders).
	Acquire(ctx context.Context, key string, ttl time.Duration) (acquired bool, release func(context.Context) error, err error)
}

// RunExclusively acquires the named lock, runs body while holding it, and
// releases it on completion. If the lock is held elsewhere the call is a
// no-op and returns (false, nil). Acquisition errors are returned so the
// caller can distinguish coordinator outages from contention.
func RunExclusively(ctx context.Context, l Locker, key string, ttl time.Duration, body func(ctx context.Context) error) (ran bool, err error) {
	acquired, release, err := l.Acquire(ctx, key, ttl)
	if err != nil {
		return false, err
	}
	if !acquired {
		return false, nil
	}
	defer func() {
		// Release best-effort: an expired or lost lock is already safe to
		// leave behind, the TTL bounds its lifetime.
		_ = release(context.WithoutCancel(ctx))
	}()

	return true, body(ctx)
}
