// Package lock provides per-user locking for concurrent balance
// operations. Accounts are keyed by username; unrelated users never
// block each other.
package lock

import (
	"context"
	"sync"
	"time"
)

// accountMutex wraps a mutex so instances can be pooled.
type accountMutex struct {
	mu sync.Mutex
}

// AccountLock serializes balance-modifying operations per username.
type AccountLock struct {
	locks sync.Map // map[string]*accountMutex
	pool  sync.Pool
}

// NewAccountLock creates a new AccountLock instance.
func NewAccountLock() *AccountLock {
	return &AccountLock{
		pool: sync.Pool{
			New: func() any {
				return &accountMutex{}
			},
		},
	}
}

// getLock retrieves or creates the mutex for the given username.
func (al *AccountLock) getLock(username string) *accountMutex {
	if v, ok := al.locks.Load(username); ok {
		return v.(*accountMutex)
	}

	newLock := al.pool.Get().(*accountMutex)
	actual, loaded := al.locks.LoadOrStore(username, newLock)
	if loaded {
		// Another goroutine created the lock first, return ours to pool
		al.pool.Put(newLock)
	}
	return actual.(*accountMutex)
}

// Lock acquires the lock for a username. It must be paired with Unlock.
func (al *AccountLock) Lock(username string) {
	al.getLock(username).mu.Lock()
}

// Unlock releases the lock for a username.
func (al *AccountLock) Unlock(username string) {
	if v, ok := al.locks.Load(username); ok {
		v.(*accountMutex).mu.Unlock()
	}
}

// TryLock attempts to acquire the lock without blocking.
func (al *AccountLock) TryLock(username string) bool {
	return al.getLock(username).mu.TryLock()
}

// LockWithTimeout attempts to acquire the lock, giving up after the
// timeout or when the context is cancelled.
func (al *AccountLock) LockWithTimeout(ctx context.Context, username string, timeout time.Duration) bool {
	lock := al.getLock(username)

	done := make(chan struct{})
	go func() {
		lock.mu.Lock()
		close(done)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-done:
		return true
	case <-timeoutCtx.Done():
		// The waiting goroutine will still acquire the mutex
		// eventually; release it when it does.
		go func() {
			<-done
			lock.mu.Unlock()
		}()
		return false
	}
}

// WithLock executes fn while holding the username's lock.
func (al *AccountLock) WithLock(username string, fn func() error) error {
	al.Lock(username)
	defer al.Unlock(username)
	return fn()
}

// WithLockContext executes fn while holding the username's lock, with a
// bounded wait for acquisition.
func (al *AccountLock) WithLockContext(ctx context.Context, username string, timeout time.Duration, fn func() error) error {
	if !al.LockWithTimeout(ctx, username, timeout) {
		return ErrLockTimeout
	}
	defer al.Unlock(username)

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fn()
	}
}
