package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWithLockSerializes verifies that concurrent critical sections for
// the same username never overlap.
func TestWithLockSerializes(t *testing.T) {
	al := NewAccountLock()

	const goroutines = 50
	var inSection int
	var maxSeen int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = al.WithLock("alice", func() error {
				mu.Lock()
				inSection++
				if inSection > maxSeen {
					maxSeen = inSection
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inSection--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen, "critical sections overlapped")
}

// TestDifferentUsersDoNotBlock verifies lock granularity is per user.
func TestDifferentUsersDoNotBlock(t *testing.T) {
	al := NewAccountLock()

	al.Lock("alice")
	defer al.Unlock("alice")

	assert.True(t, al.TryLock("bob"), "bob should not be blocked by alice's lock")
	al.Unlock("bob")
}

func TestLockWithTimeout(t *testing.T) {
	al := NewAccountLock()
	ctx := context.Background()

	al.Lock("alice")
	acquired := al.LockWithTimeout(ctx, "alice", 20*time.Millisecond)
	assert.False(t, acquired, "should time out while alice is held")
	al.Unlock("alice")

	require.True(t, al.LockWithTimeout(ctx, "bob", 20*time.Millisecond))
	al.Unlock("bob")
}

func TestWithLockContextTimeout(t *testing.T) {
	al := NewAccountLock()

	al.Lock("alice")
	defer al.Unlock("alice")

	err := al.WithLockContext(context.Background(), "alice", 10*time.Millisecond, func() error {
		t.Fatal("critical section must not run after lock timeout")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockTimeout)
}
