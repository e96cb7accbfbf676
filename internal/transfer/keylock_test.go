package transfer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	t.Parallel()

	km := NewKeyedMutex()
	const workers = 20

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("econ-a/user-1")
			defer km.Unlock("econ-a/user-1")
			// Unsynchronized on purpose: the keyed mutex is the only
			// thing keeping this race-free.
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	t.Parallel()

	km := NewKeyedMutex()
	km.Lock("econ-a/user-1")
	defer km.Unlock("econ-a/user-1")

	done := make(chan struct{})
	go func() {
		km.Lock("econ-b/user-1")
		km.Unlock("econ-b/user-1")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("independent key blocked behind an unrelated lock")
	}
}

func TestLockPairOppositeOrderNoDeadlock(t *testing.T) {
	t.Parallel()

	km := NewKeyedMutex()
	a := AccountKey("econ-a", "user-1")
	b := AccountKey("econ-b", "user-1")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			km.LockPair(a, b)
			km.UnlockPair(a, b)
		}()
		go func() {
			defer wg.Done()
			km.LockPair(b, a)
			km.UnlockPair(b, a)
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pair locking deadlocked")
	}
}

func TestKeyedMutexDropsIdleEntries(t *testing.T) {
	t.Parallel()

	km := NewKeyedMutex()
	km.Lock("k")
	km.Unlock("k")

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.held, "released keys must not accumulate")
}
