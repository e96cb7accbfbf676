package transfer

import (
	"sort"
	"sync"
)

// KeyedMutex serializes balance mutations per (economy, user) account key.
// The remote ledger's read-modify-write has no atomicity, so two concurrent
// operations on the same account would race; holding the account key for the
// duration of a saga closes that window within this process. The guarantee
// is process-local only.
type KeyedMutex struct {
	mu   sync.Mutex
	held map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{held: make(map[string]*keyLock)}
}

// AccountKey builds the lock key for one (economy, user) pair.
func AccountKey(economyID, userID string) string {
	return economyID + "/" + userID
}

// Lock blocks until the key is free.
func (k *KeyedMutex) Lock(key string) {
	k.mu.Lock()
	l, ok := k.held[key]
	if !ok {
		l = &keyLock{}
		k.held[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
}

// Unlock releases the key and drops its entry when nobody is waiting.
func (k *KeyedMutex) Unlock(key string) {
	k.mu.Lock()
	l, ok := k.held[key]
	if !ok {
		k.mu.Unlock()
		panic("transfer: unlock of unheld key " + key)
	}
	l.refs--
	if l.refs == 0 {
		delete(k.held, key)
	}
	k.mu.Unlock()

	l.mu.Unlock()
}

// LockPair acquires both keys in sorted order so two sagas touching the
// same accounts in opposite directions cannot deadlock.
func (k *KeyedMutex) LockPair(a, b string) {
	keys := []string{a, b}
	sort.Strings(keys)
	for _, key := range keys {
		k.Lock(key)
	}
}

// UnlockPair releases both keys.
func (k *KeyedMutex) UnlockPair(a, b string) {
	keys := []string{a, b}
	sort.Strings(keys)
	for i := len(keys) - 1; i >= 0; i-- {
		k.Unlock(keys[i])
	}
}
