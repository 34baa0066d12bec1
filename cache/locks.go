package cache

import "sync"

// lockTable hands out one mutex per key. Entries are created on first use
// and never removed, so the table grows with the number of distinct keys.
// TODO: drop a key's mutex once its last waiter releases it (needs a
// reference count next to each mutex).
type lockTable struct {
	locks sync.Map // canonical key -> *sync.Mutex
}

// lock blocks until the mutex for key is held and returns it.
func (t *lockTable) lock(key Key) *sync.Mutex {
	v, ok := t.locks.Load(key.id)
	if !ok {
		v, _ = t.locks.LoadOrStore(key.id, new(sync.Mutex))
	}
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu
}

// len returns the number of keys that ever contended.
func (t *lockTable) len() int {
	n := 0
	t.locks.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
