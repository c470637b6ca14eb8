package auction

import "sync"

// lockTable hands out one mutex per auction id so bid acceptance for a
// single auction is serialized in-process before the database guard even
// runs. Entries are never reaped; the footprint is one mutex per auction
// seen by this instance, which is bounded by the working set.
type lockTable struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[int64]*sync.Mutex)}
}

// Lock acquires the mutex for the given id and returns its unlock func.
func (t *lockTable) Lock(id int64) func() {
	t.mu.Lock()
	l, ok := t.locks[id]
	if !ok {
		l = &sync.Mutex{}
		t.locks[id] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}
