package inmemory

import "sync"

type row[T any] struct {
	version uint64
	val     *T
}

// table holds committed records. Every committed write bumps the record version.
type table[T any] struct {
	rows  map[string]*row[T]
	clone func(*T) *T
}

func newTable[T any](clone func(*T) *T) *table[T] {
	return &table[T]{
		rows:  make(map[string]*row[T]),
		clone: clone,
	}
}

func (t *table[T]) version(id string) uint64 {
	if r, ok := t.rows[id]; ok {
		return r.version
	}

	return 0
}

func (t *table[T]) get(id string) (*T, bool) {
	r, ok := t.rows[id]
	if !ok {
		return nil, false
	}

	return t.clone(r.val), true
}

func (t *table[T]) put(id string, val *T) {
	r, ok := t.rows[id]
	if !ok {
		r = &row[T]{}
		t.rows[id] = r
	}

	r.version++
	r.val = t.clone(val)
}

func (t *table[T]) list(match func(*T) bool) []*T {
	res := make([]*T, 0)

	for _, r := range t.rows {
		if match(r.val) {
			res = append(res, t.clone(r.val))
		}
	}

	return res
}

// txTable is the transaction-local view of a table. It remembers the version
// of every record it has read and buffers writes until commit.
type txTable[T any] struct {
	src     *table[T]
	reads   map[string]uint64
	working map[string]*T
	dirty   map[string]struct{}
}

func newTxTable[T any](src *table[T]) *txTable[T] {
	return &txTable[T]{
		src:     src,
		reads:   make(map[string]uint64),
		working: make(map[string]*T),
		dirty:   make(map[string]struct{}),
	}
}

// load returns the working copy of a record, nil if it does not exist.
func (t *txTable[T]) load(mu *sync.RWMutex, id string) *T {
	if val, ok := t.working[id]; ok {
		return val
	}

	mu.RLock()
	val, _ := t.src.get(id)
	t.reads[id] = t.src.version(id)
	mu.RUnlock()

	t.working[id] = val

	return val
}

func (t *txTable[T]) store(id string, val *T) {
	t.working[id] = val
	t.dirty[id] = struct{}{}
}

// valid reports whether none of the records read were committed by someone
// else in the meantime. Caller holds the write lock.
func (t *txTable[T]) valid() bool {
	for id, ver := range t.reads {
		if t.src.version(id) != ver {
			return false
		}
	}

	return true
}

// apply publishes buffered writes. Caller holds the write lock.
func (t *txTable[T]) apply() {
	for id := range t.dirty {
		t.src.put(id, t.working[id])
	}
}
