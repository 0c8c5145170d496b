package snkv

import (
	"sync"

	"go.etcd.io/bbolt"
)

// CF is a reference-counted handle to one column family: a name, the
// serial id assigned when its catalog entry was created, and (if point
// lookups have been done on it) a cached read cursor reused across calls
// (§4.5). Locking order is always CF mutex, then store mutex.
type CF struct {
	name string
	id   uint32

	mu       sync.Mutex
	refcount int32

	cursor    *bbolt.Cursor
	cursorGen uint64

	hasTTL bool
}

func newCF(name string, id uint32) *CF {
	return &CF{name: name, id: id, refcount: 1}
}

// Name returns the column family's name.
func (cf *CF) Name() string { return cf.name }

func (cf *CF) retain() {
	cf.mu.Lock()
	cf.refcount++
	cf.mu.Unlock()
}

// invalidateCursor force-closes the cached read cursor. Must be called
// before any write that could invalidate cursor position — deletions,
// upserts, expiry processing — per §4.3/§9's "cached cursor aliasing"
// design note. It takes no lock of its own: the data-path callers (Put,
// PutTTL, Delete, lazy expiry, PurgeExpired) already hold cf.mu, and
// sync.Mutex is not reentrant.
func (cf *CF) invalidateCursor() {
	cf.cursor = nil
	cf.cursorGen = 0
}

// cursorLocked returns a cursor over cf's bucket positioned against the
// store's current transaction, reusing the cached one when it is still
// current for a read transaction. Caller holds both cf.mu and s.mu, and
// s.mode != modeNone.
func (s *Store) cursorLocked(cf *CF) (*bbolt.Cursor, error) {
	if cf.cursor != nil && cf.cursorGen == s.readGen && s.mode == modeRead {
		return cf.cursor, nil
	}

	b := s.tx.Bucket([]byte(cf.name))
	if b == nil {
		return nil, ErrNotFound
	}
	cur := b.Cursor()
	if s.mode == modeRead {
		cf.cursor = cur
		cf.cursorGen = s.readGen
	}
	return cur, nil
}

// CloseCF decrements a CF's refcount; at zero (and never for the default
// CF) its cached cursor is dropped and it is evicted from the store's
// open-CF table (§4.5 close_cf). Locking order matches every other
// CF-touching operation: cf.mu first, then s.mu — never the reverse.
func (s *Store) CloseCF(cf *CF) {
	cf.mu.Lock()
	cf.refcount--
	rc := cf.refcount
	if rc <= 0 && cf.name != defaultCFName {
		cf.cursor = nil
		cf.cursorGen = 0
	}
	cf.mu.Unlock()

	if rc > 0 || cf.name == defaultCFName {
		return
	}

	s.mu.Lock()
	if s.cfs != nil {
		delete(s.cfs, cf.name)
	}
	s.mu.Unlock()
}

func ttlKeyCFName(name string) string { return "__snkv_ttl_k__" + name }
func ttlExpCFName(name string) string { return "__snkv_ttl_e__" + name }
