package snkv

import (
	"bytes"

	"go.etcd.io/bbolt"
)

// Iterator walks a column family's data bucket in key order, optionally
// constrained to a key prefix (§4.8). If no transaction is active when
// the iterator is created, it opens and owns a read transaction for its
// whole lifetime and releases it on Close; otherwise it rides the store's
// already-active transaction and Close is a no-op against the store.
type Iterator struct {
	s  *Store
	cf *CF

	prefix []byte
	ownsTx bool

	cur    *bbolt.Cursor
	curKey []byte
	curVal []byte
	eof    bool
	err    error
}

// NewIterator returns an iterator over cf. A nil or empty prefix iterates
// the whole column family; otherwise only keys with that prefix are
// visited (§4.8 iter_seek / iter_next prefix-stop behavior).
func (s *Store) NewIterator(cf *CF, prefix []byte) (*Iterator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClosingLocked(); err != nil {
		return nil, err
	}
	if err := s.checkCorruptLocked(); err != nil {
		return nil, err
	}

	ownsTx := s.mode == modeNone
	if ownsTx {
		if err := s.beginReadLocked(); err != nil {
			return nil, err
		}
	}

	b := s.tx.Bucket([]byte(cf.name))
	if b == nil {
		if ownsTx {
			_ = s.releaseCurrentTxLocked()
		}
		return nil, ErrNotFound
	}

	it := &Iterator{
		s:      s,
		cf:     cf,
		prefix: append([]byte(nil), prefix...),
		ownsTx: ownsTx,
		cur:    b.Cursor(),
	}
	it.seekFirst()
	return it, nil
}

func (it *Iterator) seekFirst() {
	var k, payload []byte
	if len(it.prefix) == 0 {
		k, payload = it.cur.First()
	} else {
		k, payload = it.cur.Seek(it.prefix)
	}
	it.land(k, payload)
}

func (it *Iterator) land(k, payload []byte) {
	if k == nil || (len(it.prefix) > 0 && !bytes.HasPrefix(k, it.prefix)) {
		it.eof = true
		it.curKey, it.curVal = nil, nil
		return
	}
	_, v, err := decodeCell(payload)
	if err != nil {
		it.err = err
		it.eof = true
		return
	}
	it.curKey = append([]byte(nil), k...)
	it.curVal = append([]byte(nil), v...)
	it.eof = false
}

// Valid reports whether the iterator is positioned on an entry.
func (it *Iterator) Valid() bool { return !it.eof && it.err == nil }

// Err returns the first error encountered while iterating, if any.
func (it *Iterator) Err() error { return it.err }

// Key returns the current entry's key. Only valid while Valid().
func (it *Iterator) Key() []byte { return it.curKey }

// Value returns the current entry's value. Only valid while Valid().
func (it *Iterator) Value() []byte { return it.curVal }

// Next advances the iterator, setting eof once the prefix (or the data
// bucket) is exhausted.
func (it *Iterator) Next() {
	if it.eof || it.err != nil {
		return
	}
	k, payload := it.cur.Next()
	it.land(k, payload)
	it.s.mu.Lock()
	it.s.stats.Iterations++
	it.s.mu.Unlock()
}

// Close releases the iterator's owned transaction, if any, restoring the
// store's persistent read afterward.
func (it *Iterator) Close() error {
	if !it.ownsTx {
		return nil
	}
	it.s.mu.Lock()
	defer it.s.mu.Unlock()
	return it.s.commitLocked()
}
