package snkv

import (
	"time"

	"go.etcd.io/bbolt"
)

// nowMs is the store's single clock source for TTL comparisons.
func nowMs() int64 { return time.Now().UnixMilli() }

// ensureTTLCFsLocked lazily creates cf's two TTL index buckets (key→expiry
// and expiry→key) inside the caller's write transaction and marks cf as
// TTL-enabled (§4.7 ensure_ttl_cfs). Caller holds cf.mu and s.mu and is
// already inside a write transaction.
func (s *Store) ensureTTLCFsLocked(tx *bbolt.Tx, cf *CF) error {
	if cf.hasTTL {
		return nil
	}
	if _, err := tx.CreateBucketIfNotExists([]byte(ttlKeyCFName(cf.name))); err != nil {
		return err
	}
	if _, err := tx.CreateBucketIfNotExists([]byte(ttlExpCFName(cf.name))); err != nil {
		return err
	}
	cf.hasTTL = true
	return nil
}

// clearTTLForKeyLocked removes any existing TTL entry for key from both
// indexes. A no-op when cf has no TTL buckets. Caller is inside a write
// transaction holding cf.mu and s.mu.
func (s *Store) clearTTLForKeyLocked(tx *bbolt.Tx, cf *CF, key []byte) error {
	if !cf.hasTTL {
		return nil
	}
	kb := tx.Bucket([]byte(ttlKeyCFName(cf.name)))
	if kb == nil {
		return nil
	}
	old := kb.Get(key)
	if old == nil {
		return nil
	}
	if len(old) != 8 {
		return ErrCorrupt
	}
	oldCopy := append([]byte(nil), old...)
	if err := kb.Delete(key); err != nil {
		return err
	}
	eb := tx.Bucket([]byte(ttlExpCFName(cf.name)))
	if eb == nil {
		return nil
	}
	composite := append(oldCopy, key...)
	return eb.Delete(composite)
}

// probeTTL is called once, right after the default CF is opened at store
// open, to attach a pre-existing TTL index pair if both buckets are
// already present (§4.7: "opening on store open probes for pre-existing
// TTL CFs and attaches them if both are found").
func (s *Store) probeTTL(cf *CF) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hasKey, hasExp bool
	err := s.withReadLocked(func(tx *bbolt.Tx) error {
		hasKey = tx.Bucket([]byte(ttlKeyCFName(cf.name))) != nil
		hasExp = tx.Bucket([]byte(ttlExpCFName(cf.name))) != nil
		return nil
	})
	if err != nil {
		return err
	}
	if hasKey && hasExp {
		cf.hasTTL = true
	}
	return nil
}

// GetTTL reads a key's remaining TTL in milliseconds (§4.7 get_ttl /
// ttl_remaining). Returns (NoTTL, nil) if the key exists but has no TTL
// entry, and ErrNotFound if the key is absent or was observed expired (a
// lazy expiry is triggered in the latter case, same as Get).
func (s *Store) GetTTL(cf *CF, key []byte) (int64, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}

	cf.mu.Lock()
	defer cf.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClosingLocked(); err != nil {
		return 0, err
	}
	if err := s.checkCorruptLocked(); err != nil {
		return 0, err
	}

	var remaining int64 = NoTTL
	err := s.withReadLocked(func(tx *bbolt.Tx) error {
		cur, err := s.cursorLocked(cf)
		if err != nil {
			return err
		}
		k, _ := cur.Seek(key)
		if k == nil || string(k) != string(key) {
			return ErrNotFound
		}

		if !cf.hasTTL {
			return nil
		}
		kb := tx.Bucket([]byte(ttlKeyCFName(cf.name)))
		if kb == nil {
			return nil
		}
		raw := kb.Get(key)
		if raw == nil {
			return nil
		}
		expMs, derr := decodeBE64(raw)
		if derr != nil {
			return ErrCorrupt
		}
		now := nowMs()
		if now >= expMs {
			return errNeedsLazyExpiry
		}
		remaining = expMs - now
		return nil
	})

	if err == errNeedsLazyExpiry {
		if lerr := s.lazyExpireLocked(cf, key); lerr != nil && lerr != ErrNotFound {
			return 0, s.setErrLocked(lerr)
		}
		return 0, ErrNotFound
	}
	if err != nil {
		if err != ErrNotFound {
			s.setErrLocked(err)
		}
		return 0, err
	}
	return remaining, nil
}

// PurgeExpired sweeps cf's expiry→key index for every entry with
// expiry <= now and deletes the corresponding data + TTL entries in one
// write transaction (§4.7 purge_expired). It is the bulk counterpart to
// Get's lazy, one-key-at-a-time expiry. Returns the number of keys purged.
func (s *Store) PurgeExpired(cf *CF) (int, error) {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClosingLocked(); err != nil {
		return 0, err
	}
	if err := s.checkCorruptLocked(); err != nil {
		return 0, err
	}
	if !cf.hasTTL {
		return 0, nil
	}

	cutoff := encodeBE64(nowMs())

	var expiredKeys [][]byte
	err := s.withReadLocked(func(tx *bbolt.Tx) error {
		eb := tx.Bucket([]byte(ttlExpCFName(cf.name)))
		if eb == nil {
			return nil
		}
		c := eb.Cursor()
		for composite, _ := c.First(); composite != nil; composite, _ = c.Next() {
			if len(composite) < 8 {
				continue
			}
			if string(composite[:8]) > string(cutoff) {
				break // expiry index is ordered by expireMs; nothing further qualifies
			}
			key := append([]byte(nil), composite[8:]...)
			expiredKeys = append(expiredKeys, key)
		}
		return nil
	})
	if err != nil {
		return 0, s.setErrLocked(err)
	}
	if len(expiredKeys) == 0 {
		return 0, nil
	}

	purged := 0
	err = s.withWriteLocked(func(tx *bbolt.Tx) error {
		cf.invalidateCursor()
		b := tx.Bucket([]byte(cf.name))
		kb := tx.Bucket([]byte(ttlKeyCFName(cf.name)))
		eb := tx.Bucket([]byte(ttlExpCFName(cf.name)))
		for _, key := range expiredKeys {
			var expRaw []byte
			if kb != nil {
				expRaw = append([]byte(nil), kb.Get(key)...)
			}
			if len(expRaw) != 8 {
				continue // already cleared by a concurrent plain put/delete
			}
			if now := nowMs(); now < mustDecodeBE64(expRaw) {
				continue // re-armed with a later expiry since the scan
			}
			if b != nil {
				if err := b.Delete(key); err != nil {
					return err
				}
			}
			if kb != nil {
				if err := kb.Delete(key); err != nil {
					return err
				}
			}
			if eb != nil {
				composite := append(append([]byte(nil), expRaw...), key...)
				if err := eb.Delete(composite); err != nil {
					return err
				}
			}
			purged++
		}
		return nil
	})
	if err != nil {
		return 0, s.setErrLocked(err)
	}
	s.stats.Deletes += uint64(purged)
	return purged, nil
}

func mustDecodeBE64(b []byte) int64 {
	v, err := decodeBE64(b)
	if err != nil {
		return 0
	}
	return v
}
