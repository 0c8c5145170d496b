package snkv

import (
	"bytes"
	"fmt"

	"go.etcd.io/bbolt"
)

func validateKey(key []byte) error {
	if len(key) == 0 || len(key) > maxKeyLen {
		return newErr(ErrGeneric, fmt.Sprintf("invalid key length: %d", len(key)))
	}
	return nil
}

func validateValue(value []byte) error {
	if len(value) > maxValueLen {
		return newErr(ErrGeneric, fmt.Sprintf("invalid value length: %d", len(value)))
	}
	return nil
}

// errNeedsLazyExpiry signals from inside a read-only closure that Get
// found an expired key and the caller must upgrade to a write transaction
// to perform the lazy expiry, since a bbolt read transaction cannot
// mutate.
var errNeedsLazyExpiry = newErr(ErrGeneric, "key observed expired during read; lazy expiry required")

// Put upserts key/value in cf, clearing any TTL previously set on key
// (§4.6 put / §9 open question: a plain put always clears TTL).
func (s *Store) Put(cf *CF, key, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}

	cf.mu.Lock()
	defer cf.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClosingLocked(); err != nil {
		return err
	}
	if err := s.checkCorruptLocked(); err != nil {
		return err
	}

	err := s.withWriteLocked(func(tx *bbolt.Tx) error {
		cf.invalidateCursor()
		b := tx.Bucket([]byte(cf.name))
		if b == nil {
			return ErrNotFound
		}
		if err := b.Put(key, encodeCell(key, value)); err != nil {
			return err
		}
		if err := s.clearTTLForKeyLocked(tx, cf, key); err != nil {
			s.log.Warn().Err(err).Msg("best-effort TTL cleanup after put failed")
		}
		return nil
	})
	if err != nil {
		return s.setErrLocked(err)
	}
	s.stats.Puts++
	return nil
}

// PutTTL is Put plus an atomic TTL index update: any prior TTL entry for
// key is cleared, and if expireMs > 0 a new one is installed (§4.6
// put_ttl). With expireMs <= 0 the key is stored without a TTL, as Put
// does, but cf's TTL index buckets are still created if missing.
func (s *Store) PutTTL(cf *CF, key, value []byte, expireMs int64) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}

	cf.mu.Lock()
	defer cf.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClosingLocked(); err != nil {
		return err
	}
	if err := s.checkCorruptLocked(); err != nil {
		return err
	}

	err := s.withWriteLocked(func(tx *bbolt.Tx) error {
		cf.invalidateCursor()
		b := tx.Bucket([]byte(cf.name))
		if b == nil {
			return ErrNotFound
		}
		if err := b.Put(key, encodeCell(key, value)); err != nil {
			return err
		}

		if err := s.ensureTTLCFsLocked(tx, cf); err != nil {
			return err
		}
		if err := s.clearTTLForKeyLocked(tx, cf, key); err != nil {
			s.log.Warn().Err(err).Msg("best-effort TTL cleanup before put_ttl failed")
		}

		if expireMs > 0 {
			kb := tx.Bucket([]byte(ttlKeyCFName(cf.name)))
			if err := kb.Put(key, encodeBE64(expireMs)); err != nil {
				return err
			}
			eb := tx.Bucket([]byte(ttlExpCFName(cf.name)))
			composite := append(encodeBE64(expireMs), key...)
			if err := eb.Put(composite, []byte{}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.setErrLocked(err)
	}
	s.stats.Puts++
	return nil
}

// Get reads key from cf. If cf has TTL enabled and key is observed
// expired, a lazy expiry is performed and NotFound is returned (§4.6 get).
func (s *Store) Get(cf *CF, key []byte) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	cf.mu.Lock()
	defer cf.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClosingLocked(); err != nil {
		return nil, err
	}
	if err := s.checkCorruptLocked(); err != nil {
		return nil, err
	}

	var out []byte
	err := s.withReadLocked(func(tx *bbolt.Tx) error {
		cur, err := s.cursorLocked(cf)
		if err != nil {
			return err
		}
		k, payload := cur.Seek(key)
		if k == nil || !bytes.Equal(k, key) {
			return ErrNotFound
		}

		if cf.hasTTL {
			if kb := tx.Bucket([]byte(ttlKeyCFName(cf.name))); kb != nil {
				if raw := kb.Get(key); raw != nil {
					expMs, derr := decodeBE64(raw)
					if derr == nil && nowMs() >= expMs {
						return errNeedsLazyExpiry
					}
				}
			}
		}

		_, v, derr := decodeCell(payload)
		if derr != nil {
			return derr
		}
		out = append([]byte(nil), v...)
		return nil
	})

	if err == errNeedsLazyExpiry {
		if lerr := s.lazyExpireLocked(cf, key); lerr != nil && lerr != ErrNotFound {
			return nil, s.setErrLocked(lerr)
		}
		return nil, ErrNotFound
	}
	if err != nil {
		if err != ErrNotFound {
			s.setErrLocked(err)
		}
		return nil, err
	}

	s.stats.Gets++
	return out, nil
}

// lazyExpireLocked implements §4.6's lazy-expiry sub-protocol: invalidate
// the cached cursor, release the persistent read, begin write, delete the
// key from the data CF and both TTL indexes, commit, reopen the
// persistent read. Sub-step NotFounds are swallowed.
func (s *Store) lazyExpireLocked(cf *CF, key []byte) error {
	cf.invalidateCursor()
	return s.withWriteLocked(func(tx *bbolt.Tx) error {
		if b := tx.Bucket([]byte(cf.name)); b != nil {
			_ = b.Delete(key)
		}
		var expRaw []byte
		if kb := tx.Bucket([]byte(ttlKeyCFName(cf.name))); kb != nil {
			expRaw = append([]byte(nil), kb.Get(key)...)
			_ = kb.Delete(key)
		}
		if len(expRaw) == 8 {
			if eb := tx.Bucket([]byte(ttlExpCFName(cf.name))); eb != nil {
				composite := append(append([]byte(nil), expRaw...), key...)
				_ = eb.Delete(composite)
			}
		}
		return nil
	})
}

// Exists reports whether key is present in cf, without any TTL check
// (§4.6 exists — callers wanting TTL-aware presence use GetTTL).
func (s *Store) Exists(cf *CF, key []byte) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	cf.mu.Lock()
	defer cf.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClosingLocked(); err != nil {
		return false, err
	}
	if err := s.checkCorruptLocked(); err != nil {
		return false, err
	}

	var found bool
	err := s.withReadLocked(func(tx *bbolt.Tx) error {
		cur, err := s.cursorLocked(cf)
		if err != nil {
			return err
		}
		k, _ := cur.Seek(key)
		found = k != nil && bytes.Equal(k, key)
		return nil
	})
	if err != nil {
		return false, s.setErrLocked(err)
	}
	return found, nil
}

// Delete removes key from cf, reading any TTL entry first and removing it
// from both indexes after the data cell is deleted (§4.6 delete). NotFound is not treated as a store-level error condition by
// callers, but Delete still returns it so they can branch on it.
func (s *Store) Delete(cf *CF, key []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	cf.mu.Lock()
	defer cf.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClosingLocked(); err != nil {
		return err
	}
	if err := s.checkCorruptLocked(); err != nil {
		return err
	}

	err := s.withWriteLocked(func(tx *bbolt.Tx) error {
		cf.invalidateCursor()
		b := tx.Bucket([]byte(cf.name))
		if b == nil {
			return ErrNotFound
		}
		if b.Get(key) == nil {
			return ErrNotFound
		}

		var expRaw []byte
		if cf.hasTTL {
			if kb := tx.Bucket([]byte(ttlKeyCFName(cf.name))); kb != nil {
				expRaw = append([]byte(nil), kb.Get(key)...)
			}
		}

		if err := b.Delete(key); err != nil {
			return err
		}

		if len(expRaw) == 8 {
			if eb := tx.Bucket([]byte(ttlExpCFName(cf.name))); eb != nil {
				composite := append(append([]byte(nil), expRaw...), key...)
				_ = eb.Delete(composite)
			}
			if kb := tx.Bucket([]byte(ttlKeyCFName(cf.name))); kb != nil {
				_ = kb.Delete(key)
			}
		}
		return nil
	})
	if err != nil {
		if err != ErrNotFound {
			return s.setErrLocked(err)
		}
		return err
	}
	s.stats.Deletes++
	return nil
}
