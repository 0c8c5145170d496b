package snkv

import (
	"bytes"
	"fmt"

	"go.etcd.io/bbolt"
)

// catalogFindSlotLocked returns the first empty rowid in the probe
// sequence starting at hash(name), per spec §4.2 meta_find_slot.
func catalogFindSlotLocked(b *bbolt.Bucket, name string) (uint64, error) {
	start := fnv1aRowid(name)
	for i := uint64(0); i < maxMetaProbes; i++ {
		rid := start + i
		if b.Get(encodeRowid(rid)) == nil {
			return rid, nil
		}
	}
	return 0, ErrFull
}

// catalogSeekLocked walks the collision-aware probe chain looking for
// name, per spec §4.2 meta_seek / open_cf.
func catalogSeekLocked(b *bbolt.Bucket, name string) (rowid uint64, rootID uint32, found bool, err error) {
	start := fnv1aRowid(name)
	for i := uint64(0); i < maxMetaProbes; i++ {
		rid := start + i
		v := b.Get(encodeRowid(rid))
		if v == nil {
			return 0, 0, false, nil
		}
		nlen, err := decodeBE32(v[0:4])
		if err != nil || 4+int(nlen)+4 > len(v) {
			return 0, 0, false, ErrCorrupt
		}
		storedName := v[4 : 4+nlen]
		if bytes.Equal(storedName, []byte(name)) {
			root, err := decodeBE32(v[4+nlen : 4+nlen+4])
			if err != nil {
				return 0, 0, false, ErrCorrupt
			}
			return rid, root, true, nil
		}
	}
	return 0, 0, false, nil
}

// catalogInsertLocked inserts [name_len(4BE)|name|root(4BE)] at the first
// empty rowid in name's probe sequence.
func (s *Store) catalogInsertLocked(tx *bbolt.Tx, name string, rootID uint32) error {
	b := tx.Bucket([]byte(catalogBucketName))
	rowid, err := catalogFindSlotLocked(b, name)
	if err != nil {
		return err
	}
	payload := make([]byte, 4+len(name)+4)
	copy(payload[0:4], encodeBE32(uint32(len(name))))
	copy(payload[4:4+len(name)], name)
	copy(payload[4+len(name):], encodeBE32(rootID))
	return b.Put(encodeRowid(rowid), payload)
}

// CreateCF creates a new column family. Fails with a generic error if the
// name is reserved, too long, or already exists (§4.2 create_cf).
func (s *Store) CreateCF(name string) (*CF, error) {
	if err := validateCFName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClosingLocked(); err != nil {
		return nil, err
	}
	if err := s.checkCorruptLocked(); err != nil {
		return nil, err
	}

	var rootID uint32
	err := s.withWriteLocked(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(catalogBucketName))
		_, _, found, err := catalogSeekLocked(b, name)
		if err != nil {
			return err
		}
		if found {
			return newErr(ErrGeneric, fmt.Sprintf("column family %q already exists", name))
		}

		if _, err := tx.CreateBucket([]byte(name)); err != nil {
			return err
		}

		rootID = s.cfNextID
		s.cfNextID++

		if err := s.catalogInsertLocked(tx, name, rootID); err != nil {
			return err
		}

		hdr := tx.Bucket([]byte(hdrBucketName))
		count, err := decodeBE32(hdr.Get(slotCFCount))
		if err != nil {
			return ErrCorrupt
		}
		if err := hdr.Put(slotCFCount, encodeBE32(count+1)); err != nil {
			return err
		}
		return hdr.Put(keyNextRootSeq, encodeBE32(s.cfNextID))
	})
	if err != nil {
		return nil, s.setErrLocked(err)
	}

	cf := newCF(name, rootID)
	s.cfs[name] = cf
	return cf, nil
}

// OpenCF opens an existing, non-reserved column family (§4.2 open_cf).
func (s *Store) OpenCF(name string) (*CF, error) {
	if name != defaultCFName && len(name) >= len(reservedPrefix) && name[:len(reservedPrefix)] == reservedPrefix {
		return nil, newErr(ErrGeneric, fmt.Sprintf("column family name %q uses the reserved __ prefix", name))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClosingLocked(); err != nil {
		return nil, err
	}
	if err := s.checkCorruptLocked(); err != nil {
		return nil, err
	}

	cf, err := s.openCFLocked(name)
	if err != nil {
		return nil, s.setErrLocked(err)
	}
	return cf, nil
}

// openCFLocked is the internal, reserved-name-agnostic variant used by
// OpenCF and for the default CF at store open. It only finds names present
// in the catalog; TTL index buckets are not catalogued. Caller holds s.mu.
func (s *Store) openCFLocked(name string) (*CF, error) {
	if cf, ok := s.cfs[name]; ok {
		cf.retain()
		return cf, nil
	}

	var rootID uint32
	found := false
	err := s.withReadLocked(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(catalogBucketName))
		_, root, ok, err := catalogSeekLocked(b, name)
		if err != nil {
			return err
		}
		found = ok
		rootID = root
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}

	cf := newCF(name, rootID)
	s.cfs[name] = cf
	return cf, nil
}

// DropCF deletes name's metadata entry, drops its data bucket, then
// best-effort drops its two TTL index buckets (§4.2 drop_cf). The default
// CF can never be dropped.
func (s *Store) DropCF(name string) error {
	if name == defaultCFName {
		return newErr(ErrGeneric, "the default column family cannot be dropped")
	}
	if err := validateCFName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClosingLocked(); err != nil {
		return err
	}
	if err := s.checkCorruptLocked(); err != nil {
		return err
	}

	err := s.withWriteLocked(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(catalogBucketName))
		rowid, _, found, err := catalogSeekLocked(b, name)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		if err := b.Delete(encodeRowid(rowid)); err != nil {
			return err
		}
		if err := tx.DeleteBucket([]byte(name)); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}

		// Best-effort TTL index cleanup, ignoring "not found".
		for _, ttlName := range []string{ttlKeyCFName(name), ttlExpCFName(name)} {
			if err := tx.DeleteBucket([]byte(ttlName)); err != nil && err != bbolt.ErrBucketNotFound {
				s.log.Warn().Err(err).Str("bucket", ttlName).Msg("best-effort TTL bucket drop failed")
			}
		}

		hdr := tx.Bucket([]byte(hdrBucketName))
		count, err := decodeBE32(hdr.Get(slotCFCount))
		if err != nil {
			return ErrCorrupt
		}
		return hdr.Put(slotCFCount, encodeBE32(count-1))
	})
	if err != nil {
		return s.setErrLocked(err)
	}

	if cf, ok := s.cfs[name]; ok {
		cf.invalidateCursor()
		delete(s.cfs, name)
	}
	return nil
}

// ListCF iterates the metadata table, skipping reserved names, and
// returns the visible column family names (§4.2 list_cf).
func (s *Store) ListCF() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClosingLocked(); err != nil {
		return nil, err
	}
	if err := s.checkCorruptLocked(); err != nil {
		return nil, err
	}

	var names []string
	err := s.withReadLocked(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(catalogBucketName))
		return b.ForEach(func(_, v []byte) error {
			nlen, err := decodeBE32(v[0:4])
			if err != nil || 4+int(nlen)+4 > len(v) {
				return ErrCorrupt
			}
			name := string(v[4 : 4+nlen])
			if len(name) >= len(reservedPrefix) && name[:len(reservedPrefix)] == reservedPrefix {
				return nil
			}
			names = append(names, name)
			return nil
		})
	})
	if err != nil {
		return nil, s.setErrLocked(err)
	}
	return names, nil
}
