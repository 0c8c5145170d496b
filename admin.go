package snkv

import (
	"os"

	"go.etcd.io/bbolt"
)

// CheckpointMode mirrors spec §4.9's checkpoint modes. snkv's underlying
// engine fsyncs every write commit, so all three modes converge on the
// same bbolt.DB.Sync() call; the distinction is kept for call-site parity
// with the spec's pager contract.
type CheckpointMode int

const (
	CheckpointPassive CheckpointMode = iota
	CheckpointFull
	CheckpointRestart
)

// Checkpoint requires NoTx (no active write transaction); a writer in
// flight makes it fail Busy rather than block, per §4.9 checkpoint. On
// success it reports the commit count folded into the sync (there is no
// WAL frame count under bbolt, so both return values mirror walCommits).
func (s *Store) Checkpoint(mode CheckpointMode) (framesInLog, framesCopied int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClosingLocked(); err != nil {
		return 0, 0, err
	}
	if err := s.checkCorruptLocked(); err != nil {
		return 0, 0, err
	}

	restore, err := s.requireNoTxLocked()
	if err != nil {
		return 0, 0, err
	}
	defer restore()

	if err := s.db.Sync(); err != nil {
		return 0, 0, s.classifyPagerErrLocked(err)
	}
	n := s.walCommits
	s.walCommits = 0
	s.log.Debug().Int("mode", int(mode)).Int("commits", n).Msg("checkpoint")
	return n, n, nil
}

// Sync commits the active write transaction (if any) and leaves the store
// in NoTx, matching §4.9 sync's "flush and drop to NoTx" semantics.
func (s *Store) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClosingLocked(); err != nil {
		return err
	}
	if s.mode == modeWrite {
		if err := s.commitLocked(); err != nil {
			return s.setErrLocked(err)
		}
	}
	return s.releaseCurrentTxLocked()
}

// IncrementalVacuum reclaims free pages by compacting the whole database
// file into a fresh one and swapping it in (§4.9 incremental_vacuum;
// bbolt.Compact is the nearest primitive — see SPEC_FULL.md §1).
// nPages × PageSize (1 MiB when that is not positive) is passed to
// bbolt.Compact as the size at which it commits each copy transaction; it
// does not bound how many pages are reclaimed.
func (s *Store) IncrementalVacuum(nPages int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClosingLocked(); err != nil {
		return err
	}
	if err := s.checkCorruptLocked(); err != nil {
		return err
	}
	if s.cfg.ReadOnly {
		return ErrReadOnly
	}

	restore, err := s.requireNoTxLocked()
	if err != nil {
		return err
	}
	defer restore()

	path := s.db.Path()
	tmpPath := path + ".vacuum.tmp"

	budget := int64(nPages) * int64(s.cfg.PageSize)
	if budget <= 0 {
		budget = 1 << 20
	}

	if err := s.db.Close(); err != nil {
		return s.classifyPagerErrLocked(err)
	}

	srcOpts := &bbolt.Options{ReadOnly: true}
	src, err := bbolt.Open(path, 0644, srcOpts)
	if err != nil {
		return s.reopenAfterVacuumFailureLocked(path, err)
	}
	dst, err := bbolt.Open(tmpPath, 0644, nil)
	if err != nil {
		_ = src.Close()
		return s.reopenAfterVacuumFailureLocked(path, err)
	}
	if err := bbolt.Compact(dst, src, budget); err != nil {
		_ = src.Close()
		_ = dst.Close()
		return s.reopenAfterVacuumFailureLocked(path, err)
	}
	_ = src.Close()
	_ = dst.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		return s.reopenAfterVacuumFailureLocked(path, err)
	}

	db, err := bbolt.Open(path, 0644, nil)
	if err != nil {
		s.corrupt = true
		return ErrCorrupt
	}
	s.db = db
	s.log.Info().Msg("incremental vacuum compacted database file")
	return nil
}

func (s *Store) reopenAfterVacuumFailureLocked(path string, causeErr error) error {
	db, err := bbolt.Open(path, 0644, nil)
	if err != nil {
		s.corrupt = true
		return ErrCorrupt
	}
	s.db = db
	s.log.Warn().Err(causeErr).Msg("incremental vacuum failed, original database kept")
	return causeErr
}

// IntegrityCheck walks every visible column family's bucket and every
// reserved bucket this store manages, reporting the first structural
// defect it finds (§4.9 integrity_check). A defect sets the store's
// corruption flag the same way a pager-level Corrupt result would.
func (s *Store) IntegrityCheck() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClosingLocked(); err != nil {
		return err
	}

	err := s.withReadLocked(func(tx *bbolt.Tx) error {
		for err := range tx.Check() {
			return err
		}

		hdr := tx.Bucket([]byte(hdrBucketName))
		if hdr == nil || hdr.Get(slotDefaultRoot) == nil {
			return newErr(ErrCorrupt, "missing header slots")
		}
		if tx.Bucket([]byte(catalogBucketName)) == nil {
			return newErr(ErrCorrupt, "missing CF catalog bucket")
		}
		if tx.Bucket([]byte(defaultCFName)) == nil {
			return newErr(ErrCorrupt, "missing default column family bucket")
		}
		return nil
	})
	if err != nil {
		s.corrupt = true
		return s.setErrLocked(ErrCorrupt)
	}
	return nil
}
