package snkv

import "go.etcd.io/bbolt"

// beginPersistentRead opens the read transaction the store keeps open
// between API calls (§4.4's "persistent read" optimization). Caller must
// hold s.mu.
func (s *Store) beginPersistentRead() error {
	return s.beginReadLocked()
}

func (s *Store) beginReadLocked() error {
	if s.mode == modeWrite {
		return newErr(ErrGeneric, "cannot begin a read transaction while a write transaction is active")
	}
	if s.mode == modeRead {
		return nil // noop, matches §4.4 begin(write=false) on Read
	}

	tx, err := s.db.Begin(false)
	if err != nil {
		return s.classifyPagerErrLocked(err)
	}
	s.tx = tx
	s.mode = modeRead
	s.readGen++
	return nil
}

// beginWriteLocked implements §4.4 begin(write=true): a Read transaction
// cannot be upgraded in place (bbolt has no such primitive either — a
// reader is a fixed MVCC snapshot), so the persistent read is released and
// a fresh write transaction is opened.
func (s *Store) beginWriteLocked() error {
	if s.mode == modeWrite {
		return newErr(ErrGeneric, "a write transaction is already active")
	}
	if s.mode == modeRead {
		if err := s.releaseCurrentTxLocked(); err != nil {
			return err
		}
	}

	tx, err := s.db.Begin(true)
	if err != nil {
		return s.classifyPagerErrLocked(err)
	}
	s.tx = tx
	s.mode = modeWrite
	return nil
}

// releaseCurrentTxLocked closes whatever transaction is open (rollback for
// a write, release for a read-only snapshot) without reopening the
// persistent read. Used by Close and by admin ops that require NoTx.
func (s *Store) releaseCurrentTxLocked() error {
	if s.tx == nil {
		s.mode = modeNone
		return nil
	}
	var err error
	if s.mode == modeWrite {
		err = s.tx.Rollback()
	} else {
		err = s.tx.Rollback() // read-only snapshots are released via Rollback in bbolt
	}
	s.tx = nil
	s.mode = modeNone
	return err
}

// commitLocked commits the active transaction, runs the WAL-commit-counter
// auto-checkpoint trigger on a successful write, then reopens the
// persistent read (unless closing).
func (s *Store) commitLocked() error {
	if s.tx == nil {
		return nil
	}

	var err error
	if s.mode == modeWrite {
		err = s.tx.Commit()
	} else {
		err = s.tx.Rollback() // nothing to commit on a read-only transaction
	}
	wasWrite := s.mode == modeWrite
	s.tx = nil
	s.mode = modeNone
	if err != nil {
		return s.classifyPagerErrLocked(err)
	}

	if wasWrite {
		s.walCommits++
		if s.cfg.JournalMode == JournalWal && s.cfg.WalSizeLimit > 0 && s.walCommits >= s.cfg.WalSizeLimit {
			s.walCommits = 0
			if err := s.db.Sync(); err != nil {
				s.log.Warn().Err(err).Msg("auto-checkpoint sync failed")
			} else {
				s.log.Debug().Msg("automatic passive checkpoint")
			}
		}
	}

	if s.closing {
		return nil
	}
	return s.beginReadLocked()
}

// rollbackLocked rolls back the active write transaction, then (if not
// closing) reopens the persistent read.
func (s *Store) rollbackLocked() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	s.mode = modeNone
	if err != nil {
		return s.classifyPagerErrLocked(err)
	}
	if s.closing {
		return nil
	}
	return s.beginReadLocked()
}

// withWriteLocked runs fn inside a write transaction, auto-committing on
// success and rolling back (while still restoring the persistent read) on
// failure. Caller must hold s.mu and have already validated arguments. If
// the active write transaction was opened explicitly via BeginWrite, fn's
// result is returned as-is and commit/rollback is left to the caller's own
// Commit/Rollback call (§4.4's caller-driven begin/commit/rollback, as
// opposed to the auto-transaction wrapper every other op uses).
func (s *Store) withWriteLocked(fn func(tx *bbolt.Tx) error) error {
	if s.mode != modeWrite {
		if err := s.beginWriteLocked(); err != nil {
			return err
		}
	}

	err := fn(s.tx)
	if s.explicitTx {
		return err
	}

	if err != nil {
		if rbErr := s.rollbackLocked(); rbErr != nil {
			s.log.Warn().Err(rbErr).Msg("rollback after failed write also failed")
		}
		return err
	}

	return s.commitLocked()
}

// BeginWrite opens an explicit write transaction that stays open across
// subsequent calls until the caller invokes Commit or Rollback (§4.4
// begin(write=true) as a directly callable operation, distinct from the
// auto-transaction wrapper every public data/admin op otherwise uses).
// While an explicit write transaction is open, Checkpoint and the other
// NoTx admin ops observe mode == modeWrite and return Busy (§8 scenario 3).
func (s *Store) BeginWrite() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClosingLocked(); err != nil {
		return err
	}
	if err := s.checkCorruptLocked(); err != nil {
		return err
	}
	if s.explicitTx {
		return newErr(ErrGeneric, "an explicit write transaction is already open")
	}

	if err := s.beginWriteLocked(); err != nil {
		return err
	}
	s.explicitTx = true
	return nil
}

// Commit commits the write transaction opened by BeginWrite and restores
// the persistent read (§4.4 commit()).
func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.explicitTx {
		return newErr(ErrGeneric, "no explicit write transaction is open")
	}
	s.explicitTx = false
	return s.commitLocked()
}

// Rollback discards the write transaction opened by BeginWrite and
// restores the persistent read (§4.4 rollback()).
func (s *Store) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.explicitTx {
		return newErr(ErrGeneric, "no explicit write transaction is open")
	}
	s.explicitTx = false
	return s.rollbackLocked()
}

// withReadLocked ensures at least a read transaction is active and runs fn
// against it. It never commits/closes the persistent read itself — the
// whole point is amortizing that cost across calls.
func (s *Store) withReadLocked(fn func(tx *bbolt.Tx) error) error {
	if s.mode == modeNone {
		if err := s.beginReadLocked(); err != nil {
			return err
		}
	}
	return fn(s.tx)
}

// requireNoTxLocked releases the persistent read so a NoTx pager
// primitive (checkpoint, incremental vacuum) can run, returning a restore
// function the caller should defer.
func (s *Store) requireNoTxLocked() (restore func(), err error) {
	if s.mode == modeWrite {
		return nil, ErrBusy
	}
	if s.mode == modeRead {
		if err := s.releaseCurrentTxLocked(); err != nil {
			return nil, err
		}
	}
	return func() {
		if !s.closing {
			_ = s.beginReadLocked()
		}
	}, nil
}

// classifyPagerErrLocked maps a bbolt error onto the store's corruption
// flag / error taxonomy per §4.4 ("pager results Corrupt or NotADb set the
// store's corruption flag; thereafter all operations except close return
// Corrupt").
func (s *Store) classifyPagerErrLocked(err error) error {
	if err == nil {
		return nil
	}
	switch err {
	case bbolt.ErrDatabaseNotOpen, bbolt.ErrInvalid, bbolt.ErrChecksum:
		s.corrupt = true
		return ErrCorrupt
	case bbolt.ErrTimeout:
		return ErrBusy
	case bbolt.ErrDatabaseReadOnly, bbolt.ErrTxNotWritable:
		return ErrReadOnly
	default:
		return err
	}
}
