// Package snkv implements a single-file, embedded, transactional
// key-value storage engine: ordered byte-string keys, opaque byte-string
// values, multiple independent column families, per-key TTL, range/prefix
// iteration, and crash-safe durability over go.etcd.io/bbolt's paged
// B+tree and single-writer/MVCC-reader transaction model.
package snkv

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"
)

const (
	reservedPrefix = "__"
	defaultCFName  = "default"

	catalogBucketName = "__snkv_catalog__"
	hdrBucketName     = "__snkv_hdr__"

	maxKeyLen  = 64 * 1024
	maxValueLen = 10 * 1024 * 1024
	maxCFName  = 255
)

// header "meta" slot keys, realized as ordinary keys inside hdrBucketName
// (see SPEC_FULL.md §1 for why bbolt has no literal fixed-offset slots).
var (
	slotDefaultRoot = []byte{0x01}
	slotCFCount     = []byte{0x02}
	slotMetaRoot    = []byte{0x03}
	keyNextRootSeq  = []byte("nextRootSerial") // internal bookkeeping, not a spec-fixed slot
)

// txMode is the transaction manager's state.
type txMode int

const (
	modeNone txMode = iota
	modeRead
	modeWrite
)

// Stats is a snapshot of the store's operation counters (§4.9 stats()).
type Stats struct {
	Puts       uint64
	Gets       uint64
	Deletes    uint64
	Iterations uint64
	Errors     uint64
}

// Store is the single open database handle. One Store per file; many
// goroutines may call into it concurrently (see §5 for the lock-ordering
// contract: CF mutex is always acquired before the store mutex).
type Store struct {
	db  *bbolt.DB
	cfg Config
	log zerolog.Logger

	mu         sync.Mutex // protects everything below, taken after any CF mutex
	tx         *bbolt.Tx
	mode       txMode
	readGen    uint64 // bumped every time a new persistent read begins; invalidates cached cursors
	explicitTx bool   // true between a caller's BeginWrite and its Commit/Rollback (§4.4 begin/commit/rollback)

	cfs      map[string]*CF
	cfNextID uint32

	closing  bool
	corrupt  bool
	lastErr  string
	stats    Stats
	walCommits int
}

// Open opens (creating if necessary) a snkv database at path. It wires up
// the default CF, the metadata catalog, and an initial persistent read
// transaction, then probes for the default CF's TTL index pair.
func Open(path string, cfg Config) (*Store, error) {
	return OpenV2(path, cfg, nil)
}

// OpenV2 is Open with an escape hatch for bbolt-specific options (the
// nearest equivalent to the pager's VFS-flag parameter in spec.md §4.10).
func OpenV2(path string, cfg Config, boltOpts *bbolt.Options) (*Store, error) {
	if boltOpts == nil {
		boltOpts = &bbolt.Options{
			Timeout:  time.Duration(cfg.BusyTimeoutMs) * time.Millisecond,
			ReadOnly: cfg.ReadOnly,
			PageSize: cfg.PageSize,
		}
	}

	db, err := bbolt.Open(path, 0644, boltOpts)
	if err != nil {
		return nil, err
	}
	db.NoSync = cfg.SyncLevel == SyncOff

	if cfg.CacheSize == 0 {
		cfg.CacheSize = 2000
	}

	s := &Store{
		db:       db,
		cfg:      cfg,
		log:      newLogger(cfg.Logging, zerolog.InfoLevel),
		cfs:      make(map[string]*CF),
		cfNextID: 1,
	}

	if err := s.openOrCreateDefaultCF(); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Open the persistent read transaction kept between calls.
	if err := s.beginPersistentRead(); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Probe for a pre-existing TTL index pair on the default CF.
	def, err := s.openCFLocked(defaultCFName)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := s.probeTTL(def); err != nil {
		_ = s.Close()
		return nil, err
	}

	s.log.Info().Str("path", path).Msg("snkv store opened")
	return s, nil
}

// openOrCreateDefaultCF implements spec §4.2's open_or_create_default_cf:
// on a fresh database it creates the default data bucket and the catalog
// bucket and stores meta slots 1/3; on an existing database it just reads
// them back.
func (s *Store) openOrCreateDefaultCF() error {
	if s.cfg.ReadOnly {
		return s.db.View(func(tx *bbolt.Tx) error {
			hdr := tx.Bucket([]byte(hdrBucketName))
			if hdr == nil || hdr.Get(slotDefaultRoot) == nil {
				return ErrCorrupt
			}
			next, err := decodeBE32(hdr.Get(keyNextRootSeq))
			if err != nil {
				return ErrCorrupt
			}
			s.cfNextID = next
			return nil
		})
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		hdr := tx.Bucket([]byte(hdrBucketName))
		if hdr != nil && hdr.Get(slotDefaultRoot) != nil {
			// Existing database: slots already present.
			next, err := decodeBE32(hdr.Get(keyNextRootSeq))
			if err != nil {
				return ErrCorrupt
			}
			s.cfNextID = next
			return nil
		}

		// Fresh database.
		hdr, err := tx.CreateBucketIfNotExists([]byte(hdrBucketName))
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(catalogBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(defaultCFName)); err != nil {
			return err
		}

		defID := s.cfNextID
		s.cfNextID++

		if err := s.catalogInsertLocked(tx, defaultCFName, defID); err != nil {
			return err
		}

		if err := hdr.Put(slotDefaultRoot, encodeBE32(defID)); err != nil {
			return err
		}
		if err := hdr.Put(slotCFCount, encodeBE32(1)); err != nil {
			return err
		}
		if err := hdr.Put(slotMetaRoot, encodeBE32(1)); err != nil {
			return err
		}
		return hdr.Put(keyNextRootSeq, encodeBE32(s.cfNextID))
	})
}

// Close implements §4.10 close: marks closing, rolls back any active
// transaction, frees CF handles, and closes the underlying db.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closing = true
	if s.tx != nil {
		_ = s.releaseCurrentTxLocked()
	}
	cfs := s.cfs
	s.cfs = nil
	s.mu.Unlock()

	for _, cf := range cfs {
		cf.invalidateCursor()
	}

	s.log.Info().Msg("snkv store closed")
	return s.db.Close()
}

// checkClosingLocked returns ErrClosing if the store is shutting down; any
// concurrent op observing closing must fail fast per §4.10.
func (s *Store) checkClosingLocked() error {
	if s.closing {
		return ErrClosing
	}
	return nil
}

// checkCorruptLocked returns ErrCorrupt once the corruption flag is set;
// every op but Close must fail once the pager reports corruption.
func (s *Store) checkCorruptLocked() error {
	if s.corrupt {
		return ErrCorrupt
	}
	return nil
}

// setErrLocked records the store's best-effort last-error string and bumps
// the error counter (§7: "statistics include an error counter").
func (s *Store) setErrLocked(err error) error {
	if err != nil {
		s.lastErr = err.Error()
		s.stats.Errors++
	}
	return err
}

// Errmsg reads the last-error string under the store mutex (§7 errmsg).
func (s *Store) Errmsg() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Stats snapshots the put/get/delete/iteration/error counters (§4.9).
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func validateCFName(name string) error {
	if len(name) == 0 || len(name) > maxCFName {
		return newErr(ErrGeneric, fmt.Sprintf("invalid column family name length: %d", len(name)))
	}
	if name != defaultCFName && len(name) >= len(reservedPrefix) && name[:len(reservedPrefix)] == reservedPrefix {
		return newErr(ErrGeneric, fmt.Sprintf("column family name %q uses the reserved __ prefix", name))
	}
	return nil
}
