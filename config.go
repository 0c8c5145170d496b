package snkv

import (
	"os"

	"gopkg.in/yaml.v3"
)

// JournalMode selects the durability strategy for new databases. snkv
// realizes both values on top of bbolt, which always commits durably;
// Delete disables the WalSizeLimit auto-checkpoint after write commits
// since there is no separate WAL file to fold back, matching a
// rollback-journal engine's "nothing to checkpoint" behavior.
type JournalMode int

const (
	JournalWal JournalMode = iota
	JournalDelete
)

// SyncLevel mirrors the pager's sync policy knob. snkv honors it by
// choosing bbolt's NoSync option for Off, and always syncing for Normal/Full.
type SyncLevel int

const (
	SyncOff SyncLevel = iota
	SyncNormal
	SyncFull
)

// Config collects the recognized open options from spec.md §4.10.
// DefaultConfig returns the documented defaults. Open itself fills in only
// a zero CacheSize (2000); every other field is used as given, so in a
// zero Config SyncLevel is SyncOff and BusyTimeoutMs is a zero bbolt lock
// timeout.
type Config struct {
	JournalMode   JournalMode   `yaml:"journalMode"`
	SyncLevel     SyncLevel     `yaml:"syncLevel"`
	CacheSize     int           `yaml:"cacheSize"`   // pages; default 2000
	PageSize      int           `yaml:"pageSize"`     // bytes; ignored on existing db
	ReadOnly      bool          `yaml:"readOnly"`
	BusyTimeoutMs int           `yaml:"busyTimeoutMs"`
	WalSizeLimit  int           `yaml:"walSizeLimit"` // commits between auto passive checkpoints; 0 disables
	Logging       bool          `yaml:"logging"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		JournalMode:   JournalWal,
		SyncLevel:     SyncNormal,
		CacheSize:     2000,
		BusyTimeoutMs: 5000,
		WalSizeLimit:  0,
	}
}

// LoadConfig reads a YAML config file, starting from the documented
// defaults and overlaying whatever the file sets — the same
// read-then-unmarshal-over-defaults shape warren uses for its own config.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
