package snkv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckpointSucceedsOutsideWriteTx(t *testing.T) {
	s := openTestStore(t)
	cf, err := s.CreateCF("widgets")
	require.NoError(t, err)
	require.NoError(t, s.Put(cf, []byte("k"), []byte("v")))

	_, _, err = s.Checkpoint(CheckpointPassive)
	require.NoError(t, err)
}

func TestSyncDropsToNoTx(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Sync())
	require.Equal(t, modeNone, s.mode)
}

func TestIntegrityCheckPassesOnFreshStore(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateCF("widgets")
	require.NoError(t, err)
	require.NoError(t, s.IntegrityCheck())
}

// TestExplicitWriteTxBlocksCheckpoint runs §8 scenario 3 literally: begin an
// explicit write transaction, put a key, observe Checkpoint(Passive) fail
// Busy while it's open, roll back, then observe Checkpoint(Passive) succeed.
func TestExplicitWriteTxBlocksCheckpoint(t *testing.T) {
	s := openTestStore(t)
	cf, err := s.CreateCF("widgets")
	require.NoError(t, err)

	require.NoError(t, s.BeginWrite())
	require.NoError(t, s.Put(cf, []byte("k"), []byte("v")))

	_, _, err = s.Checkpoint(CheckpointPassive)
	require.ErrorIs(t, err, ErrBusy)

	require.NoError(t, s.Rollback())

	_, _, err = s.Checkpoint(CheckpointPassive)
	require.NoError(t, err)

	_, err = s.Get(cf, []byte("k"))
	require.ErrorIs(t, err, ErrNotFound)
}

// TestExplicitWriteTxCommit confirms Commit persists the write and restores
// NoTx-friendly state afterward.
func TestExplicitWriteTxCommit(t *testing.T) {
	s := openTestStore(t)
	cf, err := s.CreateCF("widgets")
	require.NoError(t, err)

	require.NoError(t, s.BeginWrite())
	require.NoError(t, s.Put(cf, []byte("k"), []byte("v")))
	require.NoError(t, s.Commit())

	v, err := s.Get(cf, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)

	_, _, err = s.Checkpoint(CheckpointPassive)
	require.NoError(t, err)
}
