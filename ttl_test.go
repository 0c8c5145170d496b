package snkv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetTTLOnKeyWithoutTTL(t *testing.T) {
	s := openTestStore(t)
	cf, err := s.CreateCF("widgets")
	require.NoError(t, err)
	require.NoError(t, s.Put(cf, []byte("k"), []byte("v")))

	remaining, err := s.GetTTL(cf, []byte("k"))
	require.NoError(t, err)
	require.EqualValues(t, NoTTL, remaining)
}

func TestLazyExpiryOnGet(t *testing.T) {
	s := openTestStore(t)
	cf, err := s.CreateCF("sessions")
	require.NoError(t, err)

	require.NoError(t, s.PutTTL(cf, []byte("sess1"), []byte("v"), nowMs()-1))

	_, err = s.Get(cf, []byte("sess1"))
	require.ErrorIs(t, err, ErrNotFound)

	// The lazy expiry must have removed both the data entry and the TTL
	// index entries; a second lookup stays NotFound rather than erroring.
	ok, err := s.Exists(cf, []byte("sess1"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPurgeExpiredBulkSweep(t *testing.T) {
	s := openTestStore(t)
	cf, err := s.CreateCF("sessions")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		key := []byte{byte('a' + i)}
		require.NoError(t, s.PutTTL(cf, key, []byte("v"), nowMs()-1))
	}
	require.NoError(t, s.PutTTL(cf, []byte("keep"), []byte("v"), nowMs()+60_000))

	n, err := s.PurgeExpired(cf)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	for i := 0; i < 5; i++ {
		key := []byte{byte('a' + i)}
		ok, err := s.Exists(cf, key)
		require.NoError(t, err)
		require.False(t, ok)
	}

	ok, err := s.Exists(cf, []byte("keep"))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestProbeTTLReattachesOnReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snkv.db")
	cfg := DefaultConfig()

	s, err := Open(path, cfg)
	require.NoError(t, err)
	def, err := s.OpenCF(defaultCFName)
	require.NoError(t, err)
	require.NoError(t, s.PutTTL(def, []byte("k"), []byte("v"), nowMs()+60_000))
	require.NoError(t, s.Close())

	s2, err := Open(path, cfg)
	require.NoError(t, err)
	defer s2.Close()

	def2, err := s2.OpenCF(defaultCFName)
	require.NoError(t, err)
	remaining, err := s2.GetTTL(def2, []byte("k"))
	require.NoError(t, err)
	require.Greater(t, remaining, int64(0))
}
