package snkv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := DefaultConfig()
	s, err := Open(filepath.Join(t.TempDir(), "snkv.db"), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenCreatesDefaultCF(t *testing.T) {
	s := openTestStore(t)
	names, err := s.ListCF()
	require.NoError(t, err)
	require.Equal(t, []string{"default"}, names) // only reserved __ names are hidden (§4.2)
}

func TestReopenPreservesData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snkv.db")
	cfg := DefaultConfig()

	s, err := Open(path, cfg)
	require.NoError(t, err)

	def, err := s.OpenCF(defaultCFName)
	require.NoError(t, err)
	require.NoError(t, s.Put(def, []byte("k1"), []byte("v1")))
	require.NoError(t, s.Close())

	s2, err := Open(path, cfg)
	require.NoError(t, err)
	defer s2.Close()

	def2, err := s2.OpenCF(defaultCFName)
	require.NoError(t, err)
	v, err := s2.Get(def2, []byte("k1"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), v)
}

func TestClosingRejectsOps(t *testing.T) {
	s := openTestStore(t)
	def, err := s.OpenCF(defaultCFName)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Get(def, []byte("k"))
	require.ErrorIs(t, err, ErrClosing)
}

func TestStatsCountOperations(t *testing.T) {
	s := openTestStore(t)
	def, err := s.OpenCF(defaultCFName)
	require.NoError(t, err)

	require.NoError(t, s.Put(def, []byte("a"), []byte("1")))
	_, err = s.Get(def, []byte("a"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(def, []byte("a")))

	stats := s.Stats()
	require.EqualValues(t, 1, stats.Puts)
	require.EqualValues(t, 1, stats.Gets)
	require.EqualValues(t, 1, stats.Deletes)
}
