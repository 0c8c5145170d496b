package snkv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIteratorForwardScan(t *testing.T) {
	s := openTestStore(t)
	cf, err := s.CreateCF("widgets")
	require.NoError(t, err)

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, s.Put(cf, []byte(k), []byte(k+"-v")))
	}

	it, err := s.NewIterator(cf, nil)
	require.NoError(t, err)
	defer it.Close()

	var got []string
	for ; it.Valid(); it.Next() {
		got = append(got, string(it.Key()))
	}
	require.NoError(t, it.Err())
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestIteratorPrefixStop(t *testing.T) {
	s := openTestStore(t)
	cf, err := s.CreateCF("widgets")
	require.NoError(t, err)

	for _, k := range []string{"user:1", "user:2", "zzz:1"} {
		require.NoError(t, s.Put(cf, []byte(k), []byte("v")))
	}

	it, err := s.NewIterator(cf, []byte("user:"))
	require.NoError(t, err)
	defer it.Close()

	var got []string
	for ; it.Valid(); it.Next() {
		got = append(got, string(it.Key()))
	}
	require.Equal(t, []string{"user:1", "user:2"}, got)
}

func TestIteratorEmptyCF(t *testing.T) {
	s := openTestStore(t)
	cf, err := s.CreateCF("empty")
	require.NoError(t, err)

	it, err := s.NewIterator(cf, nil)
	require.NoError(t, err)
	defer it.Close()

	require.False(t, it.Valid())
}
