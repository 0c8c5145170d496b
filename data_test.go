package snkv

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGetDelete(t *testing.T) {
	s := openTestStore(t)
	cf, err := s.CreateCF("widgets")
	require.NoError(t, err)

	require.NoError(t, s.Put(cf, []byte("foo"), []byte("bar")))

	v, err := s.Get(cf, []byte("foo"))
	require.NoError(t, err)
	require.True(t, bytes.Equal(v, []byte("bar")))

	ok, err := s.Exists(cf, []byte("foo"))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Delete(cf, []byte("foo")))

	_, err = s.Get(cf, []byte("foo"))
	require.ErrorIs(t, err, ErrNotFound)

	ok, err = s.Exists(cf, []byte("foo"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetMissingKeyIsNotFound(t *testing.T) {
	s := openTestStore(t)
	cf, err := s.CreateCF("widgets")
	require.NoError(t, err)

	_, err = s.Get(cf, []byte("nope"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteMissingKeyIsNotFound(t *testing.T) {
	s := openTestStore(t)
	cf, err := s.CreateCF("widgets")
	require.NoError(t, err)

	err = s.Delete(cf, []byte("nope"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestKeyLengthBounds(t *testing.T) {
	s := openTestStore(t)
	cf, err := s.CreateCF("widgets")
	require.NoError(t, err)

	require.Error(t, s.Put(cf, nil, []byte("v")))
	require.Error(t, s.Put(cf, make([]byte, maxKeyLen+1), []byte("v")))
	require.NoError(t, s.Put(cf, make([]byte, maxKeyLen), []byte("v")))
}

func TestValueLengthBounds(t *testing.T) {
	s := openTestStore(t)
	cf, err := s.CreateCF("widgets")
	require.NoError(t, err)

	require.Error(t, s.Put(cf, []byte("k"), make([]byte, maxValueLen+1)))
	require.NoError(t, s.Put(cf, []byte("k"), nil))
}

func TestPlainPutClearsExistingTTL(t *testing.T) {
	s := openTestStore(t)
	cf, err := s.CreateCF("sessions")
	require.NoError(t, err)

	require.NoError(t, s.PutTTL(cf, []byte("sess1"), []byte("v"), nowMs()+60_000))

	remaining, err := s.GetTTL(cf, []byte("sess1"))
	require.NoError(t, err)
	require.Greater(t, remaining, int64(0))

	require.NoError(t, s.Put(cf, []byte("sess1"), []byte("v2")))

	remaining, err = s.GetTTL(cf, []byte("sess1"))
	require.NoError(t, err)
	require.EqualValues(t, NoTTL, remaining)

	v, err := s.Get(cf, []byte("sess1"))
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), v)
}
