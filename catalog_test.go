package snkv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateOpenDropCF(t *testing.T) {
	s := openTestStore(t)

	cf, err := s.CreateCF("widgets")
	require.NoError(t, err)
	require.Equal(t, "widgets", cf.Name())

	names, err := s.ListCF()
	require.NoError(t, err)
	require.Contains(t, names, "widgets")

	cf2, err := s.OpenCF("widgets")
	require.NoError(t, err)
	require.Equal(t, cf.Name(), cf2.Name())

	require.NoError(t, s.DropCF("widgets"))

	names, err = s.ListCF()
	require.NoError(t, err)
	require.NotContains(t, names, "widgets")

	_, err = s.OpenCF("widgets")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateCFDuplicateFails(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateCF("widgets")
	require.NoError(t, err)

	_, err = s.CreateCF("widgets")
	require.Error(t, err)
}

func TestCreateCFReservedPrefixRejected(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateCF("__internal")
	require.Error(t, err)
}

func TestDefaultCFCannotBeDropped(t *testing.T) {
	s := openTestStore(t)
	err := s.DropCF(defaultCFName)
	require.Error(t, err)
}

func TestDropCFAlsoDropsTTLIndexBuckets(t *testing.T) {
	s := openTestStore(t)
	cf, err := s.CreateCF("sessions")
	require.NoError(t, err)
	require.NoError(t, s.PutTTL(cf, []byte("k"), []byte("v"), nowMs()+60_000))
	require.True(t, cf.hasTTL)

	require.NoError(t, s.DropCF("sessions"))

	cf2, err := s.CreateCF("sessions")
	require.NoError(t, err)
	require.False(t, cf2.hasTTL) // a fresh CF of the same name starts clean
	require.Nil(t, s.tx.Bucket([]byte(ttlKeyCFName("sessions"))))
	require.Nil(t, s.tx.Bucket([]byte(ttlExpCFName("sessions"))))
}
