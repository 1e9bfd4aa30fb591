package badgerstore_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nalapon/hf-web-client/pkg/keystore/badgerstore"
)

func open(t *testing.T) *badgerstore.Store {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "badger")
	s, err := badgerstore.New(dir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetGetRoundTripsBinaryValues(t *testing.T) {
	s := open(t)

	value := []byte{0x00, 0x01, 0xff, 0xfe, 0x80}
	require.NoError(t, s.Set("k", value))

	got, ok, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, value, got)
}

func TestGetMissingKey(t *testing.T) {
	s := open(t)

	_, ok, err := s.Get("missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteAndKeys(t *testing.T) {
	s := open(t)

	require.NoError(t, s.Set("a", []byte("1")))
	require.NoError(t, s.Set("b", []byte("2")))

	keys, err := s.Keys()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, keys)

	require.NoError(t, s.Delete("a"))
	keys, err = s.Keys()
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, keys)
}

func TestSetManyCommitsInOneTransaction(t *testing.T) {
	s := open(t)

	require.NoError(t, s.SetMany(map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
	}))

	a, ok, err := s.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), a)

	b, ok, err := s.Get("b")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("2"), b)
}

func TestClear(t *testing.T) {
	s := open(t)

	require.NoError(t, s.Set("a", []byte("1")))
	require.NoError(t, s.Clear())

	keys, err := s.Keys()
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestReopenSeesPersistedValues(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "badger")

	s1, err := badgerstore.New(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Set("k", []byte("persisted")))
	require.NoError(t, s1.Close())

	s2, err := badgerstore.New(dir)
	require.NoError(t, err)
	defer s2.Close()

	got, ok, err := s2.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("persisted"), got)
}
