package filestore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nalapon/hf-web-client/pkg/keystore/filestore"
)

func TestSetGetRoundTripsBinaryValues(t *testing.T) {
	dir := t.TempDir()
	s, err := filestore.New(filepath.Join(dir, "store.json"))
	require.NoError(t, err)

	value := []byte{0x00, 0x01, 0xff, 0xfe, 0x80}
	require.NoError(t, s.Set("k", value))

	got, ok, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, value, got)
}

func TestGetMissingKey(t *testing.T) {
	dir := t.TempDir()
	s, err := filestore.New(filepath.Join(dir, "store.json"))
	require.NoError(t, err)

	_, ok, err := s.Get("missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFilePermissionsAreOwnerOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	s, err := filestore.New(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("k", []byte("v")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSetIsAtomicAcrossSimulatedCrash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	s, err := filestore.New(path)
	require.NoError(t, err)

	require.NoError(t, s.Set("k", []byte("old-value")))
	oldContents, err := os.ReadFile(path)
	require.NoError(t, err)

	// Simulate a crash between the temp-file write and the rename: the
	// temp file exists with the new value, but the live path must still
	// hold the old, complete value until the rename actually happens.
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(`{"k":"partially-written`), 0600))

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, oldContents, current)

	got, ok, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("old-value"), got)
}

func TestDeleteAndKeys(t *testing.T) {
	dir := t.TempDir()
	s, err := filestore.New(filepath.Join(dir, "store.json"))
	require.NoError(t, err)

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

func TestSetMany(t *testing.T) {
	dir := t.TempDir()
	s, err := filestore.New(filepath.Join(dir, "store.json"))
	require.NoError(t, err)

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
	dir := t.TempDir()
	s, err := filestore.New(filepath.Join(dir, "store.json"))
	require.NoError(t, err)

	require.NoError(t, s.Set("a", []byte("1")))
	require.NoError(t, s.Clear())

	keys, err := s.Keys()
	require.NoError(t, err)
	require.Empty(t, keys)
}
