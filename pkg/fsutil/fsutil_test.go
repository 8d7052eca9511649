package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corosync.conf")

	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))
	require.NoError(t, AtomicWriteFile(path, []byte("new"), 0640))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0640), info.Mode().Perm())

	assertNoTempFiles(t, dir)
}

func TestInstallFile_CheckSeesStagedContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corosync.conf")

	var staged string
	err := InstallFile(path, []byte("quorum {\n}\n"), 0644, func(p string) error {
		assert.NotEqual(t, path, p)
		assert.Equal(t, dir, filepath.Dir(p))
		data, err := os.ReadFile(p)
		staged = string(data)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "quorum {\n}\n", staged)
}

func TestInstallFile_FailedCheckLeavesDestination(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corosync.conf")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0644))

	checkErr := errors.New("parse error at line 3")
	err := InstallFile(path, []byte("garbage"), 0644, func(string) error { return checkErr })
	assert.ErrorIs(t, err, checkErr)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
	assertNoTempFiles(t, dir)
}

func TestInstallFile_MissingDirectory(t *testing.T) {
	err := AtomicWriteFile(filepath.Join(t.TempDir(), "missing", "corosync.conf"), []byte("x"), 0644)
	assert.Error(t, err)
}

func TestCopyFile_PreservesContentModeAndMtime(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.conf")
	dst := filepath.Join(dir, "dst.conf")

	content := []byte("totem {\n  version: 2\n}\n")
	require.NoError(t, os.WriteFile(src, content, 0600))
	mtime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(src, mtime, mtime))

	require.NoError(t, CopyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, content, data)

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	assert.True(t, info.ModTime().Equal(mtime), "mtime = %v, want %v", info.ModTime(), mtime)
}

func TestCopyFile_MissingSource(t *testing.T) {
	err := CopyFile(filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "dst"))
	assert.True(t, os.IsNotExist(err))
}

func TestCopyFile_Directory(t *testing.T) {
	dir := t.TempDir()
	err := CopyFile(dir, filepath.Join(t.TempDir(), "dst"))
	assert.Error(t, err)
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")

	ok, err := Exists(path)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(path, nil, 0644))
	ok, err = Exists(path)
	require.NoError(t, err)
	assert.True(t, ok)
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, ".*.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}
