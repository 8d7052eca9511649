package fsutil

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// CheckFunc inspects a staged file before it replaces the destination
type CheckFunc func(stagedPath string) error

// AtomicWriteFile writes data to path through a temp file in the same
// directory: write, fsync, close, chmod, rename.
func AtomicWriteFile(path string, data []byte, perm fs.FileMode) error {
	return InstallFile(path, data, perm, nil)
}

// InstallFile stages data next to path, runs check on the staged file and
// renames it over path only if check passes. A failed check leaves path
// untouched and removes the staged file.
func InstallFile(path string, data []byte, perm fs.FileMode, check CheckFunc) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}

	if check != nil {
		if err := check(tmpPath); err != nil {
			return err
		}
	}

	// The clustered filesystem ignores modes, so chmod failures are not fatal
	_ = os.Chmod(tmpPath, perm)

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	committed = true
	return nil
}

// CopyFile copies src to dst preserving mode and modification time where
// the destination filesystem allows it. dst is replaced atomically.
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}

	if err := AtomicWriteFile(dst, data, info.Mode().Perm()); err != nil {
		return err
	}

	mtime := info.ModTime()
	_ = os.Chtimes(dst, time.Now(), mtime)
	return nil
}

// Exists reports whether path names an existing file
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
