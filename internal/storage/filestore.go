// Package storage writes downloaded media into the download directory.
//
// Writes go to a ".part" temp file in the same directory, are hashed with
// SHA-256 while streaming, fsynced, and then renamed into place. A visible
// file therefore always holds complete content, which the driver's
// disk-existence check relies on.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// partSuffix marks in-progress writes.
const partSuffix = ".part"

// ErrExists is returned by Save when the target name is already taken.
var ErrExists = errors.New("file already exists")

// FileStore manages files under a single download directory.
type FileStore struct {
	dir string
}

// SaveResult describes a completed write.
type SaveResult struct {
	// Name is the file name relative to the download directory.
	Name string
	// Path is the full path on disk.
	Path string
	// Size is the number of bytes written.
	Size int64
	// Checksum is the hex SHA-256 of the content.
	Checksum string
}

// New returns a FileStore rooted at dir, creating it if absent.
func New(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create download dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the download directory.
func (fs *FileStore) Dir() string { return fs.dir }

// Path returns the full path for name.
func (fs *FileStore) Path(name string) string {
	return filepath.Join(fs.dir, name)
}

// Exists reports whether a regular file named name is present.
func (fs *FileStore) Exists(name string) bool {
	fi, err := os.Stat(fs.Path(name))
	return err == nil && fi.Mode().IsRegular()
}

// Size returns the size in bytes of the stored file.
func (fs *FileStore) Size(name string) (int64, error) {
	fi, err := os.Stat(fs.Path(name))
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Save streams r into name. It never overwrites: if name already exists the
// call fails with ErrExists and nothing is written. On any error the temp
// file is removed.
func (fs *FileStore) Save(name string, r io.Reader) (*SaveResult, error) {
	if name == "" || name != filepath.Base(name) {
		return nil, fmt.Errorf("invalid file name %q", name)
	}
	fullPath := fs.Path(name)
	if fs.Exists(name) {
		return nil, fmt.Errorf("%s: %w", name, ErrExists)
	}

	tmpPath := fullPath + partSuffix
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	hasher := sha256.New()
	size, err := io.Copy(f, io.TeeReader(r, hasher))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("write %s: %w", name, err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("fsync %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("close %s: %w", name, err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("rename %s: %w", name, err)
	}

	return &SaveResult{
		Name:     name,
		Path:     fullPath,
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// CleanPartials removes temp files left behind by an interrupted run and
// returns how many were removed.
func (fs *FileStore) CleanPartials() (int, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), partSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(fs.dir, e.Name())); err != nil && !os.IsNotExist(err) {
			return n, err
		}
		n++
	}
	return n, nil
}
