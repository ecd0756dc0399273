package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"stash-go/internal/stash"
)

// FileSystemStore is a filesystem-based implementation of the ObjectStore interface.
// Objects live beneath the upload root, one subtree per user:
//
//	<root>/
//	  <userID>/
//	    <filename>            (root bucket)
//	    <folder>/
//	      <filename>
type FileSystemStore struct {
	root string
}

// NewFileSystemStore creates a new filesystem store rooted at the given path.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	if root == "" {
		return nil, fmt.Errorf("upload root must not be empty")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving upload root: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload root: %w", err)
	}

	return &FileSystemStore{root: absRoot}, nil
}

// Root returns the absolute upload root.
func (s *FileSystemStore) Root() string {
	return s.root
}

// Write stores r at p using an atomic write (temp file + rename).
func (s *FileSystemStore) Write(p stash.ObjectPath, r io.Reader, size int64) error {
	destPath := p.Under(s.root)

	if _, err := os.Lstat(destPath); err == nil {
		return fmt.Errorf("object %s: %w", p, stash.ErrAlreadyExists)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return stash.IOError("checking object", err)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return stash.IOError("creating parent directory", err)
	}

	return s.writeFile(destPath, r, size)
}

// Open returns a reader for the object at p.
func (s *FileSystemStore) Open(p stash.ObjectPath) (io.ReadCloser, error) {
	f, err := os.Open(p.Under(s.root))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("object %s: %w", p, stash.ErrNotFound)
		}
		return nil, stash.IOError("opening object", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, stash.IOError("stat object", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("object %s is a directory: %w", p, stash.ErrNotFound)
	}

	return f, nil
}

// Delete removes the object at p. A missing object is not an error.
func (s *FileSystemStore) Delete(p stash.ObjectPath) error {
	if err := os.Remove(p.Under(s.root)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return stash.IOError("deleting object", err)
	}
	return nil
}

// Exists reports whether anything is present at p.
func (s *FileSystemStore) Exists(p stash.ObjectPath) (bool, error) {
	_, err := os.Lstat(p.Under(s.root))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, stash.IOError("checking object", err)
}

// MakeDir creates the directory p and any missing parents.
func (s *FileSystemStore) MakeDir(p stash.ObjectPath) error {
	dir := p.Under(s.root)
	if info, err := os.Lstat(dir); err == nil && !info.IsDir() {
		return fmt.Errorf("directory %s: %w", p, stash.ErrAlreadyExists)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return stash.IOError("creating directory", err)
	}
	return nil
}

// RemoveDir removes the directory p recursively. A missing directory is not an error.
func (s *FileSystemStore) RemoveDir(p stash.ObjectPath) error {
	dir := p.Under(s.root)
	if dir == s.root {
		return stash.IOError("removing directory", fmt.Errorf("refusing to remove upload root"))
	}
	if err := os.RemoveAll(dir); err != nil {
		return stash.IOError("removing directory", err)
	}
	return nil
}

// ValidateSetup verifies that the upload root exists and is writable.
func (s *FileSystemStore) ValidateSetup() error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("upload root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("upload root is not a directory: %s", s.root)
	}

	probe, err := os.CreateTemp(s.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("upload root not writable: %w", err)
	}
	probe.Close()
	os.Remove(probe.Name())

	return nil
}

// writeFile writes data from r to destPath via a temp file in the same directory.
// When expectedSize is non-negative, a short or long read is an error.
func (s *FileSystemStore) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return stash.IOError("creating temp file", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return stash.IOError("writing data", err)
	}

	if err := tmpFile.Close(); err != nil {
		return stash.IOError("closing temp file", err)
	}

	if expectedSize >= 0 && written != expectedSize {
		return stash.IOError("writing data", fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written))
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return stash.IOError("renaming temp file", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemStore implements stash.ObjectStore interface
var _ stash.ObjectStore = (*FileSystemStore)(nil)
