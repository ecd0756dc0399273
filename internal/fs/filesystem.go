package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalFile is a regular file on the local machine, resolved for upload.
type LocalFile struct {
	Path string
	Name string
	Size int64
}

// OSFilesystemManager resolves and opens local files for the CLI's put and get commands.
type OSFilesystemManager struct{}

// NewOSFilesystemManager creates a new filesystem manager that operates on the real filesystem.
func NewOSFilesystemManager() *OSFilesystemManager {
	return &OSFilesystemManager{}
}

// Resolve validates a raw path to a regular file and returns its details.
// Directories are returned with IsDir set so callers can expand them with FindFiles.
func (m *OSFilesystemManager) Resolve(rawPath string) (*LocalFile, bool, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, false, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, false, fmt.Errorf("stat path: %w", err)
	}

	if err := checkMode(absPath, info.Mode()); err != nil {
		return nil, false, err
	}

	return &LocalFile{Path: absPath, Name: info.Name(), Size: info.Size()}, info.IsDir(), nil
}

func checkMode(path string, mode fs.FileMode) error {
	switch {
	case mode&os.ModeSymlink != 0:
		return fmt.Errorf("symlinks not supported: %s", path)
	case mode&os.ModeDevice != 0:
		return fmt.Errorf("device files not supported: %s", path)
	case mode&os.ModeNamedPipe != 0:
		return fmt.Errorf("named pipes not supported: %s", path)
	case mode&os.ModeSocket != 0:
		return fmt.Errorf("sockets not supported: %s", path)
	}
	return nil
}

// Open opens a resolved file for reading.
func (m *OSFilesystemManager) Open(file *LocalFile) (io.ReadCloser, error) {
	return os.Open(file.Path)
}

// FindFiles returns the regular files directly inside dir, sorted by name.
// Subdirectories are skipped; folders in the store are flat.
func (m *OSFilesystemManager) FindFiles(dir string) ([]*LocalFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var files []*LocalFile
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		files = append(files, &LocalFile{
			Path: filepath.Join(dir, entry.Name()),
			Name: entry.Name(),
			Size: info.Size(),
		})
	}
	return files, nil
}

// WriteOutput copies r to path through a temp file in the same directory and
// renames it into place. An existing file is only replaced when overwrite is set.
func (m *OSFilesystemManager) WriteOutput(path string, r io.Reader, overwrite bool) (int64, error) {
	if !overwrite {
		if _, err := os.Lstat(path); err == nil {
			return 0, fmt.Errorf("output file already exists: %s", path)
		} else if !os.IsNotExist(err) {
			return 0, fmt.Errorf("stat output: %w", err)
		}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".stash-get-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		return 0, fmt.Errorf("writing output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return 0, fmt.Errorf("renaming output into place: %w", err)
	}

	success = true
	return n, nil
}
