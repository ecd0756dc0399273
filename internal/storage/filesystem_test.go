package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stash-go/internal/config"
)

func TestNewFileSystemStore(t *testing.T) {
	t.Run("creates upload root", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "uploads")

		s, err := NewFileSystemStore(root)
		if err != nil {
			t.Fatalf("NewFileSystemStore() error = %v", err)
		}
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			t.Errorf("upload root not created: %v", err)
		}
		if s.Root() != root {
			t.Errorf("Root() = %q, want %q", s.Root(), root)
		}
	})

	t.Run("rejects empty root", func(t *testing.T) {
		if _, err := NewFileSystemStore(""); err == nil {
			t.Error("NewFileSystemStore(\"\") expected error")
		}
	})
}

func TestFileSystemStore_Layout(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileSystemStore(root)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}

	if err := s.Write(mustObject(t, 3, "reports", "q1.pdf"), strings.NewReader("pdf"), 3); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := s.Write(mustObject(t, 3, "", "notes.txt"), strings.NewReader("txt"), 3); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	for _, rel := range []string{"3/reports/q1.pdf", "3/notes.txt"} {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			t.Errorf("expected object at %s: %v", rel, err)
			continue
		}
		if len(data) != 3 {
			t.Errorf("%s has %d bytes, want 3", rel, len(data))
		}
	}
}

func TestFileSystemStore_NoTempFilesLeft(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileSystemStore(root)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}

	s.Write(mustObject(t, 1, "", "ok.txt"), strings.NewReader("ok"), 2)
	s.Write(mustObject(t, 1, "", "bad.txt"), strings.NewReader("short"), 50)

	entries, err := os.ReadDir(filepath.Join(root, "1"))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("user dir has %d entries, want 1", len(entries))
	}
}

func TestFileSystemStore_MakeDir(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileSystemStore(root)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}

	dir := mustFolder(t, 1, "reports")
	if err := s.MakeDir(dir); err != nil {
		t.Fatalf("MakeDir() error = %v", err)
	}
	if err := s.MakeDir(dir); err != nil {
		t.Errorf("second MakeDir() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(root, "1", "reports"))
	if err != nil || !info.IsDir() {
		t.Fatalf("folder directory not created: %v", err)
	}

	exists, err := s.Exists(dir)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !exists {
		t.Error("Exists() = false for created directory")
	}
}

func TestFileSystemStore_OpenDirectory(t *testing.T) {
	s, err := NewFileSystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	if err := s.MakeDir(mustFolder(t, 1, "docs")); err != nil {
		t.Fatalf("MakeDir() error = %v", err)
	}

	// A folder named like a root-bucket file must not be served as one.
	if _, err := s.Open(mustObject(t, 1, "", "docs")); err == nil {
		t.Error("Open() on a directory expected error")
	}
}

func TestNewStoreFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StorageConfig
		wantErr bool
	}{
		{name: "memory store", cfg: config.StorageConfig{Type: "memory"}},
		{name: "filesystem store", cfg: config.StorageConfig{Type: "filesystem", UploadRoot: t.TempDir()}},
		{name: "filesystem without root", cfg: config.StorageConfig{Type: "filesystem"}, wantErr: true},
		{name: "s3 without bucket", cfg: config.StorageConfig{Type: "s3"}, wantErr: true},
		{name: "unknown type", cfg: config.StorageConfig{Type: "ftp"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewStoreFromConfig(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStoreFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got == nil {
				t.Error("NewStoreFromConfig() returned nil store")
			}
			if tt.wantErr && got != nil {
				t.Error("NewStoreFromConfig() should return nil on error")
			}
		})
	}
}
