package storage

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"stash-go/internal/stash"
)

// MemoryStore is an in-memory implementation of the ObjectStore interface.
// Directories are tracked explicitly so MakeDir and RemoveDir behave like the
// filesystem store. This implementation is safe for concurrent use.
type MemoryStore struct {
	objects map[string][]byte // key -> content
	dirs    map[string]bool   // key -> present
	mu      sync.RWMutex
}

// NewMemoryStore creates a new empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
		dirs:    make(map[string]bool),
	}
}

// Write stores the content of r at p.
func (m *MemoryStore) Write(p stash.ObjectPath, r io.Reader, size int64) error {
	m.mu.RLock()
	_, occupied := m.objects[p.Key()]
	if !occupied {
		occupied = m.dirs[p.Key()]
	}
	m.mu.RUnlock()
	if occupied {
		return fmt.Errorf("object %s: %w", p, stash.ErrAlreadyExists)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return stash.IOError("reading content", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return stash.IOError("reading content", fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data)))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[p.Key()] = data
	for dir := parentKey(p.Key()); dir != ""; dir = parentKey(dir) {
		m.dirs[dir] = true
	}
	return nil
}

// Open returns a reader over the stored content.
func (m *MemoryStore) Open(p stash.ObjectPath) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[p.Key()]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", p, stash.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes the object at p.
func (m *MemoryStore) Delete(p stash.ObjectPath) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, p.Key())
	return nil
}

// Exists reports whether an object or directory is stored at p.
func (m *MemoryStore) Exists(p stash.ObjectPath) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.objects[p.Key()]; ok {
		return true, nil
	}
	return m.dirs[p.Key()], nil
}

// MakeDir records the directory p and its parents.
func (m *MemoryStore) MakeDir(p stash.ObjectPath) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[p.Key()]; ok {
		return fmt.Errorf("directory %s: %w", p, stash.ErrAlreadyExists)
	}
	for dir := p.Key(); dir != ""; dir = parentKey(dir) {
		m.dirs[dir] = true
	}
	return nil
}

// RemoveDir removes the directory p and every key beneath it.
func (m *MemoryStore) RemoveDir(p stash.ObjectPath) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := p.Key() + "/"
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			delete(m.objects, key)
		}
	}
	for key := range m.dirs {
		if key == p.Key() || strings.HasPrefix(key, prefix) {
			delete(m.dirs, key)
		}
	}
	return nil
}

// ValidateSetup always succeeds for the in-memory store.
func (m *MemoryStore) ValidateSetup() error {
	return nil
}

// Keys returns the keys of all stored objects in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// parentKey returns the key of the directory containing key, or "" at the top.
func parentKey(key string) string {
	i := strings.LastIndexByte(key, '/')
	if i < 0 {
		return ""
	}
	return key[:i]
}

// Compile-time check that MemoryStore implements stash.ObjectStore interface
var _ stash.ObjectStore = (*MemoryStore)(nil)
