package testutil

import (
	"stash-go/internal/storage"
)

// NewTestStore creates an empty in-memory object store.
func NewTestStore() *storage.MemoryStore {
	return storage.NewMemoryStore()
}
