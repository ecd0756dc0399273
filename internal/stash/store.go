package stash

import "io"

// ObjectStore performs the storage side effects for objects located by ObjectPath.
// Implementations never interpret names themselves; every path has already been
// validated by the resolver.
type ObjectStore interface {
	// Write stores r at p, creating parent directories as needed.
	// Returns ErrAlreadyExists if p is already occupied; the check happens before
	// the write and a concurrent writer may still win the race.
	// size is the number of bytes that will be read from r, or -1 if unknown.
	// Any other failure wraps ErrIO.
	Write(p ObjectPath, r io.Reader, size int64) error

	// Open returns a reader for the object at p. Returns ErrNotFound if it is missing.
	Open(p ObjectPath) (io.ReadCloser, error)

	// Delete removes the object at p. A missing object is not an error.
	Delete(p ObjectPath) error

	// Exists reports whether an object or directory is present at p.
	Exists(p ObjectPath) (bool, error)

	// MakeDir creates the directory p. An existing directory is not an error.
	MakeDir(p ObjectPath) error

	// RemoveDir removes the directory p and everything beneath it.
	// A missing directory is not an error.
	RemoveDir(p ObjectPath) error

	// ValidateSetup verifies that the store is accessible and properly configured.
	ValidateSetup() error
}
