package stash

import (
	"errors"
	"fmt"
)

// Errors returned by StashService and the storage layer. Callers match them with errors.Is;
// every error returned by the service wraps at most one of these kinds.
var (
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrDuplicateUsername   = errors.New("username already taken")
	ErrDuplicateFolder     = errors.New("folder already exists")
	ErrEmptyName           = errors.New("name must not be empty")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrAlreadyExists       = errors.New("already exists")
	ErrInvalidName         = errors.New("invalid name")
	ErrDisallowedExtension = errors.New("file extension not allowed")
	ErrTooLarge            = errors.New("file too large")
	ErrIO                  = errors.New("storage I/O error")
)

// IOError wraps a storage failure so that it matches both ErrIO and the underlying cause.
func IOError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrIO, err)
}
