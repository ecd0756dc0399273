package testutil

import (
	"errors"
	"strings"

	"stash-go/internal/stash"
)

const plainPrefix = "plain$"

// PlainHasher stores passwords with a marker prefix instead of hashing them,
// keeping service tests fast. Never use outside tests.
type PlainHasher struct{}

func NewPlainHasher() *PlainHasher {
	return &PlainHasher{}
}

func (*PlainHasher) Hash(password string) (string, error) {
	return plainPrefix + password, nil
}

func (*PlainHasher) Compare(encodedHash, password string) error {
	if !strings.HasPrefix(encodedHash, plainPrefix) {
		return errors.New("not a plain hash")
	}
	if strings.TrimPrefix(encodedHash, plainPrefix) != password {
		return errors.New("password mismatch")
	}
	return nil
}

var _ stash.PasswordHasher = (*PlainHasher)(nil)
