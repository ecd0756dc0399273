// Package auth provides password hashing and signed session tokens.
package auth

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"

	"stash-go/internal/stash"
)

// ErrMismatch is returned by Compare when the password does not match the hash.
var ErrMismatch = errors.New("password does not match")

// maxBcryptInput is the longest password bcrypt accepts.
const maxBcryptInput = 72

// legacyDefaultIterations applies to legacy hashes that omit the iteration count.
const legacyDefaultIterations = 600000

// BcryptHasher hashes new passwords with bcrypt and also verifies legacy
// "pbkdf2:<digest>:<iterations>$<salt>$<hex>" hashes imported from older deployments.
type BcryptHasher struct {
	cost int
}

var _ stash.PasswordHasher = (*BcryptHasher)(nil)

// NewBcryptHasher creates a hasher with the given cost. A cost of 0 selects bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns the bcrypt hash of password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(bcryptInput(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hashed), nil
}

// Compare checks password against encodedHash. It returns ErrMismatch for a wrong
// password and another error for a hash it cannot parse.
func (h *BcryptHasher) Compare(encodedHash, password string) error {
	if strings.HasPrefix(encodedHash, "pbkdf2:") {
		return comparePBKDF2(encodedHash, password)
	}

	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), bcryptInput(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	if err != nil {
		return fmt.Errorf("comparing password: %w", err)
	}
	return nil
}

// bcryptInput returns the bytes handed to bcrypt. Passwords longer than bcrypt
// accepts are reduced to the base64 SHA-256 of the whole password, so every
// byte still counts.
func bcryptInput(password string) []byte {
	if len(password) <= maxBcryptInput {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

func comparePBKDF2(encodedHash, password string) error {
	method, rest, ok := strings.Cut(encodedHash, "$")
	if !ok {
		return fmt.Errorf("malformed pbkdf2 hash")
	}
	salt, want, ok := strings.Cut(rest, "$")
	if !ok || salt == "" || want == "" {
		return fmt.Errorf("malformed pbkdf2 hash")
	}

	parts := strings.Split(method, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return fmt.Errorf("malformed pbkdf2 method %q", method)
	}

	var newHash func() hash.Hash
	var keyLen int
	switch parts[1] {
	case "sha256":
		newHash, keyLen = sha256.New, sha256.Size
	case "sha512":
		newHash, keyLen = sha512.New, sha512.Size
	default:
		return fmt.Errorf("unsupported pbkdf2 digest %q", parts[1])
	}

	iterations := legacyDefaultIterations
	if len(parts) == 3 {
		n, err := strconv.Atoi(parts[2])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid pbkdf2 iterations %q", parts[2])
		}
		iterations = n
	}

	wantBytes, err := hex.DecodeString(want)
	if err != nil {
		return fmt.Errorf("decoding pbkdf2 hash: %w", err)
	}

	got := pbkdf2.Key([]byte(password), []byte(salt), iterations, keyLen, newHash)
	if subtle.ConstantTimeCompare(got, wantBytes) != 1 {
		return ErrMismatch
	}
	return nil
}
