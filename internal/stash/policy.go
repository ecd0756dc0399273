package stash

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	// Hash returns an encoded, salted hash of password.
	Hash(password string) (string, error)

	// Compare returns nil if password matches the encoded hash.
	Compare(encodedHash, password string) error
}

// UploadPolicy decides whether an uploaded file is acceptable before anything is written.
type UploadPolicy interface {
	// AllowedExtension reports whether filename's extension is permitted.
	AllowedExtension(filename string) bool

	// MaxSize returns the largest accepted upload in bytes; zero or less means unlimited.
	MaxSize() int64
}
