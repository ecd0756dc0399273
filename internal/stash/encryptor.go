package stash

import "io"

// Encryptor protects stored objects at rest. Objects are encrypted to a public
// key, so uploads work on a server that was never unlocked; reading them back
// needs a DecryptionContext obtained with the operator's passphrase.
type Encryptor interface {
	// Setup creates the key pair, sealing the private half with passphrase.
	// It is run once, by `stash keys init`.
	Setup(passphrase string) error

	// Encrypt streams plaintext from r to w as ciphertext.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock opens the private key. A wrong passphrase is an error.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether the key pair exists.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key for the life of the process.
type DecryptionContext interface {
	// Decrypt streams ciphertext from r to w as plaintext.
	Decrypt(r io.Reader, w io.Writer) error
}
