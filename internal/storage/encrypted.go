package storage

import (
	"errors"
	"fmt"
	"io"

	"stash-go/internal/stash"
)

// EncryptedStore encrypts objects before handing them to the wrapped store and
// decrypts them on Open. Encryption needs only the public key; Open fails until
// a DecryptionContext is supplied.
type EncryptedStore struct {
	inner     stash.ObjectStore
	encryptor stash.Encryptor
	decryptor stash.DecryptionContext
}

// NewEncryptedStore wraps inner. decryptor may be nil for write-only use.
func NewEncryptedStore(inner stash.ObjectStore, encryptor stash.Encryptor, decryptor stash.DecryptionContext) *EncryptedStore {
	return &EncryptedStore{
		inner:     inner,
		encryptor: encryptor,
		decryptor: decryptor,
	}
}

// Write encrypts r while streaming it into the wrapped store. The ciphertext
// length differs from size, so the wrapped store sees an unknown size and the
// plaintext length is checked here.
func (e *EncryptedStore) Write(p stash.ObjectPath, r io.Reader, size int64) error {
	pr, pw := io.Pipe()
	counter := &byteCounter{r: r}

	done := make(chan struct{})
	go func() {
		defer close(done)
		pw.CloseWithError(e.encryptor.Encrypt(counter, pw))
	}()

	err := e.inner.Write(p, pr, -1)
	// Unblock the encrypting goroutine if the store stopped reading early.
	pr.CloseWithError(io.ErrClosedPipe)
	<-done
	if err != nil {
		return err
	}

	if size >= 0 && counter.n != size {
		mismatch := stash.IOError("encrypting object", fmt.Errorf("size mismatch: expected %d bytes, got %d", size, counter.n))
		if err := e.inner.Delete(p); err != nil {
			return errors.Join(mismatch, fmt.Errorf("removing partial object: %w", err))
		}
		return mismatch
	}
	return nil
}

// Open returns a reader that decrypts the stored object as it is read.
func (e *EncryptedStore) Open(p stash.ObjectPath) (io.ReadCloser, error) {
	if e.decryptor == nil {
		return nil, stash.IOError("opening object", fmt.Errorf("store is locked: no decryption key"))
	}

	rc, err := e.inner.Open(p)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	go func() {
		err := e.decryptor.Decrypt(rc, pw)
		rc.Close()
		if err != nil {
			err = stash.IOError("decrypting object", err)
		}
		pw.CloseWithError(err)
	}()

	return pr, nil
}

func (e *EncryptedStore) Delete(p stash.ObjectPath) error {
	return e.inner.Delete(p)
}

func (e *EncryptedStore) Exists(p stash.ObjectPath) (bool, error) {
	return e.inner.Exists(p)
}

func (e *EncryptedStore) MakeDir(p stash.ObjectPath) error {
	return e.inner.MakeDir(p)
}

func (e *EncryptedStore) RemoveDir(p stash.ObjectPath) error {
	return e.inner.RemoveDir(p)
}

// ValidateSetup checks the wrapped store and that the key pair exists.
func (e *EncryptedStore) ValidateSetup() error {
	if !e.encryptor.IsConfigured() {
		return fmt.Errorf("encryption keys not found (run 'stash keys init')")
	}
	return e.inner.ValidateSetup()
}

// Compile-time check that EncryptedStore implements stash.ObjectStore interface
var _ stash.ObjectStore = (*EncryptedStore)(nil)
