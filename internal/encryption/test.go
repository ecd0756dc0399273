package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"stash-go/internal/stash"
)

// testMagic starts every object written by TestEncryptor.
var testMagic = []byte("STASHENC")

// testMask is XORed into every byte so stored objects never contain the plaintext.
const testMask = 0x5a

// ErrNotTestCiphertext is returned when data was not produced by TestEncryptor.
var ErrNotTestCiphertext = errors.New("not a test ciphertext")

// TestEncryptor is a keyless, deterministic Encryptor for tests and for the
// "test" encryption type. It remembers the passphrase given to Setup and
// refuses to unlock with any other one.
type TestEncryptor struct {
	mu         sync.Mutex
	passphrase string
	setup      bool
}

var _ stash.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.setup {
		return ErrKeysExist
	}
	e.passphrase = passphrase
	e.setup = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testMagic); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := io.Copy(maskWriter{w}, r); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}
	return nil
}

// Unlock accepts any passphrase until Setup has been called.
func (e *TestEncryptor) Unlock(passphrase string) (stash.DecryptionContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.setup && passphrase != e.passphrase {
		return nil, ErrWrongPassphrase
	}
	return TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// TestDecryptionContext reverses TestEncryptor.
type TestDecryptionContext struct{}

var _ stash.DecryptionContext = TestDecryptionContext{}

func (TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testMagic))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if !bytes.Equal(header, testMagic) {
		return ErrNotTestCiphertext
	}
	if _, err := io.Copy(w, maskReader{r}); err != nil {
		return fmt.Errorf("decrypting data: %w", err)
	}
	return nil
}

type maskWriter struct{ w io.Writer }

func (m maskWriter) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	for i, b := range p {
		buf[i] = b ^ testMask
	}
	return m.w.Write(buf)
}

type maskReader struct{ r io.Reader }

func (m maskReader) Read(p []byte) (int, error) {
	n, err := m.r.Read(p)
	for i := 0; i < n; i++ {
		p[i] ^= testMask
	}
	return n, err
}
