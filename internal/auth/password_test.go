package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_HashCompare(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hashed, err := h.Hash("s3cret")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hashed == "s3cret" || strings.Contains(hashed, "s3cret") {
		t.Fatal("Hash() output contains the plaintext password")
	}

	if err := h.Compare(hashed, "s3cret"); err != nil {
		t.Errorf("Compare() with correct password error = %v", err)
	}
	if err := h.Compare(hashed, "wrong"); !errors.Is(err, ErrMismatch) {
		t.Errorf("Compare() with wrong password error = %v, want ErrMismatch", err)
	}
}

func TestBcryptHasher_Salted(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	a, err := h.Hash("same")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	b, err := h.Hash("same")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if a == b {
		t.Error("two hashes of the same password are identical")
	}
}

func TestNewBcryptHasher_DefaultCost(t *testing.T) {
	h := NewBcryptHasher(0)
	if h.cost != bcrypt.DefaultCost {
		t.Errorf("cost = %d, want %d", h.cost, bcrypt.DefaultCost)
	}
}

func TestBcryptHasher_LegacyPBKDF2(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	tests := []struct {
		name     string
		hash     string
		password string
		wantErr  error
		anyErr   bool
	}{
		{
			name:     "sha256 match",
			hash:     "pbkdf2:sha256:1000$Zt8dQyP1$6305e2bd752e396468f846b5a32c547760d20e4639f6602e07286e4c5d2582f4",
			password: "admin",
		},
		{
			name:     "sha256 mismatch",
			hash:     "pbkdf2:sha256:1000$Zt8dQyP1$6305e2bd752e396468f846b5a32c547760d20e4639f6602e07286e4c5d2582f4",
			password: "Admin",
			wantErr:  ErrMismatch,
		},
		{
			name:     "sha512 match",
			hash:     "pbkdf2:sha512:500$abcDEF12$22c033aacd4fd275ab34121a0e3545af62b3fbbeb2286042dfe2eec531b69d4b67a1947715b19635a38259be31abb0733d1a257ec69530e49b2c0803eaedf66f",
			password: "hunter2",
		},
		{
			name:     "missing salt separator",
			hash:     "pbkdf2:sha256:1000$nohash",
			password: "admin",
			anyErr:   true,
		},
		{
			name:     "unsupported digest",
			hash:     "pbkdf2:md5:1000$salt$abcd",
			password: "admin",
			anyErr:   true,
		},
		{
			name:     "bad iterations",
			hash:     "pbkdf2:sha256:zero$salt$abcd",
			password: "admin",
			anyErr:   true,
		},
		{
			name:     "bad hex",
			hash:     "pbkdf2:sha256:1000$salt$zz",
			password: "admin",
			anyErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.Compare(tt.hash, tt.password)
			switch {
			case tt.anyErr:
				if err == nil {
					t.Error("Compare() expected error")
				}
				if errors.Is(err, ErrMismatch) {
					t.Errorf("Compare() error = %v, want a parse error", err)
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Compare() error = %v, want %v", err, tt.wantErr)
				}
			default:
				if err != nil {
					t.Errorf("Compare() error = %v", err)
				}
			}
		})
	}
}

func TestBcryptHasher_GarbageHash(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	err := h.Compare("not-a-hash", "x")
	if err == nil {
		t.Fatal("Compare() with garbage hash expected error")
	}
	if errors.Is(err, ErrMismatch) {
		t.Error("garbage hash reported as a mismatch")
	}
}

func TestBcryptHasher_LongPasswords(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	long := strings.Repeat("correct horse battery staple ", 3)
	sameStart := long[:maxBcryptInput] + "something else entirely"

	tests := []struct {
		name     string
		password string
	}{
		{name: "exactly 72 bytes", password: strings.Repeat("x", maxBcryptInput)},
		{name: "passphrase over 72 bytes", password: long},
		{name: "1024 bytes", password: strings.Repeat("p", 1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hashed, err := h.Hash(tt.password)
			if err != nil {
				t.Fatalf("Hash() error = %v", err)
			}
			if err := h.Compare(hashed, tt.password); err != nil {
				t.Errorf("Compare() with correct password error = %v", err)
			}
			if err := h.Compare(hashed, tt.password[:len(tt.password)-1]); !errors.Is(err, ErrMismatch) {
				t.Errorf("Compare() with truncated password error = %v, want ErrMismatch", err)
			}
		})
	}

	t.Run("bytes past 72 are significant", func(t *testing.T) {
		hashed, err := h.Hash(long)
		if err != nil {
			t.Fatalf("Hash() error = %v", err)
		}
		if err := h.Compare(hashed, sameStart); !errors.Is(err, ErrMismatch) {
			t.Errorf("Compare() with shared 72-byte prefix error = %v, want ErrMismatch", err)
		}
	})
}
