package stash_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"stash-go/internal/stash"
)

func TestResolveObject(t *testing.T) {
	t.Run("folder file", func(t *testing.T) {
		p, err := stash.ResolveObject(7, "reports", "q1.pdf")
		if err != nil {
			t.Fatalf("ResolveObject() error = %v", err)
		}
		if p.Key() != "7/reports/q1.pdf" {
			t.Errorf("Key() = %q, want %q", p.Key(), "7/reports/q1.pdf")
		}
		if p.IsDir() {
			t.Error("object path reported as directory")
		}
		if got := p.Under("/srv/uploads"); got != filepath.Join("/srv/uploads", "7", "reports", "q1.pdf") {
			t.Errorf("Under() = %q", got)
		}
	})

	t.Run("root bucket file", func(t *testing.T) {
		p, err := stash.ResolveObject(7, "", "notes.txt")
		if err != nil {
			t.Fatalf("ResolveObject() error = %v", err)
		}
		if p.Key() != "7/notes.txt" {
			t.Errorf("Key() = %q, want %q", p.Key(), "7/notes.txt")
		}
	})

	t.Run("is deterministic", func(t *testing.T) {
		a, _ := stash.ResolveObject(3, "docs", "a.txt")
		b, _ := stash.ResolveObject(3, "docs", "a.txt")
		if a != b {
			t.Errorf("ResolveObject() not deterministic: %v != %v", a, b)
		}
	})
}

func TestResolveObject_RejectsTraversal(t *testing.T) {
	tests := []struct {
		name     string
		userID   int64
		folder   string
		filename string
	}{
		{name: "relative escape in filename", userID: 1, folder: "reports", filename: "../../etc/passwd"},
		{name: "dot dot filename", userID: 1, folder: "reports", filename: ".."},
		{name: "dot filename", userID: 1, folder: "", filename: "."},
		{name: "nested filename", userID: 1, folder: "", filename: "a/b.txt"},
		{name: "backslash filename", userID: 1, folder: "", filename: `..\..\boot.ini`},
		{name: "absolute filename", userID: 1, folder: "", filename: "/etc/passwd"},
		{name: "empty filename", userID: 1, folder: "reports", filename: ""},
		{name: "hidden filename", userID: 1, folder: "", filename: ".env"},
		{name: "control character", userID: 1, folder: "", filename: "a\x00b.txt"},
		{name: "dot dot folder", userID: 1, folder: "..", filename: "x.txt"},
		{name: "escaping folder", userID: 1, folder: "../2", filename: "x.txt"},
		{name: "nested folder", userID: 1, folder: "a/b", filename: "x.txt"},
		{name: "absolute folder", userID: 1, folder: "/tmp", filename: "x.txt"},
		{name: "hidden folder", userID: 1, folder: ".git", filename: "x.txt"},
		{name: "padded folder", userID: 1, folder: " reports", filename: "x.txt"},
		{name: "overlong folder", userID: 1, folder: strings.Repeat("a", stash.MaxFolderNameLength+1), filename: "x.txt"},
		{name: "overlong filename", userID: 1, folder: "", filename: strings.Repeat("a", stash.MaxFilenameLength+1)},
		{name: "zero user", userID: 0, folder: "", filename: "x.txt"},
		{name: "negative user", userID: -1, folder: "", filename: "x.txt"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := stash.ResolveObject(tt.userID, tt.folder, tt.filename)
			if !errors.Is(err, stash.ErrInvalidName) {
				t.Errorf("ResolveObject(%d, %q, %q) error = %v, want ErrInvalidName", tt.userID, tt.folder, tt.filename, err)
			}
		})
	}
}

func TestResolveFolder(t *testing.T) {
	p, err := stash.ResolveFolder(4, "My Reports 2024")
	if err != nil {
		t.Fatalf("ResolveFolder() error = %v", err)
	}
	if p.Key() != "4/My Reports 2024" || !p.IsDir() {
		t.Errorf("ResolveFolder() = %q dir=%v", p.Key(), p.IsDir())
	}

	if _, err := stash.ResolveFolder(4, ""); !errors.Is(err, stash.ErrEmptyName) {
		t.Errorf("ResolveFolder() empty name error = %v, want ErrEmptyName", err)
	}
	if _, err := stash.ResolveFolder(4, "../x"); !errors.Is(err, stash.ErrInvalidName) {
		t.Errorf("ResolveFolder() traversal error = %v, want ErrInvalidName", err)
	}
}

func TestResolveUserRoot(t *testing.T) {
	p, err := stash.ResolveUserRoot(12)
	if err != nil {
		t.Fatalf("ResolveUserRoot() error = %v", err)
	}
	if p.Key() != "12" || !p.IsDir() {
		t.Errorf("ResolveUserRoot() = %q dir=%v", p.Key(), p.IsDir())
	}
	if _, err := stash.ResolveUserRoot(0); !errors.Is(err, stash.ErrInvalidName) {
		t.Errorf("ResolveUserRoot(0) error = %v, want ErrInvalidName", err)
	}
}

func TestValidateFolderName(t *testing.T) {
	valid := []string{"reports", "Q1 2024", "tax_returns", "v1.2-final", "Über", "報告"}
	for _, name := range valid {
		if err := stash.ValidateFolderName(name); err != nil {
			t.Errorf("ValidateFolderName(%q) error = %v", name, err)
		}
	}

	invalid := []string{"a/b", `a\b`, "..", ".", "-leading", "tab\tname", "semi;colon", "a\nb"}
	for _, name := range invalid {
		if err := stash.ValidateFolderName(name); !errors.Is(err, stash.ErrInvalidName) {
			t.Errorf("ValidateFolderName(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "q1.pdf", want: "q1.pdf"},
		{raw: "my file (1).pdf", want: "my file (1).pdf"},
		{raw: "../../etc/passwd", want: "passwd"},
		{raw: `C:\Users\alice\report.pdf`, want: "report.pdf"},
		{raw: ".bashrc", want: "bashrc"},
		{raw: "a*b?.txt", want: "a_b_.txt"},
		{raw: "  spaced.txt  ", want: "spaced.txt"},
		{raw: "....", want: ""},
		{raw: "dir/", want: ""},
		{raw: "résumé.pdf", want: "résumé.pdf"},
		{raw: "bad\xffutf8.txt", want: "bad_utf8.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := stash.SanitizeFilename(tt.raw)
			if got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.raw, got, tt.want)
			}
			if again := stash.SanitizeFilename(got); again != got {
				t.Errorf("SanitizeFilename not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestSanitizeFilename_Truncates(t *testing.T) {
	got := stash.SanitizeFilename(strings.Repeat("a", 300) + ".pdf")
	if len(got) != stash.MaxFilenameLength {
		t.Errorf("len = %d, want %d", len(got), stash.MaxFilenameLength)
	}
	if !strings.HasSuffix(got, ".pdf") {
		t.Errorf("extension lost: %q", got[len(got)-8:])
	}
	if err := stash.ValidateFilename(got); err != nil {
		t.Errorf("truncated name does not validate: %v", err)
	}

	multibyte := stash.SanitizeFilename(strings.Repeat("é", 200) + ".txt")
	if len(multibyte) > stash.MaxFilenameLength {
		t.Errorf("len = %d, exceeds %d", len(multibyte), stash.MaxFilenameLength)
	}
	if err := stash.ValidateFilename(multibyte); err != nil {
		t.Errorf("truncated multibyte name does not validate: %v", err)
	}
}
