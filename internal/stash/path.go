package stash

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxFolderNameLength is the longest folder name accepted, in characters.
	MaxFolderNameLength = 100
	// MaxFilenameLength is the longest filename accepted, in bytes.
	MaxFilenameLength = 255
)

// folderNamePattern is the safe character set for folder names: letters, digits,
// space, underscore, dot and dash, starting with a letter or digit.
var folderNamePattern = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N} _.\-]*$`)

// ObjectPath is the location of a stored object or folder directory, relative to the
// storage root. ObjectPath values are created by the Resolve functions, which validate
// every component, so a store can use them without further checks.
//
// The key has the canonical form "<userID>/<folder>/<filename>"; the folder segment is
// absent for files in the root bucket.
type ObjectPath struct {
	key   string
	isDir bool
}

// Key returns the slash-separated key relative to the storage root.
func (p ObjectPath) Key() string {
	return p.key
}

// IsDir returns true if this path names a directory (a user root or a folder).
func (p ObjectPath) IsDir() bool {
	return p.isDir
}

// String returns the key.
func (p ObjectPath) String() string {
	return p.key
}

// Under returns the filesystem path of p beneath root.
func (p ObjectPath) Under(root string) string {
	return filepath.Join(root, filepath.FromSlash(p.key))
}

// ResolveObject maps (user, folder, filename) to the object's storage path.
// An empty folder selects the root bucket. It performs no filesystem access.
func ResolveObject(userID int64, folder, filename string) (ObjectPath, error) {
	if err := validateUserID(userID); err != nil {
		return ObjectPath{}, err
	}
	if folder != "" {
		if err := ValidateFolderName(folder); err != nil {
			return ObjectPath{}, err
		}
	}
	if err := ValidateFilename(filename); err != nil {
		return ObjectPath{}, err
	}
	return ObjectPath{key: path.Join(strconv.FormatInt(userID, 10), folder, filename)}, nil
}

// ResolveFolder maps (user, folder) to the folder's directory path.
func ResolveFolder(userID int64, folder string) (ObjectPath, error) {
	if err := validateUserID(userID); err != nil {
		return ObjectPath{}, err
	}
	if err := ValidateFolderName(folder); err != nil {
		return ObjectPath{}, err
	}
	return ObjectPath{key: path.Join(strconv.FormatInt(userID, 10), folder), isDir: true}, nil
}

// ResolveUserRoot returns the directory holding all of a user's objects.
func ResolveUserRoot(userID int64) (ObjectPath, error) {
	if err := validateUserID(userID); err != nil {
		return ObjectPath{}, err
	}
	return ObjectPath{key: strconv.FormatInt(userID, 10), isDir: true}, nil
}

func validateUserID(userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("%w: user id %d", ErrInvalidName, userID)
	}
	return nil
}

// ValidateFolderName checks a folder name against the safe character set.
// Names are expected to be trimmed already.
func ValidateFolderName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: folder name is not valid UTF-8", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > MaxFolderNameLength {
		return fmt.Errorf("%w: folder name longer than %d characters", ErrInvalidName, MaxFolderNameLength)
	}
	if strings.TrimSpace(name) != name {
		return fmt.Errorf("%w: folder name %q has surrounding spaces", ErrInvalidName, name)
	}
	if !folderNamePattern.MatchString(name) {
		return fmt.Errorf("%w: folder name %q contains unsafe characters", ErrInvalidName, name)
	}
	return nil
}

// ValidateFilename checks that name is a safe base name: no separators, no traversal
// segments, not absolute, and unchanged by SanitizeFilename.
func ValidateFilename(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty filename", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q is a traversal segment", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case filepath.IsAbs(name):
		return fmt.Errorf("%w: %q is an absolute path", ErrInvalidName, name)
	case len(name) > MaxFilenameLength:
		return fmt.Errorf("%w: filename longer than %d bytes", ErrInvalidName, MaxFilenameLength)
	case SanitizeFilename(name) != name:
		return fmt.Errorf("%w: %q contains unsafe characters", ErrInvalidName, name)
	}
	return nil
}

// SanitizeFilename reduces a client-supplied filename to a safe base name.
// It keeps only the last path element (either separator style), replaces characters
// outside letters, digits and " ._-()+," with '_', strips leading dots and surrounding
// spaces, and truncates to MaxFilenameLength bytes while keeping a short extension.
// The result may be empty, which ValidateFilename rejects.
func SanitizeFilename(raw string) string {
	raw = strings.ToValidUTF8(raw, "_")
	raw = strings.ReplaceAll(raw, `\`, "/")
	if i := strings.LastIndex(raw, "/"); i >= 0 {
		raw = raw[i+1:]
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(" ._-()+,", r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	name := strings.TrimSpace(b.String())
	name = strings.TrimLeft(name, ".")
	name = strings.TrimSpace(name)

	if len(name) > MaxFilenameLength {
		ext := filepath.Ext(name)
		if len(ext) > 16 {
			ext = ""
		}
		name = strings.TrimRight(truncateUTF8(strings.TrimSuffix(name, ext), MaxFilenameLength-len(ext)), " ") + ext
	}
	return name
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
