package fs

import (
	"path/filepath"
	"strings"

	"stash-go/internal/config"
	"stash-go/internal/stash"
)

// ExtensionPolicy accepts uploads whose extension is on an allowlist and whose size is
// within a limit. An empty allowlist accepts every extension, including none.
type ExtensionPolicy struct {
	allowed map[string]struct{}
	maxSize int64
}

// NewExtensionPolicy creates a policy from raw extensions. Leading dots and case are
// ignored; blank entries and lines starting with '#' are skipped.
func NewExtensionPolicy(extensions []string, maxSize int64) *ExtensionPolicy {
	allowed := make(map[string]struct{})
	for _, raw := range extensions {
		ext := normalizeExtension(raw)
		if ext == "" || strings.HasPrefix(ext, "#") {
			continue
		}
		allowed[ext] = struct{}{}
	}
	return &ExtensionPolicy{allowed: allowed, maxSize: maxSize}
}

// NewExtensionPolicyFromConfig creates the policy described by the uploads section.
func NewExtensionPolicyFromConfig(cfg config.UploadsConfig) *ExtensionPolicy {
	return NewExtensionPolicy(cfg.AllowedExtensions, cfg.MaxSize)
}

func normalizeExtension(raw string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "."))
}

// AllowedExtension reports whether filename's final extension is on the allowlist.
// Only the last extension counts: "archive.tar.gz" is checked as "gz".
func (p *ExtensionPolicy) AllowedExtension(filename string) bool {
	if len(p.allowed) == 0 {
		return true
	}
	ext := normalizeExtension(filepath.Ext(filename))
	if ext == "" {
		return false
	}
	_, ok := p.allowed[ext]
	return ok
}

// MaxSize returns the upload size limit in bytes.
func (p *ExtensionPolicy) MaxSize() int64 {
	return p.maxSize
}

var _ stash.UploadPolicy = (*ExtensionPolicy)(nil)
