package encryption

import (
	"fmt"

	"stash-go/internal/config"
	"stash-go/internal/stash"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// It returns a nil Encryptor when encryption at rest is disabled.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (stash.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
