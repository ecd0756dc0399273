package app

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"stash-go/internal/config"
	"stash-go/internal/database"
	"stash-go/internal/database/migrations"
	"stash-go/internal/encryption"
)

// MigrateDatabase applies pending schema migrations to the configured database
// and returns the resulting status. It does not require an up-to-date schema.
func MigrateDatabase(cfg *config.Config) (migrations.Status, error) {
	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.InstanceID)
	if err != nil {
		return migrations.Status{}, fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return migrations.Status{}, fmt.Errorf("migrating database: %w", err)
	}
	return db.MigrationStatus()
}

// InitKeys generates the encryption key pair, protecting the private key with passphrase.
func InitKeys(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if enc == nil {
		return fmt.Errorf("encryption is disabled (set [encryption] type = \"age\")")
	}
	return enc.Setup(passphrase)
}

// NewSessionSecret returns a random hex secret for signing session tokens.
func NewSessionSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
