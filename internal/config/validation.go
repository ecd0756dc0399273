package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the configuration using struct tags, then applies the rules
// that depend on the selected backend types.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

func validateCustomRules(cfg *Config) error {
	if cfg.Database.Type == "sqlite" && cfg.Database.DataDir == "" {
		return fmt.Errorf("database: data_dir required for sqlite database")
	}

	switch cfg.Storage.Type {
	case "filesystem":
		if cfg.Storage.UploadRoot == "" {
			return fmt.Errorf("storage: upload_root required for filesystem storage")
		}
	case "s3":
		if cfg.Storage.S3Bucket == "" {
			return fmt.Errorf("storage: s3_bucket required for s3 storage")
		}
	}

	if cfg.Encryption.Type == "age" {
		if cfg.Encryption.PublicKeyPath == "" || cfg.Encryption.PrivateKeyPath == "" {
			return fmt.Errorf("encryption: public_key_path and private_key_path required for age encryption")
		}
	}

	for i, ext := range cfg.Uploads.AllowedExtensions {
		if strings.ContainsAny(ext, `/\ `) {
			return fmt.Errorf("uploads.allowed_extensions[%d]: invalid extension %q", i, ext)
		}
	}

	if _, err := cfg.Server.SessionDuration(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if cfg.Bootstrap.AdminUsername != "" && cfg.Bootstrap.AdminPassword == "" {
		return fmt.Errorf("bootstrap: admin_password required when admin_username is set")
	}

	return nil
}

// formatValidationError reports the first failing field.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		if e.StructField() == "SessionSecret" || e.StructField() == "AdminPassword" {
			return fmt.Errorf("%s: validation failed on '%s' tag", e.Namespace(), e.Tag())
		}
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
