package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultMaxUploadSize is the upload limit used when none is configured (16 MiB).
const DefaultMaxUploadSize int64 = 16 << 20

// Config represents the main configuration for stash.
type Config struct {
	InstanceID string           `toml:"instance_id" validate:"required"`
	BaseDir    string           `toml:"base_dir" validate:"required"`
	LogDir     string           `toml:"log_dir"`
	Database   DatabaseConfig   `toml:"database"`
	Storage    StorageConfig    `toml:"storage"`
	Encryption EncryptionConfig `toml:"encryption"`
	Uploads    UploadsConfig    `toml:"uploads"`
	Server     ServerConfig     `toml:"server"`
	Bootstrap  BootstrapConfig  `toml:"bootstrap"`
}

// DatabaseConfig represents configuration for the metadata database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type" validate:"required,oneof=sqlite memory"`
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// StorageConfig represents configuration for the object store holding uploaded bytes.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StorageConfig struct {
	Type string `toml:"type" validate:"required,oneof=filesystem memory s3"`

	// Filesystem-specific fields (only used when Type == "filesystem")
	UploadRoot string `toml:"upload_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // custom endpoint for S3-compatible services
}

// EncryptionConfig selects encryption at rest for stored objects.
type EncryptionConfig struct {
	Type           string `toml:"type" validate:"omitempty,oneof=none age test"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path,omitempty"`
	PrivateKeyPath string `toml:"private_key_path,omitempty"`
}

// UploadsConfig limits what may be uploaded.
type UploadsConfig struct {
	MaxSize           int64    `toml:"max_size" validate:"gt=0"`
	AllowedExtensions []string `toml:"allowed_extensions,omitempty" validate:"dive,required"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	ListenAddr         string `toml:"listen_addr" validate:"required"`
	SessionSecret      string `toml:"session_secret" validate:"required,min=32"`
	SessionTTL         string `toml:"session_ttl" validate:"required"`
	CookieName         string `toml:"cookie_name" validate:"required"`
	SecureCookie       bool   `toml:"secure_cookie"`
	LoginRatePerMinute int    `toml:"login_rate_per_minute" validate:"gte=0"`
	LoginBurst         int    `toml:"login_burst" validate:"gte=0"`
}

// SessionDuration parses SessionTTL.
func (s ServerConfig) SessionDuration() (time.Duration, error) {
	d, err := time.ParseDuration(s.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("parsing session_ttl %q: %w", s.SessionTTL, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("session_ttl must be positive, got %s", s.SessionTTL)
	}
	return d, nil
}

// BootstrapConfig names the account created when the users table is empty.
// An empty AdminUsername disables bootstrapping.
type BootstrapConfig struct {
	AdminUsername string `toml:"admin_username,omitempty"`
	AdminPassword string `toml:"admin_password,omitempty"`
}

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(instanceID, baseDir string) *Config {
	return &Config{
		InstanceID: instanceID,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Storage: StorageConfig{
			Type:       "filesystem",
			UploadRoot: filepath.Join(baseDir, "uploads"),
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "stash.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "stash.key"),
		},
		Uploads: UploadsConfig{
			MaxSize: DefaultMaxUploadSize,
		},
		Server: ServerConfig{
			ListenAddr:         "127.0.0.1:8080",
			SessionTTL:         "168h",
			CookieName:         "stash_session",
			LoginRatePerMinute: 10,
			LoginBurst:         5,
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file carries the session secret and possibly the bootstrap password.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := Validate(cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
