package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths are the locations the CLI works with before a config file has been read.
type Paths struct {
	ConfigPath string
	BaseDir    string
	// SessionPath holds the token written by `stash login`.
	SessionPath string
}

// DefaultPaths resolves Paths from the environment:
//   - STASH_CONFIG_PATH, else $XDG_CONFIG_HOME/stash.toml, else ~/.config/stash.toml
//   - STASH_HOME, else $XDG_DATA_HOME/stash, else ~/.local/share/stash
func DefaultPaths() (Paths, error) {
	configPath, err := envOrHome("STASH_CONFIG_PATH", "XDG_CONFIG_HOME", "stash.toml", ".config")
	if err != nil {
		return Paths{}, err
	}
	baseDir, err := envOrHome("STASH_HOME", "XDG_DATA_HOME", "stash", ".local", "share")
	if err != nil {
		return Paths{}, err
	}
	return Paths{
		ConfigPath:  configPath,
		BaseDir:     baseDir,
		SessionPath: filepath.Join(baseDir, "session"),
	}, nil
}

// envOrHome returns $override, or name inside $xdg, or name inside the home
// directory joined with homeParts.
func envOrHome(override, xdg, name string, homeParts ...string) (string, error) {
	if p := os.Getenv(override); p != "" {
		return p, nil
	}
	if dir := os.Getenv(xdg); filepath.IsAbs(dir) {
		return filepath.Join(dir, name), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append(append([]string{home}, homeParts...), name)...), nil
}
