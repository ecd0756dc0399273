package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	tests := []struct {
		name string
		env  map[string]string
		want Paths
	}{
		{
			name: "explicit overrides",
			env:  map[string]string{"STASH_CONFIG_PATH": "/custom/config.toml", "STASH_HOME": "/custom/stash", "XDG_CONFIG_HOME": "/xdg/config"},
			want: Paths{ConfigPath: "/custom/config.toml", BaseDir: "/custom/stash", SessionPath: "/custom/stash/session"},
		},
		{
			name: "xdg directories",
			env:  map[string]string{"XDG_CONFIG_HOME": "/xdg/config", "XDG_DATA_HOME": "/xdg/data"},
			want: Paths{ConfigPath: "/xdg/config/stash.toml", BaseDir: "/xdg/data/stash", SessionPath: "/xdg/data/stash/session"},
		},
		{
			name: "relative xdg is ignored",
			env:  map[string]string{"XDG_CONFIG_HOME": "relative"},
			want: Paths{
				ConfigPath:  filepath.Join(home, ".config", "stash.toml"),
				BaseDir:     filepath.Join(home, ".local", "share", "stash"),
				SessionPath: filepath.Join(home, ".local", "share", "stash", "session"),
			},
		},
		{
			name: "home fallback",
			want: Paths{
				ConfigPath:  filepath.Join(home, ".config", "stash.toml"),
				BaseDir:     filepath.Join(home, ".local", "share", "stash"),
				SessionPath: filepath.Join(home, ".local", "share", "stash", "session"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"STASH_CONFIG_PATH", "STASH_HOME", "XDG_CONFIG_HOME", "XDG_DATA_HOME"} {
				t.Setenv(k, tt.env[k])
			}

			got, err := DefaultPaths()
			if err != nil {
				t.Fatalf("DefaultPaths() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DefaultPaths() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
