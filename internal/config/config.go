// Package config loads the pkgdex configuration file and supplies
// defaults when none exists.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment overrides. EnvConfig moves the config file itself; the
// others override individual fields after the file is read.
const (
	EnvConfig    = "PKGDEX_CONFIG"
	EnvCachePath = "PKGDEX_CACHE_PATH"
	EnvSyncDir   = "PKGDEX_SYNC_DIR"
)

// defaultSyncDir is where pacman keeps its sync databases.
const defaultSyncDir = "/var/lib/pacman/sync"

// Config is the in-memory representation of the pkgdex config file.
type Config struct {
	// CachePath is the SQLite package cache location.
	CachePath string `yaml:"cache_path"`

	// SyncDir is the directory holding the <repo>.files sync archives.
	SyncDir string `yaml:"sync_dir"`

	// Repositories in priority order. When several repositories carry
	// the same package name, the earliest listed one wins.
	Repositories []string `yaml:"repositories,omitempty"`

	// Workers bounds concurrent repository updates; 0 means one per CPU.
	Workers int `yaml:"workers,omitempty"`
}

// Dir returns the pkgdex configuration directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(base, "pkgdex"), nil
}

// Path returns the config file location: $PKGDEX_CONFIG when set, the
// default directory otherwise.
func Path() (string, error) {
	if p := os.Getenv(EnvConfig); p != "" {
		return ExpandPath(p)
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand ~: %w", err)
	}
	return filepath.Join(home, p[1:]), nil
}

// Default returns the configuration used when no config file exists.
func Default() (*Config, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine cache directory: %w", err)
	}
	return &Config{
		CachePath:    filepath.Join(cacheDir, "pkgdex", "pkgdex.db"),
		SyncDir:      defaultSyncDir,
		Repositories: []string{"core", "extra", "multilib"},
	}, nil
}

// Load reads the configuration at path. An empty path means the default
// location, where a missing file is not an error; a path given
// explicitly (flag or $PKGDEX_CONFIG) must exist. Environment overrides
// apply after the file is read, and defaults fill whatever is left
// blank.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		if env := os.Getenv(EnvConfig); env != "" {
			path = env
			explicit = true
		}
	}
	if path == "" {
		p, err := Path()
		if err != nil {
			return nil, err
		}
		path = p
	}
	path, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// No config file at the default location; defaults cover everything.
	default:
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.fillDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save marshals cfg and writes it to path, creating parent directories
// as needed.
func Save(cfg *Config, path string) error {
	path, err := ExpandPath(path)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write config %s: %w", path, err)
	}
	return nil
}

// LockPath returns the update lock file guarding the cache at CachePath.
func (c *Config) LockPath() string {
	return c.CachePath + ".lock"
}

// EnsureCacheDir creates the directory that will hold the cache database.
func (c *Config) EnsureCacheDir() error {
	return os.MkdirAll(filepath.Dir(c.CachePath), 0o755)
}

// normalize expands ~ in the path fields read from the file.
func (c *Config) normalize() error {
	var err error
	if c.CachePath != "" {
		if c.CachePath, err = ExpandPath(c.CachePath); err != nil {
			return err
		}
	}
	if c.SyncDir != "" {
		if c.SyncDir, err = ExpandPath(c.SyncDir); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvCachePath); v != "" {
		p, err := ExpandPath(v)
		if err != nil {
			return err
		}
		c.CachePath = p
	}
	if v := os.Getenv(EnvSyncDir); v != "" {
		p, err := ExpandPath(v)
		if err != nil {
			return err
		}
		c.SyncDir = p
	}
	return nil
}

func (c *Config) fillDefaults() error {
	def, err := Default()
	if err != nil {
		return err
	}
	if c.CachePath == "" {
		c.CachePath = def.CachePath
	}
	if c.SyncDir == "" {
		c.SyncDir = def.SyncDir
	}
	if len(c.Repositories) == 0 {
		c.Repositories = def.Repositories
	}
	return nil
}
