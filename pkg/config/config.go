package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pelletier/go-toml/v2"

	"github.com/romcellar/romcellar/pkg/common"
)

// ErrNoPlatform is returned when an install targets a platform the
// configuration knows nothing about. Surfaced before any I/O happens.
var ErrNoPlatform = errors.New("no destination configured for platform")

type Config struct {
	// Path - root under which per-platform install directories live. Set by
	// default based on your user's home directory, typically $HOME/.romcellar
	Path string `yaml:"path" toml:"path"`

	// CachePath - path to store cache files, this path is set by default
	// based on the operating system type
	CachePath string `yaml:"cache_path" toml:"cache_path"`

	// Manifest - location of the game catalog, either a local file path or
	// an http(s) url. Defaults to manifest.yaml under Path.
	Manifest string `yaml:"manifest" toml:"manifest"`

	// Platforms - the destination mapping per platform: where its games are
	// installed and how downloads for it are treated
	Platforms Platforms `yaml:"platforms" toml:"platforms"`
}

func (c *Config) GetCachePath() string {
	return filepath.Join(c.CachePath, common.NAME)
}

// GetStatePath returns the location of the install-state file.
func (c *Config) GetStatePath() string {
	return filepath.Join(c.Path, "library.yaml")
}

// Resolve returns the destination mapping for a platform. A platform without
// a mapping cannot be installed to.
func (c *Config) Resolve(platform string) (*Platform, error) {
	p, ok := c.Platforms[platform]
	if !ok || p == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPlatform, platform)
	}

	if p.Path == "" {
		p.Path = filepath.Join(c.Path, platform)
	}

	return p, nil
}

func (c *Config) MkdirAll() error {
	paths := []string{c.Path, c.GetCachePath()}

	for _, path := range paths {
		err := os.MkdirAll(path, 0755)
		if err != nil {
			return err
		}
	}

	return nil
}

// Load - load the configuration file
func (c *Config) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		return yaml.Unmarshal(data, c)
	} else if strings.HasSuffix(path, ".toml") {
		return toml.Unmarshal(data, c)
	}

	return fmt.Errorf("unknown configuration file suffix")
}

// New - create a new configuration object
func New(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return cfg, err
		}
		path = filepath.Join(homeDir, fmt.Sprintf(".%s.yaml", common.NAME))
	}

	if err := cfg.Load(path); err != nil {
		return cfg, err
	}

	if cfg.Path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return cfg, err
		}
		cfg.Path = filepath.Join(homeDir, fmt.Sprintf(".%s", common.NAME))
	}

	if cfg.CachePath == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			return cfg, err
		}
		cfg.CachePath = cacheDir
	}

	if cfg.Manifest == "" {
		cfg.Manifest = filepath.Join(cfg.Path, "manifest.yaml")
	}

	return cfg, nil
}
