package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigNewYAML(t *testing.T) {
	cfg, err := New("testdata/base.yaml")
	assert.NoError(t, err)

	assert.Equal(t, "/home/test/.romcellar", cfg.Path)
	assert.Equal(t, "/home/test/.cache", cfg.CachePath)
	assert.Equal(t, "/home/test/.romcellar/manifest.yaml", cfg.Manifest)

	platforms := Platforms{
		"snes": &Platform{
			Path:        "/home/test/roms/snes",
			AutoExtract: true,
		},
		"psx": &Platform{
			Path:        "/home/test/roms/psx",
			AutoExtract: false,
			Extensions:  []string{".bin", ".cue"},
		},
	}

	assert.EqualValues(t, platforms, cfg.Platforms)
}

func TestConfigNewTOML(t *testing.T) {
	cfg, err := New("testdata/base.toml")
	assert.NoError(t, err)

	assert.Equal(t, "/home/test/.romcellar", cfg.Path)
	assert.Equal(t, "/home/test/.cache", cfg.CachePath)

	platforms := Platforms{
		"snes": &Platform{
			Path:        "/home/test/roms/snes",
			AutoExtract: true,
		},
		"psx": &Platform{
			Path:        "/home/test/roms/psx",
			AutoExtract: false,
			Extensions:  []string{".bin", ".cue"},
		},
	}

	assert.EqualValues(t, platforms, cfg.Platforms)
}

func TestConfigResolve(t *testing.T) {
	cfg, err := New("testdata/base.yaml")
	assert.NoError(t, err)

	p, err := cfg.Resolve("snes")
	assert.NoError(t, err)
	assert.Equal(t, "/home/test/roms/snes", p.Path)
	assert.True(t, p.AutoExtract)

	_, err = cfg.Resolve("dreamcast")
	assert.ErrorIs(t, err, ErrNoPlatform)
}

func TestConfigResolveDefaultPath(t *testing.T) {
	cfg := &Config{
		Path: "/home/test/.romcellar",
		Platforms: Platforms{
			"gb": &Platform{AutoExtract: true},
		},
	}

	p, err := cfg.Resolve("gb")
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/test/.romcellar", "gb"), p.Path)
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := New(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NoError(t, err)

	assert.NotEmpty(t, cfg.Path)
	assert.NotEmpty(t, cfg.CachePath)
	assert.Equal(t, filepath.Join(cfg.Path, "manifest.yaml"), cfg.Manifest)
}
