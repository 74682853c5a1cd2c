package library

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/romcellar/romcellar/pkg/download"
)

// Game is a single catalog entry describing where a game's files live and
// how the installer should treat them.
type Game struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Platform string `yaml:"platform"`
	URL      string `yaml:"url"`
	// FileName is the name the download is staged under. When empty it is
	// derived from the URL path.
	FileName string `yaml:"file_name,omitempty"`
	// HasMultipleFiles marks entries whose download is a container that is
	// always unpacked, regardless of the platform's auto_extract setting.
	HasMultipleFiles bool  `yaml:"multiple_files,omitempty"`
	Size             int64 `yaml:"size,omitempty"`
}

// StagedName returns the file name the download is written under.
func (g *Game) StagedName() string {
	if g.FileName != "" {
		return g.FileName
	}

	name := g.URL
	if idx := strings.Index(name, "?"); idx != -1 {
		name = name[:idx]
	}

	return path.Base(name)
}

// Manifest is the catalog of installable games.
type Manifest struct {
	Games []*Game `yaml:"games"`
}

// Find returns the entry matching platform and id, or nil.
func (m *Manifest) Find(platform, id string) *Game {
	for _, game := range m.Games {
		if game.Platform == platform && game.ID == id {
			return game
		}
	}

	return nil
}

// ForPlatform returns the entries for one platform, or every entry when
// platform is empty.
func (m *Manifest) ForPlatform(platform string) []*Game {
	if platform == "" {
		return m.Games
	}

	var games []*Game
	for _, game := range m.Games {
		if game.Platform == platform {
			games = append(games, game)
		}
	}

	return games
}

// LoadManifest reads the catalog from a local file or, for http(s)
// locations, through a disk-backed HTTP cache under cacheDir.
func LoadManifest(ctx context.Context, location, cacheDir string) (*Manifest, error) {
	var data []byte
	var err error

	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		data, err = fetchManifest(ctx, location, cacheDir)
	} else {
		data, err = os.ReadFile(location)
	}
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	logrus.Debugf("manifest loaded, %d entries", len(manifest.Games))

	return &manifest, nil
}

func fetchManifest(ctx context.Context, url, cacheDir string) ([]byte, error) {
	var client *http.Client
	if cacheDir != "" {
		client = httpcache.NewTransport(diskcache.New(filepath.Join(cacheDir, "manifest"))).Client()
	}

	resp, err := download.Fetch(ctx, client, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}
