package library

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// InstalledGame records where one game landed on disk.
type InstalledGame struct {
	InstallDir  string    `yaml:"install_dir"`
	PrimaryPath string    `yaml:"primary_path,omitempty"`
	InstalledAt time.Time `yaml:"installed_at"`
}

// State tracks which games are installed and where. Mutations persist
// immediately; the file is replaced atomically so a crash mid-write never
// leaves a half-written record behind.
type State struct {
	path string

	Games map[string]*InstalledGame `yaml:"games"`
}

// OpenState loads the state file at path. A missing file yields an empty
// state bound to the same path.
func OpenState(path string) (*State, error) {
	state := &State{
		path:  path,
		Games: make(map[string]*InstalledGame),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return state, nil
	} else if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}

	if err := yaml.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}

	if state.Games == nil {
		state.Games = make(map[string]*InstalledGame)
	}

	return state, nil
}

// IsInstalled reports whether id has a recorded install.
func (s *State) IsInstalled(id string) bool {
	_, ok := s.Games[id]
	return ok
}

// Get returns the record for id, or nil.
func (s *State) Get(id string) *InstalledGame {
	return s.Games[id]
}

// MarkInstalled records a finished install and persists the state. An
// existing record for the same id is replaced.
func (s *State) MarkInstalled(id, dir, primary string) error {
	s.Games[id] = &InstalledGame{
		InstallDir:  dir,
		PrimaryPath: primary,
		InstalledAt: time.Now().UTC(),
	}

	return s.save()
}

// Remove drops the record for id and persists the state. Removing an
// unknown id is a no-op.
func (s *State) Remove(id string) error {
	if _, ok := s.Games[id]; !ok {
		return nil
	}

	delete(s.Games, id)

	return s.save()
}

func (s *State) save() error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	// Write to a sibling temp file and rename over the target so readers
	// only ever observe a complete file.
	tmp, err := os.CreateTemp(dir, ".library-*")
	if err != nil {
		return fmt.Errorf("write state: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write state: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write state: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit state: %w", err)
	}

	logrus.Tracef("state saved, %d games", len(s.Games))

	return nil
}
