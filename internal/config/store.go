// Package config persists per-instance settings the tool itself does not
// track: install locations, autostart choices, and default users.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// InstanceEntry is the stored state for one managed environment.
type InstanceEntry struct {
	InstallLocation string `toml:"install_location,omitempty"`
	Autostart       bool   `toml:"autostart"`
	DefaultUser     string `toml:"default_user,omitempty"`
}

type instancesFile struct {
	Instances map[string]InstanceEntry `toml:"instances"`
}

// Store reads and writes the instances file. All methods are safe for
// concurrent use; every mutation rewrites the file atomically.
type Store struct {
	mu   sync.Mutex
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultStorePath places the instances file next to the user's other
// per-app configuration.
func DefaultStorePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "wsldash", "instances.toml"), nil
}

func (s *Store) load() (instancesFile, error) {
	var file instancesFile
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return instancesFile{Instances: map[string]InstanceEntry{}}, nil
		}
		return file, fmt.Errorf("instance store load failed (%s): %w", s.path, err)
	}
	if err := toml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("instance store parse failed (%s): %w", s.path, err)
	}
	if file.Instances == nil {
		file.Instances = map[string]InstanceEntry{}
	}
	return file, nil
}

func (s *Store) save(file instancesFile) error {
	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("instance store encode failed: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("instance store dir: %w", err)
	}
	// Write-then-rename so a crash mid-save never truncates the file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("instance store write failed: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("instance store replace failed: %w", err)
	}
	return nil
}

// Instance returns the stored entry for name, reporting whether one
// exists.
func (s *Store) Instance(name string) (InstanceEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.load()
	if err != nil {
		return InstanceEntry{}, false, err
	}
	entry, ok := file.Instances[name]
	return entry, ok, nil
}

// Instances returns every stored entry keyed by distro name.
func (s *Store) Instances() (map[string]InstanceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.load()
	if err != nil {
		return nil, err
	}
	return file.Instances, nil
}

// SetInstance creates or replaces the entry for name.
func (s *Store) SetInstance(name string, entry InstanceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.load()
	if err != nil {
		return err
	}
	file.Instances[name] = entry
	return s.save(file)
}

// RemoveInstanceEntry drops the entry for name. Removing an absent
// entry is not an error: delete cleanup must be idempotent.
func (s *Store) RemoveInstanceEntry(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := file.Instances[name]; !ok {
		return nil
	}
	delete(file.Instances, name)
	return s.save(file)
}
