// Package calibration persists named window-anchor profiles. A profile
// snapshots where the target window sat on a particular machine so recorded
// coordinates can be re-anchored during playback elsewhere.
package calibration

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"uireplay/internal/script"
)

// ErrProfileExists is returned by Save when overwriting without confirmation.
var ErrProfileExists = errors.New("calibration profile already exists")

// ErrProfileNotFound is returned by Load for unknown profile names.
var ErrProfileNotFound = errors.New("calibration profile not found")

// Profile is a named anchor snapshot, immutable once saved.
type Profile struct {
	Name       string       `json:"name"`
	Anchor     script.Point `json:"anchor"`
	Size       script.Size  `json:"size"`
	CapturedAt time.Time    `json:"captured_at"`
}

// Store reads and writes profiles, one JSON file per profile.
type Store struct {
	dir string
}

// NewStore binds a store to a calibration directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Save persists a profile. A profile that already exists is only replaced
// when overwrite is set; re-capture under the same name is an explicit
// operation, never an incidental side effect of playback.
func (s *Store) Save(p Profile, overwrite bool) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("profile name must not be empty")
	}
	path := s.path(p.Name)
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrProfileExists, p.Name)
		}
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("ensure calibration dir: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}

// Load returns the profile stored under name.
func (s *Store) Load(name string) (Profile, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
		}
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", name, err)
	}
	return p, nil
}

// List returns stored profile names in sorted order.
func (s *Store) List() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("scan calibration dir: %w", err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(m), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a stored profile.
func (s *Store) Delete(name string) error {
	if err := os.Remove(s.path(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
		}
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

// AnchorFunc reads the current top-left corner and size of the target
// window; the driver supplies a live implementation.
type AnchorFunc func() (script.Point, script.Size, error)

// Capture snapshots the live window into a new profile and persists it.
func (s *Store) Capture(name string, anchor AnchorFunc, overwrite bool) (Profile, error) {
	pt, size, err := anchor()
	if err != nil {
		return Profile{}, fmt.Errorf("capture window anchor: %w", err)
	}
	p := Profile{
		Name:       name,
		Anchor:     pt,
		Size:       size,
		CapturedAt: time.Now().UTC(),
	}
	if err := s.Save(p, overwrite); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}
