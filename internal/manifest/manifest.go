// Package manifest indexes the known-control manifest exported from the
// target application's source tree. The manifest is the single source of
// truth for which platform identifiers may satisfy semantic lookups during
// playback.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// DefaultGenericIDs lists identifiers reused across unrelated controls
// (bare containers and top-level windows). They never satisfy semantic or
// accessibility-search lookups.
var DefaultGenericIDs = []string{"", "window", "pane", "mainwindowcontrol"}

// Entry describes one known control.
type Entry struct {
	Identifier  string `json:"automation_id"`
	Group       string `json:"-"`
	Name        string `json:"-"`
	ControlType string `json:"control_type,omitempty"`
	Description string `json:"description,omitempty"`
}

// Manifest is a read-only lookup table from platform identifier to control
// metadata, with generic identifiers excluded from the resolvable set.
type Manifest struct {
	entries map[string]Entry
	generic map[string]struct{}
}

// rawEntry tolerates both the exported format ({"automation_id": ...}) and
// the short historical form ({"id": ...}).
type rawEntry struct {
	AutomationID string `json:"automation_id"`
	ID           string `json:"id"`
	ControlType  string `json:"control_type"`
	Description  string `json:"description"`
}

// Load reads a manifest JSON file: group -> name -> entry.
func Load(path string, genericIDs []string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data, genericIDs)
}

// Parse builds a manifest index from raw JSON. Entries without an
// identifier, and entries whose identifier is generic, are dropped from the
// resolvable set.
func Parse(data []byte, genericIDs []string) (*Manifest, error) {
	var groups map[string]map[string]rawEntry
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	m := New(genericIDs)
	for group, controls := range groups {
		for name, raw := range controls {
			id := raw.AutomationID
			if id == "" {
				id = raw.ID
			}
			m.add(Entry{
				Identifier:  id,
				Group:       group,
				Name:        name,
				ControlType: raw.ControlType,
				Description: raw.Description,
			})
		}
	}
	return m, nil
}

// New returns an empty manifest using the provided generic-identifier list,
// or DefaultGenericIDs when nil.
func New(genericIDs []string) *Manifest {
	if genericIDs == nil {
		genericIDs = DefaultGenericIDs
	}
	generic := make(map[string]struct{}, len(genericIDs))
	for _, id := range genericIDs {
		generic[normalize(id)] = struct{}{}
	}
	return &Manifest{
		entries: make(map[string]Entry),
		generic: generic,
	}
}

func (m *Manifest) add(e Entry) {
	if m.IsGeneric(e.Identifier) {
		return
	}
	m.entries[e.Identifier] = e
}

// IsGeneric reports whether an identifier is empty or on the generic list.
func (m *Manifest) IsGeneric(id string) bool {
	_, ok := m.generic[normalize(id)]
	return ok
}

// Lookup returns the entry for an identifier when it is part of the
// resolvable set. Generic identifiers are treated as absent.
func (m *Manifest) Lookup(id string) (Entry, bool) {
	e, ok := m.entries[id]
	return e, ok
}

// Contains reports whether an identifier is resolvable through the manifest.
func (m *Manifest) Contains(id string) bool {
	_, ok := m.entries[id]
	return ok
}

// Len returns the number of resolvable entries.
func (m *Manifest) Len() int {
	return len(m.entries)
}

// Identifiers returns the resolvable identifiers in sorted order.
func (m *Manifest) Identifiers() []string {
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
