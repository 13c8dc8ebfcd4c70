package script

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SemanticSuffix marks the semantic variant of a recorded script.
const SemanticSuffix = ".semantic.json"

// Load reads and validates an action sequence from a JSON script file.
// Missing optional fields stay absent (nil), not zero; unknown fields are
// ignored so newer recorders can extend the format.
func Load(path string) ([]Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes and validates an action sequence from raw JSON.
func Parse(data []byte, source string) ([]Action, error) {
	var actions []Action
	if err := json.Unmarshal(data, &actions); err != nil {
		return nil, fmt.Errorf("parse script %s: %w", source, err)
	}
	if errs := Validate(actions, source); len(errs) > 0 {
		return nil, errs
	}
	return actions, nil
}

// Save writes an action sequence as an indented JSON script.
func Save(path string, actions []Action) error {
	if errs := Validate(actions, path); len(errs) > 0 {
		return errs
	}
	data, err := json.MarshalIndent(actions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal script: %w", err)
	}
	data = append(data, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure script dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	return nil
}

// SelectPath resolves a script name under scriptsDir, preferring the
// semantic variant (name.semantic.json) when preferSemantic is set and the
// variant exists on disk.
func SelectPath(scriptsDir, name string, preferSemantic bool) string {
	name = strings.TrimSuffix(name, ".json")
	base := filepath.Join(scriptsDir, name+".json")
	if preferSemantic {
		semantic := filepath.Join(scriptsDir, name+SemanticSuffix)
		if _, err := os.Stat(semantic); err == nil {
			return semantic
		}
	}
	return base
}
