package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ScriptsDir != "scripts" {
		t.Errorf("ScriptsDir = %q, want scripts", cfg.ScriptsDir)
	}
	if cfg.DiffTolerancePercent != 0.01 {
		t.Errorf("DiffTolerancePercent = %v, want 0.01", cfg.DiffTolerancePercent)
	}
	if !cfg.AutomationIDsEnabled() || !cfg.ScreenshotsEnabled() || !cfg.PreferSemantic() {
		t.Error("feature flags should default to enabled")
	}
	if cfg.Source != "" {
		t.Errorf("Source = %q, want empty for defaults", cfg.Source)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uireplay.yaml")
	body := `scripts_dir: rec
diff_tolerance_percent: 2.5
use_structural_similarity: true
similarity_threshold: 0.9
use_automation_ids: false
generic_ids: ["", "window"]
default_delay_ms: 250
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ScriptsDir != "rec" {
		t.Errorf("ScriptsDir = %q, want rec", cfg.ScriptsDir)
	}
	if cfg.DiffTolerancePercent != 2.5 {
		t.Errorf("DiffTolerancePercent = %v, want 2.5", cfg.DiffTolerancePercent)
	}
	if !cfg.UseStructuralSimilarity || cfg.SimilarityThreshold != 0.9 {
		t.Errorf("structural similarity = %v/%v, want true/0.9",
			cfg.UseStructuralSimilarity, cfg.SimilarityThreshold)
	}
	if cfg.AutomationIDsEnabled() {
		t.Error("use_automation_ids: false should disable the semantic tier")
	}
	if !cfg.ScreenshotsEnabled() || !cfg.PreferSemantic() {
		t.Error("disabling one flag must not touch the others")
	}
	if got := len(cfg.GenericIDs); got != 2 {
		t.Errorf("len(GenericIDs) = %d, want 2", got)
	}
	if cfg.DefaultDelayMS != 250 {
		t.Errorf("DefaultDelayMS = %d, want 250", cfg.DefaultDelayMS)
	}
	if cfg.Source != path {
		t.Errorf("Source = %q, want %q", cfg.Source, path)
	}
	// Untouched keys keep defaults.
	if cfg.ResultsDir != "results" {
		t.Errorf("ResultsDir = %q, want results", cfg.ResultsDir)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uireplay.yaml")
	if err := os.WriteFile(path, []byte("diff_tolerance_percent: 2.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	env := map[string]string{
		"UIREPLAY_DIFF_TOLERANCE_PERCENT": "0.5",
		"UIREPLAY_RESULTS_DIR":            "out",
		"UIREPLAY_USE_SSIM":               "yes",
		"UIREPLAY_PREFER_SEMANTIC":        "off",
		"UIREPLAY_DEFAULT_DELAY_MS":       "50",
	}
	cfg, err := Load(path, env)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DiffTolerancePercent != 0.5 {
		t.Errorf("DiffTolerancePercent = %v, want env override 0.5", cfg.DiffTolerancePercent)
	}
	if cfg.ResultsDir != "out" {
		t.Errorf("ResultsDir = %q, want out", cfg.ResultsDir)
	}
	if !cfg.UseStructuralSimilarity {
		t.Error("UIREPLAY_USE_SSIM=yes should enable structural similarity")
	}
	if cfg.PreferSemantic() {
		t.Error("UIREPLAY_PREFER_SEMANTIC=off should disable semantic variants")
	}
	if cfg.DefaultDelayMS != 50 {
		t.Errorf("DefaultDelayMS = %d, want 50", cfg.DefaultDelayMS)
	}
}

func TestEnvRejectsMalformedValues(t *testing.T) {
	cases := map[string]string{
		"UIREPLAY_DEFAULT_DELAY_MS":       "soon",
		"UIREPLAY_DIFF_TOLERANCE_PERCENT": "one percent",
		"UIREPLAY_USE_SSIM":               "maybe",
	}
	for key, val := range cases {
		if _, err := Load("", map[string]string{key: val}); err == nil {
			t.Errorf("%s=%q: want error, got nil", key, val)
		}
	}
}
