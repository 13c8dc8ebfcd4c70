// Package config loads the harness runtime configuration from YAML with
// UIREPLAY_* environment overrides layered on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable the playback core consumes. Zero values are
// replaced by defaults in Load.
type Config struct {
	ScriptsDir     string `yaml:"scripts_dir"`
	BaselinesDir   string `yaml:"baselines_dir"`
	ResultsDir     string `yaml:"results_dir"`
	CalibrationDir string `yaml:"calibration_dir"`
	AuditDB        string `yaml:"audit_db"`
	HistoryDB      string `yaml:"history_db"`

	// Pacing between actions.
	DefaultDelayMS        int64 `yaml:"default_delay_ms"`
	UseDefaultDelayAlways bool  `yaml:"use_default_delay_always"`

	// Semantic tier waiting.
	SemanticWaitTimeoutMS  int64 `yaml:"semantic_wait_timeout_ms"`
	SemanticPollIntervalMS int64 `yaml:"semantic_poll_interval_ms"`

	// Screenshot verification.
	DiffTolerancePercent    float64 `yaml:"diff_tolerance_percent"`
	UseStructuralSimilarity bool    `yaml:"use_structural_similarity"`
	SimilarityThreshold     float64 `yaml:"similarity_threshold"`
	TaskbarCropPx           int     `yaml:"taskbar_crop_px"`

	// Locator behavior.
	AppTitleRegex         string   `yaml:"app_title_regex"`
	GenericIDs            []string `yaml:"generic_ids"`
	UseAutomationIDs      *bool    `yaml:"use_automation_ids"`
	UseScreenshots        *bool    `yaml:"use_screenshots"`
	PreferSemanticScripts *bool    `yaml:"prefer_semantic_scripts"`

	// Source records where the config came from, for diagnostics.
	Source string `yaml:"-"`
}

func boolPtr(v bool) *bool { return &v }

// Defaults mirrors the recorded-era defaults of the harness.
func Defaults() Config {
	return Config{
		ScriptsDir:             "scripts",
		BaselinesDir:           "baselines",
		ResultsDir:             "results",
		CalibrationDir:         "calibration",
		AuditDB:                "results/audit.db",
		HistoryDB:              "results/history.db",
		DefaultDelayMS:         1000,
		SemanticWaitTimeoutMS:  2500,
		SemanticPollIntervalMS: 100,
		DiffTolerancePercent:   0.01,
		SimilarityThreshold:    0.97,
		TaskbarCropPx:          60,
		UseAutomationIDs:       boolPtr(true),
		UseScreenshots:         boolPtr(true),
		PreferSemanticScripts:  boolPtr(true),
	}
}

// Load reads the YAML config at path (missing file is fine: defaults
// apply) and then applies environment overrides from env.
func Load(path string, env map[string]string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
			cfg.Source = path
		case os.IsNotExist(err):
			// defaults only
		default:
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if err := applyEnv(&cfg, env); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Environ converts os.Environ() style pairs to a lookup map.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

func applyEnv(cfg *Config, env map[string]string) error {
	strVar := func(key string, dst *string) {
		if v, ok := env[key]; ok && v != "" {
			*dst = v
		}
	}
	strVar("UIREPLAY_SCRIPTS_DIR", &cfg.ScriptsDir)
	strVar("UIREPLAY_BASELINES_DIR", &cfg.BaselinesDir)
	strVar("UIREPLAY_RESULTS_DIR", &cfg.ResultsDir)
	strVar("UIREPLAY_CALIBRATION_DIR", &cfg.CalibrationDir)
	strVar("UIREPLAY_AUDIT_DB", &cfg.AuditDB)
	strVar("UIREPLAY_HISTORY_DB", &cfg.HistoryDB)
	strVar("UIREPLAY_APP_TITLE_REGEX", &cfg.AppTitleRegex)

	intVars := map[string]*int64{
		"UIREPLAY_DEFAULT_DELAY_MS":          &cfg.DefaultDelayMS,
		"UIREPLAY_SEMANTIC_WAIT_TIMEOUT_MS":  &cfg.SemanticWaitTimeoutMS,
		"UIREPLAY_SEMANTIC_POLL_INTERVAL_MS": &cfg.SemanticPollIntervalMS,
	}
	for key, dst := range intVars {
		v, ok := env[key]
		if !ok || v == "" {
			continue
		}
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = parsed
	}

	floatVars := map[string]*float64{
		"UIREPLAY_DIFF_TOLERANCE_PERCENT": &cfg.DiffTolerancePercent,
		"UIREPLAY_SIMILARITY_THRESHOLD":   &cfg.SimilarityThreshold,
	}
	for key, dst := range floatVars {
		v, ok := env[key]
		if !ok || v == "" {
			continue
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = parsed
	}

	boolVars := map[string]**bool{
		"UIREPLAY_USE_AUTOMATION_IDS": &cfg.UseAutomationIDs,
		"UIREPLAY_USE_SCREENSHOTS":    &cfg.UseScreenshots,
		"UIREPLAY_PREFER_SEMANTIC":    &cfg.PreferSemanticScripts,
	}
	for key, dst := range boolVars {
		v, ok := env[key]
		if !ok || v == "" {
			continue
		}
		parsed, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = &parsed
	}
	if v, ok := env["UIREPLAY_USE_SSIM"]; ok && v != "" {
		parsed, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("UIREPLAY_USE_SSIM: %w", err)
		}
		cfg.UseStructuralSimilarity = parsed
	}

	return nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", v)
}

// Flag helpers: the pointer fields default to enabled.

func (c Config) AutomationIDsEnabled() bool  { return c.UseAutomationIDs == nil || *c.UseAutomationIDs }
func (c Config) ScreenshotsEnabled() bool    { return c.UseScreenshots == nil || *c.UseScreenshots }
func (c Config) PreferSemantic() bool        { return c.PreferSemanticScripts == nil || *c.PreferSemanticScripts }
func (c Config) DefaultDelay() time.Duration { return time.Duration(c.DefaultDelayMS) * time.Millisecond }
func (c Config) SemanticWaitTimeout() time.Duration {
	return time.Duration(c.SemanticWaitTimeoutMS) * time.Millisecond
}
func (c Config) SemanticPollInterval() time.Duration {
	return time.Duration(c.SemanticPollIntervalMS) * time.Millisecond
}
