package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"uireplay/internal/audit"
	"uireplay/internal/calibration"
	"uireplay/internal/config"
	"uireplay/internal/driver"
	"uireplay/internal/manifest"
	"uireplay/internal/player"
	"uireplay/internal/recorder"
	"uireplay/internal/report"
	"uireplay/internal/script"
	"uireplay/internal/visual"
)

const appName = "uireplay"

// defaultManifestName is looked up inside the scripts directory when no
// explicit manifest path is given.
const defaultManifestName = "automation_ids.json"

func main() {
	_ = godotenv.Load()

	flag.String("config", "", "Path to YAML config file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s: desktop UI record and replay harness\n\n", appName)
		fmt.Fprintf(os.Stderr, "Usage:\n  %s [command] [flags]\n\n", appName)
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "  play       Replay a recorded script")
		fmt.Fprintln(os.Stderr, "  record     Record a new script from live input")
		fmt.Fprintln(os.Stderr, "  calibrate  Manage calibration profiles")
		fmt.Fprintln(os.Stderr, "  manifest   Inspect a control manifest")
		fmt.Fprintln(os.Stderr, "  history    Show recent runs")
		fmt.Fprintln(os.Stderr, "  flakes     Show most frequently failing checkpoints")
		fmt.Fprintln(os.Stderr, "  help       Show this help")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}

	configPath, remaining, err := extractConfigFlag(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	args := remaining
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		flag.Usage()
		return
	}

	cfg, err := config.Load(configPath, config.Environ())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	switch args[0] {
	case "play":
		code, err := runPlay(args[1:], cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(code)
	case "record":
		if err := runRecord(args[1:], cfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "calibrate":
		if err := runCalibrate(args[1:], cfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "manifest":
		if err := runManifest(args[1:], cfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "history":
		if err := runHistory(args[1:], cfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "flakes":
		if err := runFlakes(args[1:], cfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		flag.Usage()
		os.Exit(1)
	}
}

// extractConfigFlag pulls --config out of the argument list so it can sit
// before or after the subcommand.
func extractConfigFlag(args []string) (string, []string, error) {
	var configPath string
	var remaining []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--config" || arg == "-config":
			if i+1 >= len(args) {
				return "", nil, fmt.Errorf("--config requires a value")
			}
			configPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			configPath = strings.TrimPrefix(arg, "--config=")
		case strings.HasPrefix(arg, "-config="):
			configPath = strings.TrimPrefix(arg, "-config=")
		default:
			remaining = append(remaining, arg)
		}
	}
	return configPath, remaining, nil
}

func runPlay(args []string, cfg config.Config) (int, error) {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	name := fs.String("script", "", "Script name (without extension)")
	manifestPath := fs.String("manifest", "", "Control manifest path")
	verbose := fs.Bool("verbose", false, "Log every action result")
	if err := fs.Parse(args); err != nil {
		return 1, err
	}
	if *name == "" {
		return 1, fmt.Errorf("--script is required")
	}

	scriptPath := script.SelectPath(cfg.ScriptsDir, *name, cfg.PreferSemantic())
	actions, err := script.Load(scriptPath)
	if err != nil {
		return 1, err
	}

	man, err := loadManifest(cfg, *manifestPath)
	if err != nil {
		return 1, err
	}

	history, err := report.Open(cfg.HistoryDB)
	if err != nil {
		return 1, err
	}
	defer history.Close()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	p := &player.Player{
		Input:       driver.New(),
		Capture:     driver.Capture(cfg.TaskbarCropPx),
		Screen:      driver.ScreenBounds(),
		Manifest:    man,
		Calibration: calibration.NewStore(cfg.CalibrationDir),
		Engine:      visual.NewEngine(),
		Audit:       audit.NewLogger(cfg.AuditDB),
		History:     history,
		Config:      cfg,
		OnResult: func(r player.Result) {
			logger.Info("action finished",
				"index", r.ActionIndex,
				"kind", string(r.Kind),
				"mode", string(r.Mode),
				"status", string(r.Status),
				"diagnostic", r.Diagnostic,
			)
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rep, err := p.Play(ctx, scriptPath, actions)
	if err != nil {
		return 1, err
	}

	if err := writeReport(cfg.ResultsDir, rep); err != nil {
		logger.Warn("write report", "error", err)
	}
	printSummary(rep)

	switch rep.Status {
	case player.RunPassed:
		return 0, nil
	case player.RunWithFailures:
		return 1, nil
	default:
		return 2, nil
	}
}

func loadManifest(cfg config.Config, path string) (*manifest.Manifest, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(cfg.ScriptsDir, defaultManifestName)
	}
	man, err := manifest.Load(path, cfg.GenericIDs)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return man, nil
}

func writeReport(dir string, rep player.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.json", rep.Script, rep.RunID))
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func printSummary(rep player.Report) {
	passed, failed, skipped := 0, 0, 0
	for _, r := range rep.Results {
		switch r.Status {
		case player.StatusPassed:
			passed++
		case player.StatusFailed:
			failed++
		case player.StatusSkipped:
			skipped++
		}
	}
	fmt.Printf("Run %s: %s\n", rep.RunID, rep.Status)
	fmt.Printf("  actions: %d passed, %d failed, %d skipped\n", passed, failed, skipped)
	fmt.Printf("  resolution: %d semantic, %d search, %d coordinate (%d calibration-adjusted)\n",
		rep.Metrics.SemanticHits, rep.Metrics.SearchHits,
		rep.Metrics.CoordinateHits, rep.Metrics.CalibrationAdjustments)
	if rep.Metrics.CheckpointsPassed+rep.Metrics.CheckpointsFailed > 0 {
		fmt.Printf("  checkpoints: %d passed, %d failed\n",
			rep.Metrics.CheckpointsPassed, rep.Metrics.CheckpointsFailed)
	} else {
		fmt.Println("  warning: no checkpoints executed; the run verified nothing")
	}
	for _, r := range rep.Results {
		if r.Status == player.StatusFailed {
			fmt.Printf("  [%d] %s: %s\n", r.ActionIndex, r.Kind, r.Diagnostic)
		}
	}
}

func runRecord(args []string, cfg config.Config) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	name := fs.String("out", "", "Name for the recorded script")
	profileName := fs.String("profile", "", "Calibration profile for anchor-relative positions")
	threshold := fs.Int("drag-threshold", 5, "Pixels of travel separating a click from a drag")
	stopKey := fs.String("stop-key", "esc", "Key that ends the recording")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("--out is required")
	}

	opts := recorder.Options{
		DragThresholdPx: *threshold,
		StopKey:         *stopKey,
		Screen:          driver.ScreenBounds(),
	}
	if *profileName != "" {
		profile, err := calibration.NewStore(cfg.CalibrationDir).Load(*profileName)
		if err != nil {
			return fmt.Errorf("load calibration profile: %w (run %q first)",
				err, appName+" calibrate capture --name "+*profileName)
		}
		opts.Profile = &profile
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Recording. Press %s to stop.\n", *stopKey)
	actions, err := recorder.New(opts).Record(ctx)
	if err != nil {
		return err
	}
	if len(actions) == 0 {
		return fmt.Errorf("nothing recorded")
	}

	path := filepath.Join(cfg.ScriptsDir, *name+".json")
	if err := script.Save(path, actions); err != nil {
		return err
	}
	fmt.Printf("Recorded %d actions to %s\n", len(actions), path)
	return nil
}

func runCalibrate(args []string, cfg config.Config) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s calibrate [capture|list|show|delete]", appName)
	}
	store := calibration.NewStore(cfg.CalibrationDir)

	switch args[0] {
	case "capture":
		fs := flag.NewFlagSet("calibrate capture", flag.ExitOnError)
		name := fs.String("name", "", "Profile name")
		overwrite := fs.Bool("overwrite", false, "Replace an existing profile")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *name == "" {
			return fmt.Errorf("--name is required")
		}
		profile, err := store.Capture(*name, driver.AnchorFunc(), *overwrite)
		if err != nil {
			return err
		}
		fmt.Printf("Captured profile %q: anchor %s, window %dx%d\n",
			profile.Name, profile.Anchor, profile.Size.Width, profile.Size.Height)
		return nil
	case "list":
		names, err := store.List()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No calibration profiles.")
			return nil
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	case "show":
		fs := flag.NewFlagSet("calibrate show", flag.ExitOnError)
		name := fs.String("name", "", "Profile name")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *name == "" {
			return fmt.Errorf("--name is required")
		}
		profile, err := store.Load(*name)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(profile, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	case "delete":
		fs := flag.NewFlagSet("calibrate delete", flag.ExitOnError)
		name := fs.String("name", "", "Profile name")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *name == "" {
			return fmt.Errorf("--name is required")
		}
		if err := store.Delete(*name); err != nil {
			return err
		}
		fmt.Printf("Deleted profile %q\n", *name)
		return nil
	default:
		return fmt.Errorf("unknown calibrate command: %s", args[0])
	}
}

func runManifest(args []string, cfg config.Config) error {
	if len(args) == 0 || args[0] != "check" {
		return fmt.Errorf("usage: %s manifest check [--path <file>]", appName)
	}
	fs := flag.NewFlagSet("manifest check", flag.ExitOnError)
	path := fs.String("path", filepath.Join(cfg.ScriptsDir, defaultManifestName), "Manifest path")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	man, err := manifest.Load(*path, cfg.GenericIDs)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d resolvable identifiers\n", *path, man.Len())
	for _, id := range man.Identifiers() {
		entry, _ := man.Lookup(id)
		fmt.Printf("  %s  (%s/%s)\n", id, entry.Group, entry.Name)
	}
	return nil
}

func runHistory(args []string, cfg config.Config) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Number of runs to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := report.Open(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.RecentRuns(*limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}
	for _, run := range runs {
		fmt.Printf("%s  %-24s  %-24s  %s\n",
			run.StartedAt.Format("2006-01-02 15:04:05"), run.Script, run.Status, run.ID)
	}
	return nil
}

func runFlakes(args []string, cfg config.Config) error {
	fs := flag.NewFlagSet("flakes", flag.ExitOnError)
	scriptName := fs.String("script", "", "Script name (without extension)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *scriptName == "" {
		return fmt.Errorf("--script is required")
	}

	store, err := report.Open(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()

	counts, err := store.FailureCounts(*scriptName)
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		fmt.Printf("No checkpoint failures recorded for %s.\n", *scriptName)
		return nil
	}
	for _, c := range counts {
		fmt.Printf("%4d  %s\n", c.Count, c.Checkpoint)
	}
	return nil
}
