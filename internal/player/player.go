// Package player executes recorded scripts action by action. Each action
// moves through resolve, execute and verify phases; checkpoint failures are
// recorded and playback continues, while a session fault aborts the run and
// skips everything after the faulting action.
package player

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"uireplay/internal/audit"
	"uireplay/internal/calibration"
	"uireplay/internal/config"
	"uireplay/internal/locator"
	"uireplay/internal/manifest"
	"uireplay/internal/report"
	"uireplay/internal/resolve"
	"uireplay/internal/script"
	"uireplay/internal/session"
	"uireplay/internal/visual"
)

// maxDragPoints caps how many samples of a recorded drag path are
// replayed. Long freehand drags carry hundreds of near-duplicate samples;
// replaying every one makes the drag crawl.
const maxDragPoints = 120

// Status is the terminal outcome of one action.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Run statuses. A run with zero failures passes; checkpoint failures
// degrade it to completed-with-failures; only a session fault aborts.
const (
	RunPassed       = "passed"
	RunWithFailures = "completed-with-failures"
	RunAborted      = "aborted"
)

// Result describes one action's outcome.
type Result struct {
	ActionIndex int                  `json:"action_index"`
	Kind        script.Kind          `json:"kind"`
	Mode        locator.Mode         `json:"mode,omitempty"`
	Status      Status               `json:"status"`
	Diagnostic  string               `json:"diagnostic,omitempty"`
	Artifacts   visual.ArtifactPaths `json:"artifacts,omitempty"`
}

// Metrics aggregates resolution and verification counters for one run.
type Metrics struct {
	SemanticHits           int `json:"semantic_hits"`
	SearchHits             int `json:"search_hits"`
	CoordinateHits         int `json:"coordinate_hits"`
	CalibrationAdjustments int `json:"calibration_adjustments"`
	CheckpointsPassed      int `json:"checkpoints_passed"`
	CheckpointsFailed      int `json:"checkpoints_failed"`
}

// Report is the full outcome of one playback run.
type Report struct {
	RunID      string    `json:"run_id"`
	Script     string    `json:"script"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     string    `json:"status"`
	Results    []Result  `json:"results"`
	Metrics    Metrics   `json:"metrics"`
}

// CaptureFunc grabs the current screen content for checkpoint
// verification.
type CaptureFunc func(ctx context.Context) (image.Image, error)

// Input dispatches physical input at absolute screen coordinates.
type Input interface {
	Click(p script.Point, button string) error
	PointerDown(p script.Point, button string) error
	PointerUp(p script.Point, button string) error
	Drag(path []script.Point, button string) error
	Key(key string) error
	Hotkey(keys []string) error
	TypeText(text string) error
	Scroll(p script.Point, dx, dy int) error
}

// Player drives one script at a time. Collaborators may be nil where
// noted; a nil Session or Input limits which action kinds can execute.
type Player struct {
	Session session.Session
	Input   Input
	Capture CaptureFunc

	Manifest    *manifest.Manifest
	Calibration *calibration.Store
	Engine      *visual.Engine
	Audit       *audit.Logger
	History     *report.Store
	Config      config.Config

	// Screen bounds drag paths to the visible monitor. The zero rect
	// disables filtering.
	Screen script.Rect

	// OnResult, when set, observes each result as it is produced.
	OnResult func(Result)

	profiles map[string]*calibration.Profile
}

// Play executes every action of the script in order and returns the run
// report. The error return covers setup problems only (unreadable script
// inputs); execution failures are reported through the run status.
func (p *Player) Play(ctx context.Context, scriptPath string, actions []script.Action) (Report, error) {
	if errs := script.Validate(actions, scriptPath); len(errs) > 0 {
		return Report{}, errs
	}

	name := scriptStem(scriptPath)
	rep := Report{
		RunID:     uuid.NewString(),
		Script:    name,
		StartedAt: time.Now().UTC(),
		Results:   make([]Result, 0, len(actions)),
	}
	p.logEvent(audit.EventRunStarted, map[string]any{
		"run_id": rep.RunID, "script": name, "actions": len(actions),
	})

	aborted := false
	abortReason := ""
	for i, a := range actions {
		// Cancellation lands at the action boundary: a started action
		// always runs to its terminal state.
		if !aborted && ctx.Err() != nil {
			aborted = true
			abortReason = "run cancelled"
		}
		if aborted {
			rep.Results = append(rep.Results, p.emit(Result{
				ActionIndex: i, Kind: a.Kind, Status: StatusSkipped,
				Diagnostic: "skipped: " + abortReason,
			}))
			continue
		}

		if i > 0 {
			if err := p.pace(ctx, a); err != nil {
				aborted = true
				abortReason = "run cancelled"
				rep.Results = append(rep.Results, p.emit(Result{
					ActionIndex: i, Kind: a.Kind, Status: StatusSkipped,
					Diagnostic: "skipped: " + abortReason,
				}))
				continue
			}
		}

		res, fault := p.runAction(ctx, name, i, a, &rep.Metrics)
		rep.Results = append(rep.Results, p.emit(res))
		p.logEvent(audit.EventActionExecuted, map[string]any{
			"run_id": rep.RunID, "index": i, "kind": string(a.Kind),
			"mode": string(res.Mode), "status": string(res.Status),
		})
		if fault != nil {
			aborted = true
			abortReason = "session fault: " + fault.Error()
		}
	}

	rep.FinishedAt = time.Now().UTC()
	rep.Status = runStatus(aborted, rep.Results)
	if aborted {
		p.logEvent(audit.EventRunAborted, map[string]any{
			"run_id": rep.RunID, "script": name, "reason": abortReason,
		})
	} else {
		p.logEvent(audit.EventRunFinished, map[string]any{
			"run_id": rep.RunID, "script": name, "status": rep.Status,
		})
	}
	p.recordRun(rep)
	return rep, nil
}

// runAction takes one action through resolve, execute and verify. The
// returned error is non-nil only for session faults, which abort the run.
func (p *Player) runAction(ctx context.Context, scriptName string, idx int, a script.Action, m *Metrics) (Result, error) {
	res := Result{ActionIndex: idx, Kind: a.Kind}

	profile, currentAnchor, err := p.calibrationState(ctx, a)
	if err != nil {
		res.Status = StatusFailed
		res.Diagnostic = err.Error()
		return res, err
	}

	switch a.Kind {
	case script.KindScreenshot:
		return p.verifyScreenshot(ctx, scriptName, res, a, m)
	case script.KindDrag:
		return p.executeDrag(res, a, profile, currentAnchor, m)
	case script.KindKey, script.KindHotkey, script.KindTypeText:
		return p.executeKeys(res, a)
	}

	// Pointer kinds and property assertions locate a target first.
	target, err := locator.Locate(ctx, a, p.Manifest, p.sessionForLocate(), profile, currentAnchor, locator.Options{
		SemanticWaitTimeout:  p.Config.SemanticWaitTimeout(),
		SemanticPollInterval: p.Config.SemanticPollInterval(),
	})
	if err != nil {
		res.Status = StatusFailed
		res.Diagnostic = err.Error()
		if session.IsFault(err) {
			return res, err
		}
		return res, nil
	}
	res.Mode = target.Mode
	p.countMode(target, m)
	p.logDowngrade(a, target.Resolution)

	if a.Kind == script.KindAssertProperty {
		return p.verifyAssertion(ctx, scriptName, res, a, target, m)
	}
	return p.executePointer(ctx, res, a, target)
}

// executePointer dispatches click, pointer_down, pointer_up and scroll.
func (p *Player) executePointer(ctx context.Context, res Result, a script.Action, target locator.Target) (Result, error) {
	button := a.Button
	if button == "" {
		button = "left"
	}

	// Semantic and search targets click through the live handle; every
	// other interaction needs a concrete point.
	if a.Kind == script.KindClick && target.Control != nil {
		if err := target.Control.Click(ctx, button); err != nil {
			res.Status = StatusFailed
			res.Diagnostic = fmt.Sprintf("click %s: %v", describeTarget(a), err)
			if session.IsFault(err) {
				return res, err
			}
			return res, nil
		}
		res.Status = StatusPassed
		return res, nil
	}

	point, err := p.targetPoint(ctx, target)
	if err != nil {
		res.Status = StatusFailed
		res.Diagnostic = err.Error()
		if session.IsFault(err) {
			return res, err
		}
		return res, nil
	}
	if p.Screen != (script.Rect{}) && !p.Screen.Contains(point) {
		res.Status = StatusFailed
		res.Diagnostic = fmt.Sprintf("resolved point %s is off the primary monitor", point)
		return res, nil
	}
	if p.Input == nil {
		res.Status = StatusFailed
		res.Diagnostic = "no input backend configured"
		return res, nil
	}

	switch a.Kind {
	case script.KindClick:
		err = p.Input.Click(point, button)
	case script.KindPointerDown:
		err = p.Input.PointerDown(point, button)
	case script.KindPointerUp:
		err = p.Input.PointerUp(point, button)
	case script.KindScroll:
		err = p.Input.Scroll(point, a.ScrollDX, a.ScrollDY)
	default:
		err = fmt.Errorf("unsupported pointer kind %q", a.Kind)
	}
	if err != nil {
		res.Status = StatusFailed
		res.Diagnostic = fmt.Sprintf("%s at %s: %v", a.Kind, point, err)
		return res, nil
	}
	res.Status = StatusPassed
	return res, nil
}

// executeDrag resolves the whole recorded path with a single calibration
// decision, thins it, and replays it without pacing between samples.
func (p *Player) executeDrag(res Result, a script.Action, profile *calibration.Profile, anchor *script.Point, m *Metrics) (Result, error) {
	path, resolution, err := resolve.ResolvePath(a, profile, anchor)
	if err != nil {
		res.Status = StatusFailed
		res.Diagnostic = err.Error()
		return res, nil
	}
	res.Mode = locator.ModeCoordinate
	m.CoordinateHits++
	if resolution.Adjusted() {
		m.CalibrationAdjustments++
	}
	p.logDowngrade(a, resolution)

	path = onScreen(path, p.Screen)
	if len(path) < 2 {
		res.Status = StatusFailed
		res.Diagnostic = "drag path has fewer than two on-screen points"
		return res, nil
	}
	path = downsample(path, maxDragPoints)

	if p.Input == nil {
		res.Status = StatusFailed
		res.Diagnostic = "no input backend configured"
		return res, nil
	}
	button := a.Button
	if button == "" {
		button = "left"
	}
	if err := p.Input.Drag(path, button); err != nil {
		res.Status = StatusFailed
		res.Diagnostic = fmt.Sprintf("drag: %v", err)
		return res, nil
	}
	res.Status = StatusPassed
	return res, nil
}

func (p *Player) executeKeys(res Result, a script.Action) (Result, error) {
	if p.Input == nil {
		res.Status = StatusFailed
		res.Diagnostic = "no input backend configured"
		return res, nil
	}
	var err error
	switch a.Kind {
	case script.KindKey:
		err = p.Input.Key(a.Key)
	case script.KindHotkey:
		err = p.Input.Hotkey(a.Keys)
	case script.KindTypeText:
		err = p.Input.TypeText(a.Text)
	}
	if err != nil {
		res.Status = StatusFailed
		res.Diagnostic = fmt.Sprintf("%s: %v", a.Kind, err)
		return res, nil
	}
	res.Status = StatusPassed
	return res, nil
}

// calibrationState loads the action's named profile (cached per run) and
// samples the live window anchor. Either half may be unavailable; only a
// session fault is an error.
func (p *Player) calibrationState(ctx context.Context, a script.Action) (*calibration.Profile, *script.Point, error) {
	var profile *calibration.Profile
	if a.CalibrationName != "" && p.Calibration != nil {
		if cached, ok := p.profiles[a.CalibrationName]; ok {
			profile = cached
		} else {
			// A profile that is missing, unreadable or corrupt never fails
			// the action; resolution degrades and the downgrade is logged.
			if loaded, err := p.Calibration.Load(a.CalibrationName); err == nil {
				profile = &loaded
			}
			if p.profiles == nil {
				p.profiles = make(map[string]*calibration.Profile)
			}
			p.profiles[a.CalibrationName] = profile
		}
	}

	var anchor *script.Point
	if p.Session != nil {
		pt, _, err := p.Session.WindowAnchor(ctx)
		switch {
		case err == nil:
			anchor = &pt
		case session.IsFault(err):
			return nil, nil, fmt.Errorf("window anchor: %w", err)
		}
		// An ordinary anchor miss degrades coordinate fidelity and is
		// reported through the downgrade signal instead.
	}
	return profile, anchor, nil
}

func (p *Player) sessionForLocate() session.Session {
	if !p.Config.AutomationIDsEnabled() {
		return nil
	}
	return p.Session
}

func (p *Player) targetPoint(ctx context.Context, target locator.Target) (script.Point, error) {
	if target.Control == nil {
		return target.Point, nil
	}
	bounds, err := target.Control.Bounds(ctx)
	if err != nil {
		return script.Point{}, fmt.Errorf("control bounds: %w", err)
	}
	return script.Point{
		X: (bounds.Left + bounds.Right) / 2,
		Y: (bounds.Top + bounds.Bottom) / 2,
	}, nil
}

func (p *Player) countMode(target locator.Target, m *Metrics) {
	switch target.Mode {
	case locator.ModeSemantic:
		m.SemanticHits++
	case locator.ModeSearch:
		m.SearchHits++
	case locator.ModeCoordinate:
		m.CoordinateHits++
		if target.Resolution.Adjusted() {
			m.CalibrationAdjustments++
		}
	}
}

// logDowngrade records that a recorded correction could not be applied,
// with both the wanted adjustment and what actually ran.
func (p *Player) logDowngrade(a script.Action, r resolve.Resolution) {
	if r.Downgrade == nil {
		return
	}
	p.logEvent(audit.EventResolutionDowngrade, map[string]any{
		"wanted":   string(r.Downgrade.Wanted),
		"applied":  string(r.Adjustment),
		"reason":   r.Downgrade.Reason,
		"resolved": r.Point.String(),
		"profile":  a.CalibrationName,
	})
}

func (p *Player) pace(ctx context.Context, a script.Action) error {
	var delay time.Duration
	switch {
	case p.Config.UseDefaultDelayAlways:
		delay = p.Config.DefaultDelay()
	case a.PacingDelayMS > 0:
		delay = time.Duration(a.PacingDelayMS) * time.Millisecond
	default:
		return ctx.Err()
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Player) emit(r Result) Result {
	if p.OnResult != nil {
		p.OnResult(r)
	}
	return r
}

func (p *Player) logEvent(eventType string, payload map[string]any) {
	if p.Audit == nil {
		return
	}
	_ = p.Audit.LogEvent("player", eventType, payload)
}

func (p *Player) recordRun(rep Report) {
	if p.History == nil {
		return
	}
	_ = p.History.RecordRun(report.Run{
		ID:          rep.RunID,
		Script:      rep.Script,
		StartedAt:   rep.StartedAt,
		FinishedAt:  &rep.FinishedAt,
		Status:      rep.Status,
		SummaryJSON: summaryJSON(rep.Metrics),
	})
}

func runStatus(aborted bool, results []Result) string {
	if aborted {
		return RunAborted
	}
	for _, r := range results {
		if r.Status == StatusFailed {
			return RunWithFailures
		}
	}
	return RunPassed
}

func describeTarget(a script.Action) string {
	if a.ControlRef != nil {
		return a.ControlRef.ID
	}
	if a.AbsolutePosition != nil {
		return a.AbsolutePosition.String()
	}
	return "<unresolved>"
}

func scriptStem(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, script.SemanticSuffix)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// downsample thins a path to at most max points, always keeping the first
// and last samples so the drag's endpoints stay exact.
func downsample(path []script.Point, max int) []script.Point {
	if len(path) <= max || max < 2 {
		return path
	}
	out := make([]script.Point, 0, max)
	step := float64(len(path)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		out = append(out, path[int(float64(i)*step+0.5)])
	}
	out[max-1] = path[len(path)-1]
	return out
}

// onScreen drops path points outside the screen rect. The zero rect
// disables filtering.
func onScreen(path []script.Point, screen script.Rect) []script.Point {
	if screen == (script.Rect{}) {
		return path
	}
	out := path[:0:0]
	for _, pt := range path {
		if screen.Contains(pt) {
			out = append(out, pt)
		}
	}
	return out
}
