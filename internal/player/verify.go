package player

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"uireplay/internal/audit"
	"uireplay/internal/locator"
	"uireplay/internal/script"
	"uireplay/internal/session"
	"uireplay/internal/visual"
)

// verifyScreenshot captures the screen and compares it against the
// action's stored baseline. A failed comparison is a checkpoint failure,
// never an abort; artifacts land next to the run's other results.
func (p *Player) verifyScreenshot(ctx context.Context, scriptName string, res Result, a script.Action, m *Metrics) (Result, error) {
	if !p.Config.ScreenshotsEnabled() {
		res.Status = StatusSkipped
		res.Diagnostic = "screenshot verification disabled"
		return res, nil
	}
	if p.Capture == nil || p.Engine == nil {
		res.Status = StatusFailed
		res.Diagnostic = "no capture backend configured"
		return res, nil
	}

	baseline, err := visual.LoadBaseline(filepath.Join(p.Config.BaselinesDir, a.Baseline))
	if err != nil {
		res.Status = StatusFailed
		res.Diagnostic = err.Error()
		return p.checkpointOutcome(scriptName, a.Baseline, res, m), nil
	}
	candidate, err := p.Capture(ctx)
	if err != nil {
		res.Status = StatusFailed
		res.Diagnostic = fmt.Sprintf("capture screen: %v", err)
		if session.IsFault(err) {
			return res, err
		}
		return p.checkpointOutcome(scriptName, a.Baseline, res, m), nil
	}

	verdict, diff, err := p.Engine.Compare(baseline, candidate, visual.Options{
		TolerancePercent:        p.Config.DiffTolerancePercent,
		UseStructuralSimilarity: p.Config.UseStructuralSimilarity,
		SimilarityThreshold:     p.Config.SimilarityThreshold,
	})
	if err != nil {
		res.Status = StatusFailed
		res.Diagnostic = err.Error()
		return res, nil
	}

	p.logEvent(audit.EventCheckpointCompared, map[string]any{
		"script":   scriptName,
		"baseline": a.Baseline,
		"passed":   verdict.Passed,
		"verdict":  verdictJSON(verdict),
	})

	if verdict.Passed {
		res.Status = StatusPassed
		return p.checkpointOutcome(scriptName, a.Baseline, res, m), nil
	}

	res.Status = StatusFailed
	res.Diagnostic = verdict.Diagnostic
	stem := strings.TrimSuffix(a.Baseline, filepath.Ext(a.Baseline))
	if verdict.DimensionMismatch {
		// No pixel diff exists; keep the capture so the size problem can
		// be inspected.
		if path, werr := visual.WriteCandidate(p.Config.ResultsDir, stem, candidate); werr == nil {
			res.Artifacts.Candidate = path
		}
	} else if diff != nil {
		if paths, werr := diff.WriteArtifacts(p.Config.ResultsDir, stem, candidate); werr == nil {
			res.Artifacts = paths
		}
	}
	res.Artifacts.Baseline = filepath.Join(p.Config.BaselinesDir, a.Baseline)
	return p.checkpointOutcome(scriptName, a.Baseline, res, m), nil
}

// verifyAssertion reads the located control's property and compares it
// against the expected value. Failures carry a unified diff so multi-line
// property values stay readable.
func (p *Player) verifyAssertion(ctx context.Context, scriptName string, res Result, a script.Action, target locator.Target, m *Metrics) (Result, error) {
	checkpoint := a.ControlRef.ID + "." + a.Assertion.Property

	if target.Control == nil {
		// The coordinate tier cannot read properties; this is a
		// checkpoint failure, not a fault.
		res.Status = StatusFailed
		res.Diagnostic = fmt.Sprintf("assert %s: control not resolvable, only a coordinate", checkpoint)
		return p.checkpointOutcome(scriptName, checkpoint, res, m), nil
	}

	actual, err := target.Control.ReadProperty(ctx, a.Assertion.Property)
	if err != nil {
		res.Status = StatusFailed
		res.Diagnostic = fmt.Sprintf("read %s: %v", checkpoint, err)
		if session.IsFault(err) {
			return res, err
		}
		return p.checkpointOutcome(scriptName, checkpoint, res, m), nil
	}

	if assertionHolds(a.Assertion, actual) {
		res.Status = StatusPassed
	} else {
		res.Status = StatusFailed
		res.Diagnostic = assertionDiagnostic(a.Assertion, actual)
	}
	p.logEvent(audit.EventCheckpointCompared, map[string]any{
		"script":     scriptName,
		"checkpoint": checkpoint,
		"passed":     res.Status == StatusPassed,
	})
	return p.checkpointOutcome(scriptName, checkpoint, res, m), nil
}

// checkpointOutcome updates the metrics and flake history for a finished
// checkpoint result.
func (p *Player) checkpointOutcome(scriptName, checkpoint string, res Result, m *Metrics) Result {
	switch res.Status {
	case StatusPassed:
		m.CheckpointsPassed++
	case StatusFailed:
		m.CheckpointsFailed++
		if p.History != nil {
			_ = p.History.RecordFailure(scriptName, checkpoint)
		}
	}
	return res
}

func assertionHolds(as *script.Assertion, actual string) bool {
	switch as.Compare {
	case script.CompareContains:
		return strings.Contains(actual, as.Expected)
	default:
		return actual == as.Expected
	}
}

func assertionDiagnostic(as *script.Assertion, actual string) string {
	verb := "equal"
	if as.Compare == script.CompareContains {
		verb = "contain"
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(as.Expected),
		B:        difflib.SplitLines(actual),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  2,
	})
	if err != nil || diff == "" {
		return fmt.Sprintf("property %q: got %q, want %s %q", as.Property, actual, verb, as.Expected)
	}
	return fmt.Sprintf("property %q does not %s expected value\n%s", as.Property, verb, diff)
}

func verdictJSON(v visual.Verdict) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}

func summaryJSON(m Metrics) string {
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}
