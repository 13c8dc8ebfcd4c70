package locator

import (
	"context"
	"testing"
	"time"

	"uireplay/internal/calibration"
	"uireplay/internal/manifest"
	"uireplay/internal/script"
	"uireplay/internal/session"
)

var testOpts = Options{
	SemanticWaitTimeout:  50 * time.Millisecond,
	SemanticPollInterval: 5 * time.Millisecond,
}

func testManifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Parse([]byte(`{
		"toolbar": {"save": {"automation_id": "SaveButton", "control_type": "Button"}},
		"dialog":  {"confirm": {"automation_id": "ConfirmButton"}}
	}`), nil)
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	return m
}

func TestSemanticTierWinsWhenResolvable(t *testing.T) {
	sess := session.NewMock()
	sess.Scoped["SaveButton"] = &session.MockControl{ID: "SaveButton"}

	// Valid coordinates are present, but tier ordering must still pick
	// the semantic tier.
	action := script.Action{
		Kind:             script.KindClick,
		ControlRef:       &script.ControlRef{ID: "SaveButton", ControlType: "Button"},
		AbsolutePosition: &script.Point{X: 10, Y: 10},
	}

	target, err := Locate(context.Background(), action, testManifest(t), sess, nil, nil, testOpts)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if target.Mode != ModeSemantic {
		t.Fatalf("mode = %s, want semantic", target.Mode)
	}
	if target.Control == nil {
		t.Fatal("semantic target must carry a control handle")
	}
	if len(target.Misses) != 0 {
		t.Errorf("unexpected tier misses: %+v", target.Misses)
	}
}

func TestSearchTierAfterSemanticTimeout(t *testing.T) {
	sess := session.NewMock()
	// Present in the tree root but not in the app-window subtree.
	sess.Rooted["SaveButton"] = &session.MockControl{ID: "SaveButton"}

	action := script.Action{
		Kind:       script.KindClick,
		ControlRef: &script.ControlRef{ID: "SaveButton"},
	}

	target, err := Locate(context.Background(), action, testManifest(t), sess, nil, nil, testOpts)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if target.Mode != ModeSearch {
		t.Fatalf("mode = %s, want accessibility-search", target.Mode)
	}
	if len(target.Misses) != 1 || target.Misses[0].Mode != ModeSemantic {
		t.Errorf("misses = %+v", target.Misses)
	}
}

func TestManifestMissFallsToCoordinates(t *testing.T) {
	sess := session.NewMock()

	action := script.Action{
		Kind:             script.KindClick,
		ControlRef:       &script.ControlRef{ID: "Foo"},
		AbsolutePosition: &script.Point{X: 10, Y: 10},
	}

	target, err := Locate(context.Background(), action, testManifest(t), sess, nil, nil, testOpts)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if target.Mode != ModeCoordinate {
		t.Fatalf("mode = %s, want coordinate", target.Mode)
	}
	if target.Point != (script.Point{X: 10, Y: 10}) {
		t.Errorf("point = %v, want (10,10)", target.Point)
	}
}

func TestGenericIdentifierSkipsBothLookupTiers(t *testing.T) {
	sess := session.NewMock()
	// Even though a control exists under the generic id, neither lookup
	// tier may use it.
	sess.Scoped["Window"] = &session.MockControl{ID: "Window"}

	action := script.Action{
		Kind:             script.KindClick,
		ControlRef:       &script.ControlRef{ID: "Window"},
		AbsolutePosition: &script.Point{X: 5, Y: 6},
	}

	target, err := Locate(context.Background(), action, testManifest(t), sess, nil, nil, testOpts)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if target.Mode != ModeCoordinate {
		t.Fatalf("mode = %s, want coordinate", target.Mode)
	}
	if sess.Calls != 0 {
		t.Errorf("session consulted %d times for a generic identifier", sess.Calls)
	}
}

func TestCoordinateTierAppliesCalibration(t *testing.T) {
	profile := &calibration.Profile{Name: "lab", Anchor: script.Point{X: 100, Y: 100}}
	anchor := &script.Point{X: 300, Y: 250}

	action := script.Action{
		Kind:             script.KindClick,
		RelativePosition: &script.Offset{DX: 20, DY: 20},
	}

	target, err := Locate(context.Background(), action, nil, nil, profile, anchor, testOpts)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if target.Mode != ModeCoordinate {
		t.Fatalf("mode = %s", target.Mode)
	}
	if target.Point != (script.Point{X: 320, Y: 270}) {
		t.Errorf("point = %v, want (320,270)", target.Point)
	}
	if !target.Resolution.Adjusted() {
		t.Error("calibration adjustment expected")
	}
}

func TestSessionFaultIsFatal(t *testing.T) {
	sess := session.NewMock()
	sess.Fault = true

	action := script.Action{
		Kind:             script.KindClick,
		ControlRef:       &script.ControlRef{ID: "SaveButton"},
		AbsolutePosition: &script.Point{X: 1, Y: 1},
	}

	_, err := Locate(context.Background(), action, testManifest(t), sess, nil, nil, testOpts)
	if err == nil {
		t.Fatal("session fault must surface, not fall through to coordinates")
	}
	if !session.IsFault(err) {
		t.Fatalf("error %v should wrap ErrSessionFault", err)
	}
}
