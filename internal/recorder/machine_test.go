package recorder

import (
	"testing"
	"time"

	"uireplay/internal/script"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func at(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

func TestShortPressBecomesClick(t *testing.T) {
	m := newMachine(5, script.Rect{}, nil, "")
	m.feed(event{Kind: evMouseDown, At: at(0), Point: script.Point{X: 100, Y: 100}, Button: "left"})
	m.feed(event{Kind: evMouseMove, At: at(10), Point: script.Point{X: 102, Y: 101}})
	m.feed(event{Kind: evMouseUp, At: at(20), Point: script.Point{X: 102, Y: 101}, Button: "left"})

	actions := m.finish()
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(actions))
	}
	a := actions[0]
	if a.Kind != script.KindClick {
		t.Fatalf("Kind = %q, want click", a.Kind)
	}
	if a.AbsolutePosition == nil || *a.AbsolutePosition != (script.Point{X: 100, Y: 100}) {
		t.Errorf("position = %v, want press point (100,100)", a.AbsolutePosition)
	}
	if a.Button != "left" {
		t.Errorf("Button = %q, want left", a.Button)
	}
}

func TestLongPressBecomesDragWithPath(t *testing.T) {
	m := newMachine(5, script.Rect{}, nil, "")
	m.feed(event{Kind: evMouseDown, At: at(0), Point: script.Point{X: 10, Y: 10}, Button: "left"})
	for i := 1; i <= 8; i++ {
		m.feed(event{Kind: evMouseMove, At: at(10 * i), Point: script.Point{X: 10 + 10*i, Y: 10}})
	}
	m.feed(event{Kind: evMouseUp, At: at(100), Point: script.Point{X: 90, Y: 10}, Button: "left"})

	actions := m.finish()
	if len(actions) != 1 || actions[0].Kind != script.KindDrag {
		t.Fatalf("actions = %+v, want one drag", actions)
	}
	path := actions[0].AbsolutePath
	if len(path) < 2 {
		t.Fatalf("path too short: %v", path)
	}
	if path[0] != (script.Point{X: 10, Y: 10}) || path[len(path)-1] != (script.Point{X: 90, Y: 10}) {
		t.Errorf("path endpoints %v..%v, want (10,10)..(90,10)", path[0], path[len(path)-1])
	}
}

func TestTypingCoalescesUntilSpecialKey(t *testing.T) {
	m := newMachine(5, script.Rect{}, nil, "")
	for i, ch := range "report" {
		m.feed(event{Kind: evKeyChar, At: at(50 * i), Char: ch})
	}
	m.feed(event{Kind: evKeySpecial, At: at(400), Key: "enter"})

	actions := m.finish()
	if len(actions) != 2 {
		t.Fatalf("got %d actions, want type_text then key", len(actions))
	}
	if actions[0].Kind != script.KindTypeText || actions[0].Text != "report" {
		t.Errorf("first = %+v, want type_text %q", actions[0], "report")
	}
	if actions[1].Kind != script.KindKey || actions[1].Key != "enter" {
		t.Errorf("second = %+v, want key enter", actions[1])
	}
}

func TestModifierChordBecomesHotkey(t *testing.T) {
	m := newMachine(5, script.Rect{}, nil, "")
	m.feed(event{Kind: evKeyChar, At: at(0), Char: 's', Mods: []string{"ctrl"}})

	actions := m.finish()
	if len(actions) != 1 || actions[0].Kind != script.KindHotkey {
		t.Fatalf("actions = %+v, want one hotkey", actions)
	}
	keys := actions[0].Keys
	if len(keys) != 2 || keys[0] != "ctrl" || keys[1] != "s" {
		t.Errorf("Keys = %v, want [ctrl s]", keys)
	}
}

func TestPacingDelayRecordsGapBetweenActions(t *testing.T) {
	m := newMachine(5, script.Rect{}, nil, "")
	m.feed(event{Kind: evMouseDown, At: at(0), Point: script.Point{X: 1, Y: 1}, Button: "left"})
	m.feed(event{Kind: evMouseUp, At: at(5), Point: script.Point{X: 1, Y: 1}, Button: "left"})
	m.feed(event{Kind: evMouseDown, At: at(1200), Point: script.Point{X: 2, Y: 2}, Button: "left"})
	m.feed(event{Kind: evMouseUp, At: at(1205), Point: script.Point{X: 2, Y: 2}, Button: "left"})

	actions := m.finish()
	if len(actions) != 2 {
		t.Fatalf("got %d actions, want 2", len(actions))
	}
	if actions[0].PacingDelayMS != 0 {
		t.Errorf("first delay = %d, want 0", actions[0].PacingDelayMS)
	}
	if actions[1].PacingDelayMS != 1200 {
		t.Errorf("second delay = %d, want 1200", actions[1].PacingDelayMS)
	}
}

func TestAnchorRelativePositionsRecorded(t *testing.T) {
	anchor := script.Point{X: 100, Y: 50}
	m := newMachine(5, script.Rect{}, &anchor, "lab")
	m.feed(event{Kind: evMouseDown, At: at(0), Point: script.Point{X: 120, Y: 70}, Button: "left"})
	m.feed(event{Kind: evMouseUp, At: at(10), Point: script.Point{X: 120, Y: 70}, Button: "left"})

	actions := m.finish()
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(actions))
	}
	a := actions[0]
	if a.RelativePosition == nil || *a.RelativePosition != (script.Offset{DX: 20, DY: 20}) {
		t.Errorf("relative = %v, want (20,20)", a.RelativePosition)
	}
	if a.CalibrationName != "lab" {
		t.Errorf("CalibrationName = %q, want lab", a.CalibrationName)
	}
	if a.AbsolutePosition == nil {
		t.Error("absolute position should be kept alongside the relative one")
	}
}

func TestOffscreenPointsFiltered(t *testing.T) {
	screen := script.Rect{Left: 0, Top: 0, Right: 200, Bottom: 200}
	m := newMachine(5, screen, nil, "")

	// Click outside the primary monitor is dropped entirely.
	m.feed(event{Kind: evMouseDown, At: at(0), Point: script.Point{X: 500, Y: 500}, Button: "left"})
	m.feed(event{Kind: evMouseUp, At: at(10), Point: script.Point{X: 500, Y: 500}, Button: "left"})

	// Drag straddling the edge keeps only its on-screen samples.
	m.feed(event{Kind: evMouseDown, At: at(100), Point: script.Point{X: 150, Y: 100}, Button: "left"})
	m.feed(event{Kind: evMouseMove, At: at(110), Point: script.Point{X: 190, Y: 100}})
	m.feed(event{Kind: evMouseMove, At: at(120), Point: script.Point{X: 250, Y: 100}})
	m.feed(event{Kind: evMouseUp, At: at(130), Point: script.Point{X: 199, Y: 100}, Button: "left"})

	actions := m.finish()
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want just the drag", len(actions))
	}
	for _, p := range actions[0].AbsolutePath {
		if !screen.Contains(p) {
			t.Errorf("off-screen point %v survived filtering", p)
		}
	}
}
