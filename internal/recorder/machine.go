package recorder

import (
	"strings"
	"time"
	"unicode"

	"uireplay/internal/script"
)

// eventKind classifies raw hook events after platform decoding.
type eventKind int

const (
	evMouseDown eventKind = iota
	evMouseUp
	evMouseMove
	evWheel
	evKeyChar
	evKeySpecial
)

// event is one decoded input event. Using a plain struct here keeps the
// translation logic runnable without a live hook.
type event struct {
	Kind   eventKind
	At     time.Time
	Point  script.Point
	Button string
	Char   rune
	Key    string
	Mods   []string
	Scroll int
}

// machine folds decoded events into recorded actions. A press-move-release
// shorter than dragThreshold collapses into a click; anything longer
// becomes a drag with its full path. Printable keystrokes without
// modifiers coalesce into a single type_text action.
type machine struct {
	dragThreshold int
	screen        script.Rect
	anchor        *script.Point
	profileName   string

	actions []script.Action
	lastAt  time.Time

	down     bool
	downBtn  string
	downAt   script.Point
	downTime time.Time
	path     []script.Point

	text      strings.Builder
	textStart time.Time
}

func newMachine(dragThreshold int, screen script.Rect, anchor *script.Point, profileName string) *machine {
	if dragThreshold <= 0 {
		dragThreshold = 5
	}
	return &machine{dragThreshold: dragThreshold, screen: screen, anchor: anchor, profileName: profileName}
}

func (m *machine) feed(ev event) {
	switch ev.Kind {
	case evMouseDown:
		m.flushText()
		m.down = true
		m.downBtn = ev.Button
		m.downAt = ev.Point
		m.downTime = ev.At
		m.path = []script.Point{ev.Point}
	case evMouseMove:
		if m.down {
			m.path = append(m.path, ev.Point)
		}
	case evMouseUp:
		if !m.down {
			return
		}
		m.down = false
		m.path = append(m.path, ev.Point)
		if maxExcursion(m.downAt, m.path) < m.dragThreshold {
			m.appendPointer(script.KindClick, m.downAt, m.downBtn, m.downTime)
		} else {
			m.appendDrag(m.path, m.downBtn, m.downTime)
		}
	case evWheel:
		m.flushText()
		a := script.Action{
			Kind:             script.KindScroll,
			AbsolutePosition: &script.Point{X: ev.Point.X, Y: ev.Point.Y},
			ScrollDY:         ev.Scroll,
		}
		m.append(a, ev.At)
	case evKeyChar:
		if len(ev.Mods) > 0 {
			m.flushText()
			m.appendHotkey(ev)
			return
		}
		if m.text.Len() == 0 {
			m.textStart = ev.At
		}
		m.text.WriteRune(ev.Char)
	case evKeySpecial:
		m.flushText()
		if len(ev.Mods) > 0 {
			m.appendHotkey(ev)
			return
		}
		m.append(script.Action{Kind: script.KindKey, Key: ev.Key}, ev.At)
	}
}

// finish flushes pending state and returns the recorded script.
func (m *machine) finish() []script.Action {
	m.flushText()
	m.down = false
	return m.actions
}

func (m *machine) appendHotkey(ev event) {
	key := ev.Key
	if key == "" {
		key = string(unicode.ToLower(ev.Char))
	}
	keys := append(append([]string(nil), ev.Mods...), key)
	m.append(script.Action{Kind: script.KindHotkey, Keys: keys}, ev.At)
}

func (m *machine) appendPointer(kind script.Kind, p script.Point, button string, at time.Time) {
	if !m.onScreen(p) {
		return
	}
	a := script.Action{
		Kind:             kind,
		AbsolutePosition: &script.Point{X: p.X, Y: p.Y},
		Button:           button,
	}
	if m.anchor != nil {
		a.RelativePosition = &script.Offset{DX: p.X - m.anchor.X, DY: p.Y - m.anchor.Y}
		a.CalibrationName = m.profileName
	}
	m.append(a, at)
}

func (m *machine) appendDrag(path []script.Point, button string, at time.Time) {
	kept := make([]script.Point, 0, len(path))
	for _, p := range path {
		if m.onScreen(p) {
			kept = append(kept, p)
		}
	}
	if len(kept) < 2 {
		return
	}
	a := script.Action{
		Kind:         script.KindDrag,
		AbsolutePath: kept,
		Button:       button,
	}
	if m.anchor != nil {
		rel := make([]script.Offset, len(kept))
		for i, p := range kept {
			rel[i] = script.Offset{DX: p.X - m.anchor.X, DY: p.Y - m.anchor.Y}
		}
		a.RelativePath = rel
		a.CalibrationName = m.profileName
	}
	m.append(a, at)
}

func (m *machine) flushText() {
	if m.text.Len() == 0 {
		return
	}
	a := script.Action{Kind: script.KindTypeText, Text: m.text.String()}
	m.text.Reset()
	m.append(a, m.textStart)
}

// append stamps the inter-action gap as the pacing delay and stores the
// action.
func (m *machine) append(a script.Action, at time.Time) {
	if !m.lastAt.IsZero() && at.After(m.lastAt) {
		a.PacingDelayMS = at.Sub(m.lastAt).Milliseconds()
	}
	m.lastAt = at
	m.actions = append(m.actions, a)
}

func (m *machine) onScreen(p script.Point) bool {
	if m.screen == (script.Rect{}) {
		return true
	}
	return m.screen.Contains(p)
}

// maxExcursion measures how far the pointer strayed from the press point.
func maxExcursion(origin script.Point, path []script.Point) int {
	far := 0
	for _, p := range path {
		if d := abs(p.X - origin.X); d > far {
			far = d
		}
		if d := abs(p.Y - origin.Y); d > far {
			far = d
		}
	}
	return far
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
