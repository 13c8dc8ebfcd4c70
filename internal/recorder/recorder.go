// Package recorder captures live user input through a global hook and
// turns it into a replayable script.
package recorder

import (
	"context"
	"time"

	hook "github.com/robotn/gohook"

	"uireplay/internal/calibration"
	"uireplay/internal/script"
)

// Options configure one recording session.
type Options struct {
	// DragThresholdPx separates clicks from drags. Zero uses a small
	// default.
	DragThresholdPx int
	// StopKey ends the recording without being recorded itself.
	// Defaults to escape.
	StopKey string
	// Screen filters recorded points to the primary monitor. The zero
	// rect disables filtering.
	Screen script.Rect
	// Profile, when set, makes recorded positions anchor-relative so
	// playback can recalibrate them.
	Profile *calibration.Profile
}

// Recorder listens for global input events until the stop key is pressed
// or the context is cancelled.
type Recorder struct {
	opts Options
}

func New(opts Options) *Recorder {
	if opts.StopKey == "" {
		opts.StopKey = "esc"
	}
	return &Recorder{opts: opts}
}

// Record blocks until the session ends and returns the captured actions.
func (r *Recorder) Record(ctx context.Context) ([]script.Action, error) {
	var anchor *script.Point
	profileName := ""
	if r.opts.Profile != nil {
		anchor = &r.opts.Profile.Anchor
		profileName = r.opts.Profile.Name
	}
	m := newMachine(r.opts.DragThresholdPx, r.opts.Screen, anchor, profileName)

	events := hook.Start()
	defer hook.End()

	mods := newModifierState()
	stopCode := hook.Keycode[r.opts.StopKey]
	for {
		select {
		case <-ctx.Done():
			return m.finish(), nil
		case ev, ok := <-events:
			if !ok {
				return m.finish(), nil
			}
			if ev.Kind == hook.KeyDown && ev.Keycode == stopCode {
				return m.finish(), nil
			}
			mods.observe(ev)
			if decoded, ok := decode(ev, mods); ok {
				m.feed(decoded)
			}
		}
	}
}

var buttonNames = map[uint16]string{1: "left", 2: "right", 3: "middle"}

// modifierState tracks held modifier keys across hook events, since the
// hook reports bare keycodes without chord context.
type modifierState struct {
	held map[string]bool
}

func newModifierState() *modifierState {
	return &modifierState{held: make(map[string]bool)}
}

var modifierCodes = map[uint16]string{
	hook.Keycode["ctrl"]:  "ctrl",
	hook.Keycode["shift"]: "shift",
	hook.Keycode["alt"]:   "alt",
	hook.Keycode["cmd"]:   "cmd",
}

func (s *modifierState) observe(ev hook.Event) {
	name, isMod := modifierCodes[ev.Keycode]
	if !isMod {
		return
	}
	switch ev.Kind {
	case hook.KeyDown, hook.KeyHold:
		s.held[name] = true
	case hook.KeyUp:
		delete(s.held, name)
	}
}

// active returns the held chord modifiers, excluding shift: shift alone is
// part of ordinary typing, not a command chord.
func (s *modifierState) active() []string {
	var out []string
	for _, name := range []string{"ctrl", "alt", "cmd"} {
		if s.held[name] {
			out = append(out, name)
		}
	}
	return out
}

// specialKeys maps hook keycodes to replayable key names for keys that
// produce no printable character.
var specialKeys = map[uint16]string{
	hook.Keycode["enter"]:     "enter",
	hook.Keycode["tab"]:       "tab",
	hook.Keycode["backspace"]: "backspace",
	hook.Keycode["delete"]:    "delete",
	hook.Keycode["up"]:        "up",
	hook.Keycode["down"]:      "down",
	hook.Keycode["left"]:      "left",
	hook.Keycode["right"]:     "right",
	hook.Keycode["home"]:      "home",
	hook.Keycode["end"]:       "end",
	hook.Keycode["pageup"]:    "pageup",
	hook.Keycode["pagedown"]:  "pagedown",
	hook.Keycode["f5"]:        "f5",
}

// decode turns a raw hook event into a machine event. Modifier keys and
// unknown events are dropped.
func decode(ev hook.Event, mods *modifierState) (event, bool) {
	at := time.Now()
	switch ev.Kind {
	case hook.MouseDown:
		return event{
			Kind:   evMouseDown,
			At:     at,
			Point:  script.Point{X: int(ev.X), Y: int(ev.Y)},
			Button: buttonName(ev.Button),
		}, true
	case hook.MouseUp:
		return event{
			Kind:   evMouseUp,
			At:     at,
			Point:  script.Point{X: int(ev.X), Y: int(ev.Y)},
			Button: buttonName(ev.Button),
		}, true
	case hook.MouseMove, hook.MouseDrag:
		return event{
			Kind:  evMouseMove,
			At:    at,
			Point: script.Point{X: int(ev.X), Y: int(ev.Y)},
		}, true
	case hook.MouseWheel:
		return event{
			Kind:   evWheel,
			At:     at,
			Point:  script.Point{X: int(ev.X), Y: int(ev.Y)},
			Scroll: int(ev.Rotation),
		}, true
	case hook.KeyDown:
		if _, isMod := modifierCodes[ev.Keycode]; isMod {
			return event{}, false
		}
		if name, ok := specialKeys[ev.Keycode]; ok {
			return event{Kind: evKeySpecial, At: at, Key: name, Mods: mods.active()}, true
		}
		if ev.Keychar != 0 && ev.Keychar != 65535 {
			return event{Kind: evKeyChar, At: at, Char: ev.Keychar, Mods: mods.active()}, true
		}
	}
	return event{}, false
}

func buttonName(b uint16) string {
	if name, ok := buttonNames[b]; ok {
		return name
	}
	return "left"
}
