package script

import "fmt"

// Kind identifies the type of a recorded step.
type Kind string

const (
	KindPointerDown    Kind = "pointer_down"
	KindPointerUp      Kind = "pointer_up"
	KindClick          Kind = "click"
	KindDrag           Kind = "drag"
	KindKey            Kind = "key"
	KindHotkey         Kind = "hotkey"
	KindTypeText       Kind = "type_text"
	KindScroll         Kind = "scroll"
	KindScreenshot     Kind = "screenshot"
	KindAssertProperty Kind = "assert_property"
)

// Point is an absolute screen coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns the point shifted by an offset.
func (p Point) Add(o Offset) Point {
	return Point{X: p.X + o.DX, Y: p.Y + o.DY}
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Offset is a displacement relative to some origin, typically the
// calibration anchor active at recording time.
type Offset struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

// Size is a window extent in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect is a screen-space rectangle, half-open on the right and bottom edges.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Contains reports whether a point falls inside the rectangle.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left && p.X < r.Right && p.Y >= r.Top && p.Y < r.Bottom
}

// CompareMode selects how an assertion compares actual against expected.
type CompareMode string

const (
	CompareEquals   CompareMode = "equals"
	CompareContains CompareMode = "contains"
)

// ControlRef names a target control by its platform identifier, with the
// semantic namespace carried along from the manifest at record time.
type ControlRef struct {
	ID          string `json:"id"`
	Group       string `json:"group,omitempty"`
	Name        string `json:"name,omitempty"`
	ControlType string `json:"control_type,omitempty"`
}

// Assertion describes an expected property value on the target control.
type Assertion struct {
	Property string      `json:"property"`
	Expected string      `json:"expected"`
	Compare  CompareMode `json:"compare,omitempty"`
}

// Action is one recorded step. Optional fields use pointers or slices so
// that an absent value is distinguishable from a zero value; unknown JSON
// fields in persisted scripts are ignored for forward compatibility.
// Actions are immutable once loaded.
type Action struct {
	Kind             Kind        `json:"kind"`
	AbsolutePosition *Point      `json:"absolute_position,omitempty"`
	RelativePosition *Offset     `json:"relative_position,omitempty"`
	AbsolutePath     []Point     `json:"absolute_path,omitempty"`
	RelativePath     []Offset    `json:"relative_path,omitempty"`
	ControlRef       *ControlRef `json:"control_ref,omitempty"`
	CalibrationName  string      `json:"calibration_profile,omitempty"`
	Assertion        *Assertion  `json:"assertion,omitempty"`
	PacingDelayMS    int64       `json:"pacing_delay_ms,omitempty"`

	// Interaction detail recorded per kind.
	Button   string   `json:"button,omitempty"`
	Key      string   `json:"key,omitempty"`
	Keys     []string `json:"keys,omitempty"`
	Text     string   `json:"text,omitempty"`
	ScrollDX int      `json:"scroll_dx,omitempty"`
	ScrollDY int      `json:"scroll_dy,omitempty"`

	// Baseline names the stored reference image for screenshot checkpoints.
	Baseline string `json:"baseline,omitempty"`
}

// Interactive reports whether the kind dispatches physical input at a
// resolved location.
func (k Kind) Interactive() bool {
	switch k {
	case KindPointerDown, KindPointerUp, KindClick, KindDrag, KindScroll:
		return true
	}
	return false
}

// Checkpoint reports whether the kind produces a pass/fail verdict.
func (k Kind) Checkpoint() bool {
	return k == KindScreenshot || k == KindAssertProperty
}

func (k Kind) valid() bool {
	switch k {
	case KindPointerDown, KindPointerUp, KindClick, KindDrag, KindKey,
		KindHotkey, KindTypeText, KindScroll, KindScreenshot, KindAssertProperty:
		return true
	}
	return false
}
