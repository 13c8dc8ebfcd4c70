// Package driver dispatches physical input and captures the screen through
// robotgo. It backs the player's Input and CaptureFunc ports on a real
// desktop; tests use in-memory fakes instead.
package driver

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/go-vgo/robotgo"

	"uireplay/internal/calibration"
	"uireplay/internal/script"
)

// dragStepDelay paces the pointer between drag samples so the target
// application sees a continuous gesture instead of a teleport.
const dragStepDelay = 5 * time.Millisecond

// Robot is the robotgo-backed input dispatcher.
type Robot struct{}

// New returns the system input driver.
func New() *Robot {
	return &Robot{}
}

func (r *Robot) Click(p script.Point, button string) error {
	robotgo.Move(p.X, p.Y)
	robotgo.Click(button, false)
	return nil
}

func (r *Robot) PointerDown(p script.Point, button string) error {
	robotgo.Move(p.X, p.Y)
	return robotgo.Toggle(button, "down")
}

func (r *Robot) PointerUp(p script.Point, button string) error {
	robotgo.Move(p.X, p.Y)
	return robotgo.Toggle(button, "up")
}

// Drag presses at the first sample, traces the path, and releases at the
// last sample.
func (r *Robot) Drag(path []script.Point, button string) error {
	if len(path) < 2 {
		return fmt.Errorf("drag path needs at least two points, got %d", len(path))
	}
	robotgo.Move(path[0].X, path[0].Y)
	if err := robotgo.Toggle(button, "down"); err != nil {
		return fmt.Errorf("press %s: %w", button, err)
	}
	for _, p := range path[1:] {
		robotgo.Move(p.X, p.Y)
		time.Sleep(dragStepDelay)
	}
	if err := robotgo.Toggle(button, "up"); err != nil {
		return fmt.Errorf("release %s: %w", button, err)
	}
	return nil
}

func (r *Robot) Key(key string) error {
	return robotgo.KeyTap(key)
}

// Hotkey taps the last key with the preceding keys held as modifiers,
// matching how chords are recorded.
func (r *Robot) Hotkey(keys []string) error {
	if len(keys) == 0 {
		return fmt.Errorf("empty hotkey")
	}
	last := keys[len(keys)-1]
	mods := make([]any, 0, len(keys)-1)
	for _, m := range keys[:len(keys)-1] {
		mods = append(mods, m)
	}
	return robotgo.KeyTap(last, mods...)
}

func (r *Robot) TypeText(text string) error {
	robotgo.TypeStr(text)
	return nil
}

func (r *Robot) Scroll(p script.Point, dx, dy int) error {
	robotgo.Move(p.X, p.Y)
	robotgo.Scroll(dx, dy)
	return nil
}

// ScreenBounds returns the primary monitor rectangle, used to filter
// recorded points that drifted onto a secondary display.
func ScreenBounds() script.Rect {
	w, h := robotgo.GetScreenSize()
	return script.Rect{Left: 0, Top: 0, Right: w, Bottom: h}
}

// Capture returns a screen-capture function that crops taskbarCrop pixels
// off the bottom edge. The taskbar's clock and tray icons change between
// record and playback, so they never take part in comparisons.
func Capture(taskbarCrop int) func(ctx context.Context) (image.Image, error) {
	return func(_ context.Context) (image.Image, error) {
		img, err := robotgo.CaptureImg()
		if err != nil {
			return nil, fmt.Errorf("capture screen: %w", err)
		}
		if taskbarCrop <= 0 {
			return img, nil
		}
		b := img.Bounds()
		if b.Dy() <= taskbarCrop {
			return img, nil
		}
		cropped := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()-taskbarCrop))
		for y := 0; y < cropped.Bounds().Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				cropped.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
			}
		}
		return cropped, nil
	}
}

// WindowAnchor reports the active window's top-left corner and size, used
// when capturing a calibration profile.
func WindowAnchor() (script.Point, script.Size, error) {
	pid := robotgo.GetPid()
	x, y, w, h := robotgo.GetBounds(int(pid))
	if w == 0 && h == 0 {
		return script.Point{}, script.Size{}, fmt.Errorf("active window has no bounds (pid %d)", pid)
	}
	return script.Point{X: x, Y: y}, script.Size{Width: w, Height: h}, nil
}

// AnchorFunc adapts WindowAnchor to the calibration store's capture hook.
func AnchorFunc() calibration.AnchorFunc {
	return func() (script.Point, script.Size, error) {
		return WindowAnchor()
	}
}
