// Package session defines the boundary to the live accessibility
// connection. The calling environment owns the connection's lifecycle; the
// playback core only invokes it, one action at a time, for the duration of
// a single run.
package session

import (
	"context"
	"errors"
	"time"

	"uireplay/internal/script"
)

// ErrSessionFault marks the accessibility session or target process as
// unusable. It is the only error class that aborts a playback run; wrap it
// with fmt.Errorf("...: %w", ErrSessionFault) from implementations.
var ErrSessionFault = errors.New("accessibility session fault")

// ErrControlNotFound is an ordinary miss: the identifier did not resolve
// within the allotted time. Callers fall through to the next tier.
var ErrControlNotFound = errors.New("control not found")

// Query narrows a control lookup.
type Query struct {
	Identifier  string
	ControlType string
}

// Control is a live handle to an on-screen element.
type Control interface {
	// Click dispatches a physical click on the control.
	Click(ctx context.Context, button string) error
	// ReadProperty reads a named property (name, value, enabled, ...).
	ReadProperty(ctx context.Context, property string) (string, error)
	// Bounds returns the control's screen rectangle.
	Bounds(ctx context.Context) (script.Rect, error)
}

// Session is the long-lived accessibility connection for one run. It is
// not safe for concurrent use; the executor guarantees exclusive,
// sequential access.
type Session interface {
	// WaitControl resolves a query scoped to the application window,
	// polling at interval until timeout. Returns ErrControlNotFound on an
	// ordinary miss and an ErrSessionFault-wrapped error when the
	// connection itself is unusable.
	WaitControl(ctx context.Context, q Query, timeout, interval time.Duration) (Control, error)
	// SearchControl resolves a query from the desktop root, without the
	// application-window scoping of WaitControl.
	SearchControl(ctx context.Context, q Query) (Control, error)
	// WindowAnchor returns the target window's current top-left corner
	// and size.
	WindowAnchor(ctx context.Context) (script.Point, script.Size, error)
}

// IsFault reports whether an error indicates an unusable session rather
// than an ordinary lookup miss.
func IsFault(err error) bool {
	return errors.Is(err, ErrSessionFault)
}
