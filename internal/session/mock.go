package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"uireplay/internal/script"
)

// MockControl is a deterministic, offline control handle used to test the
// locator and executor without a desktop.
type MockControl struct {
	ID         string
	Properties map[string]string
	Rect       script.Rect

	mu     sync.Mutex
	clicks []string
}

// Click records the click instead of dispatching it.
func (c *MockControl) Click(_ context.Context, button string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if button == "" {
		button = "left"
	}
	c.clicks = append(c.clicks, button)
	return nil
}

// Clicks returns the buttons clicked so far.
func (c *MockControl) Clicks() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.clicks...)
}

func (c *MockControl) ReadProperty(_ context.Context, property string) (string, error) {
	if v, ok := c.Properties[property]; ok {
		return v, nil
	}
	return "", fmt.Errorf("control %s has no property %q", c.ID, property)
}

func (c *MockControl) Bounds(_ context.Context) (script.Rect, error) {
	return c.Rect, nil
}

// Mock is an offline Session backed by fixed control tables. Controls in
// Scoped resolve through WaitControl; controls in Rooted resolve only
// through SearchControl (simulating elements outside the app window's
// subtree). Setting Fault makes every call fail with a session fault.
type Mock struct {
	Scoped map[string]*MockControl
	Rooted map[string]*MockControl
	Anchor script.Point
	Window script.Size
	Fault  bool

	// FaultAfter, when positive, trips a session fault once Calls
	// reaches it. Used to test mid-run aborts.
	FaultAfter int
	Calls      int
}

// NewMock returns an empty mock session.
func NewMock() *Mock {
	return &Mock{
		Scoped: make(map[string]*MockControl),
		Rooted: make(map[string]*MockControl),
	}
}

func (m *Mock) faulted() bool {
	m.Calls++
	if m.Fault {
		return true
	}
	return m.FaultAfter > 0 && m.Calls >= m.FaultAfter
}

func (m *Mock) WaitControl(ctx context.Context, q Query, timeout, interval time.Duration) (Control, error) {
	if m.faulted() {
		return nil, fmt.Errorf("wait %s: %w", q.Identifier, ErrSessionFault)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c, ok := m.Scoped[q.Identifier]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s (after %s)", ErrControlNotFound, q.Identifier, timeout)
}

func (m *Mock) SearchControl(ctx context.Context, q Query) (Control, error) {
	if m.faulted() {
		return nil, fmt.Errorf("search %s: %w", q.Identifier, ErrSessionFault)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c, ok := m.Scoped[q.Identifier]; ok {
		return c, nil
	}
	if c, ok := m.Rooted[q.Identifier]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrControlNotFound, q.Identifier)
}

func (m *Mock) WindowAnchor(ctx context.Context) (script.Point, script.Size, error) {
	if m.faulted() {
		return script.Point{}, script.Size{}, fmt.Errorf("window anchor: %w", ErrSessionFault)
	}
	return m.Anchor, m.Window, nil
}
