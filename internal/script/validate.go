package script

import (
	"fmt"
	"strings"
)

// ValidationError captures a single field-specific validation issue.
type ValidationError struct {
	File    string
	Index   int
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	loc := e.File
	if e.Index >= 0 {
		loc = fmt.Sprintf("%s: actions[%d]", e.File, e.Index)
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", loc, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", loc, e.Field, e.Message)
}

// ValidationErrors aggregates multiple validation problems.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "\n")
}

// Validate checks the action-model invariants for a whole sequence.
// Malformed entries are rejected at load time so the playback core never
// has to re-check field presence.
func Validate(actions []Action, source string) ValidationErrors {
	var errs ValidationErrors
	add := func(idx int, field, msg string) {
		errs = append(errs, ValidationError{File: source, Index: idx, Field: field, Message: msg})
	}

	for idx, a := range actions {
		if !a.Kind.valid() {
			add(idx, "kind", fmt.Sprintf("unknown action kind %q", a.Kind))
			continue
		}
		if a.PacingDelayMS < 0 {
			add(idx, "pacing_delay_ms", "must be non-negative")
		}

		if a.Kind.Interactive() && a.Kind != KindDrag {
			if a.AbsolutePosition == nil && a.RelativePosition == nil && a.ControlRef == nil {
				add(idx, "", "interactive action needs a position or control_ref")
			}
		}
		if a.Kind == KindDrag && len(a.RelativePath) == 0 && len(a.AbsolutePath) == 0 {
			add(idx, "", "drag action needs relative_path or absolute_path")
		}

		if a.Kind == KindAssertProperty {
			if a.Assertion == nil {
				add(idx, "assertion", "required for assert_property")
			} else {
				if strings.TrimSpace(a.Assertion.Property) == "" {
					add(idx, "assertion.property", "must not be empty")
				}
				switch a.Assertion.Compare {
				case "", CompareEquals, CompareContains:
				default:
					add(idx, "assertion.compare", fmt.Sprintf("unknown comparison mode %q", a.Assertion.Compare))
				}
			}
			if a.ControlRef == nil {
				add(idx, "control_ref", "required for assert_property")
			}
		} else if a.Assertion != nil {
			add(idx, "assertion", fmt.Sprintf("only valid for assert_property, not %s", a.Kind))
		}

		if a.Kind == KindKey && strings.TrimSpace(a.Key) == "" {
			add(idx, "key", "required for key actions")
		}
		if a.Kind == KindHotkey && len(a.Keys) == 0 {
			add(idx, "keys", "required for hotkey actions")
		}
		if a.Kind == KindScreenshot && strings.TrimSpace(a.Baseline) == "" {
			add(idx, "baseline", "required for screenshot actions")
		}
		if a.Kind == KindScroll && a.ScrollDX == 0 && a.ScrollDY == 0 {
			add(idx, "", "scroll action needs a non-zero scroll_dx or scroll_dy")
		}
		if a.ControlRef != nil && strings.TrimSpace(a.ControlRef.ID) == "" {
			add(idx, "control_ref.id", "must not be empty")
		}
	}

	return errs
}
