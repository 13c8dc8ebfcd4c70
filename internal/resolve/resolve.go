// Package resolve translates recorded spatial coordinates into the
// coordinate space of the current machine using a calibration profile.
package resolve

import (
	"errors"
	"fmt"

	"uireplay/internal/calibration"
	"uireplay/internal/script"
)

// ErrNoCoordinates is returned when an action carries no spatial
// information at all. The action-model invariants prevent this for
// interactive actions, so it only surfaces on malformed input.
var ErrNoCoordinates = errors.New("action has no coordinates to resolve")

// Adjustment names which correction path produced the resolved point.
type Adjustment string

const (
	// AdjustmentAnchorRelative reconstructs the human-relative position
	// from the current window anchor. Highest fidelity: survives window
	// moves and resolution changes.
	AdjustmentAnchorRelative Adjustment = "anchor-relative"
	// AdjustmentDriftCorrected shifts the recorded absolute position by
	// the anchor delta between record and playback time.
	AdjustmentDriftCorrected Adjustment = "drift-corrected"
	// AdjustmentVerbatim replays the recorded absolute position as-is.
	AdjustmentVerbatim Adjustment = "verbatim"
)

// Downgrade signals that a higher-fidelity correction was recorded but
// could not be applied on this machine. It is informational, never fatal:
// the resolver always falls through to the next branch.
type Downgrade struct {
	Wanted Adjustment
	Reason string
}

// Resolution is the outcome of resolving one action's coordinates.
type Resolution struct {
	Point      script.Point
	Adjustment Adjustment
	Downgrade  *Downgrade
}

// Adjusted reports whether a calibration correction was applied, as
// opposed to the verbatim fallback.
func (r Resolution) Adjusted() bool {
	return r.Adjustment != AdjustmentVerbatim
}

// Resolve converts the action's recorded coordinate into an absolute point
// valid on the current machine. profile may be nil (profile absent on this
// machine) and currentAnchor may be nil (live window anchor unavailable);
// either gap downgrades fidelity instead of failing.
func Resolve(a script.Action, profile *calibration.Profile, currentAnchor *script.Point) (Resolution, error) {
	if a.RelativePosition != nil {
		if currentAnchor != nil && profile != nil {
			return Resolution{
				Point:      currentAnchor.Add(*a.RelativePosition),
				Adjustment: AdjustmentAnchorRelative,
			}, nil
		}
		if a.AbsolutePosition == nil {
			return Resolution{}, fmt.Errorf("%w: relative position without calibration or absolute fallback", ErrNoCoordinates)
		}
		res := resolveAbsolute(*a.AbsolutePosition, profile, currentAnchor)
		res.Downgrade = &Downgrade{
			Wanted: AdjustmentAnchorRelative,
			Reason: calibrationGap(profile, currentAnchor),
		}
		return res, nil
	}

	if a.AbsolutePosition == nil {
		return Resolution{}, ErrNoCoordinates
	}

	res := resolveAbsolute(*a.AbsolutePosition, profile, currentAnchor)
	if res.Adjustment == AdjustmentVerbatim && (profile != nil || currentAnchor != nil) {
		// Only one half of the anchor pair is available; note the miss.
		res.Downgrade = &Downgrade{
			Wanted: AdjustmentDriftCorrected,
			Reason: calibrationGap(profile, currentAnchor),
		}
	}
	return res, nil
}

// ResolvePath resolves every vertex of a drag gesture, preserving order and
// spacing. Paths follow the same fallback ladder as single points; a path
// is adjusted as a whole, never vertex-by-vertex with mixed fidelity.
func ResolvePath(a script.Action, profile *calibration.Profile, currentAnchor *script.Point) ([]script.Point, Resolution, error) {
	if len(a.RelativePath) > 0 && currentAnchor != nil && profile != nil {
		points := make([]script.Point, len(a.RelativePath))
		for i, off := range a.RelativePath {
			points[i] = currentAnchor.Add(off)
		}
		return points, Resolution{Point: points[0], Adjustment: AdjustmentAnchorRelative}, nil
	}

	if len(a.AbsolutePath) == 0 {
		if len(a.RelativePath) > 0 {
			return nil, Resolution{}, fmt.Errorf("%w: relative path without calibration or absolute fallback", ErrNoCoordinates)
		}
		return nil, Resolution{}, ErrNoCoordinates
	}

	var offset script.Offset
	adjustment := AdjustmentVerbatim
	if profile != nil && currentAnchor != nil {
		offset = script.Offset{DX: currentAnchor.X - profile.Anchor.X, DY: currentAnchor.Y - profile.Anchor.Y}
		adjustment = AdjustmentDriftCorrected
	}
	points := make([]script.Point, len(a.AbsolutePath))
	for i, p := range a.AbsolutePath {
		points[i] = p.Add(offset)
	}

	res := Resolution{Point: points[0], Adjustment: adjustment}
	if len(a.RelativePath) > 0 && adjustment != AdjustmentAnchorRelative {
		res.Downgrade = &Downgrade{
			Wanted: AdjustmentAnchorRelative,
			Reason: calibrationGap(profile, currentAnchor),
		}
	}
	return points, res, nil
}

func resolveAbsolute(pos script.Point, profile *calibration.Profile, currentAnchor *script.Point) Resolution {
	if profile != nil && currentAnchor != nil {
		drift := script.Offset{
			DX: currentAnchor.X - profile.Anchor.X,
			DY: currentAnchor.Y - profile.Anchor.Y,
		}
		return Resolution{Point: pos.Add(drift), Adjustment: AdjustmentDriftCorrected}
	}
	return Resolution{Point: pos, Adjustment: AdjustmentVerbatim}
}

func calibrationGap(profile *calibration.Profile, currentAnchor *script.Point) string {
	switch {
	case profile == nil && currentAnchor == nil:
		return "no calibration profile and no live window anchor"
	case profile == nil:
		return "calibration profile unavailable on this machine"
	default:
		return "live window anchor unavailable"
	}
}
