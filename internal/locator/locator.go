// Package locator resolves an action to an executable target through a
// strict three-tier fallback: semantic manifest lookup, direct
// accessibility-tree search, then a calibrated screen coordinate.
package locator

import (
	"context"
	"fmt"
	"time"

	"uireplay/internal/calibration"
	"uireplay/internal/manifest"
	"uireplay/internal/resolve"
	"uireplay/internal/script"
	"uireplay/internal/session"
)

// Mode names the resolution tier that produced a target.
type Mode string

const (
	ModeSemantic   Mode = "semantic"
	ModeSearch     Mode = "accessibility-search"
	ModeCoordinate Mode = "coordinate"
)

// Target is a tagged variant: a live control handle for the semantic and
// search tiers, or a bare screen point for the coordinate tier. The
// coordinate tier is never validated against the live UI; a wrong point is
// only caught by later checkpoints.
type Target struct {
	Mode    Mode
	Control session.Control
	Point   script.Point
	// Resolution carries coordinate fidelity detail for the coordinate
	// tier (calibration adjustment applied, downgrade signal).
	Resolution resolve.Resolution
	// Misses records why earlier tiers fell through, for audit logging.
	Misses []TierMiss
}

// TierMiss records one higher-fidelity tier that was tried and failed.
type TierMiss struct {
	Mode   Mode
	Reason string
}

// Options bound the semantic tier's waiting behavior.
type Options struct {
	SemanticWaitTimeout  time.Duration
	SemanticPollInterval time.Duration
}

// Locate resolves an action to a target. Tiers are tried strictly in
// order and the first success wins; a later tier is never consulted once an
// earlier one succeeds. Only a session fault is returned as an error:
// ordinary misses fall through, and the coordinate tier always succeeds for
// any action that satisfies the action-model invariants.
func Locate(ctx context.Context, a script.Action, man *manifest.Manifest, sess session.Session,
	profile *calibration.Profile, currentAnchor *script.Point, opts Options) (Target, error) {

	var misses []TierMiss

	if ref := a.ControlRef; ref != nil && sess != nil {
		q := session.Query{Identifier: ref.ID, ControlType: ref.ControlType}

		// Semantic tier: only identifiers in the manifest's resolvable
		// set qualify; generic container ids are treated as absent.
		if man != nil && man.Contains(ref.ID) {
			ctl, err := sess.WaitControl(ctx, q, opts.SemanticWaitTimeout, opts.SemanticPollInterval)
			if err == nil {
				return Target{Mode: ModeSemantic, Control: ctl, Misses: misses}, nil
			}
			if session.IsFault(err) {
				return Target{}, fmt.Errorf("semantic lookup %s: %w", ref.ID, err)
			}
			misses = append(misses, TierMiss{Mode: ModeSemantic, Reason: err.Error()})
		} else {
			misses = append(misses, TierMiss{Mode: ModeSemantic, Reason: manifestMissReason(man, ref.ID)})
		}

		// Search tier: same identifier, from the desktop root.
		if !isGeneric(man, ref.ID) {
			ctl, err := sess.SearchControl(ctx, q)
			if err == nil {
				return Target{Mode: ModeSearch, Control: ctl, Misses: misses}, nil
			}
			if session.IsFault(err) {
				return Target{}, fmt.Errorf("accessibility search %s: %w", ref.ID, err)
			}
			misses = append(misses, TierMiss{Mode: ModeSearch, Reason: err.Error()})
		}
	}

	// Coordinate tier: always succeeds, never validated on screen.
	res, err := resolve.Resolve(a, profile, currentAnchor)
	if err != nil {
		return Target{}, fmt.Errorf("coordinate tier: %w", err)
	}
	return Target{
		Mode:       ModeCoordinate,
		Point:      res.Point,
		Resolution: res,
		Misses:     misses,
	}, nil
}

func manifestMissReason(man *manifest.Manifest, id string) string {
	if man == nil {
		return "no manifest loaded"
	}
	if man.IsGeneric(id) {
		return fmt.Sprintf("identifier %q is generic", id)
	}
	return fmt.Sprintf("identifier %q not in manifest", id)
}

func isGeneric(man *manifest.Manifest, id string) bool {
	if man != nil {
		return man.IsGeneric(id)
	}
	// Without a manifest, fall back to the default generic set so bare
	// window ids still never drive a tree search.
	return manifest.New(nil).IsGeneric(id)
}
