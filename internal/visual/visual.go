// Package visual decides pass/fail for screenshot checkpoints. It offers a
// pixel-delta comparison and an opt-in structural-similarity comparison,
// and produces the diff artifacts (mask, highlight overlay, evidence crop)
// used by failure reporting.
package visual

import (
	"errors"
	"fmt"
	"image"
)

// noiseThreshold is the fixed per-channel delta a pixel must exceed to
// count as mismatched. Zero means any channel difference counts.
const noiseThreshold = 0

// ErrStructuralUnavailable is returned when structural similarity is
// requested but the engine was built without the capability. Silent
// degradation to pixel mode would mask the operator's intent, so this is a
// hard configuration error.
var ErrStructuralUnavailable = errors.New("structural similarity comparison not available")

// Options configure one comparison.
type Options struct {
	// TolerancePercent is the inclusive upper bound on the mismatched
	// pixel percentage for pixel mode. Zero demands identical images.
	TolerancePercent float64
	// UseStructuralSimilarity switches the verdict to the SSIM score.
	UseStructuralSimilarity bool
	// SimilarityThreshold is the inclusive lower bound on the SSIM score.
	// 1.0 demands a perfect structural match.
	SimilarityThreshold float64
}

// Verdict is the outcome of one comparison.
type Verdict struct {
	Passed            bool
	DimensionMismatch bool
	DiffPercent       float64
	MismatchedPixels  int
	TotalPixels       int
	// SSIMScore is only meaningful when structural similarity ran;
	// it is -1 otherwise.
	SSIMScore  float64
	Diagnostic string
}

// Engine performs comparisons. The structural-similarity capability is
// resolved once at construction, not probed per call.
type Engine struct {
	ssimAvailable bool
}

// NewEngine returns an engine with the native structural-similarity
// implementation enabled.
func NewEngine() *Engine {
	return &Engine{ssimAvailable: true}
}

// StructuralSimilarityAvailable reports the capability resolved at startup.
func (e *Engine) StructuralSimilarityAvailable() bool {
	return e.ssimAvailable
}

// Compare evaluates candidate against baseline. The returned Diff carries
// artifact images for failure reporting; it is nil when the dimensions
// mismatch, since no pixel comparison is attempted in that case.
func (e *Engine) Compare(baseline, candidate image.Image, opts Options) (Verdict, *Diff, error) {
	if opts.UseStructuralSimilarity && !e.ssimAvailable {
		return Verdict{}, nil, ErrStructuralUnavailable
	}

	bb := baseline.Bounds()
	cb := candidate.Bounds()
	if bb.Dx() != cb.Dx() || bb.Dy() != cb.Dy() {
		// Usually a resolution/DPI configuration error, not a real
		// regression; report it distinctly and skip pixel work.
		return Verdict{
			Passed:            false,
			DimensionMismatch: true,
			SSIMScore:         -1,
			Diagnostic: fmt.Sprintf("dimension mismatch: baseline %dx%d vs candidate %dx%d",
				bb.Dx(), bb.Dy(), cb.Dx(), cb.Dy()),
		}, nil, nil
	}

	diff := computeDiff(baseline, candidate)
	verdict := Verdict{
		DiffPercent:      diff.Percent(),
		MismatchedPixels: diff.mismatched,
		TotalPixels:      diff.total,
		SSIMScore:        -1,
	}

	if opts.UseStructuralSimilarity {
		score := ssim(grayscale(baseline), grayscale(candidate), bb.Dx(), bb.Dy())
		verdict.SSIMScore = score
		verdict.Passed = score >= opts.SimilarityThreshold
		if !verdict.Passed {
			verdict.Diagnostic = fmt.Sprintf("structural similarity %.4f below threshold %.4f",
				score, opts.SimilarityThreshold)
		}
	} else {
		verdict.Passed = verdict.DiffPercent <= opts.TolerancePercent
		if !verdict.Passed {
			verdict.Diagnostic = fmt.Sprintf("%.3f%% of pixels differ (tolerance %.3f%%)",
				verdict.DiffPercent, opts.TolerancePercent)
		}
	}

	return verdict, diff, nil
}
