package visual

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

// ArtifactPaths references the diff images written for one checkpoint. The
// Result carries these paths, never the binary content.
type ArtifactPaths struct {
	Baseline  string `json:"baseline,omitempty"`
	Candidate string `json:"candidate,omitempty"`
	Mask      string `json:"mask,omitempty"`
	Highlight string `json:"highlight,omitempty"`
	Evidence  string `json:"evidence,omitempty"`
}

// WriteArtifacts encodes the candidate and diff images under dir using the
// original naming scheme: <stem>T.png (test capture), <stem>D.png
// (difference mask), <stem>H.png (highlight), <stem>E.png (evidence crop).
func (d *Diff) WriteArtifacts(dir, stem string, candidate image.Image) (ArtifactPaths, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ArtifactPaths{}, fmt.Errorf("ensure artifact dir: %w", err)
	}

	paths := ArtifactPaths{}

	candidatePath := filepath.Join(dir, stem+"T.png")
	if err := writePNG(candidatePath, candidate); err != nil {
		return paths, err
	}
	paths.Candidate = candidatePath

	maskPath := filepath.Join(dir, stem+"D.png")
	if err := writePNG(maskPath, d.MaskImage()); err != nil {
		return paths, err
	}
	paths.Mask = maskPath

	highlightPath := filepath.Join(dir, stem+"H.png")
	if err := writePNG(highlightPath, d.HighlightImage()); err != nil {
		return paths, err
	}
	paths.Highlight = highlightPath

	if evidence := d.EvidenceImage(); evidence != nil {
		evidencePath := filepath.Join(dir, stem+"E.png")
		if err := writePNG(evidencePath, evidence); err != nil {
			return paths, err
		}
		paths.Evidence = evidencePath
	}

	return paths, nil
}

// WriteCandidate stores just the captured frame, used when a comparison
// short-circuits before producing a Diff (dimension mismatch).
func WriteCandidate(dir, stem string, candidate image.Image) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure artifact dir: %w", err)
	}
	path := filepath.Join(dir, stem+"T.png")
	if err := writePNG(path, candidate); err != nil {
		return "", err
	}
	return path, nil
}

// LoadBaseline reads a stored baseline image.
func LoadBaseline(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open baseline: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode baseline %s: %w", path, err)
	}
	return img, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
