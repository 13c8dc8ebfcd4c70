package visual

import (
	"image"
	"image/color"
	"image/draw"
)

// Diff holds the per-pixel comparison state and derives artifact images
// from it on demand.
type Diff struct {
	baseline image.Image
	width    int
	height   int

	// mask[y*width+x] is true where the pixel mismatch exceeded the
	// noise threshold; delta holds the max per-channel difference.
	mask  []bool
	delta []uint8

	mismatched int
	total      int
}

// Percent returns the mismatched pixel share in [0,100].
func (d *Diff) Percent() float64 {
	if d.total == 0 {
		return 0
	}
	return float64(d.mismatched) / float64(d.total) * 100
}

func computeDiff(baseline, candidate image.Image) *Diff {
	b := toRGBA(baseline)
	c := toRGBA(candidate)
	w := b.Bounds().Dx()
	h := b.Bounds().Dy()

	d := &Diff{
		baseline: b,
		width:    w,
		height:   h,
		mask:     make([]bool, w*h),
		delta:    make([]uint8, w*h),
		total:    w * h,
	}

	for y := 0; y < h; y++ {
		bRow := b.Pix[y*b.Stride : y*b.Stride+w*4]
		cRow := c.Pix[y*c.Stride : y*c.Stride+w*4]
		for x := 0; x < w; x++ {
			var max uint8
			exceeded := false
			for ch := 0; ch < 4; ch++ {
				bv := bRow[x*4+ch]
				cv := cRow[x*4+ch]
				diff := bv - cv
				if cv > bv {
					diff = cv - bv
				}
				if ch < 3 && diff > max {
					// Alpha is compared for the verdict but
					// excluded from the grayscale mask.
					max = diff
				}
				if diff > noiseThreshold {
					exceeded = true
				}
			}
			idx := y*w + x
			d.delta[idx] = max
			if exceeded {
				d.mask[idx] = true
				d.mismatched++
			}
		}
	}

	return d
}

// MaskImage renders the difference as a grayscale image, normalized so the
// largest delta maps to white.
func (d *Diff) MaskImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, d.width, d.height))
	var peak uint8
	for _, v := range d.delta {
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		return img
	}
	for i, v := range d.delta {
		img.Pix[i] = uint8(int(v) * 255 / int(peak))
	}
	return img
}

// HighlightImage composites a semi-transparent red wash over mismatched
// pixels of the baseline and outlines each mismatch region with a 3px red
// box.
func (d *Diff) HighlightImage() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, d.width, d.height))
	draw.Draw(out, out.Bounds(), d.baseline, d.baseline.Bounds().Min, draw.Src)

	if d.mismatched == 0 {
		return out
	}

	const washAlpha = 96
	for y := 0; y < d.height; y++ {
		for x := 0; x < d.width; x++ {
			if !d.mask[y*d.width+x] {
				continue
			}
			i := out.PixOffset(x, y)
			r := int(out.Pix[i])
			out.Pix[i] = uint8((r*(255-washAlpha) + 255*washAlpha) / 255)
			out.Pix[i+1] = uint8(int(out.Pix[i+1]) * (255 - washAlpha) / 255)
			out.Pix[i+2] = uint8(int(out.Pix[i+2]) * (255 - washAlpha) / 255)
		}
	}

	red := color.RGBA{R: 255, A: 255}
	for _, box := range d.Regions() {
		drawBox(out, box, red, 3)
	}
	return out
}

// EvidenceImage crops the baseline-sized composite around the largest
// contiguous mismatch region. Returns nil when nothing mismatched.
func (d *Diff) EvidenceImage() *image.RGBA {
	largest, ok := d.LargestRegion()
	if !ok {
		return nil
	}
	src := d.HighlightImage()
	crop := image.NewRGBA(image.Rect(0, 0, largest.Dx(), largest.Dy()))
	draw.Draw(crop, crop.Bounds(), src, largest.Min, draw.Src)
	return crop
}

func drawBox(img *image.RGBA, box image.Rectangle, c color.RGBA, thickness int) {
	for t := 0; t < thickness; t++ {
		top := box.Min.Y + t
		bottom := box.Max.Y - 1 - t
		left := box.Min.X + t
		right := box.Max.X - 1 - t
		if top > bottom || left > right {
			return
		}
		for x := box.Min.X; x < box.Max.X; x++ {
			img.SetRGBA(x, top, c)
			img.SetRGBA(x, bottom, c)
		}
		for y := box.Min.Y; y < box.Max.Y; y++ {
			img.SetRGBA(left, y, c)
			img.SetRGBA(right, y, c)
		}
	}
}

func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), src, b.Min, draw.Src)
	return out
}
