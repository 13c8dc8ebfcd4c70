package visual

import "image"

// SSIM constants for 8-bit dynamic range, following the standard
// formulation: C1=(K1*L)^2, C2=(K2*L)^2 with K1=0.01, K2=0.03, L=255.
const (
	ssimC1 = 6.5025
	ssimC2 = 58.5225

	// ssimWindow is the side of the square sliding window.
	ssimWindow = 7
)

// grayscale converts an image to float64 luma values in row-major order.
func grayscale(src image.Image) []float64 {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			// ITU-R BT.601 luma on 8-bit channels.
			out[y*w+x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
		}
	}
	return out
}

// ssim computes the mean structural similarity index over uniform square
// windows, using summed-area tables so each window is O(1). The score is
// in [0,1] for ordinary screenshots, 1 meaning structurally identical.
func ssim(a, b []float64, width, height int) float64 {
	win := ssimWindow
	if width < win || height < win {
		// Tiny images: single global window.
		win = min(width, height)
		if win == 0 {
			return 1
		}
	}

	sumA := integral(a, width, height)
	sumB := integral(b, width, height)
	sumA2 := integralSq(a, a, width, height)
	sumB2 := integralSq(b, b, width, height)
	sumAB := integralSq(a, b, width, height)

	n := float64(win * win)
	var total float64
	var windows int

	for y := 0; y+win <= height; y++ {
		for x := 0; x+win <= width; x++ {
			sa := boxSum(sumA, width, x, y, win)
			sb := boxSum(sumB, width, x, y, win)
			sa2 := boxSum(sumA2, width, x, y, win)
			sb2 := boxSum(sumB2, width, x, y, win)
			sab := boxSum(sumAB, width, x, y, win)

			muA := sa / n
			muB := sb / n
			varA := sa2/n - muA*muA
			varB := sb2/n - muB*muB
			covAB := sab/n - muA*muB

			num := (2*muA*muB + ssimC1) * (2*covAB + ssimC2)
			den := (muA*muA + muB*muB + ssimC1) * (varA + varB + ssimC2)
			total += num / den
			windows++
		}
	}

	if windows == 0 {
		return 1
	}
	return total / float64(windows)
}

// integral builds a summed-area table with a zero top row and left column,
// so table[(y+1)*(w+1)+(x+1)] holds the sum of the rectangle [0,0]..[x,y].
func integral(v []float64, w, h int) []float64 {
	table := make([]float64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var rowSum float64
		for x := 0; x < w; x++ {
			rowSum += v[y*w+x]
			table[(y+1)*(w+1)+(x+1)] = table[y*(w+1)+(x+1)] + rowSum
		}
	}
	return table
}

func integralSq(a, b []float64, w, h int) []float64 {
	table := make([]float64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var rowSum float64
		for x := 0; x < w; x++ {
			rowSum += a[y*w+x] * b[y*w+x]
			table[(y+1)*(w+1)+(x+1)] = table[y*(w+1)+(x+1)] + rowSum
		}
	}
	return table
}

func boxSum(table []float64, w, x, y, size int) float64 {
	stride := w + 1
	x1, y1 := x+size, y+size
	return table[y1*stride+x1] - table[y*stride+x1] - table[y1*stride+x] + table[y*stride+x]
}
