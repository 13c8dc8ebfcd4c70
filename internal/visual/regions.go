package visual

import "image"

// Clustering parameters: mismatched pixels are bucketed into a coarse grid,
// grid cells are joined with 8-neighborhood connectivity, and each component
// becomes one bounding box refined back to true pixel extents.
const (
	clusterCell    = 12
	clusterMinArea = 60
	clusterPad     = 3
)

// Regions returns one padded bounding box per contiguous mismatch cluster,
// dropping boxes smaller than the minimum area.
func (d *Diff) Regions() []image.Rectangle {
	if d.mismatched == 0 {
		return nil
	}

	cellsW := (d.width + clusterCell - 1) / clusterCell
	cellsH := (d.height + clusterCell - 1) / clusterCell
	occupied := make([]bool, cellsW*cellsH)
	for y := 0; y < d.height; y++ {
		for x := 0; x < d.width; x++ {
			if d.mask[y*d.width+x] {
				occupied[(y/clusterCell)*cellsW+x/clusterCell] = true
			}
		}
	}

	visited := make([]bool, cellsW*cellsH)
	var boxes []image.Rectangle

	for start := range occupied {
		if !occupied[start] || visited[start] {
			continue
		}

		// BFS over the coarse grid.
		queue := []int{start}
		visited[start] = true
		minCX, minCY := start%cellsW, start/cellsW
		maxCX, maxCY := minCX, minCY
		for len(queue) > 0 {
			cell := queue[0]
			queue = queue[1:]
			cx, cy := cell%cellsW, cell/cellsW
			if cx < minCX {
				minCX = cx
			}
			if cx > maxCX {
				maxCX = cx
			}
			if cy < minCY {
				minCY = cy
			}
			if cy > maxCY {
				maxCY = cy
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx, ny := cx+dx, cy+dy
					if nx < 0 || ny < 0 || nx >= cellsW || ny >= cellsH {
						continue
					}
					n := ny*cellsW + nx
					if occupied[n] && !visited[n] {
						visited[n] = true
						queue = append(queue, n)
					}
				}
			}
		}

		box := d.refine(image.Rect(
			minCX*clusterCell,
			minCY*clusterCell,
			min((maxCX+1)*clusterCell, d.width),
			min((maxCY+1)*clusterCell, d.height),
		))
		box = pad(box, clusterPad, d.width, d.height)
		if box.Dx()*box.Dy() >= clusterMinArea {
			boxes = append(boxes, box)
		}
	}

	return boxes
}

// LargestRegion returns the mismatch cluster with the biggest area.
func (d *Diff) LargestRegion() (image.Rectangle, bool) {
	var best image.Rectangle
	found := false
	for _, box := range d.Regions() {
		if !found || box.Dx()*box.Dy() > best.Dx()*best.Dy() {
			best = box
			found = true
		}
	}
	return best, found
}

// refine shrinks a coarse box to the true extents of mismatched pixels
// inside it.
func (d *Diff) refine(coarse image.Rectangle) image.Rectangle {
	minX, minY := coarse.Max.X, coarse.Max.Y
	maxX, maxY := coarse.Min.X-1, coarse.Min.Y-1
	for y := coarse.Min.Y; y < coarse.Max.Y; y++ {
		for x := coarse.Min.X; x < coarse.Max.X; x++ {
			if !d.mask[y*d.width+x] {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < minX {
		return coarse
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

func pad(r image.Rectangle, by, width, height int) image.Rectangle {
	return image.Rect(
		max(0, r.Min.X-by),
		max(0, r.Min.Y-by),
		min(width, r.Max.X+by),
		min(height, r.Max.Y+by),
	)
}
