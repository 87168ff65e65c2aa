package ocrlayer

// ProjectRegions rescales regions detected on a srcW×srcH bitmap onto a
// dstW×dstH bitmap. Each axis is scaled independently, so non-uniform
// resizes stay correct. The input slice is not modified.
func ProjectRegions(regions []TextRegion, srcW, srcH, dstW, dstH float64) []TextRegion {
	sx := dstW / srcW
	sy := dstH / srcH

	projected := make([]TextRegion, len(regions))
	for i, r := range regions {
		p := r
		for j, pt := range r.Quad {
			p.Quad[j] = Point{X: pt.X * sx, Y: pt.Y * sy}
		}
		projected[i] = p
	}
	return projected
}
