// Package ocrlayer models recognized text regions and the geometric
// operations the page-fitting pipeline performs on them.
//
// A TextRegion is one recognized word or fragment: a quadrilateral in image
// pixel coordinates (top-left origin), the recognized text, and the engine's
// confidence. Regions are independent of each other; the package keeps them
// in source order throughout so output is deterministic.
//
// Coordinates are always relative to the bitmap the region was detected on.
// Whenever that bitmap is resized, the regions must be re-projected with
// ProjectRegions before being used again.
package ocrlayer

// Point is a position in image pixel coordinates, top-left origin.
type Point struct {
	X float64
	Y float64
}

// TextRegion is a single recognized text fragment with its position.
// The quadrilateral is ordered top-left, top-right, bottom-right,
// bottom-left and need not be axis-aligned.
type TextRegion struct {
	Quad       [4]Point // polygon corners in pixel coordinates
	Text       string   // recognized text content
	Confidence float64  // recognition confidence in [0,1]
}

// NewRegionFromBBox builds an axis-aligned TextRegion from bounding box
// corners, the common case for hOCR word boxes.
func NewRegionFromBBox(x1, y1, x2, y2 float64, text string, confidence float64) TextRegion {
	return TextRegion{
		Quad: [4]Point{
			{X: x1, Y: y1},
			{X: x2, Y: y1},
			{X: x2, Y: y2},
			{X: x1, Y: y2},
		},
		Text:       text,
		Confidence: confidence,
	}
}

// BBox returns the axis-aligned bounding box of the quadrilateral.
func (r TextRegion) BBox() (minX, minY, maxX, maxY float64) {
	minX, minY = r.Quad[0].X, r.Quad[0].Y
	maxX, maxY = minX, minY
	for _, p := range r.Quad[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return minX, minY, maxX, maxY
}

// TopLeft returns the upper-left corner of the region's bounding box.
func (r TextRegion) TopLeft() Point {
	minX, minY, _, _ := r.BBox()
	return Point{X: minX, Y: minY}
}

// Width returns the width of the region's bounding box.
func (r TextRegion) Width() float64 {
	minX, _, maxX, _ := r.BBox()
	return maxX - minX
}

// Height returns the height of the region's bounding box.
func (r TextRegion) Height() float64 {
	_, minY, _, maxY := r.BBox()
	return maxY - minY
}
