// Package images - Image decoding and bounding-box utilities.
package images

import "github.com/chewxy/math32"

// Rect is a lightweight bounding box in absolute pixel coordinates.
type Rect struct {
	// X1,Y1 is the top-left corner, X2,Y2 the bottom-right corner.
	X1, Y1, X2, Y2 float32
}

// Width returns the width of the rectangle.
func (r Rect) Width() float32 {
	return r.X2 - r.X1
}

// Height returns the height of the rectangle.
func (r Rect) Height() float32 {
	return r.Y2 - r.Y1
}

// Area returns the area of the rectangle. Degenerate rectangles with a
// non-positive extent have zero area.
func (r Rect) Area() float32 {
	w := r.Width()
	h := r.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// CalculateIoU computes the Intersection over Union of two rectangles.
//
// IoU is the ratio of the overlapping area of the two boxes to the area
// they cover combined:
//
//	IoU = Area of Intersection / Area of Union
//
//	- 1.0 means the rectangles are identical.
//	- 0.0 means the rectangles do not overlap at all.
//
// The intersection extents are clamped at zero so that disjoint boxes
// never contribute a negative area.
//
// Arguments:
//   - r: The first rectangle.
//   - o: The second rectangle.
//
// Returns:
//   - The IoU value between 0 and 1.
func CalculateIoU(r, o Rect) float32 {
	// The intersection's top-left corner is the maximum of the two
	// starting corners, its bottom-right the minimum of the two ending
	// corners.
	ix1 := math32.Max(r.X1, o.X1)
	iy1 := math32.Max(r.Y1, o.Y1)
	ix2 := math32.Min(r.X2, o.X2)
	iy2 := math32.Min(r.Y2, o.Y2)

	interW := math32.Max(0, ix2-ix1)
	interH := math32.Max(0, iy2-iy1)
	interArea := interW * interH
	if interArea <= 0 {
		return 0
	}

	// Inclusion-exclusion: Union(A, B) = Area(A) + Area(B) - Intersection(A, B).
	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0
	}

	return interArea / unionArea
}
