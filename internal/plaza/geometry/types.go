// Package geometry holds the plan-local geometry of parking spaces and the
// codec that persists it as polygon text.
package geometry

import "math"

// ============================================================
// Primitives
// ============================================================

// Point is a position in plan-local (world) or screen coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns the sum of two points.
func (p Point) Add(other Point) Point {
	return Point{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the difference of two points.
func (p Point) Sub(other Point) Point {
	return Point{X: p.X - other.X, Y: p.Y - other.Y}
}

// Rect is an axis-aligned rectangle in integer plan-local units.
// Zones are always rectangles; polygons collapse to their bounding box.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// MinSize is the smallest width or height a persisted zone may have.
const MinSize = 1

// Valid reports whether the rectangle satisfies the minimum zone size.
func (r Rect) Valid() bool {
	return r.Width >= MinSize && r.Height >= MinSize
}

// Max returns the maximum corner.
func (r Rect) Max() (int, int) {
	return r.X + r.Width, r.Y + r.Height
}

// Contains reports whether p lies inside the rectangle, edges included.
func (r Rect) Contains(p Point) bool {
	x2, y2 := r.Max()
	return p.X >= float64(r.X) && p.X <= float64(x2) &&
		p.Y >= float64(r.Y) && p.Y <= float64(y2)
}

// Moved returns the rectangle with its top-left corner at (x, y).
func (r Rect) Moved(x, y int) Rect {
	return Rect{X: x, Y: y, Width: r.Width, Height: r.Height}
}

// RectFromPoints builds the rectangle spanned by two authoring points.
// Both corners snap to the integer grid before the size is taken.
func RectFromPoints(a, b Point) Rect {
	x1 := int(math.Round(math.Min(a.X, b.X)))
	y1 := int(math.Round(math.Min(a.Y, b.Y)))
	x2 := int(math.Round(math.Max(a.X, b.X)))
	y2 := int(math.Round(math.Max(a.Y, b.Y)))
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// BoundingBox computes the integer bounding box of a set of points.
func BoundingBox(points []Point) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
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
	return RectFromPoints(Point{X: minX, Y: minY}, Point{X: maxX, Y: maxY})
}
