// Package geometry holds the flat-plane math used by the decision engine.
//
// Coordinates are screen/world units with Y growing towards north. Bearings are
// degrees clockwise from north, so a bearing of 90 points along +X.
package geometry

import "math"

// parallelEpsilon is the determinant magnitude below which two bearings are
// treated as parallel.
const parallelEpsilon = 1e-9

// Point is a position in screen/world units
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Heading returns the bearing from one point to another, rounded to the
// nearest whole degree in [0, 360).
func Heading(from, to Point) int {
	deg := math.Atan2(to.X-from.X, to.Y-from.Y) * 180 / math.Pi
	h := int(math.Round(deg))
	return NormalizeHeading(h)
}

// NormalizeHeading wraps a heading into [0, 360)
func NormalizeHeading(h int) int {
	h %= 360
	if h < 0 {
		h += 360
	}
	return h
}

// SqrDistance returns the squared Euclidean distance between two points
func SqrDistance(a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return dx*dx + dy*dy
}

// Distance returns the Euclidean distance between two points
func Distance(a, b Point) float64 {
	return math.Sqrt(SqrDistance(a, b))
}

// HeadingDelta returns the circular absolute difference between two headings
// in [0, 180].
func HeadingDelta(h1, h2 float64) float64 {
	return math.Abs(math.Mod(math.Mod(h2-h1+540, 360)+360, 360) - 180)
}

// Direction returns the unit vector for a bearing
func Direction(bearing float64) Point {
	rad := bearing * math.Pi / 180
	return Point{X: math.Sin(rad), Y: math.Cos(rad)}
}

// AlongTrack projects p onto the bearing through origin. Larger values are
// further along the bearing.
func AlongTrack(origin, p Point, bearing float64) float64 {
	d := Direction(bearing)
	return (p.X-origin.X)*d.X + (p.Y-origin.Y)*d.Y
}

// RayIntersection returns the point where two rays, each given by an origin
// and a bearing, cross. ok is false when the bearings are parallel or when the
// crossing lies behind either origin.
func RayIntersection(p1 Point, b1 float64, p2 Point, b2 float64) (Point, bool) {
	d1 := Direction(b1)
	d2 := Direction(b2)

	// p1 + t1*d1 = p2 + t2*d2
	det := d1.X*(-d2.Y) - d1.Y*(-d2.X)
	if math.Abs(det) < parallelEpsilon {
		return Point{}, false
	}

	rx := p2.X - p1.X
	ry := p2.Y - p1.Y
	t1 := (rx*(-d2.Y) - ry*(-d2.X)) / det
	t2 := (d1.X*ry - d1.Y*rx) / det

	if t1 < 0 || t2 < 0 {
		return Point{}, false
	}

	return Point{X: p1.X + t1*d1.X, Y: p1.Y + t1*d1.Y}, true
}

// Rect is an axis-aligned box
type Rect struct {
	MinX float64 `json:"min_x" yaml:"min_x"`
	MaxX float64 `json:"max_x" yaml:"max_x"`
	MinY float64 `json:"min_y" yaml:"min_y"`
	MaxY float64 `json:"max_y" yaml:"max_y"`
}

// Contains reports whether p lies inside the box, edges included
func (r Rect) Contains(p Point) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}
