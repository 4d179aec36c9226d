// Package physics holds the simple flight dynamics used by the traffic
// simulator. Headings are compass degrees, positions are screen units with Y
// growing towards north.
package physics

import (
	"math"

	"github.com/yegors/atc-autopilot/internal/geometry"
)

// Constants
const (
	SecondsPerHour  = 3600.0
	SecondsPerMin   = 60.0
	StandardTurnDeg = 3.0 // Standard rate turn in degrees per second
)

// Vector2D represents a 2D vector
type Vector2D struct {
	X float64 // East component
	Y float64 // North component
}

// HeadingToVector converts a heading (degrees) and magnitude to X/Y components
func HeadingToVector(headingDeg float64, magnitude float64) Vector2D {
	d := geometry.Direction(headingDeg)
	return Vector2D{
		X: magnitude * d.X,
		Y: magnitude * d.Y,
	}
}

// NormalizeHeading wraps a heading into [0, 360)
func NormalizeHeading(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// TurnDirection returns +1 for a right turn and -1 for a left turn, taking the
// shorter way round. Zero means already on target.
func TurnDirection(current, target float64) float64 {
	diff := math.Mod(target-current+540, 360) - 180
	switch {
	case diff > 0:
		return 1
	case diff < 0:
		return -1
	}
	return 0
}

// TurnToward turns current towards target by at most maxStep degrees
func TurnToward(current, target, maxStep float64) float64 {
	if geometry.HeadingDelta(current, target) <= maxStep {
		return NormalizeHeading(target)
	}
	return NormalizeHeading(current + TurnDirection(current, target)*maxStep)
}

// StepToward moves value towards target by at most maxStep
func StepToward(value, target, maxStep float64) float64 {
	if math.Abs(target-value) <= maxStep {
		return target
	}
	if target > value {
		return value + maxStep
	}
	return value - maxStep
}

// DistanceUnits returns how far an aircraft at groundspeed travels in dt
// seconds, in screen units.
func DistanceUnits(groundspeedKts, dt, unitsPerNM float64) float64 {
	return groundspeedKts / SecondsPerHour * dt * unitsPerNM
}

// Advance dead-reckons a position along a heading
func Advance(p geometry.Point, headingDeg, groundspeedKts, dt, unitsPerNM float64) geometry.Point {
	v := HeadingToVector(headingDeg, DistanceUnits(groundspeedKts, dt, unitsPerNM))
	return geometry.Point{X: p.X + v.X, Y: p.Y + v.Y}
}

// ClimbStep returns the altitude change in feet for dt seconds at rateFpm
func ClimbStep(rateFpm, dt float64) float64 {
	return rateFpm * dt / SecondsPerMin
}
