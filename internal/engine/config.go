package engine

import (
	"fmt"

	"github.com/yegors/atc-autopilot/internal/traffic"
)

// Config contains the engine settings
type Config struct {
	LandingRunway string       // active landing runway, e.g. "27"
	InitialSide   traffic.Side // side handed out before the first flip
	Thresholds    Thresholds
}

// Thresholds holds every tunable constant used by the decision rules.
// Distances are screen units, altitudes feet unless noted, speeds knots.
type Thresholds struct {
	// Arrival sequencing
	LegProximitySq        float64 // squared distance at which a leg target counts as reached
	HeadingDeadband       float64 // degrees of heading error tolerated before a correction
	EntryAltitude         int     // thousands of feet, issued on first observation
	CorridorEntryAltitude int     // thousands of feet, issued when first seen inside the corridor
	AltitudeSteps         []int   // thousands of feet, index k-1 issued on reaching stage k
	ResequencePenalty     float64 // extra remaining distance charged to re-sequencing aircraft

	// Separation
	SeparationBase     float64 // minimum separation for aligned tracks
	SeparationScale    float64 // extra separation per degree of heading divergence
	ArrivalHighSpeed   int
	ArrivalHoldSpeed   int
	DepartureHighSpeed int
	DepartureHoldSpeed int
	HighSpeedMargin    float64 // knots above holding speed still considered fast

	// Final approach
	ApproachSpeed              int
	ApproachSpeedMinAltitudeFt float64

	// Runway occupancy
	DepartureClearAltitudeFt float64 // departures below this still occupy the runways
	DepartureClearSpeedKts   float64 // and also below this speed, when known
	ApproachBlockAltitudeFt  float64 // approaching aircraft below this block their side
	ApproachBlockDistance    float64 // approaching aircraft closer than this to the threshold block their side
	TakeoffClimbAltitude     int     // thousands of feet, part of the takeoff clearance

	// Go-around
	GroundFloorFt      float64
	GoAroundDistanceSq float64
	GoAroundAltitude   int // thousands of feet

	// Arrival/departure convergence
	ConvergenceMaxDistance    float64
	ConvergenceAltitudeBandFt float64
	ConvergenceTimeTolerance  float64 // seconds
	UnitsPerNM                float64 // screen units per nautical mile
}

// DefaultThresholds returns the thresholds tuned for the stock layout
func DefaultThresholds() Thresholds {
	return Thresholds{
		LegProximitySq:        1000,
		HeadingDeadband:       5,
		EntryAltitude:         7,
		CorridorEntryAltitude: 4,
		AltitudeSteps:         []int{5, 3},
		ResequencePenalty:     1000,

		SeparationBase:     30,
		SeparationScale:    0.5,
		ArrivalHighSpeed:   280,
		ArrivalHoldSpeed:   210,
		DepartureHighSpeed: 320,
		DepartureHoldSpeed: 250,
		HighSpeedMargin:    20,

		ApproachSpeed:              160,
		ApproachSpeedMinAltitudeFt: 1000,

		DepartureClearAltitudeFt: 500,
		DepartureClearSpeedKts:   160,
		ApproachBlockAltitudeFt:  1000,
		ApproachBlockDistance:    40,
		TakeoffClimbAltitude:     11,

		GroundFloorFt:      300,
		GoAroundDistanceSq: 30 * 30,
		GoAroundAltitude:   4,

		ConvergenceMaxDistance:    110,
		ConvergenceAltitudeBandFt: 1000,
		ConvergenceTimeTolerance:  5,
		UnitsPerNM:                10,
	}
}

// Validate checks the engine configuration
func (c Config) Validate() error {
	if c.LandingRunway == "" {
		return fmt.Errorf("landing runway is required")
	}
	if c.InitialSide != traffic.SideLeft && c.InitialSide != traffic.SideRight {
		return fmt.Errorf("invalid initial side: %q (must be L or R)", c.InitialSide)
	}

	t := c.Thresholds
	if t.LegProximitySq <= 0 {
		return fmt.Errorf("leg proximity must be positive: %f", t.LegProximitySq)
	}
	if t.HeadingDeadband < 0 || t.HeadingDeadband >= 180 {
		return fmt.Errorf("heading deadband must be in [0, 180): %f", t.HeadingDeadband)
	}
	if len(t.AltitudeSteps) == 0 {
		return fmt.Errorf("at least one altitude step is required")
	}
	if t.SeparationBase <= 0 || t.SeparationScale < 0 {
		return fmt.Errorf("invalid separation base/scale: %f/%f", t.SeparationBase, t.SeparationScale)
	}
	if t.ArrivalHoldSpeed <= 0 || t.ArrivalHighSpeed <= t.ArrivalHoldSpeed {
		return fmt.Errorf("arrival high speed (%d) must exceed holding speed (%d)", t.ArrivalHighSpeed, t.ArrivalHoldSpeed)
	}
	if t.DepartureHoldSpeed <= 0 || t.DepartureHighSpeed <= t.DepartureHoldSpeed {
		return fmt.Errorf("departure high speed (%d) must exceed holding speed (%d)", t.DepartureHighSpeed, t.DepartureHoldSpeed)
	}
	if t.GoAroundDistanceSq <= 0 {
		return fmt.Errorf("go-around distance must be positive: %f", t.GoAroundDistanceSq)
	}
	if t.UnitsPerNM <= 0 {
		return fmt.Errorf("units per NM must be positive: %f", t.UnitsPerNM)
	}
	return nil
}
