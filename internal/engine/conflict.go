package engine

import (
	"math"

	"github.com/yegors/atc-autopilot/internal/geometry"
	"github.com/yegors/atc-autopilot/internal/traffic"
	"github.com/yegors/atc-autopilot/pkg/logger"
)

// detectConvergence finds arrival/departure pairs whose flight paths cross
// at about the same time. The aircraft further in time from the crossing is
// returned as ineligible for a speed increase this cycle.
func (e *Engine) detectConvergence(snap *traffic.Snapshot) map[string]bool {
	ineligible := make(map[string]bool)
	maxSq := e.th.ConvergenceMaxDistance * e.th.ConvergenceMaxDistance

	departures := snap.ByPhase(traffic.PhaseDeparting)
	for _, arr := range snap.ByPhase(traffic.PhaseArriving) {
		if !arr.HasTelemetry() {
			continue
		}
		for _, dep := range departures {
			if !dep.HasTelemetry() {
				continue
			}
			if geometry.SqrDistance(*arr.Position, *dep.Position) > maxSq {
				continue
			}
			if math.Abs(*arr.Altitude-*dep.Altitude) > e.th.ConvergenceAltitudeBandFt {
				continue
			}

			dest, ok := e.lookupWaypoint(dep.Destination)
			if !ok {
				continue
			}
			depBearing := float64(geometry.Heading(*dep.Position, dest))

			crossing, ok := geometry.RayIntersection(*arr.Position, *arr.Heading, *dep.Position, depBearing)
			if !ok {
				continue
			}

			tArr, okArr := e.timeTo(arr, crossing)
			tDep, okDep := e.timeTo(dep, crossing)
			if !okArr || !okDep {
				continue
			}
			if math.Abs(tArr-tDep) > e.th.ConvergenceTimeTolerance {
				continue
			}

			// Ties go against the arrival, which has more room to slow down
			yielding := arr.Callsign
			if tDep > tArr {
				yielding = dep.Callsign
			}
			ineligible[yielding] = true

			e.logger.Debug("Converging paths",
				logger.String("arrival", arr.Callsign),
				logger.String("departure", dep.Callsign),
				logger.Float64("arrival_time_s", tArr),
				logger.Float64("departure_time_s", tDep),
				logger.String("yielding", yielding))
		}
	}

	return ineligible
}

// timeTo estimates the seconds an aircraft needs to reach a point at its
// current groundspeed.
func (e *Engine) timeTo(a *traffic.Aircraft, p geometry.Point) (float64, bool) {
	if *a.Groundspeed <= 0 {
		return 0, false
	}
	nm := geometry.Distance(*a.Position, p) / e.th.UnitsPerNM
	return nm / *a.Groundspeed * 3600, true
}

// detectApproachConflicts sends the trailing aircraft of any too-close pair
// on the same runway around.
func (e *Engine) detectApproachConflicts(snap *traffic.Snapshot) []Command {
	var candidates []*traffic.Aircraft
	for _, a := range snap.ByPhase(traffic.PhaseOnApproach) {
		if !a.HasPosition() || a.Altitude == nil || a.Runway == "" {
			continue
		}
		if *a.Altitude <= e.th.GroundFloorFt {
			continue
		}
		// Already going around
		if stage, ok := e.state.ArrivalStage[a.Callsign]; ok && stage == StageResequencing {
			continue
		}
		candidates = append(candidates, a)
	}

	sentAround := make(map[string]bool)
	var trailing []*traffic.Aircraft
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			a, b := candidates[i], candidates[j]
			if a.Runway != b.Runway {
				continue
			}
			if geometry.SqrDistance(*a.Position, *b.Position) >= e.th.GoAroundDistanceSq {
				continue
			}
			t := e.trailingOf(a, b)
			if !sentAround[t.Callsign] {
				sentAround[t.Callsign] = true
				trailing = append(trailing, t)
			}
		}
	}

	var cmds []Command
	for _, a := range trailing {
		heading := geometry.Heading(*a.Position, e.hold)
		cmds = append(cmds, goAroundCommand(a.Callsign, e.th.GoAroundAltitude, heading))

		e.state.ArrivalStage[a.Callsign] = StageResequencing
		delete(e.state.InterceptRunway, a.Callsign)
		delete(e.state.ApproachSlowed, a.Callsign)
		e.state.Counters.GoArounds++
		e.emit(EventGoAround, a.Callsign, a.Runway)

		e.logger.Info("Go-around ordered",
			logger.String("callsign", a.Callsign),
			logger.String("runway", a.Runway),
			logger.Int("heading", heading))
	}
	return cmds
}

// trailingOf returns the aircraft further back along the landing direction.
// Equal along-track positions fall back to the higher aircraft.
func (e *Engine) trailingOf(a, b *traffic.Aircraft) *traffic.Aircraft {
	alongA := geometry.AlongTrack(e.center, *a.Position, e.runway.Heading)
	alongB := geometry.AlongTrack(e.center, *b.Position, e.runway.Heading)

	const epsilon = 1e-6
	switch {
	case alongA < alongB-epsilon:
		return a
	case alongB < alongA-epsilon:
		return b
	case *a.Altitude > *b.Altitude:
		return a
	case *b.Altitude > *a.Altitude:
		return b
	case a.Callsign > b.Callsign:
		return a
	default:
		return b
	}
}
