package engine

import (
	"github.com/yegors/atc-autopilot/internal/geometry"
	"github.com/yegors/atc-autopilot/internal/traffic"
	"github.com/yegors/atc-autopilot/pkg/logger"
)

// sequenceArrivals steers every arriving aircraft with a known position
// through its route legs towards the final intercept.
func (e *Engine) sequenceArrivals(snap *traffic.Snapshot) []Command {
	var cmds []Command
	for _, a := range snap.ByPhase(traffic.PhaseArriving) {
		if !a.HasPosition() {
			continue
		}
		cmds = append(cmds, e.sequence(a)...)
	}
	return cmds
}

func (e *Engine) sequence(a *traffic.Aircraft) []Command {
	var cmds []Command
	cs := a.Callsign
	pos := *a.Position

	stage, tracked := e.state.ArrivalStage[cs]
	if !tracked {
		cmds = append(cmds, e.assignRoute(a)...)
		stage = e.state.ArrivalStage[cs]
	}

	if stage == StageResequencing {
		if geometry.SqrDistance(pos, e.hold) >= e.th.LegProximitySq {
			return append(cmds, e.correctHeading(a, e.hold)...)
		}
		// Back at the re-sequencing fix, start over as a new arrival
		e.logger.Info("Arrival re-entering sequence", logger.String("callsign", cs))
		e.state.forgetArrival(cs)
		cmds = append(cmds, e.assignRoute(a)...)
		stage = e.state.ArrivalStage[cs]
	}

	route := e.state.ArrivalRoute[cs]
	n := len(route.Legs)

	if stage >= n {
		if rwy, ok := e.state.InterceptRunway[cs]; ok {
			cmds = append(cmds, landingCommand(cs, rwy))
		}
		return cmds
	}

	target := route.Legs[stage]
	if geometry.SqrDistance(pos, target) >= e.th.LegProximitySq {
		return append(cmds, e.correctHeading(a, target)...)
	}

	stage++
	e.state.ArrivalStage[cs] = stage
	cmds = append(cmds, altitudeCommand(cs, e.altitudeStep(stage), false, KindAltitude))

	if stage == n {
		e.state.AlternatingSide = e.state.AlternatingSide.Other()
		rwy := e.runway.Name + string(e.state.AlternatingSide)
		e.state.InterceptRunway[cs] = rwy
		e.state.Counters.Intercepts++

		cmds = append(cmds,
			headingCommand(cs, route.InterceptHeading, KindIntercept),
			landingCommand(cs, rwy))
		e.emit(EventIntercept, cs, rwy)

		e.logger.Info("Arrival cleared onto final",
			logger.String("callsign", cs),
			logger.String("runway", rwy),
			logger.String("route", route.Name))
	}

	return cmds
}

// assignRoute classifies a newly observed arrival and records its route and
// starting stage.
func (e *Engine) assignRoute(a *traffic.Aircraft) []Command {
	cs := a.Callsign
	pos := *a.Position

	hemisphere := "south"
	if pos.Y >= e.center.Y {
		hemisphere = "north"
	}
	// Negative along-track means the aircraft is on the approach side of the field
	geometryName := "far"
	if geometry.AlongTrack(e.center, pos, e.runway.Heading) < 0 {
		geometryName = "near"
	}

	route := e.routes[hemisphere+"-"+geometryName]
	e.state.ArrivalRoute[cs] = route

	var cmd Command
	if len(route.Legs) > 1 && e.runway.Corridor.Contains(pos) {
		e.state.ArrivalStage[cs] = 1
		cmd = altitudeCommand(cs, e.th.CorridorEntryAltitude, true, KindEntry)
	} else {
		e.state.ArrivalStage[cs] = 0
		cmd = altitudeCommand(cs, e.th.EntryAltitude, false, KindEntry)
	}

	e.logger.Debug("Arrival sequenced",
		logger.String("callsign", cs),
		logger.String("route", route.Name),
		logger.Int("stage", e.state.ArrivalStage[cs]))

	return []Command{cmd}
}

// correctHeading emits a heading command when the aircraft is more than the
// deadband off the bearing to target.
func (e *Engine) correctHeading(a *traffic.Aircraft, target geometry.Point) []Command {
	required := geometry.Heading(*a.Position, target)
	if geometry.HeadingDelta(*a.Heading, float64(required)) <= e.th.HeadingDeadband {
		return nil
	}
	return []Command{headingCommand(a.Callsign, required, KindHeading)}
}

// altitudeStep returns the altitude issued on reaching a stage
func (e *Engine) altitudeStep(stage int) int {
	steps := e.th.AltitudeSteps
	if stage-1 < len(steps) {
		return steps[stage-1]
	}
	return steps[len(steps)-1]
}

// remainingDistance estimates how far an arrival still has to fly to the
// intercept. Re-sequencing aircraft are charged a fixed penalty.
func (e *Engine) remainingDistance(a *traffic.Aircraft) (float64, bool) {
	stage, ok := e.state.ArrivalStage[a.Callsign]
	if !ok {
		return 0, false
	}
	pos := *a.Position

	if stage == StageResequencing {
		return geometry.Distance(pos, e.hold) + e.th.ResequencePenalty, true
	}

	legs := e.state.ArrivalRoute[a.Callsign].Legs
	if stage >= len(legs) {
		return 0, true
	}

	remaining := geometry.Distance(pos, legs[stage])
	for i := stage; i+1 < len(legs); i++ {
		remaining += geometry.Distance(legs[i], legs[i+1])
	}
	return remaining, true
}
