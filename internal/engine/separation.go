package engine

import (
	"github.com/yegors/atc-autopilot/internal/geometry"
	"github.com/yegors/atc-autopilot/internal/traffic"
)

// speedCandidate is an aircraft taking part in the separation check.
// Lower progress means closer to its goal.
type speedCandidate struct {
	aircraft *traffic.Aircraft
	progress float64
}

type speedSettings struct {
	high, hold int
}

// controlSpeeds decides high or holding speed for arrivals and departures
// and slows aircraft established on final.
func (e *Engine) controlSpeeds(snap *traffic.Snapshot, ineligible map[string]bool) []Command {
	var cmds []Command

	var arrivals []speedCandidate
	for _, a := range snap.ByPhase(traffic.PhaseArriving) {
		if !a.HasPosition() || e.atIntercept(a.Callsign) {
			continue
		}
		remaining, ok := e.remainingDistance(a)
		if !ok {
			continue
		}
		arrivals = append(arrivals, speedCandidate{aircraft: a, progress: remaining})
	}
	cmds = append(cmds, e.separate(arrivals, ineligible,
		speedSettings{high: e.th.ArrivalHighSpeed, hold: e.th.ArrivalHoldSpeed})...)

	var departures []speedCandidate
	for _, d := range snap.ByPhase(traffic.PhaseDeparting) {
		if !d.HasPosition() {
			continue
		}
		// Departures further from the field are ahead
		departures = append(departures, speedCandidate{aircraft: d, progress: -geometry.Distance(e.center, *d.Position)})
	}
	cmds = append(cmds, e.separate(departures, ineligible,
		speedSettings{high: e.th.DepartureHighSpeed, hold: e.th.DepartureHoldSpeed})...)

	cmds = append(cmds, e.slowApproaches(snap)...)
	return cmds
}

// atIntercept reports whether an arrival has reached the terminal stage
func (e *Engine) atIntercept(callsign string) bool {
	stage, ok := e.state.ArrivalStage[callsign]
	if !ok {
		return false
	}
	return stage >= len(e.state.ArrivalRoute[callsign].Legs)
}

// separate applies the proximity rule within one category and turns the
// per-aircraft decision into speed commands with hysteresis.
func (e *Engine) separate(candidates []speedCandidate, ineligible map[string]bool, speeds speedSettings) []Command {
	var cmds []Command
	for i, c := range candidates {
		cleared := !ineligible[c.aircraft.Callsign]
		for j, other := range candidates {
			if !cleared {
				break
			}
			if i == j || other.progress >= c.progress {
				continue
			}
			if e.tooClose(c.aircraft, other.aircraft) {
				cleared = false
			}
		}
		if cmd, ok := e.applySpeed(c.aircraft, cleared, speeds); ok {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

// tooClose reports whether two aircraft are within the separation radius,
// which grows with heading divergence.
func (e *Engine) tooClose(a, b *traffic.Aircraft) bool {
	delta := geometry.HeadingDelta(*a.Heading, *b.Heading)
	threshold := e.th.SeparationBase + e.th.SeparationScale*delta
	return geometry.SqrDistance(*a.Position, *b.Position) < threshold*threshold
}

// applySpeed emits a speed command only when the decision changes
func (e *Engine) applySpeed(a *traffic.Aircraft, cleared bool, speeds speedSettings) (Command, bool) {
	cs := a.Callsign
	boosted := e.state.SpeedBoosted[cs]

	if cleared {
		if boosted {
			return Command{}, false
		}
		e.state.SpeedBoosted[cs] = true
		delete(e.state.SpeedHeld, cs)
		return speedCommand(cs, speeds.high), true
	}

	stillFast := a.Groundspeed != nil && *a.Groundspeed > float64(speeds.hold)+e.th.HighSpeedMargin
	if boosted || (stillFast && !e.state.SpeedHeld[cs]) {
		delete(e.state.SpeedBoosted, cs)
		e.state.SpeedHeld[cs] = true
		return speedCommand(cs, speeds.hold), true
	}
	return Command{}, false
}

// slowApproaches holds aircraft on final at the approach speed, once
func (e *Engine) slowApproaches(snap *traffic.Snapshot) []Command {
	var cmds []Command
	for _, a := range snap.ByPhase(traffic.PhaseOnApproach) {
		// Established aircraft leave the cruise speed hysteresis
		delete(e.state.SpeedBoosted, a.Callsign)
		delete(e.state.SpeedHeld, a.Callsign)

		if a.Altitude == nil || *a.Altitude <= e.th.ApproachSpeedMinAltitudeFt {
			continue
		}
		if e.state.ApproachSlowed[a.Callsign] {
			continue
		}
		if a.Groundspeed != nil && *a.Groundspeed <= float64(e.th.ApproachSpeed) {
			continue
		}
		e.state.ApproachSlowed[a.Callsign] = true
		cmds = append(cmds, speedCommand(a.Callsign, e.th.ApproachSpeed))
	}
	return cmds
}
