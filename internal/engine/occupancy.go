package engine

import (
	"github.com/yegors/atc-autopilot/internal/geometry"
	"github.com/yegors/atc-autopilot/internal/traffic"
	"github.com/yegors/atc-autopilot/pkg/logger"
)

// releaseDepartures grants at most one takeoff clearance per runway side.
// Queued aircraft are considered in snapshot order.
func (e *Engine) releaseDepartures(snap *traffic.Snapshot) []Command {
	safe := map[traffic.Side]bool{traffic.SideLeft: true, traffic.SideRight: true}

	// Any departure still on or just off the runway blocks every release
	for _, dep := range snap.ByPhase(traffic.PhaseDeparting) {
		if !e.departureClear(dep) {
			safe[traffic.SideLeft] = false
			safe[traffic.SideRight] = false
			break
		}
	}

	queued := snap.ByPhase(traffic.PhaseQueued)

	// Aircraft already cleared but not yet rolling still hold their side
	for _, q := range queued {
		if !e.state.TakeoffInFlight[q.Callsign] {
			continue
		}
		if side, ok := q.Side(); ok {
			safe[side] = false
		}
	}

	for _, app := range snap.ByPhase(traffic.PhaseOnApproach) {
		side, ok := app.Side()
		if !ok {
			continue
		}
		if e.approachBlocksRunway(app, side) {
			safe[side] = false
		}
	}

	var cmds []Command
	for _, q := range queued {
		side, ok := q.Side()
		if !ok || !safe[side] || e.state.TakeoffInFlight[q.Callsign] {
			continue
		}
		if q.Destination == "" {
			continue
		}

		cmds = append(cmds, takeoffCommand(q.Callsign, q.Destination, e.th.TakeoffClimbAltitude))
		e.state.TakeoffInFlight[q.Callsign] = true
		e.state.Counters.Takeoffs++
		safe[side] = false
		e.emit(EventTakeoff, q.Callsign, q.Runway)

		e.logger.Info("Takeoff released",
			logger.String("callsign", q.Callsign),
			logger.String("runway", q.Runway),
			logger.String("destination", q.Destination))
	}

	return cmds
}

// departureClear reports whether a departure has climbed out far enough for
// the next release. A departure without altitude is still on the runway.
func (e *Engine) departureClear(dep *traffic.Aircraft) bool {
	if dep.Altitude == nil || *dep.Altitude < e.th.DepartureClearAltitudeFt {
		return false
	}
	if dep.Groundspeed != nil && *dep.Groundspeed < e.th.DepartureClearSpeedKts {
		return false
	}
	return true
}

// approachBlocksRunway reports whether an approaching aircraft is low or
// close enough to its threshold to own the runway side.
func (e *Engine) approachBlocksRunway(app *traffic.Aircraft, side traffic.Side) bool {
	if app.Altitude == nil && app.Position == nil {
		return true
	}
	if app.Altitude != nil && *app.Altitude < e.th.ApproachBlockAltitudeFt {
		return true
	}
	if app.Position != nil {
		threshold, ok := e.runway.Thresholds[string(side)]
		if ok && geometry.Distance(*app.Position, threshold) < e.th.ApproachBlockDistance {
			return true
		}
	}
	return false
}
