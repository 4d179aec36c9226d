package engine

import (
	"github.com/yegors/atc-autopilot/internal/geometry"
	"github.com/yegors/atc-autopilot/internal/traffic"
)

// StageResequencing marks an arrival sent around and flying back to the
// re-sequencing waypoint.
const StageResequencing = -1

// Route is the ordered list of leg targets assigned to an arrival
type Route struct {
	Name             string           `json:"name"` // e.g. "north-near"
	Legs             []geometry.Point `json:"legs"`
	InterceptHeading int              `json:"intercept_heading"`
}

// Counters are monotonically increasing operational counters
type Counters struct {
	Cycles           int64 `json:"cycles"`
	Takeoffs         int64 `json:"takeoffs"`
	Intercepts       int64 `json:"intercepts"`
	GoArounds        int64 `json:"go_arounds"`
	Handoffs         int64 `json:"handoffs"`
	Landings         int64 `json:"landings"`
	UnknownWaypoints int64 `json:"unknown_waypoints"`
}

// State is everything the engine remembers between cycles. It is owned by a
// single decision loop.
type State struct {
	ArrivalStage    map[string]int    `json:"arrival_stage"`
	ArrivalRoute    map[string]Route  `json:"arrival_route"`
	InterceptRunway map[string]string `json:"intercept_runway"`
	TakeoffInFlight map[string]bool   `json:"takeoff_in_flight"`
	SpeedBoosted    map[string]bool   `json:"speed_boosted"`
	SpeedHeld       map[string]bool   `json:"speed_held"`
	ApproachSlowed  map[string]bool   `json:"approach_slowed"`

	// AlternatingSide is the side handed to the next arrival reaching the
	// intercept, after it has been flipped.
	AlternatingSide traffic.Side `json:"alternating_side"`

	Counters Counters `json:"counters"`

	// Previous cycle membership, used to count landings and handoffs
	LastApproach  map[string]bool `json:"-"`
	LastDeparting map[string]bool `json:"-"`
}

// NewState returns an empty state
func NewState(initialSide traffic.Side) *State {
	return &State{
		ArrivalStage:    make(map[string]int),
		ArrivalRoute:    make(map[string]Route),
		InterceptRunway: make(map[string]string),
		TakeoffInFlight: make(map[string]bool),
		SpeedBoosted:    make(map[string]bool),
		SpeedHeld:       make(map[string]bool),
		ApproachSlowed:  make(map[string]bool),
		AlternatingSide: initialSide,
		LastApproach:    make(map[string]bool),
		LastDeparting:   make(map[string]bool),
	}
}

// Size returns the number of per-callsign entries held
func (s *State) Size() int {
	return len(s.ArrivalStage) + len(s.ArrivalRoute) + len(s.InterceptRunway) +
		len(s.TakeoffInFlight) + len(s.SpeedBoosted) + len(s.SpeedHeld) + len(s.ApproachSlowed)
}

// forgetArrival drops every sequencing entry for a callsign
func (s *State) forgetArrival(callsign string) {
	delete(s.ArrivalStage, callsign)
	delete(s.ArrivalRoute, callsign)
	delete(s.InterceptRunway, callsign)
	delete(s.ApproachSlowed, callsign)
}

// purge removes entries for callsigns no longer in the snapshot and updates
// the landing and handoff counters. It returns the events observed.
func (s *State) purge(snap *traffic.Snapshot) []Event {
	var events []Event

	inbound := snap.Callsigns(traffic.PhaseArriving, traffic.PhaseOnApproach)
	approach := snap.Callsigns(traffic.PhaseOnApproach)
	departing := snap.Callsigns(traffic.PhaseDeparting)
	queued := snap.Callsigns(traffic.PhaseQueued)
	speedControlled := snap.Callsigns(traffic.PhaseArriving, traffic.PhaseDeparting, traffic.PhaseOnApproach)

	for cs := range s.LastApproach {
		if !inbound[cs] && s.ArrivalStage[cs] != StageResequencing {
			s.Counters.Landings++
			events = append(events, Event{Kind: EventLanding, Callsign: cs})
		}
	}
	for cs := range s.LastDeparting {
		if !departing[cs] {
			s.Counters.Handoffs++
			events = append(events, Event{Kind: EventHandoff, Callsign: cs})
		}
	}

	for cs := range s.ArrivalStage {
		if !inbound[cs] {
			s.forgetArrival(cs)
		}
	}
	for cs := range s.ArrivalRoute {
		if !inbound[cs] {
			s.forgetArrival(cs)
		}
	}
	for cs := range s.InterceptRunway {
		if !inbound[cs] {
			delete(s.InterceptRunway, cs)
		}
	}
	for cs := range s.ApproachSlowed {
		if !approach[cs] {
			delete(s.ApproachSlowed, cs)
		}
	}
	for cs := range s.TakeoffInFlight {
		if departing[cs] || !queued[cs] {
			delete(s.TakeoffInFlight, cs)
		}
	}
	for cs := range s.SpeedBoosted {
		if !speedControlled[cs] {
			delete(s.SpeedBoosted, cs)
		}
	}
	for cs := range s.SpeedHeld {
		if !speedControlled[cs] {
			delete(s.SpeedHeld, cs)
		}
	}

	s.LastApproach = approach
	s.LastDeparting = departing
	return events
}
