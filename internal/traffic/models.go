package traffic

import (
	"strings"
	"time"

	"github.com/yegors/atc-autopilot/internal/geometry"
)

// Phase is the ATC category an aircraft is listed under
type Phase string

const (
	PhaseQueued     Phase = "queued"    // Holding short, waiting for takeoff clearance
	PhaseDeparting  Phase = "departing" // Airborne after takeoff
	PhaseArriving   Phase = "arriving"  // Inbound, not yet cleared to land
	PhaseOnApproach Phase = "approach"  // Established on final with a landing clearance
)

// Valid reports whether p is one of the known phases
func (p Phase) Valid() bool {
	switch p {
	case PhaseQueued, PhaseDeparting, PhaseArriving, PhaseOnApproach:
		return true
	}
	return false
}

// Side is a runway side of a parallel pair
type Side string

const (
	SideLeft  Side = "L"
	SideRight Side = "R"
)

// Other returns the opposite side
func (s Side) Other() Side {
	if s == SideLeft {
		return SideRight
	}
	return SideLeft
}

// Aircraft is one record of a snapshot. Telemetry fields are nil until the
// renderer has populated them.
type Aircraft struct {
	Callsign    string          `json:"callsign"`
	Phase       Phase           `json:"phase"`
	Position    *geometry.Point `json:"position,omitempty"`
	Heading     *float64        `json:"heading,omitempty"`     // degrees [0, 360)
	Altitude    *float64        `json:"altitude,omitempty"`    // feet
	Groundspeed *float64        `json:"groundspeed,omitempty"` // knots

	// Runway is the full runway identifier, e.g. "27R". Set for queued and
	// on-approach aircraft.
	Runway      string `json:"runway,omitempty"`
	Destination string `json:"destination,omitempty"` // exit waypoint for queued/departing aircraft
}

// Side returns the runway side encoded in the runway identifier
func (a *Aircraft) Side() (Side, bool) {
	switch {
	case strings.HasSuffix(a.Runway, string(SideLeft)):
		return SideLeft, true
	case strings.HasSuffix(a.Runway, string(SideRight)):
		return SideRight, true
	}
	return "", false
}

// HasPosition reports whether position and heading are populated
func (a *Aircraft) HasPosition() bool {
	return a.Position != nil && a.Heading != nil
}

// HasTelemetry reports whether every telemetry field is populated
func (a *Aircraft) HasTelemetry() bool {
	return a.Position != nil && a.Heading != nil && a.Altitude != nil && a.Groundspeed != nil
}

// Snapshot is the traffic picture for one cycle
type Snapshot struct {
	Taken    time.Time  `json:"taken"`
	Aircraft []Aircraft `json:"aircraft"`
}

// ByPhase returns the aircraft in the given phase, preserving snapshot order
func (s *Snapshot) ByPhase(phase Phase) []*Aircraft {
	var out []*Aircraft
	for i := range s.Aircraft {
		if s.Aircraft[i].Phase == phase {
			out = append(out, &s.Aircraft[i])
		}
	}
	return out
}

// Callsigns returns the set of callsigns listed under any of the given phases
func (s *Snapshot) Callsigns(phases ...Phase) map[string]bool {
	out := make(map[string]bool)
	for i := range s.Aircraft {
		for _, p := range phases {
			if s.Aircraft[i].Phase == p {
				out[s.Aircraft[i].Callsign] = true
				break
			}
		}
	}
	return out
}

// Float returns a pointer to v. Handy for building snapshots.
func Float(v float64) *float64 {
	return &v
}
