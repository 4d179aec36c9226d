package engine

import (
	"testing"

	"github.com/yegors/atc-autopilot/internal/geometry"
	"github.com/yegors/atc-autopilot/internal/registry"
	"github.com/yegors/atc-autopilot/internal/traffic"
	"github.com/yegors/atc-autopilot/pkg/logger"
)

func testLayout() registry.Layout {
	return registry.Layout{
		Airport:     "KSIM",
		FieldCenter: geometry.Point{X: 400, Y: 300},
		Waypoints: map[string]geometry.Point{
			"DVR":    {X: 780, Y: 560},
			"EAST":   {X: 780, Y: 320},
			"N27A":   {X: 560, Y: 420},
			"N27F":   {X: 380, Y: 470},
			"N27B":   {X: 640, Y: 350},
			"S27A":   {X: 560, Y: 180},
			"S27F":   {X: 380, Y: 130},
			"S27B":   {X: 640, Y: 250},
			"HOLD27": {X: 700, Y: 520},
		},
		Runways: []registry.Runway{
			{
				Name:    "27",
				Heading: 270,
				Thresholds: map[string]geometry.Point{
					"L": {X: 460, Y: 290},
					"R": {X: 460, Y: 310},
				},
				Corridor:           geometry.Rect{MinX: 470, MaxX: 620, MinY: 270, MaxY: 330},
				ResequenceWaypoint: "HOLD27",
				North:              registry.RouteSet{Near: []string{"N27A", "N27B"}, Far: []string{"N27F", "N27B"}, InterceptHeading: 240},
				South:              registry.RouteSet{Near: []string{"S27A", "S27B"}, Far: []string{"S27F", "S27B"}, InterceptHeading: 300},
			},
		},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	reg, err := registry.New(testLayout())
	if err != nil {
		t.Fatalf("Failed to build registry: %v", err)
	}

	cfg := Config{
		LandingRunway: "27",
		InitialSide:   traffic.SideLeft,
		Thresholds:    DefaultThresholds(),
	}
	e, err := New(cfg, reg, logger.NewNop())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return e
}

func arrival(cs string, x, y, heading, alt, gs float64) traffic.Aircraft {
	return traffic.Aircraft{
		Callsign:    cs,
		Phase:       traffic.PhaseArriving,
		Position:    &geometry.Point{X: x, Y: y},
		Heading:     traffic.Float(heading),
		Altitude:    traffic.Float(alt),
		Groundspeed: traffic.Float(gs),
	}
}

func departure(cs, dest string, x, y, heading, alt, gs float64) traffic.Aircraft {
	return traffic.Aircraft{
		Callsign:    cs,
		Phase:       traffic.PhaseDeparting,
		Destination: dest,
		Position:    &geometry.Point{X: x, Y: y},
		Heading:     traffic.Float(heading),
		Altitude:    traffic.Float(alt),
		Groundspeed: traffic.Float(gs),
	}
}

func approach(cs, runway string, x, y, alt float64) traffic.Aircraft {
	return traffic.Aircraft{
		Callsign: cs,
		Phase:    traffic.PhaseOnApproach,
		Runway:   runway,
		Position: &geometry.Point{X: x, Y: y},
		Heading:  traffic.Float(270),
		Altitude: traffic.Float(alt),
	}
}

func queued(cs, runway, dest string) traffic.Aircraft {
	return traffic.Aircraft{
		Callsign:    cs,
		Phase:       traffic.PhaseQueued,
		Runway:      runway,
		Destination: dest,
	}
}

func snapshot(aircraft ...traffic.Aircraft) *traffic.Snapshot {
	return &traffic.Snapshot{Aircraft: aircraft}
}

// commandsFor returns the command texts for one callsign, optionally
// restricted to a kind
func commandsFor(res Result, cs string, kinds ...CommandKind) []string {
	var out []string
	for _, c := range res.Commands {
		if c.Callsign != cs {
			continue
		}
		if len(kinds) > 0 {
			match := false
			for _, k := range kinds {
				if c.Kind == k {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, c.Text)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNewEngine(t *testing.T) {
	t.Run("Unknown landing runway", func(t *testing.T) {
		reg, err := registry.New(testLayout())
		if err != nil {
			t.Fatalf("Failed to build registry: %v", err)
		}
		cfg := Config{LandingRunway: "18", InitialSide: traffic.SideLeft, Thresholds: DefaultThresholds()}
		if _, err := New(cfg, reg, logger.NewNop()); err == nil {
			t.Error("Expected error for a runway missing from the layout")
		}
	})

	t.Run("Invalid side", func(t *testing.T) {
		reg, _ := registry.New(testLayout())
		cfg := Config{LandingRunway: "27", InitialSide: "C", Thresholds: DefaultThresholds()}
		if _, err := New(cfg, reg, logger.NewNop()); err == nil {
			t.Error("Expected error for invalid initial side")
		}
	})

	t.Run("Routes precomputed", func(t *testing.T) {
		e := newTestEngine(t)
		for _, name := range []string{"north-near", "north-far", "south-near", "south-far"} {
			if len(e.routes[name].Legs) != 2 {
				t.Errorf("Expected 2 legs for %s, got %d", name, len(e.routes[name].Legs))
			}
		}
	})
}

func TestTickOrdering(t *testing.T) {
	e := newTestEngine(t)

	res := e.Tick(snapshot(
		approach("APP1", "27R", 520, 305, 2000),
		approach("APP2", "27R", 500, 305, 2000),
		arrival("ARR1", 700, 480, 270, 7000, 250),
		queued("DEP1", "27L", "DVR"),
	))

	order := map[CommandKind]int{
		KindTakeoff:   0,
		KindEntry:     1,
		KindHeading:   1,
		KindAltitude:  1,
		KindIntercept: 1,
		KindLanding:   1,
		KindSpeed:     2,
		KindGoAround:  3,
	}
	last := -1
	for _, c := range res.Commands {
		if order[c.Kind] < last {
			t.Errorf("Command %q out of order", c.Text)
		}
		last = order[c.Kind]
	}

	if len(commandsFor(res, "DEP1", KindTakeoff)) != 1 {
		t.Error("Expected takeoff for DEP1")
	}
	if len(commandsFor(res, "APP1", KindGoAround)) != 1 {
		t.Error("Expected go-around for APP1")
	}
	if res.Cycle != 1 {
		t.Errorf("Expected cycle 1, got %d", res.Cycle)
	}
}

func TestPurgeStaleState(t *testing.T) {
	e := newTestEngine(t)

	for i := 0; i < 5; i++ {
		e.Tick(snapshot(
			arrival("ARR1", 700, 480, 270, 7000, 250),
			arrival("ARR2", 100, 100, 90, 7000, 250),
			departure("DEP1", "DVR", 430, 300, 90, 3000, 250),
			approach("APP1", "27L", 520, 290, 2000),
			queued("Q1", "27L", "DVR"),
		))
	}
	if e.State().Size() == 0 {
		t.Fatal("Expected state entries while aircraft are tracked")
	}

	res := e.Tick(snapshot())
	if size := e.State().Size(); size != 0 {
		t.Errorf("Expected empty state after all aircraft left, got %d entries", size)
	}

	st := e.State()
	if st.Counters.Landings != 1 {
		t.Errorf("Expected 1 landing, got %d", st.Counters.Landings)
	}
	if st.Counters.Handoffs != 1 {
		t.Errorf("Expected 1 handoff, got %d", st.Counters.Handoffs)
	}

	kinds := map[EventKind]int{}
	for _, ev := range res.Events {
		kinds[ev.Kind]++
	}
	if kinds[EventLanding] != 1 || kinds[EventHandoff] != 1 {
		t.Errorf("Expected landing and handoff events, got %v", res.Events)
	}
}

func TestIncompleteTelemetry(t *testing.T) {
	e := newTestEngine(t)

	bare := []traffic.Aircraft{
		{Callsign: "ARR1", Phase: traffic.PhaseArriving},
		{Callsign: "DEP1", Phase: traffic.PhaseDeparting, Destination: "DVR"},
		{Callsign: "APP1", Phase: traffic.PhaseOnApproach, Runway: "27R"},
	}
	res := e.Tick(snapshot(bare...))

	for _, c := range res.Commands {
		t.Errorf("Expected no commands for aircraft without telemetry, got %q", c.Text)
	}
	if _, ok := e.State().ArrivalStage["ARR1"]; ok {
		t.Error("Expected no sequencing state for an arrival without position")
	}
}
