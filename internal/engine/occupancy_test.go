package engine

import (
	"testing"

	"github.com/yegors/atc-autopilot/internal/traffic"
)

func TestReleaseDepartures(t *testing.T) {
	t.Run("Single release on empty field", func(t *testing.T) {
		e := newTestEngine(t)
		res := e.Tick(snapshot(queued("DEP1", "27L", "dvr")))

		got := commandsFor(res, "DEP1", KindTakeoff)
		if !equalStrings(got, []string{"DEP1 C DVR C 11 T"}) {
			t.Errorf("Expected DVR takeoff clearance, got %v", got)
		}
		if !e.State().TakeoffInFlight["DEP1"] {
			t.Error("Expected DEP1 to be recorded as in flight")
		}
		if e.State().Counters.Takeoffs != 1 {
			t.Errorf("Expected 1 takeoff, got %d", e.State().Counters.Takeoffs)
		}
	})

	t.Run("At most one release per side", func(t *testing.T) {
		e := newTestEngine(t)
		res := e.Tick(snapshot(
			queued("Q1", "27L", "DVR"),
			queued("Q2", "27L", "BIG"),
			queued("Q3", "27R", "DVR"),
			queued("Q4", "27R", "BIG"),
		))

		takeoffs := 0
		for _, c := range res.Commands {
			if c.Kind == KindTakeoff {
				takeoffs++
			}
		}
		if takeoffs != 2 {
			t.Fatalf("Expected 2 takeoffs, got %d", takeoffs)
		}
		if len(commandsFor(res, "Q1")) != 1 || len(commandsFor(res, "Q3")) != 1 {
			t.Errorf("Expected first queued aircraft per side released, got %v", Strings(res.Commands))
		}
	})

	t.Run("In flight clearance not repeated", func(t *testing.T) {
		e := newTestEngine(t)
		e.Tick(snapshot(queued("Q1", "27L", "DVR"), queued("Q2", "27L", "BIG")))

		// Q1 has not started rolling yet and still holds the left side
		res := e.Tick(snapshot(queued("Q1", "27L", "DVR"), queued("Q2", "27L", "BIG")))
		if len(res.Commands) != 0 {
			t.Errorf("Expected no commands while Q1 holds the side, got %v", Strings(res.Commands))
		}
	})

	t.Run("Low departure blocks both sides", func(t *testing.T) {
		e := newTestEngine(t)
		res := e.Tick(snapshot(
			departure("DEP1", "DVR", 440, 300, 270, 200, 140),
			queued("Q1", "27L", "DVR"),
			queued("Q2", "27R", "DVR"),
		))
		if len(commandsFor(res, "Q1")) != 0 || len(commandsFor(res, "Q2")) != 0 {
			t.Errorf("Expected no releases with a departure on the runway, got %v", Strings(res.Commands))
		}
	})

	t.Run("Departure without altitude blocks", func(t *testing.T) {
		e := newTestEngine(t)
		dep := traffic.Aircraft{Callsign: "DEP1", Phase: traffic.PhaseDeparting, Destination: "DVR"}
		res := e.Tick(snapshot(dep, queued("Q1", "27L", "DVR")))
		if len(commandsFor(res, "Q1")) != 0 {
			t.Errorf("Expected no release, got %v", Strings(res.Commands))
		}
	})

	t.Run("Slow departure blocks", func(t *testing.T) {
		e := newTestEngine(t)
		res := e.Tick(snapshot(
			departure("DEP1", "DVR", 440, 300, 270, 800, 120),
			queued("Q1", "27L", "DVR"),
		))
		if len(commandsFor(res, "Q1", KindTakeoff)) != 0 {
			t.Errorf("Expected no release, got %v", Strings(res.Commands))
		}
	})

	t.Run("Climbing departure clears", func(t *testing.T) {
		e := newTestEngine(t)
		res := e.Tick(snapshot(
			departure("DEP1", "DVR", 300, 300, 90, 3000, 250),
			queued("Q1", "27L", "DVR"),
		))
		if len(commandsFor(res, "Q1", KindTakeoff)) != 1 {
			t.Errorf("Expected release, got %v", Strings(res.Commands))
		}
	})

	t.Run("Low approach blocks its side only", func(t *testing.T) {
		e := newTestEngine(t)
		res := e.Tick(snapshot(
			approach("APP1", "27R", 560, 310, 800),
			queued("Q1", "27R", "DVR"),
			queued("Q2", "27L", "BIG"),
		))
		if len(commandsFor(res, "Q1", KindTakeoff)) != 0 {
			t.Error("Expected 27R release withheld")
		}
		if len(commandsFor(res, "Q2", KindTakeoff)) != 1 {
			t.Error("Expected 27L release")
		}
	})

	t.Run("Approach near threshold blocks", func(t *testing.T) {
		e := newTestEngine(t)
		res := e.Tick(snapshot(
			approach("APP1", "27L", 480, 290, 1500),
			queued("Q1", "27L", "DVR"),
		))
		if len(commandsFor(res, "Q1", KindTakeoff)) != 0 {
			t.Errorf("Expected no release, got %v", Strings(res.Commands))
		}
	})

	t.Run("High distant approach does not block", func(t *testing.T) {
		e := newTestEngine(t)
		res := e.Tick(snapshot(
			approach("APP1", "27L", 600, 290, 2500),
			queued("Q1", "27L", "DVR"),
		))
		if len(commandsFor(res, "Q1", KindTakeoff)) != 1 {
			t.Errorf("Expected release, got %v", Strings(res.Commands))
		}
	})

	t.Run("Queued without destination skipped", func(t *testing.T) {
		e := newTestEngine(t)
		res := e.Tick(snapshot(queued("Q1", "27L", ""), queued("Q2", "27L", "DVR")))
		if len(commandsFor(res, "Q1")) != 0 {
			t.Error("Expected Q1 skipped")
		}
		if len(commandsFor(res, "Q2", KindTakeoff)) != 1 {
			t.Error("Expected Q2 released")
		}
	})

	t.Run("In flight entry dropped once departing", func(t *testing.T) {
		e := newTestEngine(t)
		e.Tick(snapshot(queued("Q1", "27L", "DVR")))
		e.Tick(snapshot(departure("Q1", "DVR", 440, 290, 270, 100, 150)))
		if e.State().TakeoffInFlight["Q1"] {
			t.Error("Expected Q1 removed from in flight set")
		}
	})
}
