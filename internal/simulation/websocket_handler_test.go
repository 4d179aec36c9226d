package simulation

import (
	"errors"
	"testing"

	"github.com/yegors/atc-autopilot/internal/geometry"
	"github.com/yegors/atc-autopilot/internal/traffic"
	"github.com/yegors/atc-autopilot/internal/websocket"
	"github.com/yegors/atc-autopilot/pkg/logger"
)

func TestWebSocketHandler(t *testing.T) {
	s, _ := newTestService(t, Options{})
	if _, err := s.Spawn(SpawnRequest{
		Callsign: "ARR1", Phase: traffic.PhaseArriving,
		Position: geometry.Point{X: 700, Y: 450}, Heading: 270, Altitude: 7000, Groundspeed: 250,
	}); err != nil {
		t.Fatalf("Failed to spawn arrival: %v", err)
	}
	h := NewWebSocketHandler(s, logger.NewNop())

	t.Run("AppliesCommand", func(t *testing.T) {
		err := h.HandleMessage(nil, websocket.MessageTypeSimCommand, map[string]any{
			"callsign": "arr1",
			"command":  "C 5",
		})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		a, _ := find(s, "ARR1")
		if a.TargetAltitude != 5000 {
			t.Errorf("Expected target altitude 5000, got %f", a.TargetAltitude)
		}
	})

	t.Run("MissingFields", func(t *testing.T) {
		if err := h.HandleMessage(nil, websocket.MessageTypeSimCommand, map[string]any{"callsign": "ARR1"}); err == nil {
			t.Error("Expected error for missing command")
		}
	})

	t.Run("UnknownAircraft", func(t *testing.T) {
		err := h.HandleMessage(nil, websocket.MessageTypeSimCommand, map[string]any{
			"callsign": "GHOST",
			"command":  "C 240",
		})
		if !errors.Is(err, ErrUnknownAircraft) {
			t.Errorf("Expected ErrUnknownAircraft, got %v", err)
		}
	})

	t.Run("IgnoresOtherTypes", func(t *testing.T) {
		if err := h.HandleMessage(nil, "ping", nil); err != nil {
			t.Errorf("Expected unhandled types to be ignored, got %v", err)
		}
	})
}
