package physics

import (
	"math"
	"testing"

	"github.com/yegors/atc-autopilot/internal/geometry"
)

func TestTurnToward(t *testing.T) {
	tests := []struct {
		name            string
		current, target float64
		step, expected  float64
	}{
		{"Right turn", 90, 180, 10, 100},
		{"Left turn", 90, 0, 10, 80},
		{"Left across north", 10, 340, 15, 355},
		{"Right across north", 350, 20, 15, 5},
		{"Snaps to target", 90, 95, 10, 95},
		{"Already on target", 270, 270, 3, 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TurnToward(tt.current, tt.target, tt.step); math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Expected heading %f, got %f", tt.expected, got)
			}
		})
	}
}

func TestStepToward(t *testing.T) {
	if got := StepToward(1000, 3000, 500); got != 1500 {
		t.Errorf("Expected 1500, got %f", got)
	}
	if got := StepToward(3000, 1000, 500); got != 2500 {
		t.Errorf("Expected 2500, got %f", got)
	}
	if got := StepToward(2900, 3000, 500); got != 3000 {
		t.Errorf("Expected 3000, got %f", got)
	}
}

func TestAdvance(t *testing.T) {
	// 360 kts for 10 s is 1 NM
	p := Advance(geometry.Point{X: 100, Y: 100}, 90, 360, 10, 10)
	if math.Abs(p.X-110) > 1e-9 || math.Abs(p.Y-100) > 1e-9 {
		t.Errorf("Expected (110, 100), got (%f, %f)", p.X, p.Y)
	}

	p = Advance(geometry.Point{X: 100, Y: 100}, 180, 360, 10, 10)
	if math.Abs(p.X-100) > 1e-9 || math.Abs(p.Y-90) > 1e-9 {
		t.Errorf("Expected (100, 90), got (%f, %f)", p.X, p.Y)
	}
}

func TestClimbStep(t *testing.T) {
	if got := ClimbStep(2000, 3); got != 100 {
		t.Errorf("Expected 100 ft, got %f", got)
	}
}
