package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/yegors/atc-autopilot/internal/engine"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadStockConfig(t *testing.T) {
	cfg, err := Load("../../configs/config.toml")
	if err != nil {
		t.Fatalf("Failed to load stock config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Stock config failed validation: %v", err)
	}

	if cfg.Engine.LandingRunway != "27" {
		t.Errorf("Expected landing runway 27, got %s", cfg.Engine.LandingRunway)
	}
	if cfg.Source.Type != SourceSimulation {
		t.Errorf("Expected simulation source, got %s", cfg.Source.Type)
	}
	if !cfg.HasDispatchTarget(DispatchWebSocket) {
		t.Error("Expected websocket dispatch target")
	}
}

func TestValidateDefaults(t *testing.T) {
	path := writeConfig(t, "[engine]\nlanding_runway = \"9\"\ninitial_side = \"r\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validation failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Errorf("Expected info/console logging, got %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.Engine.TickIntervalSecs != 2 {
		t.Errorf("Expected 2s tick, got %f", cfg.Engine.TickIntervalSecs)
	}
	if cfg.Engine.InitialSide != "R" {
		t.Errorf("Expected initial side R, got %s", cfg.Engine.InitialSide)
	}
	if !cfg.HasDispatchTarget(DispatchLog) || !cfg.HasDispatchTarget(DispatchSimulation) {
		t.Errorf("Expected log and simulation targets, got %v", cfg.Dispatch.Targets)
	}

	settings := cfg.EngineSettings()
	defaults := engine.DefaultThresholds()
	if settings.LandingRunway != "9" {
		t.Errorf("Expected runway 9, got %s", settings.LandingRunway)
	}
	if settings.Thresholds.GoAroundDistanceSq != defaults.GoAroundDistanceSq {
		t.Errorf("Expected default go-around distance %f, got %f", defaults.GoAroundDistanceSq, settings.Thresholds.GoAroundDistanceSq)
	}
	if len(settings.Thresholds.AltitudeSteps) != len(defaults.AltitudeSteps) {
		t.Errorf("Expected default altitude steps, got %v", settings.Thresholds.AltitudeSteps)
	}
}

func TestThresholdOverrides(t *testing.T) {
	path := writeConfig(t, `
[engine.thresholds]
separation_base = 45
altitude_steps = [6, 4, 2]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validation failed: %v", err)
	}

	th := cfg.EngineSettings().Thresholds
	if th.SeparationBase != 45 {
		t.Errorf("Expected separation base 45, got %f", th.SeparationBase)
	}
	if len(th.AltitudeSteps) != 3 || th.AltitudeSteps[2] != 2 {
		t.Errorf("Expected altitude steps [6 4 2], got %v", th.AltitudeSteps)
	}
	if th.SeparationScale != 0.5 {
		t.Errorf("Expected default separation scale, got %f", th.SeparationScale)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"Bad port", "[server]\nport = 70000\n"},
		{"Bad log level", "[logging]\nlevel = \"loud\"\n"},
		{"Bad log format", "[logging]\nformat = \"xml\"\n"},
		{"Unknown source", "[source]\ntype = \"telepathy\"\n"},
		{"HTTP source without url", "[source]\ntype = \"http\"\n"},
		{"Replay source without path", "[source]\ntype = \"replay\"\n"},
		{"HTTP dispatch without url", "[dispatch]\ntargets = [\"http\"]\n"},
		{"Duplicate dispatch target", "[dispatch]\ntargets = [\"log\", \"LOG\"]\n"},
		{"Simulation dispatch without simulator", "[source]\ntype = \"push\"\n[dispatch]\ntargets = [\"simulation\"]\n"},
		{"Bad initial side", "[engine]\ninitial_side = \"C\"\n"},
		{"Negative tick", "[engine]\ntick_interval_seconds = -1\n"},
		{"Inverted arrival speeds", "[engine.thresholds]\narrival_high_speed = 200\narrival_hold_speed = 210\n"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, test.content))
			if err != nil {
				t.Fatalf("Failed to load config: %v", err)
			}
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestLoadWithFallback(t *testing.T) {
	path := writeConfig(t, "[server]\nport = 9090\n")

	cfg, err := LoadWithFallback(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Expected error for missing file")
	}

	bad := writeConfig(t, "[server\nport = ")
	if _, err := Load(bad); err == nil {
		t.Error("Expected error for malformed TOML")
	}
}
