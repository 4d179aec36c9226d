package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/yegors/atc-autopilot/internal/engine"
	"github.com/yegors/atc-autopilot/internal/traffic"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server     ServerConfig     `toml:"server"`     // HTTP server settings
	Logging    LoggingConfig    `toml:"logging"`    // Application logging settings
	Storage    StorageConfig    `toml:"storage"`    // Journal persistence settings
	Source     SourceConfig     `toml:"source"`     // Where traffic snapshots come from
	Dispatch   DispatchConfig   `toml:"dispatch"`   // Where commands are sent
	Engine     EngineConfig     `toml:"engine"`     // Decision engine settings
	Simulation SimulationConfig `toml:"simulation"` // Local traffic simulator settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)

	// Optional rotating log file
	FilePath   string `toml:"file_path"`    // Leave empty to log to stderr only
	MaxSizeMB  int    `toml:"max_size_mb"`  // Size at which the file is rotated
	MaxBackups int    `toml:"max_backups"`  // Number of rotated files kept
	MaxAgeDays int    `toml:"max_age_days"` // Days rotated files are kept
	Compress   bool   `toml:"compress"`     // Gzip rotated files
}

// StorageConfig contains journal persistence configuration
type StorageConfig struct {
	Enabled          bool   `toml:"enabled"`           // Disable to run without a journal
	SQLiteBasePath   string `toml:"sqlite_base_path"`  // Directory for SQLite files (actual filename will be generated as autopilot-YYYY-MM-DD.db)
	JournalRetention int    `toml:"journal_retention"` // Maximum number of rows returned by the journal API endpoints
}

// Source types
const (
	SourceHTTP       = "http"       // Poll a JSON snapshot endpoint
	SourcePush       = "push"       // Snapshots pushed to POST /api/v1/snapshot
	SourceReplay     = "replay"     // JSON-lines file of recorded snapshots
	SourceSimulation = "simulation" // Built-in simulator
)

// SourceConfig contains snapshot source configuration
type SourceConfig struct {
	Type        string `toml:"type"`            // One of "http", "push", "replay" or "simulation"
	URL         string `toml:"url"`             // Snapshot endpoint (used when type = "http")
	ReplayPath  string `toml:"replay_path"`     // Recorded snapshots (used when type = "replay")
	Loop        bool   `toml:"loop"`            // Restart the replay at end of file
	TimeoutSecs int    `toml:"timeout_seconds"` // HTTP fetch timeout
}

// Dispatch targets
const (
	DispatchLog        = "log"        // Log every command
	DispatchHTTP       = "http"       // POST commands to an actuator endpoint
	DispatchWebSocket  = "websocket"  // Broadcast commands to /ws subscribers
	DispatchSimulation = "simulation" // Feed commands back into the built-in simulator
)

// DispatchConfig contains command dispatch configuration
type DispatchConfig struct {
	Targets           []string `toml:"targets"`             // Any of "log", "http", "websocket", "simulation"
	HTTPURL           string   `toml:"http_url"`            // Actuator endpoint (used when targets include "http")
	CommandsPerSecond float64  `toml:"commands_per_second"` // Actuator typing rate
	Burst             int      `toml:"burst"`               // Commands allowed back to back
	TimeoutSecs       int      `toml:"timeout_seconds"`     // HTTP request timeout
}

// EngineConfig contains decision engine configuration
type EngineConfig struct {
	TickIntervalSecs float64          `toml:"tick_interval_seconds"` // Time between decision cycles (default: 2)
	LandingRunway    string           `toml:"landing_runway"`        // Active landing runway, e.g. "27"
	InitialSide      string           `toml:"initial_side"`          // Side before the first alternation: "L" or "R"
	LayoutPath       string           `toml:"layout_path"`           // YAML airport layout
	Thresholds       ThresholdsConfig `toml:"thresholds"`            // Decision rule constants
}

// ThresholdsConfig holds every tunable constant of the decision rules. Zero
// values are replaced by defaults in Validate. Distances are screen units.
type ThresholdsConfig struct {
	LegProximitySq        float64 `toml:"leg_proximity_sq"`        // Squared distance at which a leg counts as reached (default: 1000)
	HeadingDeadband       float64 `toml:"heading_deadband_deg"`    // Degrees of heading error tolerated (default: 5)
	EntryAltitude         int     `toml:"entry_altitude"`          // Thousands of feet on first observation (default: 7)
	CorridorEntryAltitude int     `toml:"corridor_entry_altitude"` // Thousands of feet when first seen in the corridor (default: 4)
	AltitudeSteps         []int   `toml:"altitude_steps"`          // Thousands of feet per stage reached (default: [5, 3])
	ResequencePenalty     float64 `toml:"resequence_penalty"`      // Extra remaining distance for re-sequencing aircraft (default: 1000)

	SeparationBase     float64 `toml:"separation_base"`      // Separation for aligned tracks (default: 30)
	SeparationScale    float64 `toml:"separation_scale"`     // Extra separation per degree of divergence (default: 0.5)
	ArrivalHighSpeed   int     `toml:"arrival_high_speed"`   // Knots (default: 280)
	ArrivalHoldSpeed   int     `toml:"arrival_hold_speed"`   // Knots (default: 210)
	DepartureHighSpeed int     `toml:"departure_high_speed"` // Knots (default: 320)
	DepartureHoldSpeed int     `toml:"departure_hold_speed"` // Knots (default: 250)
	HighSpeedMargin    float64 `toml:"high_speed_margin"`    // Knots above holding speed still considered fast (default: 20)

	ApproachSpeed              int     `toml:"approach_speed"`                 // Knots (default: 160)
	ApproachSpeedMinAltitudeFt float64 `toml:"approach_speed_min_altitude_ft"` // Below this the approach speed is left alone (default: 1000)

	DepartureClearAltitudeFt float64 `toml:"departure_clear_altitude_ft"` // Default: 500
	DepartureClearSpeedKts   float64 `toml:"departure_clear_speed_kts"`   // Default: 160
	ApproachBlockAltitudeFt  float64 `toml:"approach_block_altitude_ft"`  // Default: 1000
	ApproachBlockDistance    float64 `toml:"approach_block_distance"`     // Default: 40
	TakeoffClimbAltitude     int     `toml:"takeoff_climb_altitude"`      // Thousands of feet (default: 11)

	GroundFloorFt      float64 `toml:"ground_floor_ft"`       // Default: 300
	GoAroundDistanceSq float64 `toml:"go_around_distance_sq"` // Default: 900
	GoAroundAltitude   int     `toml:"go_around_altitude"`    // Thousands of feet (default: 4)

	ConvergenceMaxDistance    float64 `toml:"convergence_max_distance"`     // Default: 110
	ConvergenceAltitudeBandFt float64 `toml:"convergence_altitude_band_ft"` // Default: 1000
	ConvergenceTimeTolerance  float64 `toml:"convergence_time_tolerance"`   // Seconds (default: 5)
	UnitsPerNM                float64 `toml:"units_per_nm"`                 // Screen units per nautical mile (default: 10)
}

// SimulationConfig contains settings for the built-in traffic simulator
type SimulationConfig struct {
	SpawnIntervalSecs float64  `toml:"spawn_interval_seconds"` // Seconds between spawned aircraft, 0 disables spawning
	MaxAircraft       int      `toml:"max_aircraft"`           // Spawning pauses at this many aircraft
	Seed              int64    `toml:"seed"`                   // Random seed for spawns (0 = time based)
	TimeScale         float64  `toml:"time_scale"`             // Simulated seconds per wall second
	TurnRateDegSec    float64  `toml:"turn_rate_deg_sec"`      // Standard rate turn is 3
	ClimbRateFpm      float64  `toml:"climb_rate_fpm"`         // Feet per minute
	AccelKtsSec       float64  `toml:"accel_kts_sec"`          // Knots per second
	Exits             []string `toml:"exits"`                  // Destinations for spawned departures
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // Default location in configs/ folder
		"config.toml",         // Root directory
	}

	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err != nil {
			lastErr = fmt.Errorf("config file not found: %s", path)
			continue
		}
		config, err := Load(path)
		if err != nil {
			lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
			continue
		}
		return config, nil
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	if err := c.ValidateServer(); err != nil {
		return err
	}
	if err := c.ValidateLogging(); err != nil {
		return err
	}
	if err := c.ValidateStorage(); err != nil {
		return err
	}
	if err := c.ValidateSource(); err != nil {
		return err
	}
	if err := c.ValidateDispatch(); err != nil {
		return err
	}
	if err := c.ValidateEngine(); err != nil {
		return err
	}
	return c.ValidateSimulation()
}

// ValidateServer validates the server configuration
func (c *Config) ValidateServer() error {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.ReadTimeoutSecs < 0 || c.Server.WriteTimeoutSecs < 0 || c.Server.IdleTimeoutSecs < 0 {
		return fmt.Errorf("server timeouts must be >= 0")
	}
	if c.Server.IdleTimeoutSecs == 0 {
		c.Server.IdleTimeoutSecs = 60
	}
	return nil
}

// ValidateLogging validates the logging configuration
func (c *Config) ValidateLogging() error {
	switch c.Logging.Level {
	case "":
		c.Logging.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be 'debug', 'info', 'warn' or 'error')", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "":
		c.Logging.Format = "console"
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be 'console' or 'json')", c.Logging.Format)
	}

	if c.Logging.FilePath != "" {
		if c.Logging.MaxSizeMB <= 0 {
			c.Logging.MaxSizeMB = 50
		}
		if c.Logging.MaxBackups <= 0 {
			c.Logging.MaxBackups = 5
		}
		if c.Logging.MaxAgeDays <= 0 {
			c.Logging.MaxAgeDays = 14
		}
	}
	return nil
}

// ValidateStorage validates the storage configuration
func (c *Config) ValidateStorage() error {
	if !c.Storage.Enabled {
		return nil
	}
	if c.Storage.SQLiteBasePath == "" {
		c.Storage.SQLiteBasePath = "data"
	}
	if c.Storage.JournalRetention <= 0 {
		c.Storage.JournalRetention = 500
	}
	return nil
}

// ValidateSource validates the snapshot source configuration
func (c *Config) ValidateSource() error {
	if c.Source.Type == "" {
		c.Source.Type = SourceSimulation
	}

	switch c.Source.Type {
	case SourceHTTP:
		if c.Source.URL == "" {
			return fmt.Errorf("url is required when source type is http")
		}
	case SourceReplay:
		if c.Source.ReplayPath == "" {
			return fmt.Errorf("replay_path is required when source type is replay")
		}
	case SourcePush, SourceSimulation:
	default:
		return fmt.Errorf("invalid source type: %s (must be 'http', 'push', 'replay' or 'simulation')", c.Source.Type)
	}

	if c.Source.TimeoutSecs <= 0 {
		c.Source.TimeoutSecs = 5
	}
	return nil
}

// ValidateDispatch validates the dispatch configuration
func (c *Config) ValidateDispatch() error {
	if len(c.Dispatch.Targets) == 0 {
		c.Dispatch.Targets = []string{DispatchLog}
		if c.Source.Type == SourceSimulation {
			c.Dispatch.Targets = append(c.Dispatch.Targets, DispatchSimulation)
		}
	}

	seen := make(map[string]bool)
	for i, target := range c.Dispatch.Targets {
		target = strings.ToLower(target)
		c.Dispatch.Targets[i] = target

		switch target {
		case DispatchLog, DispatchWebSocket:
		case DispatchHTTP:
			if c.Dispatch.HTTPURL == "" {
				return fmt.Errorf("http_url is required when dispatch targets include http")
			}
		case DispatchSimulation:
			if c.Source.Type != SourceSimulation {
				return fmt.Errorf("simulation dispatch target requires source type simulation")
			}
		default:
			return fmt.Errorf("invalid dispatch target: %s (must be 'log', 'http', 'websocket' or 'simulation')", target)
		}

		if seen[target] {
			return fmt.Errorf("duplicate dispatch target: %s", target)
		}
		seen[target] = true
	}

	if c.Dispatch.CommandsPerSecond < 0 {
		return fmt.Errorf("commands_per_second must be >= 0: %f", c.Dispatch.CommandsPerSecond)
	}
	if c.Dispatch.CommandsPerSecond == 0 {
		c.Dispatch.CommandsPerSecond = 4
	}
	if c.Dispatch.Burst <= 0 {
		c.Dispatch.Burst = 1
	}
	if c.Dispatch.TimeoutSecs <= 0 {
		c.Dispatch.TimeoutSecs = 5
	}
	return nil
}

// HasDispatchTarget reports whether a dispatch target is configured
func (c *Config) HasDispatchTarget(target string) bool {
	for _, t := range c.Dispatch.Targets {
		if t == target {
			return true
		}
	}
	return false
}

// ValidateEngine validates the engine configuration and applies the
// threshold defaults
func (c *Config) ValidateEngine() error {
	if c.Engine.TickIntervalSecs < 0 {
		return fmt.Errorf("tick_interval_seconds must be positive: %f", c.Engine.TickIntervalSecs)
	}
	if c.Engine.TickIntervalSecs == 0 {
		c.Engine.TickIntervalSecs = 2
	}
	if c.Engine.LandingRunway == "" {
		c.Engine.LandingRunway = "27"
	}
	if c.Engine.LayoutPath == "" {
		c.Engine.LayoutPath = "configs/airport.yaml"
	}

	switch strings.ToUpper(c.Engine.InitialSide) {
	case "":
		c.Engine.InitialSide = string(traffic.SideLeft)
	case string(traffic.SideLeft), string(traffic.SideRight):
		c.Engine.InitialSide = strings.ToUpper(c.Engine.InitialSide)
	default:
		return fmt.Errorf("invalid initial_side: %s (must be 'L' or 'R')", c.Engine.InitialSide)
	}

	c.Engine.Thresholds.applyDefaults(engine.DefaultThresholds())
	return c.EngineSettings().Validate()
}

func (t *ThresholdsConfig) applyDefaults(d engine.Thresholds) {
	setFloat := func(v *float64, def float64) {
		if *v == 0 {
			*v = def
		}
	}
	setInt := func(v *int, def int) {
		if *v == 0 {
			*v = def
		}
	}

	setFloat(&t.LegProximitySq, d.LegProximitySq)
	setFloat(&t.HeadingDeadband, d.HeadingDeadband)
	setInt(&t.EntryAltitude, d.EntryAltitude)
	setInt(&t.CorridorEntryAltitude, d.CorridorEntryAltitude)
	if len(t.AltitudeSteps) == 0 {
		t.AltitudeSteps = append([]int(nil), d.AltitudeSteps...)
	}
	setFloat(&t.ResequencePenalty, d.ResequencePenalty)

	setFloat(&t.SeparationBase, d.SeparationBase)
	setFloat(&t.SeparationScale, d.SeparationScale)
	setInt(&t.ArrivalHighSpeed, d.ArrivalHighSpeed)
	setInt(&t.ArrivalHoldSpeed, d.ArrivalHoldSpeed)
	setInt(&t.DepartureHighSpeed, d.DepartureHighSpeed)
	setInt(&t.DepartureHoldSpeed, d.DepartureHoldSpeed)
	setFloat(&t.HighSpeedMargin, d.HighSpeedMargin)

	setInt(&t.ApproachSpeed, d.ApproachSpeed)
	setFloat(&t.ApproachSpeedMinAltitudeFt, d.ApproachSpeedMinAltitudeFt)

	setFloat(&t.DepartureClearAltitudeFt, d.DepartureClearAltitudeFt)
	setFloat(&t.DepartureClearSpeedKts, d.DepartureClearSpeedKts)
	setFloat(&t.ApproachBlockAltitudeFt, d.ApproachBlockAltitudeFt)
	setFloat(&t.ApproachBlockDistance, d.ApproachBlockDistance)
	setInt(&t.TakeoffClimbAltitude, d.TakeoffClimbAltitude)

	setFloat(&t.GroundFloorFt, d.GroundFloorFt)
	setFloat(&t.GoAroundDistanceSq, d.GoAroundDistanceSq)
	setInt(&t.GoAroundAltitude, d.GoAroundAltitude)

	setFloat(&t.ConvergenceMaxDistance, d.ConvergenceMaxDistance)
	setFloat(&t.ConvergenceAltitudeBandFt, d.ConvergenceAltitudeBandFt)
	setFloat(&t.ConvergenceTimeTolerance, d.ConvergenceTimeTolerance)
	setFloat(&t.UnitsPerNM, d.UnitsPerNM)
}

// EngineSettings converts the [engine] section into the engine configuration
func (c *Config) EngineSettings() engine.Config {
	t := c.Engine.Thresholds
	return engine.Config{
		LandingRunway: c.Engine.LandingRunway,
		InitialSide:   traffic.Side(c.Engine.InitialSide),
		Thresholds: engine.Thresholds{
			LegProximitySq:        t.LegProximitySq,
			HeadingDeadband:       t.HeadingDeadband,
			EntryAltitude:         t.EntryAltitude,
			CorridorEntryAltitude: t.CorridorEntryAltitude,
			AltitudeSteps:         t.AltitudeSteps,
			ResequencePenalty:     t.ResequencePenalty,

			SeparationBase:     t.SeparationBase,
			SeparationScale:    t.SeparationScale,
			ArrivalHighSpeed:   t.ArrivalHighSpeed,
			ArrivalHoldSpeed:   t.ArrivalHoldSpeed,
			DepartureHighSpeed: t.DepartureHighSpeed,
			DepartureHoldSpeed: t.DepartureHoldSpeed,
			HighSpeedMargin:    t.HighSpeedMargin,

			ApproachSpeed:              t.ApproachSpeed,
			ApproachSpeedMinAltitudeFt: t.ApproachSpeedMinAltitudeFt,

			DepartureClearAltitudeFt: t.DepartureClearAltitudeFt,
			DepartureClearSpeedKts:   t.DepartureClearSpeedKts,
			ApproachBlockAltitudeFt:  t.ApproachBlockAltitudeFt,
			ApproachBlockDistance:    t.ApproachBlockDistance,
			TakeoffClimbAltitude:     t.TakeoffClimbAltitude,

			GroundFloorFt:      t.GroundFloorFt,
			GoAroundDistanceSq: t.GoAroundDistanceSq,
			GoAroundAltitude:   t.GoAroundAltitude,

			ConvergenceMaxDistance:    t.ConvergenceMaxDistance,
			ConvergenceAltitudeBandFt: t.ConvergenceAltitudeBandFt,
			ConvergenceTimeTolerance:  t.ConvergenceTimeTolerance,
			UnitsPerNM:                t.UnitsPerNM,
		},
	}
}

// ValidateSimulation validates the simulator configuration
func (c *Config) ValidateSimulation() error {
	s := &c.Simulation
	if s.SpawnIntervalSecs < 0 {
		return fmt.Errorf("spawn_interval_seconds must be >= 0: %f", s.SpawnIntervalSecs)
	}
	if s.MaxAircraft <= 0 {
		s.MaxAircraft = 8
	}
	if s.TimeScale <= 0 {
		s.TimeScale = 1
	}
	if s.TurnRateDegSec <= 0 {
		s.TurnRateDegSec = 3
	}
	if s.ClimbRateFpm <= 0 {
		s.ClimbRateFpm = 2000
	}
	if s.AccelKtsSec <= 0 {
		s.AccelKtsSec = 2
	}
	if len(s.Exits) == 0 {
		s.Exits = []string{"DVR", "BIG", "LAM", "CPT", "WOD", "OCK"}
	}
	return nil
}
