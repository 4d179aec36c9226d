// Package engine turns a traffic snapshot into an ordered list of ATC
// commands. It keeps per-callsign sequencing state between cycles and must be
// driven by a single goroutine.
package engine

import (
	"fmt"

	"github.com/yegors/atc-autopilot/internal/geometry"
	"github.com/yegors/atc-autopilot/internal/registry"
	"github.com/yegors/atc-autopilot/internal/traffic"
	"github.com/yegors/atc-autopilot/pkg/logger"
)

// Result is the outcome of one decision cycle
type Result struct {
	Cycle    int64     `json:"cycle"`
	Commands []Command `json:"commands"`
	Events   []Event   `json:"events"`
}

// Engine is the rule-based decision engine for one airport
type Engine struct {
	cfg      Config
	th       Thresholds
	registry *registry.Registry
	runway   *registry.Runway
	routes   map[string]Route
	hold     geometry.Point
	center   geometry.Point
	state    *State
	logger   *logger.Logger

	// reported keeps unknown waypoint names already logged
	reported map[string]bool
	events   []Event
}

// New creates an engine for the active landing runway of the registry
func New(cfg Config, reg *registry.Registry, log *logger.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}

	rwy, err := reg.Runway(cfg.LandingRunway)
	if err != nil {
		return nil, err
	}

	hold, err := reg.Lookup(rwy.ResequenceWaypoint)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		th:       cfg.Thresholds,
		registry: reg,
		runway:   rwy,
		routes:   make(map[string]Route),
		hold:     hold,
		center:   reg.FieldCenter(),
		state:    NewState(cfg.InitialSide),
		logger:   log.Named("engine"),
		reported: make(map[string]bool),
	}

	sets := map[string]registry.RouteSet{"north": rwy.North, "south": rwy.South}
	for hemisphere, set := range sets {
		for geometryName, names := range map[string][]string{"near": set.Near, "far": set.Far} {
			legs, err := reg.Resolve(names)
			if err != nil {
				return nil, err
			}
			name := hemisphere + "-" + geometryName
			e.routes[name] = Route{Name: name, Legs: legs, InterceptHeading: set.InterceptHeading}
		}
	}

	e.logger.Info("Engine ready",
		logger.String("airport", reg.Airport()),
		logger.String("landing_runway", rwy.Name),
		logger.String("initial_side", string(cfg.InitialSide)))

	return e, nil
}

// State returns the live engine state. Callers other than the decision loop
// must copy it before reading.
func (e *Engine) State() *State {
	return e.state
}

// Tick runs one decision cycle against a snapshot. Commands are ordered
// takeoffs, sequencing, speed, go-arounds.
func (e *Engine) Tick(snap *traffic.Snapshot) Result {
	e.state.Counters.Cycles++
	e.events = e.state.purge(snap)

	var cmds []Command
	cmds = append(cmds, e.releaseDepartures(snap)...)
	cmds = append(cmds, e.sequenceArrivals(snap)...)

	ineligible := e.detectConvergence(snap)
	cmds = append(cmds, e.controlSpeeds(snap, ineligible)...)
	cmds = append(cmds, e.detectApproachConflicts(snap)...)

	if len(cmds) > 0 {
		e.logger.Debug("Cycle decided",
			logger.Int64("cycle", e.state.Counters.Cycles),
			logger.Int("aircraft", len(snap.Aircraft)),
			logger.Int("commands", len(cmds)))
	}

	events := e.events
	e.events = nil
	return Result{Cycle: e.state.Counters.Cycles, Commands: cmds, Events: events}
}

func (e *Engine) emit(kind EventKind, callsign, detail string) {
	e.events = append(e.events, Event{Kind: kind, Callsign: callsign, Detail: detail})
}

// lookupWaypoint resolves a waypoint, reporting each unknown name once
func (e *Engine) lookupWaypoint(name string) (geometry.Point, bool) {
	p, err := e.registry.Lookup(name)
	if err != nil {
		e.state.Counters.UnknownWaypoints++
		if !e.reported[name] {
			e.reported[name] = true
			e.logger.Warn("Waypoint missing from registry, conflict detection disabled for aircraft using it",
				logger.String("waypoint", name), logger.Error(err))
		}
		return geometry.Point{}, false
	}
	return p, true
}
