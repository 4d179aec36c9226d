// Package simulation is a local dead-reckoning traffic simulator. It renders
// snapshots for the engine and flies the commands the engine sends back.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/yegors/atc-autopilot/internal/engine"
	"github.com/yegors/atc-autopilot/internal/geometry"
	"github.com/yegors/atc-autopilot/internal/physics"
	"github.com/yegors/atc-autopilot/internal/registry"
	"github.com/yegors/atc-autopilot/internal/traffic"
	"github.com/yegors/atc-autopilot/pkg/logger"
)

const (
	rotateSpeedKts      = 140  // departures leave the ground above this speed
	takeoffRollAccel    = 3    // acceleration multiplier on the takeoff roll
	departureSpeedKts   = 250  // initial climb speed after takeoff
	directAltitudeFt    = 500  // departures turn direct to their exit above this
	exitRadius          = 10.0 // departures are handed off this close to their exit
	touchdownRadius     = 8.0  // approaches land this close to the threshold
	interceptMaxDelta   = 45.0 // max heading error to join the final approach
	glideFtPerNM        = 300.0
	boundsMargin        = 60.0
	spawnArrivalSpeed   = 250
	spawnMinAltitudeFt  = 7000
	spawnMaxAltitudeFt  = 10000
	arrivalSpawnPercent = 50
)

// ErrUnknownAircraft is returned for callsigns the simulator does not fly
var ErrUnknownAircraft = errors.New("unknown simulated aircraft")

// SimulatedAircraft represents a single simulated aircraft with its current state
type SimulatedAircraft struct {
	Callsign       string         `json:"callsign"`
	Phase          traffic.Phase  `json:"phase"`
	Position       geometry.Point `json:"position"`
	Heading        float64        `json:"heading"`
	Altitude       float64        `json:"altitude"`
	Groundspeed    float64        `json:"groundspeed"`
	TargetHeading  float64        `json:"target_heading"`
	TargetAltitude float64        `json:"target_altitude"`
	TargetSpeed    float64        `json:"target_speed"`
	Expedite       bool           `json:"expedite"`
	Runway         string         `json:"runway,omitempty"`
	Destination    string         `json:"destination,omitempty"`
	ClearedRunway  string         `json:"cleared_runway,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`

	// fresh aircraft are listed without telemetry on their first snapshot
	fresh bool
	seq   int64
}

// SpawnRequest describes an aircraft to add
type SpawnRequest struct {
	Callsign    string         `json:"callsign"` // generated when empty
	Phase       traffic.Phase  `json:"phase"`    // queued or arriving
	Position    geometry.Point `json:"position"`
	Heading     float64        `json:"heading"`
	Altitude    float64        `json:"altitude"`
	Groundspeed float64        `json:"groundspeed"`
	Runway      string         `json:"runway,omitempty"`      // queued only, e.g. "27L"
	Destination string         `json:"destination,omitempty"` // queued only
}

// Options contains simulator settings
type Options struct {
	LandingRunway  string
	SpawnInterval  time.Duration // zero disables automatic spawning
	MaxAircraft    int
	Seed           int64
	TimeScale      float64
	TurnRateDegSec float64
	ClimbRateFpm   float64
	AccelKtsSec    float64
	UnitsPerNM     float64
	Exits          []string
}

// Service manages simulated aircraft
type Service struct {
	opts     Options
	registry *registry.Registry
	runway   *registry.Runway
	bounds   geometry.Rect

	aircraft  map[string]*SimulatedAircraft
	nextSeq   int64
	rng       *rand.Rand
	lastStep  time.Time
	lastSpawn time.Time
	now       func() time.Time
	mutex     sync.Mutex
	logger    *logger.Logger
}

// NewService creates a new simulation service
func NewService(opts Options, reg *registry.Registry, logger *logger.Logger) (*Service, error) {
	rwy, err := reg.Runway(opts.LandingRunway)
	if err != nil {
		return nil, err
	}
	for _, exit := range opts.Exits {
		if _, err := reg.Lookup(exit); err != nil {
			return nil, fmt.Errorf("simulation exit: %w", err)
		}
	}
	if opts.UnitsPerNM <= 0 {
		return nil, fmt.Errorf("units per NM must be positive: %f", opts.UnitsPerNM)
	}
	if opts.TimeScale <= 0 {
		opts.TimeScale = 1
	}
	if opts.TurnRateDegSec <= 0 {
		opts.TurnRateDegSec = physics.StandardTurnDeg
	}
	if opts.MaxAircraft <= 0 {
		opts.MaxAircraft = 8
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Service{
		opts:     opts,
		registry: reg,
		runway:   rwy,
		bounds:   layoutBounds(reg),
		aircraft: make(map[string]*SimulatedAircraft),
		rng:      rand.New(rand.NewSource(seed)),
		now:      time.Now,
		logger:   logger.Named("simulation"),
	}, nil
}

// layoutBounds is the box around every waypoint, padded by a margin
func layoutBounds(reg *registry.Registry) geometry.Rect {
	b := geometry.Rect{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, name := range reg.WaypointNames() {
		p, _ := reg.Lookup(name)
		b.MinX = math.Min(b.MinX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	b.MinX -= boundsMargin
	b.MinY -= boundsMargin
	b.MaxX += boundsMargin
	b.MaxY += boundsMargin
	return b
}

// Spawn adds an aircraft. It is listed without telemetry on its first snapshot.
func (s *Service) Spawn(req SpawnRequest) (SimulatedAircraft, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	a, err := s.spawnLocked(req)
	if err != nil {
		return SimulatedAircraft{}, err
	}
	return *a, nil
}

func (s *Service) spawnLocked(req SpawnRequest) (*SimulatedAircraft, error) {
	if len(s.aircraft) >= s.opts.MaxAircraft {
		return nil, fmt.Errorf("maximum number of simulated aircraft (%d) reached", s.opts.MaxAircraft)
	}

	callsign := req.Callsign
	if callsign == "" {
		callsign = s.generateFlightNumber()
	}
	if _, exists := s.aircraft[callsign]; exists {
		return nil, fmt.Errorf("simulated aircraft %s already exists", callsign)
	}

	a := &SimulatedAircraft{
		Callsign:  callsign,
		Phase:     req.Phase,
		CreatedAt: s.now().UTC(),
		fresh:     true,
		seq:       s.nextSeq,
	}

	switch req.Phase {
	case traffic.PhaseQueued:
		if _, ok := s.threshold(req.Runway); !ok {
			return nil, fmt.Errorf("queued aircraft %s needs a runway of %s, got %q", callsign, s.runway.Name, req.Runway)
		}
		if _, err := s.registry.Lookup(req.Destination); err != nil {
			return nil, fmt.Errorf("queued aircraft %s: %w", callsign, err)
		}
		a.Runway = req.Runway
		a.Destination = req.Destination

	case traffic.PhaseArriving:
		a.Position = req.Position
		a.Heading = physics.NormalizeHeading(req.Heading)
		a.Altitude = req.Altitude
		a.Groundspeed = req.Groundspeed
		a.TargetHeading = a.Heading
		a.TargetAltitude = a.Altitude
		a.TargetSpeed = a.Groundspeed

	default:
		return nil, fmt.Errorf("cannot spawn aircraft in phase %q", req.Phase)
	}

	s.nextSeq++
	s.aircraft[callsign] = a
	s.logger.Info("Created simulated aircraft",
		logger.String("callsign", callsign),
		logger.String("phase", string(a.Phase)))

	return a, nil
}

// Remove removes a simulated aircraft
func (s *Service) Remove(callsign string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.aircraft[callsign]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownAircraft, callsign)
	}

	delete(s.aircraft, callsign)
	s.logger.Info("Removed simulated aircraft", logger.String("callsign", callsign))
	return nil
}

// Aircraft returns copies of all simulated aircraft in creation order
func (s *Service) Aircraft() []SimulatedAircraft {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ordered := s.orderedLocked()
	out := make([]SimulatedAircraft, len(ordered))
	for i, a := range ordered {
		out[i] = *a
	}
	return out
}

func (s *Service) orderedLocked() []*SimulatedAircraft {
	out := make([]*SimulatedAircraft, 0, len(s.aircraft))
	for _, a := range s.aircraft {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Poll advances the simulation by the elapsed wall time, spawns traffic when
// due and renders a snapshot.
func (s *Service) Poll(ctx context.Context) (*traffic.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	if s.lastStep.IsZero() {
		s.lastStep = now
		s.lastSpawn = now
	}
	if dt := now.Sub(s.lastStep).Seconds() * s.opts.TimeScale; dt > 0 {
		s.stepLocked(dt)
	}
	s.lastStep = now

	if s.opts.SpawnInterval > 0 && now.Sub(s.lastSpawn) >= s.opts.SpawnInterval {
		s.lastSpawn = now
		if len(s.aircraft) < s.opts.MaxAircraft {
			if _, err := s.spawnLocked(s.randomRequest()); err != nil {
				s.logger.Warn("Failed to spawn aircraft", logger.Error(err))
			}
		}
	}

	return s.renderLocked(now), nil
}

// Step advances every aircraft by dt simulated seconds
func (s *Service) Step(dt float64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stepLocked(dt)
}

func (s *Service) renderLocked(now time.Time) *traffic.Snapshot {
	snap := &traffic.Snapshot{Taken: now.UTC()}
	for _, a := range s.orderedLocked() {
		rec := traffic.Aircraft{
			Callsign:    a.Callsign,
			Phase:       a.Phase,
			Runway:      a.Runway,
			Destination: a.Destination,
		}
		if a.Phase != traffic.PhaseQueued && !a.fresh {
			pos := a.Position
			rec.Position = &pos
			rec.Heading = traffic.Float(math.Round(a.Heading))
			rec.Altitude = traffic.Float(math.Round(a.Altitude))
			rec.Groundspeed = traffic.Float(math.Round(a.Groundspeed))
		}
		a.fresh = false
		snap.Aircraft = append(snap.Aircraft, rec)
	}
	return snap
}

func (s *Service) stepLocked(dt float64) {
	for _, a := range s.orderedLocked() {
		switch a.Phase {
		case traffic.PhaseQueued:
			continue

		case traffic.PhaseDeparting:
			if a.Altitude >= directAltitudeFt {
				if dest, err := s.registry.Lookup(a.Destination); err == nil {
					a.TargetHeading = float64(geometry.Heading(a.Position, dest))
				}
			}
			s.fly(a, dt)
			if s.exited(a) {
				delete(s.aircraft, a.Callsign)
				s.logger.Info("Departure handed off", logger.String("callsign", a.Callsign))
			}

		case traffic.PhaseArriving:
			s.fly(a, dt)
			if a.ClearedRunway != "" && s.runway.Corridor.Contains(a.Position) &&
				geometry.HeadingDelta(a.Heading, s.runway.Heading) <= interceptMaxDelta {
				a.Phase = traffic.PhaseOnApproach
				a.Runway = a.ClearedRunway
				s.logger.Debug("Established on final",
					logger.String("callsign", a.Callsign),
					logger.String("runway", a.Runway))
			}
			if !s.bounds.Contains(a.Position) {
				delete(s.aircraft, a.Callsign)
				s.logger.Info("Arrival left the scope", logger.String("callsign", a.Callsign))
			}

		case traffic.PhaseOnApproach:
			threshold, ok := s.threshold(a.Runway)
			if !ok {
				s.fly(a, dt)
				continue
			}
			a.TargetHeading = float64(geometry.Heading(a.Position, threshold))
			s.fly(a, dt)

			dist := geometry.Distance(a.Position, threshold)
			if glide := dist / s.opts.UnitsPerNM * glideFtPerNM; a.Altitude > glide {
				a.Altitude = glide
				a.TargetAltitude = glide
			}
			if dist < touchdownRadius {
				delete(s.aircraft, a.Callsign)
				s.logger.Info("Landed", logger.String("callsign", a.Callsign), logger.String("runway", a.Runway))
			}
		}
	}
}

// fly turns, climbs and accelerates towards the targets, then moves along
// the new heading.
func (s *Service) fly(a *SimulatedAircraft, dt float64) {
	a.Heading = physics.TurnToward(a.Heading, a.TargetHeading, s.opts.TurnRateDegSec*dt)

	accel := s.opts.AccelKtsSec
	onRoll := a.Phase == traffic.PhaseDeparting && a.Altitude <= 0
	if onRoll {
		accel *= takeoffRollAccel
	}
	a.Groundspeed = physics.StepToward(a.Groundspeed, a.TargetSpeed, accel*dt)

	if !onRoll || a.Groundspeed >= rotateSpeedKts {
		rate := s.opts.ClimbRateFpm
		if a.Expedite {
			rate *= 2
		}
		a.Altitude = physics.StepToward(a.Altitude, a.TargetAltitude, physics.ClimbStep(rate, dt))
		if a.Altitude == a.TargetAltitude {
			a.Expedite = false
		}
	}

	a.Position = physics.Advance(a.Position, a.Heading, a.Groundspeed, dt, s.opts.UnitsPerNM)
}

func (s *Service) exited(a *SimulatedAircraft) bool {
	if !s.bounds.Contains(a.Position) {
		return true
	}
	dest, err := s.registry.Lookup(a.Destination)
	return err == nil && geometry.Distance(a.Position, dest) < exitRadius
}

// threshold returns the landing threshold for a runway identifier like "27L"
func (s *Service) threshold(runway string) (geometry.Point, bool) {
	if len(runway) < 2 || runway[:len(runway)-1] != s.runway.Name {
		return geometry.Point{}, false
	}
	p, ok := s.runway.Thresholds[runway[len(runway)-1:]]
	return p, ok
}

// Dispatch applies engine commands to the simulated aircraft. Commands for
// unknown aircraft are reported and skipped.
func (s *Service) Dispatch(ctx context.Context, cycle int64, cmds []engine.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	var errs []error
	for _, cmd := range cmds {
		in, err := ParseInstruction(cmd.Text)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.applyLocked(in); err != nil {
			errs = append(errs, fmt.Errorf("cycle %d: %w", cycle, err))
		}
	}
	return errors.Join(errs...)
}

// Apply flies a single parsed instruction
func (s *Service) Apply(in *Instruction) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.applyLocked(in)
}

func (s *Service) applyLocked(in *Instruction) error {
	a, ok := s.aircraft[in.Callsign]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAircraft, in.Callsign)
	}

	if in.Takeoff {
		if a.Phase != traffic.PhaseQueued {
			return fmt.Errorf("%s is not queued for takeoff", a.Callsign)
		}
		threshold, ok := s.threshold(a.Runway)
		if !ok {
			return fmt.Errorf("%s queued for unknown runway %s", a.Callsign, a.Runway)
		}
		// Departures roll in the landing direction
		a.Phase = traffic.PhaseDeparting
		a.Position = threshold
		a.Heading = s.runway.Heading
		a.TargetHeading = s.runway.Heading
		a.Altitude = 0
		a.Groundspeed = 0
		a.TargetSpeed = departureSpeedKts
	}

	if in.GoAround {
		a.Phase = traffic.PhaseArriving
		a.ClearedRunway = ""
		a.Runway = ""
	}

	if in.Heading != nil {
		a.TargetHeading = *in.Heading
	}
	if in.Altitude != nil {
		a.TargetAltitude = *in.Altitude
		a.Expedite = in.Expedite
	}
	if in.Speed != nil {
		a.TargetSpeed = *in.Speed
	}
	if in.Destination != "" {
		if _, err := s.registry.Lookup(in.Destination); err != nil {
			return fmt.Errorf("%s: %w", a.Callsign, err)
		}
		a.Destination = in.Destination
	}
	if in.Runway != "" {
		if _, ok := s.threshold(in.Runway); !ok {
			return fmt.Errorf("%s cleared to unknown runway %s", a.Callsign, in.Runway)
		}
		a.ClearedRunway = in.Runway
	}

	return nil
}

// randomRequest builds an arrival entering from the scope edge or a
// departure queued on a random side.
func (s *Service) randomRequest() SpawnRequest {
	if len(s.opts.Exits) > 0 && s.rng.Intn(100) >= arrivalSpawnPercent {
		side := traffic.SideLeft
		if s.rng.Intn(2) == 1 {
			side = traffic.SideRight
		}
		return SpawnRequest{
			Phase:       traffic.PhaseQueued,
			Runway:      s.runway.Name + string(side),
			Destination: s.opts.Exits[s.rng.Intn(len(s.opts.Exits))],
		}
	}

	// Enter a little inside the north or south edge, pointed at the field
	inset := boundsMargin / 2
	pos := geometry.Point{X: s.bounds.MinX + inset + s.rng.Float64()*(s.bounds.MaxX-s.bounds.MinX-2*inset)}
	if s.rng.Intn(2) == 0 {
		pos.Y = s.bounds.MaxY - inset
	} else {
		pos.Y = s.bounds.MinY + inset
	}
	step := (spawnMaxAltitudeFt - spawnMinAltitudeFt) / 1000
	return SpawnRequest{
		Phase:       traffic.PhaseArriving,
		Position:    pos,
		Heading:     float64(geometry.Heading(pos, s.registry.FieldCenter())),
		Altitude:    float64(spawnMinAltitudeFt + s.rng.Intn(step+1)*1000),
		Groundspeed: spawnArrivalSpeed,
	}
}

// generateFlightNumber generates a flight number in format SIM001-SIM999
func (s *Service) generateFlightNumber() string {
	for {
		flight := fmt.Sprintf("SIM%03d", s.rng.Intn(999)+1)
		if _, exists := s.aircraft[flight]; !exists {
			return flight
		}
	}
}
