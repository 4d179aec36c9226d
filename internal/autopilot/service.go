// Package autopilot runs the decision loop: every tick it polls a snapshot,
// runs the engine, journals the cycle and dispatches the commands.
package autopilot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mohae/deepcopy"
	"github.com/yegors/atc-autopilot/internal/dispatch"
	"github.com/yegors/atc-autopilot/internal/engine"
	"github.com/yegors/atc-autopilot/internal/snapshot"
	"github.com/yegors/atc-autopilot/internal/storage/sqlite"
	"github.com/yegors/atc-autopilot/internal/traffic"
	"github.com/yegors/atc-autopilot/internal/websocket"
	"github.com/yegors/atc-autopilot/pkg/logger"
)

// Journal records completed cycles
type Journal interface {
	RecordCycle(rec *sqlite.CycleRecord) (int64, error)
}

// Status is the loop health published to the API
type Status struct {
	Running        bool      `json:"running"`
	Cycles         int64     `json:"cycles"`
	Skipped        int64     `json:"skipped"` // ticks without a new snapshot
	Commands       int64     `json:"commands"`
	PollErrors     int64     `json:"poll_errors"`
	DispatchErrors int64     `json:"dispatch_errors"`
	JournalErrors  int64     `json:"journal_errors"`
	LastCycleAt    time.Time `json:"last_cycle_at,omitempty"`
	LastDurationMs float64   `json:"last_duration_ms"`
	LastError      string    `json:"last_error,omitempty"`
}

// Service drives the engine from a snapshot source
type Service struct {
	engine     *engine.Engine
	source     snapshot.Source
	dispatcher dispatch.Dispatcher
	journal    Journal              // optional
	hub        dispatch.Broadcaster // optional
	interval   time.Duration

	// cycleMu serializes engine access
	cycleMu sync.Mutex

	mu         sync.RWMutex
	state      *engine.State
	snapshot   *traffic.Snapshot
	lastResult *engine.Result
	status     Status

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *logger.Logger
}

// NewService creates the decision loop. journal and hub may be nil.
func NewService(eng *engine.Engine, source snapshot.Source, dispatcher dispatch.Dispatcher, journal Journal, hub dispatch.Broadcaster, interval time.Duration, logger *logger.Logger) *Service {
	s := &Service{
		engine:     eng,
		source:     source,
		dispatcher: dispatcher,
		journal:    journal,
		hub:        hub,
		interval:   interval,
		state:      deepcopy.Copy(eng.State()).(*engine.State),
		stopCh:     make(chan struct{}),
		logger:     logger.Named("autopilot"),
	}
	return s
}

// Start runs the loop in the background until Stop or ctx cancellation
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting autopilot",
		logger.Duration("tick_interval", s.interval),
	)

	s.setRunning(true)
	s.wg.Add(1)
	go s.loop(ctx)

	return nil
}

// Stop stops the loop and waits for the current cycle to finish
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping autopilot")
		close(s.stopCh)
	})
	s.wg.Wait()
	s.setRunning(false)
	s.logger.Info("Autopilot stopped")
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()
	defer s.setRunning(false)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunCycle(ctx); err != nil {
				s.logger.Error("Failed to run cycle", logger.Error(err))
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunCycle polls one snapshot and runs one decision cycle. It returns a nil
// result without error when the source had nothing new. Dispatch and journal
// failures are logged and counted, never returned.
func (s *Service) RunCycle(ctx context.Context) (*engine.Result, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	snap, err := s.source.Poll(ctx)
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		s.mu.Lock()
		s.status.Skipped++
		s.mu.Unlock()
		return nil, nil
	}
	if err != nil {
		s.mu.Lock()
		s.status.PollErrors++
		s.status.LastError = err.Error()
		s.mu.Unlock()
		return nil, err
	}

	started := time.Now()
	res := s.engine.Tick(snap)
	duration := time.Since(started)

	s.record(snap, &res, started, duration)

	if err := s.dispatcher.Dispatch(ctx, res.Cycle, res.Commands); err != nil {
		s.logger.Error("Failed to dispatch commands",
			logger.Int64("cycle", res.Cycle),
			logger.Int("commands", len(res.Commands)),
			logger.Error(err))
		s.mu.Lock()
		s.status.DispatchErrors++
		s.status.LastError = err.Error()
		s.mu.Unlock()
	}

	s.publish(snap, &res, started, duration)
	s.broadcast(snap, &res)

	return &res, nil
}

func (s *Service) record(snap *traffic.Snapshot, res *engine.Result, started time.Time, duration time.Duration) {
	if s.journal == nil {
		return
	}

	rec := &sqlite.CycleRecord{
		Cycle:      res.Cycle,
		StartedAt:  started,
		DurationMs: float64(duration.Microseconds()) / 1000,
		Aircraft:   len(snap.Aircraft),
		Commands:   res.Commands,
		Events:     res.Events,
	}
	if _, err := s.journal.RecordCycle(rec); err != nil {
		s.logger.Error("Failed to journal cycle", logger.Int64("cycle", res.Cycle), logger.Error(err))
		s.mu.Lock()
		s.status.JournalErrors++
		s.status.LastError = err.Error()
		s.mu.Unlock()
	}
}

// publish swaps in a copy of the engine state for readers outside the loop
func (s *Service) publish(snap *traffic.Snapshot, res *engine.Result, started time.Time, duration time.Duration) {
	state := deepcopy.Copy(s.engine.State()).(*engine.State)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.snapshot = snap
	s.lastResult = res
	s.status.Cycles = res.Cycle
	s.status.Commands += int64(len(res.Commands))
	s.status.LastCycleAt = started.UTC()
	s.status.LastDurationMs = float64(duration.Microseconds()) / 1000
}

func (s *Service) broadcast(snap *traffic.Snapshot, res *engine.Result) {
	if s.hub == nil {
		return
	}

	counters := s.Counters()
	s.hub.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeCycle,
		Data: map[string]any{
			"cycle":    res.Cycle,
			"aircraft": len(snap.Aircraft),
			"commands": len(res.Commands),
			"counters": counters,
		},
	})

	for _, ev := range res.Events {
		s.hub.Broadcast(&websocket.Message{
			Type: websocket.MessageTypeEvent,
			Data: map[string]any{
				"cycle":    res.Cycle,
				"kind":     string(ev.Kind),
				"callsign": ev.Callsign,
				"detail":   ev.Detail,
			},
		})
	}
}

func (s *Service) setRunning(running bool) {
	s.mu.Lock()
	s.status.Running = running
	s.mu.Unlock()
}

// State returns the engine state as of the last completed cycle. The value
// is shared; callers must not modify it.
func (s *Service) State() *engine.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Counters returns the operational counters as of the last completed cycle
func (s *Service) Counters() engine.Counters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Counters
}

// Snapshot returns the last snapshot the engine ran on, or nil
func (s *Service) Snapshot() *traffic.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// LastResult returns the last cycle result, or nil
func (s *Service) LastResult() *engine.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastResult
}

// Status returns the loop health
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}
