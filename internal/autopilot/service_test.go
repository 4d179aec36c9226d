package autopilot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yegors/atc-autopilot/internal/engine"
	"github.com/yegors/atc-autopilot/internal/registry"
	"github.com/yegors/atc-autopilot/internal/snapshot"
	"github.com/yegors/atc-autopilot/internal/storage/sqlite"
	"github.com/yegors/atc-autopilot/internal/traffic"
	"github.com/yegors/atc-autopilot/internal/websocket"
	"github.com/yegors/atc-autopilot/pkg/logger"
)

type fakeSource struct {
	mu    sync.Mutex
	snaps []*traffic.Snapshot
	err   error
	polls int
}

func (f *fakeSource) Poll(ctx context.Context) (*traffic.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.snaps) == 0 {
		return nil, snapshot.ErrNoSnapshot
	}
	snap := f.snaps[0]
	f.snaps = f.snaps[1:]
	return snap, nil
}

func (f *fakeSource) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

type recordingDispatcher struct {
	batches [][]string
	err     error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, cycle int64, cmds []engine.Command) error {
	d.batches = append(d.batches, engine.Strings(cmds))
	return d.err
}

type recordingJournal struct {
	records []*sqlite.CycleRecord
	err     error
}

func (j *recordingJournal) RecordCycle(rec *sqlite.CycleRecord) (int64, error) {
	if j.err != nil {
		return 0, j.err
	}
	j.records = append(j.records, rec)
	return int64(len(j.records)), nil
}

type recordingHub struct {
	messages []*websocket.Message
}

func (h *recordingHub) Broadcast(message *websocket.Message) {
	h.messages = append(h.messages, message)
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	reg, err := registry.Load("../../configs/airport.yaml")
	if err != nil {
		t.Fatalf("Failed to load layout: %v", err)
	}
	eng, err := engine.New(engine.Config{
		LandingRunway: "27",
		InitialSide:   traffic.SideLeft,
		Thresholds:    engine.DefaultThresholds(),
	}, reg, logger.NewNop())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func queuedSnapshot() *traffic.Snapshot {
	return &traffic.Snapshot{
		Taken: time.Now(),
		Aircraft: []traffic.Aircraft{
			{Callsign: "DEP1", Phase: traffic.PhaseQueued, Runway: "27L", Destination: "DVR"},
		},
	}
}

func TestRunCycle(t *testing.T) {
	eng := newTestEngine(t)
	source := &fakeSource{snaps: []*traffic.Snapshot{queuedSnapshot()}}
	dispatcher := &recordingDispatcher{}
	journal := &recordingJournal{}
	hub := &recordingHub{}
	s := NewService(eng, source, dispatcher, journal, hub, time.Second, logger.NewNop())

	res, err := s.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res == nil || res.Cycle != 1 {
		t.Fatalf("Expected cycle 1 result, got %+v", res)
	}

	if len(dispatcher.batches) != 1 || len(dispatcher.batches[0]) != 1 || dispatcher.batches[0][0] != "DEP1 C DVR C 11 T" {
		t.Errorf("Expected takeoff batch, got %v", dispatcher.batches)
	}

	if len(journal.records) != 1 {
		t.Fatalf("Expected 1 journal record, got %d", len(journal.records))
	}
	rec := journal.records[0]
	if rec.Cycle != 1 || rec.Aircraft != 1 || len(rec.Commands) != 1 || len(rec.Events) != 1 {
		t.Errorf("Unexpected journal record: %+v", rec)
	}

	if len(hub.messages) != 2 {
		t.Fatalf("Expected cycle and event messages, got %d", len(hub.messages))
	}
	if hub.messages[0].Type != websocket.MessageTypeCycle {
		t.Errorf("Expected cycle message first, got %s", hub.messages[0].Type)
	}
	if hub.messages[1].Type != websocket.MessageTypeEvent || hub.messages[1].Data["callsign"] != "DEP1" {
		t.Errorf("Expected takeoff event for DEP1, got %+v", hub.messages[1])
	}

	status := s.Status()
	if status.Cycles != 1 || status.Commands != 1 {
		t.Errorf("Expected 1 cycle and 1 command, got %+v", status)
	}
	if s.Counters().Takeoffs != 1 {
		t.Errorf("Expected 1 takeoff, got %d", s.Counters().Takeoffs)
	}
	if s.Snapshot() == nil || s.LastResult() != res {
		t.Error("Expected snapshot and result to be published")
	}
}

func TestPublishedStateIsCopy(t *testing.T) {
	eng := newTestEngine(t)
	source := &fakeSource{snaps: []*traffic.Snapshot{queuedSnapshot()}}
	s := NewService(eng, source, &recordingDispatcher{}, nil, nil, time.Second, logger.NewNop())

	if _, err := s.RunCycle(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	published := s.State()
	if published == eng.State() {
		t.Fatal("Expected a copy of the engine state")
	}
	if !published.TakeoffInFlight["DEP1"] {
		t.Error("Expected published state to carry the takeoff")
	}

	delete(eng.State().TakeoffInFlight, "DEP1")
	if !published.TakeoffInFlight["DEP1"] {
		t.Error("Expected published state to be independent of the engine")
	}
}

func TestNoSnapshotSkips(t *testing.T) {
	eng := newTestEngine(t)
	dispatcher := &recordingDispatcher{}
	s := NewService(eng, &fakeSource{}, dispatcher, nil, nil, time.Second, logger.NewNop())

	res, err := s.RunCycle(context.Background())
	if err != nil || res != nil {
		t.Fatalf("Expected nil result and error, got %+v, %v", res, err)
	}
	if s.Status().Skipped != 1 {
		t.Errorf("Expected 1 skipped tick, got %d", s.Status().Skipped)
	}
	if len(dispatcher.batches) != 0 {
		t.Errorf("Expected no dispatch, got %d batches", len(dispatcher.batches))
	}
	if eng.State().Counters.Cycles != 0 {
		t.Errorf("Expected engine not to run, got %d cycles", eng.State().Counters.Cycles)
	}
}

func TestPollError(t *testing.T) {
	source := &fakeSource{err: errors.New("renderer unreachable")}
	s := NewService(newTestEngine(t), source, &recordingDispatcher{}, nil, nil, time.Second, logger.NewNop())

	if _, err := s.RunCycle(context.Background()); err == nil {
		t.Fatal("Expected poll error")
	}
	status := s.Status()
	if status.PollErrors != 1 || status.LastError != "renderer unreachable" {
		t.Errorf("Expected poll error to be counted, got %+v", status)
	}
}

func TestDownstreamErrorsAreCounted(t *testing.T) {
	source := &fakeSource{snaps: []*traffic.Snapshot{queuedSnapshot()}}
	dispatcher := &recordingDispatcher{err: errors.New("actuator down")}
	journal := &recordingJournal{err: errors.New("disk full")}
	s := NewService(newTestEngine(t), source, dispatcher, journal, nil, time.Second, logger.NewNop())

	res, err := s.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("Expected cycle to complete, got %v", err)
	}
	if len(res.Commands) != 1 {
		t.Errorf("Expected takeoff command, got %v", engine.Strings(res.Commands))
	}

	status := s.Status()
	if status.DispatchErrors != 1 || status.JournalErrors != 1 {
		t.Errorf("Expected 1 dispatch and 1 journal error, got %+v", status)
	}
	if status.Cycles != 1 {
		t.Errorf("Expected cycle to be published, got %d", status.Cycles)
	}
}

func TestStartStop(t *testing.T) {
	source := &fakeSource{}
	s := NewService(newTestEngine(t), source, &recordingDispatcher{}, nil, nil, 5*time.Millisecond, logger.NewNop())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Unexpected start error: %v", err)
	}
	if !s.Status().Running {
		t.Error("Expected running after start")
	}

	deadline := time.Now().Add(2 * time.Second)
	for source.pollCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if source.pollCount() < 2 {
		t.Fatalf("Expected loop to poll, got %d polls", source.pollCount())
	}

	s.Stop()
	if s.Status().Running {
		t.Error("Expected stopped after stop")
	}

	polls := source.pollCount()
	time.Sleep(20 * time.Millisecond)
	if source.pollCount() != polls {
		t.Error("Expected no polls after stop")
	}

	// Stopping twice is harmless
	s.Stop()
}
