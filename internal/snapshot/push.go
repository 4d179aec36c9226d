package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/yegors/atc-autopilot/internal/traffic"
)

// PushSource holds the latest snapshot pushed by an external scraper. Each
// pushed snapshot is handed to the loop once.
type PushSource struct {
	mu     sync.Mutex
	latest *traffic.Snapshot
	pushed int64
}

// NewPushSource creates an empty push source
func NewPushSource() *PushSource {
	return &PushSource{}
}

// Push stores a snapshot, replacing any not yet polled. It returns the number
// of records dropped by normalization.
func (s *PushSource) Push(snap *traffic.Snapshot) int {
	dropped := Normalize(snap)
	if snap.Taken.IsZero() {
		snap.Taken = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = snap
	s.pushed++
	return dropped
}

// Pushed returns the number of snapshots received
func (s *PushSource) Pushed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushed
}

// Poll returns the latest pushed snapshot, or ErrNoSnapshot when nothing new
// arrived since the previous poll.
func (s *PushSource) Poll(ctx context.Context) (*traffic.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil, ErrNoSnapshot
	}
	snap := s.latest
	s.latest = nil
	return snap, nil
}
