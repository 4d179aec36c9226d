package snapshot

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/yegors/atc-autopilot/internal/traffic"
	"github.com/yegors/atc-autopilot/pkg/logger"
)

// maxLineSize bounds one recorded snapshot line
const maxLineSize = 4 * 1024 * 1024

// ReplaySource plays back snapshots recorded as JSON lines
type ReplaySource struct {
	snapshots [][]byte
	loop      bool
	logger    *logger.Logger

	mu   sync.Mutex
	next int
}

// NewReplaySource reads every line of a recording. Blank lines are skipped.
func NewReplaySource(path string, loop bool, log *logger.Logger) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay file: %w", err)
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), line...))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read replay file: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("replay file %s holds no snapshots", path)
	}

	l := log.Named("snapshot-replay")
	l.Info("Replay loaded", logger.String("path", path), logger.Int("snapshots", len(lines)), logger.Bool("loop", loop))

	return &ReplaySource{snapshots: lines, loop: loop, logger: l}, nil
}

// Len returns the number of recorded snapshots
func (s *ReplaySource) Len() int {
	return len(s.snapshots)
}

// Poll returns the next recorded snapshot. Once the recording is exhausted it
// restarts when looping, otherwise it reports ErrNoSnapshot.
func (s *ReplaySource) Poll(ctx context.Context) (*traffic.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.next >= len(s.snapshots) {
		if !s.loop {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: replay finished", ErrNoSnapshot)
		}
		s.next = 0
		s.logger.Debug("Replay restarted")
	}
	line := s.snapshots[s.next]
	index := s.next
	s.next++
	s.mu.Unlock()

	snap, _, err := Decode(bytes.NewReader(line))
	if err != nil {
		return nil, fmt.Errorf("replay line %d: %w", index+1, err)
	}
	return snap, nil
}
