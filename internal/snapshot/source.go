// Package snapshot supplies the traffic picture polled by the decision loop.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/yegors/atc-autopilot/internal/traffic"
)

// ErrNoSnapshot is returned by Poll when no fresh snapshot is available this
// cycle. The loop skips the cycle.
var ErrNoSnapshot = errors.New("no snapshot available")

// Source provides one snapshot per decision cycle
type Source interface {
	Poll(ctx context.Context) (*traffic.Snapshot, error)
}

// Decode reads one JSON snapshot and normalizes it
func Decode(r io.Reader) (*traffic.Snapshot, int, error) {
	var snap traffic.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, 0, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	dropped := Normalize(&snap)
	return &snap, dropped, nil
}

// Normalize drops records without a callsign, with an unknown phase, or
// repeating a callsign already listed. It returns the number of records
// dropped.
func Normalize(snap *traffic.Snapshot) int {
	seen := make(map[string]bool, len(snap.Aircraft))
	kept := snap.Aircraft[:0]
	for _, a := range snap.Aircraft {
		if a.Callsign == "" || !a.Phase.Valid() || seen[a.Callsign] {
			continue
		}
		seen[a.Callsign] = true
		kept = append(kept, a)
	}
	dropped := len(snap.Aircraft) - len(kept)
	snap.Aircraft = kept
	return dropped
}
