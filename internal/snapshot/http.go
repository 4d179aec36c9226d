package snapshot

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/yegors/atc-autopilot/internal/traffic"
	"github.com/yegors/atc-autopilot/pkg/logger"
)

// HTTPSource fetches a JSON snapshot from a scraper endpoint every poll
type HTTPSource struct {
	httpClient *http.Client
	url        string
	logger     *logger.Logger
}

// NewHTTPSource creates a new HTTP snapshot source
func NewHTTPSource(url string, timeout time.Duration, log *logger.Logger) *HTTPSource {
	return &HTTPSource{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		url:    url,
		logger: log.Named("snapshot-http"),
	}
}

// Poll fetches the current snapshot
func (s *HTTPSource) Poll(ctx context.Context) (*traffic.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return nil, ErrNoSnapshot
	default:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	snap, dropped, err := Decode(resp.Body)
	if err != nil {
		return nil, err
	}
	if snap.Taken.IsZero() {
		snap.Taken = time.Now()
	}

	s.logger.Debug("Fetched snapshot",
		logger.Int("aircraft_count", len(snap.Aircraft)),
		logger.Int("dropped", dropped))

	return snap, nil
}
