package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/yegors/atc-autopilot/internal/engine"
	"github.com/yegors/atc-autopilot/pkg/logger"
	"golang.org/x/time/rate"
)

// HTTPDispatcher posts commands one by one to an actuator endpoint, paced to
// the rate at which the actuator can type them.
type HTTPDispatcher struct {
	httpClient  *http.Client
	url         string
	rateLimiter *rate.Limiter
	logger      *logger.Logger
}

// commandRequest is the body posted for each command
type commandRequest struct {
	Cycle    int64  `json:"cycle"`
	Callsign string `json:"callsign"`
	Kind     string `json:"kind"`
	Command  string `json:"command"`
}

// NewHTTPDispatcher creates a rate limited HTTP dispatcher
func NewHTTPDispatcher(url string, commandsPerSecond float64, burst int, timeout time.Duration, log *logger.Logger) *HTTPDispatcher {
	if burst < 1 {
		burst = 1
	}
	return &HTTPDispatcher{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		url:         url,
		rateLimiter: rate.NewLimiter(rate.Limit(commandsPerSecond), burst),
		logger:      log.Named("dispatch-http"),
	}
}

// Dispatch posts each command in order. It stops when the context is done
// and returns the first delivery error after trying the rest of the batch.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, cycle int64, cmds []engine.Command) error {
	var firstErr error
	for _, c := range cmds {
		if err := d.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("dispatch interrupted: %w", err)
		}
		if err := d.post(ctx, cycle, c); err != nil {
			d.logger.Warn("Command delivery failed",
				logger.String("command", c.Text),
				logger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (d *HTTPDispatcher) post(ctx context.Context, cycle int64, c engine.Command) error {
	body, err := json.Marshal(commandRequest{
		Cycle:    cycle,
		Callsign: c.Callsign,
		Kind:     string(c.Kind),
		Command:  c.Text,
	})
	if err != nil {
		return fmt.Errorf("failed to encode command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}
