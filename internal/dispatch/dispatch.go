// Package dispatch delivers command batches to the external actuator. The
// engine never inspects the outcome; failures are logged by the loop.
package dispatch

import (
	"context"
	"errors"

	"github.com/yegors/atc-autopilot/internal/engine"
	"github.com/yegors/atc-autopilot/pkg/logger"
)

// Dispatcher sends one cycle's commands, in order
type Dispatcher interface {
	Dispatch(ctx context.Context, cycle int64, cmds []engine.Command) error
}

// LogDispatcher writes every command to the log
type LogDispatcher struct {
	logger *logger.Logger
}

// NewLogDispatcher creates a dispatcher that only logs
func NewLogDispatcher(log *logger.Logger) *LogDispatcher {
	return &LogDispatcher{logger: log.Named("dispatch-log")}
}

// Dispatch logs the commands
func (d *LogDispatcher) Dispatch(ctx context.Context, cycle int64, cmds []engine.Command) error {
	for _, c := range cmds {
		d.logger.Info("Command",
			logger.Int64("cycle", cycle),
			logger.String("callsign", c.Callsign),
			logger.String("kind", string(c.Kind)),
			logger.String("text", c.Text))
	}
	return nil
}

// Multi fans a batch out to several dispatchers. Every dispatcher is tried;
// the errors are joined.
type Multi []Dispatcher

// Dispatch sends the batch to every dispatcher
func (m Multi) Dispatch(ctx context.Context, cycle int64, cmds []engine.Command) error {
	var errs []error
	for _, d := range m {
		if err := d.Dispatch(ctx, cycle, cmds); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
