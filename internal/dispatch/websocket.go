package dispatch

import (
	"context"

	"github.com/yegors/atc-autopilot/internal/engine"
	"github.com/yegors/atc-autopilot/internal/websocket"
)

// Broadcaster is the part of the WebSocket hub used for dispatch
type Broadcaster interface {
	Broadcast(message *websocket.Message)
}

// WebSocketDispatcher pushes each batch to /ws subscribers, where a
// browser-side actuator types the commands into the game.
type WebSocketDispatcher struct {
	hub Broadcaster
}

// NewWebSocketDispatcher creates a dispatcher on top of a hub
func NewWebSocketDispatcher(hub Broadcaster) *WebSocketDispatcher {
	return &WebSocketDispatcher{hub: hub}
}

// Dispatch broadcasts the batch as a single commands message. Empty batches
// are not sent.
func (d *WebSocketDispatcher) Dispatch(ctx context.Context, cycle int64, cmds []engine.Command) error {
	if len(cmds) == 0 {
		return nil
	}
	d.hub.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeCommands,
		Data: map[string]any{
			"cycle":    cycle,
			"commands": engine.Strings(cmds),
			"detail":   cmds,
		},
	})
	return nil
}
