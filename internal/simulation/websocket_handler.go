package simulation

import (
	"fmt"
	"strings"

	"github.com/yegors/atc-autopilot/internal/websocket"
	"github.com/yegors/atc-autopilot/pkg/logger"
)

// WebSocketHandler lets /ws clients steer simulated aircraft
type WebSocketHandler struct {
	service *Service
	logger  *logger.Logger
}

// NewWebSocketHandler creates a new WebSocket message handler
func NewWebSocketHandler(service *Service, logger *logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		service: service,
		logger:  logger.Named("sim-ws-handler"),
	}
}

// HandleMessage handles incoming WebSocket messages
func (h *WebSocketHandler) HandleMessage(client *websocket.Client, messageType string, data map[string]any) error {
	switch messageType {
	case websocket.MessageTypeSimCommand:
		err := h.handleCommand(data)
		h.reply(client, data, err)
		return err
	default:
		h.logger.Debug("Unhandled message type", logger.String("type", messageType))
		return nil
	}
}

func (h *WebSocketHandler) handleCommand(data map[string]any) error {
	callsign, _ := data["callsign"].(string)
	command, _ := data["command"].(string)
	if callsign == "" || command == "" {
		return fmt.Errorf("sim_command needs callsign and command")
	}

	in, err := ParseInstruction(strings.ToUpper(callsign) + " " + command)
	if err != nil {
		return err
	}
	if err := h.service.Apply(in); err != nil {
		return err
	}

	h.logger.Debug("Applied simulation command via WebSocket",
		logger.String("callsign", in.Callsign),
		logger.String("command", command))
	return nil
}

// reply is skipped for a nil client
func (h *WebSocketHandler) reply(client *websocket.Client, data map[string]any, err error) {
	if client == nil {
		return
	}

	result := map[string]any{
		"callsign": data["callsign"],
		"command":  data["command"],
		"status":   "success",
	}
	if err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
	}

	if !client.SendMessage(&websocket.Message{Type: websocket.MessageTypeSimResult, Data: result}) {
		h.logger.Warn("Failed to send sim_result, client buffer full or closed")
	}
}
