package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/yegors/atc-autopilot/internal/autopilot"
	"github.com/yegors/atc-autopilot/internal/config"
	"github.com/yegors/atc-autopilot/internal/geometry"
	"github.com/yegors/atc-autopilot/internal/registry"
	"github.com/yegors/atc-autopilot/internal/simulation"
	"github.com/yegors/atc-autopilot/internal/snapshot"
	"github.com/yegors/atc-autopilot/internal/storage/sqlite"
	"github.com/yegors/atc-autopilot/internal/traffic"
	"github.com/yegors/atc-autopilot/internal/websocket"
	"github.com/yegors/atc-autopilot/pkg/logger"
)

// Handler contains the API handlers. journal, push and simulation are nil
// when the matching feature is not configured.
type Handler struct {
	autopilot  *autopilot.Service
	journal    *sqlite.Journal
	push       *snapshot.PushSource
	simulation *simulation.Service
	registry   *registry.Registry
	config     *config.Config
	wsServer   *websocket.Server
	logger     *logger.Logger
}

// Dependencies groups the services exposed by the API
type Dependencies struct {
	Autopilot  *autopilot.Service
	Journal    *sqlite.Journal
	Push       *snapshot.PushSource
	Simulation *simulation.Service
	Registry   *registry.Registry
	Config     *config.Config
	WSServer   *websocket.Server
}

// NewHandler creates a new API handler
func NewHandler(deps Dependencies, logger *logger.Logger) *Handler {
	return &Handler{
		autopilot:  deps.Autopilot,
		journal:    deps.Journal,
		push:       deps.Push,
		simulation: deps.Simulation,
		registry:   deps.Registry,
		config:     deps.Config,
		wsServer:   deps.WSServer,
		logger:     logger.Named("api-handler"),
	}
}

// GetHealth returns the health status of the decision loop
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := h.autopilot.Status()

	health := "ok"
	if !status.Running {
		health = "stopped"
	}

	response := map[string]any{
		"status":         health,
		"cycles":         status.Cycles,
		"last_cycle_at":  status.LastCycleAt,
		"last_error":     status.LastError,
		"journal":        h.journal != nil,
		"ws_clients":     0,
		"source":         h.config.Source.Type,
		"landing_runway": h.config.Engine.LandingRunway,
	}
	if h.wsServer != nil {
		response["ws_clients"] = h.wsServer.ClientCount()
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetState returns the engine state, the last snapshot and the last result
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"state":       h.autopilot.State(),
		"snapshot":    h.autopilot.Snapshot(),
		"last_result": h.autopilot.LastResult(),
	})
}

// GetCounters returns the operational counters and loop status
func (h *Handler) GetCounters(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"counters": h.autopilot.Counters(),
		"status":   h.autopilot.Status(),
	}
	if h.push != nil {
		response["snapshots_pushed"] = h.push.Pushed()
	}
	WriteJSON(w, http.StatusOK, response)
}

// GetCycles returns journaled cycles, newest first
func (h *Handler) GetCycles(w http.ResponseWriter, r *http.Request) {
	if !h.requireJournal(w) {
		return
	}

	limit, offset := h.parsePaginationParams(r)
	cycles, err := h.journal.GetCycles(limit, offset)
	if err != nil {
		h.logger.Error("Failed to get cycles", logger.Error(err))
		http.Error(w, "Failed to get cycles", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"cycles": cycles,
		"count":  len(cycles),
		"limit":  limit,
		"offset": offset,
	})
}

// GetCommands returns journaled commands, optionally for one callsign
func (h *Handler) GetCommands(w http.ResponseWriter, r *http.Request) {
	if !h.requireJournal(w) {
		return
	}

	callsign := strings.ToUpper(r.URL.Query().Get("callsign"))
	limit, offset := h.parsePaginationParams(r)
	commands, err := h.journal.GetCommands(callsign, limit, offset)
	if err != nil {
		h.logger.Error("Failed to get commands", logger.Error(err), logger.String("callsign", callsign))
		http.Error(w, "Failed to get commands", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"commands": commands,
		"count":    len(commands),
		"limit":    limit,
		"offset":   offset,
	})
}

// GetEvents returns journaled engine events, optionally of one kind
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	if !h.requireJournal(w) {
		return
	}

	kind := r.URL.Query().Get("kind")
	limit, offset := h.parsePaginationParams(r)
	events, err := h.journal.GetEvents(kind, limit, offset)
	if err != nil {
		h.logger.Error("Failed to get events", logger.Error(err), logger.String("kind", kind))
		http.Error(w, "Failed to get events", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
		"limit":  limit,
		"offset": offset,
	})
}

// GetConfig returns the public configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	publicConfig := map[string]any{
		"engine": map[string]any{
			"tick_interval_seconds": h.config.Engine.TickIntervalSecs,
			"landing_runway":        h.config.Engine.LandingRunway,
			"initial_side":          h.config.Engine.InitialSide,
			"thresholds":            h.config.EngineSettings().Thresholds,
		},
		"source": map[string]any{
			"type": h.config.Source.Type,
		},
		"dispatch": map[string]any{
			"targets":             h.config.Dispatch.Targets,
			"commands_per_second": h.config.Dispatch.CommandsPerSecond,
		},
		"storage": map[string]any{
			"enabled":           h.config.Storage.Enabled,
			"journal_retention": h.config.Storage.JournalRetention,
		},
	}

	WriteJSON(w, http.StatusOK, publicConfig)
}

// GetLayout returns the airport layout the engine runs against
func (h *Handler) GetLayout(w http.ResponseWriter, r *http.Request) {
	waypoints := make(map[string]geometry.Point)
	for _, name := range h.registry.WaypointNames() {
		p, _ := h.registry.Lookup(name)
		waypoints[name] = p
	}

	response := map[string]any{
		"airport":      h.registry.Airport(),
		"field_center": h.registry.FieldCenter(),
		"waypoints":    waypoints,
	}
	if rwy, err := h.registry.Runway(h.config.Engine.LandingRunway); err == nil {
		response["landing_runway"] = rwy
	}

	WriteJSON(w, http.StatusOK, response)
}

// PostSnapshot accepts a snapshot from an external scraper
func (h *Handler) PostSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.push == nil {
		http.Error(w, "Snapshot push is not enabled", http.StatusNotFound)
		return
	}

	var snap traffic.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	dropped := h.push.Push(&snap)
	if dropped > 0 {
		h.logger.Debug("Dropped invalid snapshot records", logger.Int("dropped", dropped))
	}

	WriteJSON(w, http.StatusAccepted, map[string]any{
		"status":   "accepted",
		"aircraft": len(snap.Aircraft),
		"dropped":  dropped,
	})
}

// GetSimulatedAircraft returns all simulated aircraft
func (h *Handler) GetSimulatedAircraft(w http.ResponseWriter, r *http.Request) {
	if !h.requireSimulation(w) {
		return
	}
	WriteJSON(w, http.StatusOK, h.simulation.Aircraft())
}

// CreateSimulatedAircraft spawns a simulated aircraft
func (h *Handler) CreateSimulatedAircraft(w http.ResponseWriter, r *http.Request) {
	if !h.requireSimulation(w) {
		return
	}

	var req simulation.SpawnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	req.Callsign = strings.ToUpper(req.Callsign)

	if req.Phase == traffic.PhaseArriving {
		if req.Altitude < 0 || req.Altitude > 60000 {
			http.Error(w, "Invalid altitude (0-60000 ft)", http.StatusBadRequest)
			return
		}
		if req.Heading < 0 || req.Heading >= 360 {
			http.Error(w, "Invalid heading (0-359 degrees)", http.StatusBadRequest)
			return
		}
		if req.Groundspeed < 0 || req.Groundspeed > 500 {
			http.Error(w, "Invalid speed (0-500 knots)", http.StatusBadRequest)
			return
		}
	}

	aircraft, err := h.simulation.Spawn(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.logger.Info("Created simulated aircraft via API",
		logger.String("callsign", aircraft.Callsign),
		logger.String("phase", string(aircraft.Phase)))

	WriteJSON(w, http.StatusCreated, map[string]any{
		"status":   "success",
		"aircraft": aircraft,
	})
}

// CommandSimulatedAircraft applies a command such as "C 240" to an aircraft
func (h *Handler) CommandSimulatedAircraft(w http.ResponseWriter, r *http.Request) {
	if !h.requireSimulation(w) {
		return
	}

	callsign := strings.ToUpper(chi.URLParam(r, "callsign"))
	var req struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	in, err := simulation.ParseInstruction(callsign + " " + req.Command)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.simulation.Apply(in); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, simulation.ErrUnknownAircraft) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	h.logger.Debug("Applied simulation command via API",
		logger.String("callsign", callsign),
		logger.String("command", req.Command))

	WriteJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

// RemoveSimulatedAircraft removes a simulated aircraft
func (h *Handler) RemoveSimulatedAircraft(w http.ResponseWriter, r *http.Request) {
	if !h.requireSimulation(w) {
		return
	}

	callsign := strings.ToUpper(chi.URLParam(r, "callsign"))
	if err := h.simulation.Remove(callsign); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	h.logger.Info("Removed simulated aircraft via API", logger.String("callsign", callsign))
	WriteJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

// HandleWebSocket upgrades the connection and registers it with the hub
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsServer == nil {
		http.Error(w, "WebSocket not available", http.StatusNotFound)
		return
	}
	h.wsServer.HandleConnection(w, r)
}

func (h *Handler) requireJournal(w http.ResponseWriter) bool {
	if h.journal == nil {
		http.Error(w, "Journal storage is disabled", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (h *Handler) requireSimulation(w http.ResponseWriter) bool {
	if h.simulation == nil {
		http.Error(w, "Simulation is not enabled", http.StatusNotFound)
		return false
	}
	return true
}

// parsePaginationParams reads limit and offset, capping limit at the
// configured journal retention.
func (h *Handler) parsePaginationParams(r *http.Request) (int, int) {
	limit := 100 // Default limit
	offset := 0  // Default offset

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if retention := h.config.Storage.JournalRetention; retention > 0 && limit > retention {
		limit = retention
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	return limit, offset
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
