package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yegors/atc-autopilot/pkg/logger"
)

func startServer(t *testing.T) (*Server, string) {
	t.Helper()

	s := NewServer(logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(s.HandleConnection))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})

	return s, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	var hello Message
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("Failed to read hello: %v", err)
	}
	if hello.Type != MessageTypeHello {
		t.Fatalf("Expected hello, got %s", hello.Type)
	}
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Timed out waiting for condition")
}

func TestBroadcast(t *testing.T) {
	s, url := startServer(t)
	conn := dial(t, url)
	waitFor(t, func() bool { return s.ClientCount() == 1 })

	s.Broadcast(&Message{Type: MessageTypeCommands, Data: map[string]any{
		"cycle":    1,
		"commands": []string{"BAW12 C 270"},
	}})

	var msg Message
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	if msg.Type != MessageTypeCommands {
		t.Errorf("Expected commands message, got %s", msg.Type)
	}
	cmds, _ := msg.Data["commands"].([]any)
	if len(cmds) != 1 || cmds[0] != "BAW12 C 270" {
		t.Errorf("Expected one command, got %v", msg.Data["commands"])
	}
}

func TestSubscribeFilters(t *testing.T) {
	s, url := startServer(t)
	conn := dial(t, url)
	waitFor(t, func() bool { return s.ClientCount() == 1 })

	err := conn.WriteJSON(Message{Type: MessageTypeSubscribe, Data: map[string]any{
		"types":     []string{MessageTypeEvent},
		"callsigns": []string{"EZY7"},
	}})
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	waitFor(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		for c := range s.clients {
			c.mu.Lock()
			set := c.filters != nil
			c.mu.Unlock()
			if set {
				return true
			}
		}
		return false
	})

	s.Broadcast(&Message{Type: MessageTypeCommands, Data: map[string]any{"cycle": 1}})
	s.Broadcast(&Message{Type: MessageTypeEvent, Data: map[string]any{"callsign": "BAW12", "kind": "landing"}})
	s.Broadcast(&Message{Type: MessageTypeEvent, Data: map[string]any{"callsign": "EZY7", "kind": "takeoff"}})

	var msg Message
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	if msg.Type != MessageTypeEvent || msg.Data["callsign"] != "EZY7" {
		t.Errorf("Expected only the EZY7 event, got %+v", msg)
	}
}

func TestWants(t *testing.T) {
	c := &Client{}
	msg := &Message{Type: MessageTypeCycle}
	if !c.Wants(msg) {
		t.Error("Expected a client without filters to want everything")
	}

	c.UpdateFilters(parseFilters(map[string]any{"types": []any{"commands"}}))
	if c.Wants(msg) {
		t.Error("Expected cycle message filtered out")
	}
	if !c.Wants(&Message{Type: MessageTypeCommands}) {
		t.Error("Expected commands message wanted")
	}
}
