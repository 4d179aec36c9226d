package engine

import (
	"fmt"
	"strings"
)

// CommandKind classifies a command for journaling and ordering
type CommandKind string

const (
	KindTakeoff   CommandKind = "takeoff"
	KindEntry     CommandKind = "entry"
	KindHeading   CommandKind = "heading"
	KindAltitude  CommandKind = "altitude"
	KindIntercept CommandKind = "intercept"
	KindLanding   CommandKind = "landing"
	KindSpeed     CommandKind = "speed"
	KindGoAround  CommandKind = "go_around"
)

// Command is one instruction in the actuator micro-grammar
type Command struct {
	Callsign string      `json:"callsign"`
	Kind     CommandKind `json:"kind"`
	Text     string      `json:"text"`
}

// String returns the text dispatched verbatim to the actuator
func (c Command) String() string {
	return c.Text
}

// Strings returns the command texts in order
func Strings(cmds []Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Text
	}
	return out
}

// EventKind classifies an engine event
type EventKind string

const (
	EventTakeoff   EventKind = "takeoff"
	EventIntercept EventKind = "intercept"
	EventGoAround  EventKind = "go_around"
	EventLanding   EventKind = "landing"
	EventHandoff   EventKind = "handoff"
)

// Event is a notable state transition observed or caused during a cycle
type Event struct {
	Kind     EventKind `json:"kind"`
	Callsign string    `json:"callsign"`
	Detail   string    `json:"detail,omitempty"`
}

func formatHeading(h int) string {
	return fmt.Sprintf("%03d", h)
}

func headingCommand(callsign string, heading int, kind CommandKind) Command {
	return Command{
		Callsign: callsign,
		Kind:     kind,
		Text:     fmt.Sprintf("%s C %s", callsign, formatHeading(heading)),
	}
}

func altitudeCommand(callsign string, thousands int, expedite bool, kind CommandKind) Command {
	text := fmt.Sprintf("%s C %d", callsign, thousands)
	if expedite {
		text += " EX"
	}
	return Command{Callsign: callsign, Kind: kind, Text: text}
}

func speedCommand(callsign string, knots int) Command {
	return Command{
		Callsign: callsign,
		Kind:     KindSpeed,
		Text:     fmt.Sprintf("%s S %d", callsign, knots),
	}
}

func landingCommand(callsign, runway string) Command {
	return Command{
		Callsign: callsign,
		Kind:     KindLanding,
		Text:     fmt.Sprintf("%s L %s", callsign, runway),
	}
}

func goAroundCommand(callsign string, thousands, heading int) Command {
	return Command{
		Callsign: callsign,
		Kind:     KindGoAround,
		Text:     fmt.Sprintf("%s A C %d EX C %s", callsign, thousands, formatHeading(heading)),
	}
}

func takeoffCommand(callsign, destination string, climb int) Command {
	return Command{
		Callsign: callsign,
		Kind:     KindTakeoff,
		Text:     fmt.Sprintf("%s C %s C %d T", callsign, strings.ToUpper(destination), climb),
	}
}
