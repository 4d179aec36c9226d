package simulation

import (
	"fmt"
	"strconv"
	"strings"
)

// Instruction is one parsed command line of the actuator grammar
type Instruction struct {
	Callsign    string
	Heading     *float64 // degrees
	Altitude    *float64 // feet
	Speed       *float64 // knots
	Expedite    bool
	Destination string // fly direct to this waypoint
	Runway      string // cleared to land, e.g. "27L"
	GoAround    bool
	Takeoff     bool
}

// ParseInstruction parses a command such as "ABC123 C 240", "ABC123 C 4 EX",
// "ABC123 S 210", "ABC123 L 27R", "ABC123 A C 4 EX C 039" or
// "ABC123 C DVR C 11 T".
func ParseInstruction(text string) (*Instruction, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return nil, fmt.Errorf("command too short: %q", text)
	}

	in := &Instruction{Callsign: fields[0]}
	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "A":
			in.GoAround = true

		case "T":
			in.Takeoff = true

		case "EX":
			if in.Altitude == nil {
				return nil, fmt.Errorf("expedite without altitude: %q", text)
			}
			in.Expedite = true

		case "C", "S", "L":
			if i+1 >= len(fields) {
				return nil, fmt.Errorf("missing value after %s: %q", fields[i], text)
			}
			verb, value := fields[i], fields[i+1]
			i++
			if err := in.apply(verb, value); err != nil {
				return nil, fmt.Errorf("%w: %q", err, text)
			}

		default:
			return nil, fmt.Errorf("unexpected token %q: %q", fields[i], text)
		}
	}

	return in, nil
}

func (in *Instruction) apply(verb, value string) error {
	switch verb {
	case "S":
		kts, err := strconv.Atoi(value)
		if err != nil || kts <= 0 {
			return fmt.Errorf("invalid speed %s", value)
		}
		v := float64(kts)
		in.Speed = &v

	case "L":
		in.Runway = value

	case "C":
		n, err := strconv.Atoi(value)
		if err != nil {
			// Not a number, so a waypoint
			in.Destination = value
			return nil
		}
		// Headings are always written with three digits
		if len(value) == 3 {
			if n >= 360 {
				return fmt.Errorf("invalid heading %s", value)
			}
			v := float64(n)
			in.Heading = &v
			return nil
		}
		if n <= 0 {
			return fmt.Errorf("invalid altitude %s", value)
		}
		v := float64(n) * 1000
		in.Altitude = &v
	}
	return nil
}
