// Package registry holds the static airport layout: named waypoints, the
// landing runways and the approach routes flown onto each of them.
package registry

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/yegors/atc-autopilot/internal/geometry"
	"gopkg.in/yaml.v3"
)

// ErrUnknownWaypoint is returned when a waypoint name is not in the registry
var ErrUnknownWaypoint = errors.New("unknown waypoint")

// Layout is the on-disk airport description
type Layout struct {
	Airport     string                    `yaml:"airport"`
	FieldCenter geometry.Point            `yaml:"field_center"`
	Waypoints   map[string]geometry.Point `yaml:"waypoints"`
	Runways     []Runway                  `yaml:"runways"`
}

// Runway describes one landing direction of the parallel runway pair
type Runway struct {
	Name       string                    `json:"name" yaml:"name"`             // e.g. "27"
	Heading    float64                   `json:"heading" yaml:"heading"`       // landing direction in degrees
	Thresholds map[string]geometry.Point `json:"thresholds" yaml:"thresholds"` // landing threshold per side ("L", "R")

	// Corridor bounds the final-approach area. Arrivals first seen inside it
	// skip the entry leg.
	Corridor geometry.Rect `json:"corridor" yaml:"corridor"`

	// ResequenceWaypoint is where aircraft are sent after a go-around
	ResequenceWaypoint string `json:"resequence_waypoint" yaml:"resequence_waypoint"`

	North RouteSet `json:"north" yaml:"north"`
	South RouteSet `json:"south" yaml:"south"`
}

// RouteSet is the pair of routes used by arrivals on one side of the centerline
type RouteSet struct {
	Near             []string `json:"near" yaml:"near"` // arrivals already on the approach side of the field
	Far              []string `json:"far" yaml:"far"`   // arrivals beyond the field that must be brought around
	InterceptHeading int      `json:"intercept_heading" yaml:"intercept_heading"`
}

// Registry resolves waypoint names and runways
type Registry struct {
	layout Layout
}

// Load reads a YAML layout file
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout file: %w", err)
	}

	var layout Layout
	if err := yaml.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("failed to decode layout file: %w", err)
	}

	return New(layout)
}

// New builds a registry from a layout and checks that every route and
// re-sequencing waypoint resolves.
func New(layout Layout) (*Registry, error) {
	r := &Registry{layout: layout}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) validate() error {
	if len(r.layout.Runways) == 0 {
		return fmt.Errorf("layout defines no runways")
	}

	seen := make(map[string]bool)
	for _, rwy := range r.layout.Runways {
		if rwy.Name == "" {
			return fmt.Errorf("runway with empty name")
		}
		if seen[rwy.Name] {
			return fmt.Errorf("duplicate runway %s", rwy.Name)
		}
		seen[rwy.Name] = true

		if _, err := r.Lookup(rwy.ResequenceWaypoint); err != nil {
			return fmt.Errorf("runway %s resequence waypoint: %w", rwy.Name, err)
		}
		for _, side := range []string{"L", "R"} {
			if _, ok := rwy.Thresholds[side]; !ok {
				return fmt.Errorf("runway %s has no %s threshold", rwy.Name, side)
			}
		}

		sets := map[string]RouteSet{"north": rwy.North, "south": rwy.South}
		for setName, set := range sets {
			if len(set.Near) == 0 || len(set.Far) == 0 {
				return fmt.Errorf("runway %s %s routes must have at least one leg", rwy.Name, setName)
			}
			for _, names := range [][]string{set.Near, set.Far} {
				if _, err := r.Resolve(names); err != nil {
					return fmt.Errorf("runway %s %s route: %w", rwy.Name, setName, err)
				}
			}
		}
	}

	return nil
}

// Airport returns the airport identifier
func (r *Registry) Airport() string {
	return r.layout.Airport
}

// FieldCenter returns the reference point of the airfield
func (r *Registry) FieldCenter() geometry.Point {
	return r.layout.FieldCenter
}

// Lookup returns the coordinates of a named waypoint
func (r *Registry) Lookup(name string) (geometry.Point, error) {
	p, ok := r.layout.Waypoints[name]
	if !ok {
		return geometry.Point{}, fmt.Errorf("%w: %q", ErrUnknownWaypoint, name)
	}
	return p, nil
}

// Resolve looks up a list of waypoint names in order
func (r *Registry) Resolve(names []string) ([]geometry.Point, error) {
	points := make([]geometry.Point, 0, len(names))
	for _, name := range names {
		p, err := r.Lookup(name)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

// Runway returns the runway with the given name, e.g. "27"
func (r *Registry) Runway(name string) (*Runway, error) {
	for i := range r.layout.Runways {
		if r.layout.Runways[i].Name == name {
			return &r.layout.Runways[i], nil
		}
	}
	return nil, fmt.Errorf("runway %s not in layout", name)
}

// WaypointNames returns all waypoint names, sorted
func (r *Registry) WaypointNames() []string {
	names := make([]string, 0, len(r.layout.Waypoints))
	for name := range r.layout.Waypoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
