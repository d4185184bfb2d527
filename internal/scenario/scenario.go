// Package scenario reads and writes rail scenarios: a track layout plus the
// trains running on it.
package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/elektrokombinacija/railobs/internal/core"
	"github.com/elektrokombinacija/railobs/internal/railway"
	"github.com/elektrokombinacija/railobs/internal/sim"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("scenario: invalid")

var directions = map[string]core.Orientation{
	"N": core.North,
	"E": core.East,
	"S": core.South,
	"W": core.West,
}

// Position is a cell entered with a heading ("N", "E", "S" or "W").
type Position struct {
	Row int    `json:"row"`
	Col int    `json:"col"`
	Dir string `json:"dir"`
}

// Node converts the position.
func (p Position) Node() (core.Node, error) {
	o, ok := directions[p.Dir]
	if !ok {
		return core.Node{}, fmt.Errorf("%w: direction %q at (%d,%d)", ErrInvalid, p.Dir, p.Row, p.Col)
	}
	return core.Node{Row: p.Row, Col: p.Col, Orientation: o}, nil
}

// Reverse returns the position facing the other way.
func (p Position) Reverse() Position {
	o := directions[p.Dir]
	p.Dir = o.Reverse().String()
	return p
}

// At builds a position from a node.
func At(n core.Node) Position {
	return Position{Row: n.Row, Col: n.Col, Dir: n.Orientation.String()}
}

// Cell is a target cell.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Track is a directed track between two routing nodes.
type Track struct {
	From  Position   `json:"from"`
	To    Position   `json:"to"`
	Steps []Position `json:"steps,omitempty"`
}

// Reverse returns the same cells travelled the other way.
func (t Track) Reverse() Track {
	r := Track{From: t.To.Reverse(), To: t.From.Reverse()}
	for i := len(t.Steps) - 1; i >= 0; i-- {
		r.Steps = append(r.Steps, t.Steps[i].Reverse())
	}
	return r
}

// Train is one agent.
type Train struct {
	Handle int      `json:"handle"`
	Start  Position `json:"start"`
	Target Cell     `json:"target"`
	Speed  float64  `json:"speed"`
}

// Scenario is a complete rail scenario.
type Scenario struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Tracks      []Track `json:"tracks"`
	Trains      []Train `json:"trains"`
	Generated   string  `json:"generated,omitempty"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save writes the scenario as indented JSON.
func (s *Scenario) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks directions, track continuity and trains.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalid)
	}
	if len(s.Tracks) == 0 {
		return fmt.Errorf("%w: no tracks", ErrInvalid)
	}

	for i, t := range s.Tracks {
		path := append(append([]Position{t.From}, t.Steps...), t.To)
		for j, p := range path {
			if _, err := p.Node(); err != nil {
				return fmt.Errorf("track %d: %w", i, err)
			}
			if j > 0 && !adjacent(path[j-1], p) {
				return fmt.Errorf("%w: track %d: (%d,%d) does not follow (%d,%d)",
					ErrInvalid, i, p.Row, p.Col, path[j-1].Row, path[j-1].Col)
			}
		}
	}

	for i, tr := range s.Trains {
		if tr.Handle != i {
			return fmt.Errorf("%w: train at index %d has handle %d", ErrInvalid, i, tr.Handle)
		}
		if !(tr.Speed > 0) || tr.Speed > 1 {
			return fmt.Errorf("%w: train %d speed %v outside (0, 1]", ErrInvalid, i, tr.Speed)
		}
		if _, err := tr.Start.Node(); err != nil {
			return fmt.Errorf("train %d: %w", i, err)
		}
	}
	return nil
}

func adjacent(a, b Position) bool {
	return abs(a.Row-b.Row)+abs(a.Col-b.Col) == 1
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Build creates the rail graph and the simulator trains.
func (s *Scenario) Build() (*railway.RailGraph, []sim.Train, error) {
	g := railway.New()
	for i, t := range s.Tracks {
		from, _ := t.From.Node()
		to, _ := t.To.Node()
		steps := make([]core.Node, len(t.Steps))
		for j, p := range t.Steps {
			steps[j], _ = p.Node()
		}
		if err := g.AddTrack(from, to, steps); err != nil {
			return nil, nil, fmt.Errorf("track %d: %w", i, err)
		}
	}

	trains := make([]sim.Train, len(s.Trains))
	for i, tr := range s.Trains {
		start, _ := tr.Start.Node()
		target := core.Cell{Row: tr.Target.Row, Col: tr.Target.Col}
		if _, ok := g.Locate(start); !ok {
			return nil, nil, fmt.Errorf("%w: train %d starts off the network at %v", ErrInvalid, i, start)
		}
		if len(g.NodesAt(target)) == 0 {
			return nil, nil, fmt.Errorf("%w: train %d target %v has no node", ErrInvalid, i, target)
		}
		trains[i] = sim.Train{Handle: core.Handle(i), Start: start, Target: target, Speed: tr.Speed}
	}
	return g, trains, nil
}
