// Package sim provides a tick-based rail simulator that drives the
// observation engine.
//
// Trains follow their predicted shortest route one cell at a time, wait when
// the next cell is occupied and break down at random. Every tick the engine
// observes the fleet before it moves.
package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/elektrokombinacija/railobs/internal/core"
	"github.com/elektrokombinacija/railobs/internal/obs"
	"github.com/elektrokombinacija/railobs/internal/predict"
	"github.com/elektrokombinacija/railobs/internal/railway"
)

const fractionEpsilon = 1e-9

// Config configures the simulation parameters
type Config struct {
	// Number of ticks to simulate
	Ticks int

	// Random seed for reproducibility
	Seed int64

	// Probability that a moving train breaks down on a given tick
	MalfunctionRate float64

	// Malfunction duration range, in ticks
	MinMalfunction int
	MaxMalfunction int
}

// DefaultConfig returns default simulation configuration
func DefaultConfig() Config {
	return Config{
		Ticks:           200,
		Seed:            42,
		MalfunctionRate: 0.01,
		MinMalfunction:  2,
		MaxMalfunction:  20,
	}
}

// Train is the static description of one agent.
type Train struct {
	Handle core.Handle
	Start  core.Node
	Target core.Cell
	Speed  float64
}

// Metrics collects metrics during simulation
type Metrics struct {
	// Timing
	StartTime time.Time
	EndTime   time.Time
	Ticks     int

	// Trains
	Arrivals     int
	Malfunctions int
	BlockedMoves int

	// Observations
	DeadlockTicks int // Ticks with at least one predicted deadlock
	MaxDeadlocks  int // Most deadlocks predicted for one train in one tick

	// Actual deadlocks
	Deadlocked    int  // Trains stuck in a wait cycle or queued behind one
	FirstDeadlock int  // Tick the first train became deadlocked, -1 if none
	AllBlocked    bool // Run ended because no unfinished train could move again
}

// Deadlock is the actual deadlock state of one train.
type Deadlock struct {
	Deadlocked bool
	Since      int // Tick the train became deadlocked
}

// Observer computes observations for the fleet every tick.
type Observer interface {
	Reset() error
	Compute(handles []core.Handle) (map[core.Handle]*obs.Tensor, error)
}

// Sink receives the tensors of every tick.
type Sink func(tick int, tensors map[core.Handle]*obs.Tensor) error

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger sets the simulator logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) { s.log = l }
}

// Simulator moves trains on a rail graph.
type Simulator struct {
	mu sync.Mutex

	config Config
	graph  *railway.RailGraph
	trains []Train
	router *predict.Predictor
	log    *slog.Logger

	// State
	tick      int
	agents    []core.AgentState
	deadlocks []Deadlock
	rng       *rand.Rand

	// Metrics
	metrics Metrics
}

// NewSimulator creates a new simulation instance
func NewSimulator(graph *railway.RailGraph, trains []Train, config Config, opts ...Option) (*Simulator, error) {
	for i, t := range trains {
		if t.Handle != core.Handle(i) {
			return nil, fmt.Errorf("train at index %d has handle %d", i, t.Handle)
		}
		if !(t.Speed > 0) || t.Speed > 1 {
			return nil, fmt.Errorf("train %d: speed %v outside (0, 1]", t.Handle, t.Speed)
		}
		if _, ok := graph.Locate(t.Start); !ok {
			return nil, fmt.Errorf("train %d: start %v is not on the network", t.Handle, t.Start)
		}
		if len(graph.NodesAt(t.Target)) == 0 {
			return nil, fmt.Errorf("train %d: target %v has no node", t.Handle, t.Target)
		}
	}
	if config.MinMalfunction < 1 || config.MaxMalfunction < config.MinMalfunction {
		return nil, fmt.Errorf("invalid malfunction range [%d, %d]", config.MinMalfunction, config.MaxMalfunction)
	}

	s := &Simulator{
		config: config,
		graph:  graph,
		trains: trains,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	// Only the next hop is needed to move.
	s.router = predict.New(graph, s, 2)
	for _, opt := range opts {
		opt(s)
	}
	s.Reset()
	return s, nil
}

// Reset puts every train back at its start.
func (s *Simulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tick = 0
	s.rng = rand.New(rand.NewSource(s.config.Seed))
	s.metrics = Metrics{FirstDeadlock: -1}
	s.deadlocks = make([]Deadlock, len(s.trains))
	s.agents = make([]core.AgentState, len(s.trains))
	for i, t := range s.trains {
		s.agents[i] = core.AgentState{
			Handle:   t.Handle,
			Speed:    t.Speed,
			Position: t.Start,
			Status:   core.ReadyToDepart,
			Target:   t.Target,
		}
	}
}

// Agents returns a copy of the live state of every train.
func (s *Simulator) Agents() []core.AgentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.AgentState(nil), s.agents...)
}

// Handles returns every train handle.
func (s *Simulator) Handles() []core.Handle {
	handles := make([]core.Handle, len(s.trains))
	for i := range handles {
		handles[i] = core.Handle(i)
	}
	return handles
}

// Tick returns the number of ticks simulated since the last reset.
func (s *Simulator) Tick() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// Done reports whether every train reached its target.
func (s *Simulator) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.agents {
		if !a.Status.Finished() {
			return false
		}
	}
	return true
}

// Run observes and advances the fleet until every train arrived, the tick
// budget is spent or ctx is cancelled. sink may be nil.
func (s *Simulator) Run(ctx context.Context, observer Observer, sink Sink) (*Metrics, error) {
	s.Reset()
	if err := observer.Reset(); err != nil {
		return nil, fmt.Errorf("reset observer: %w", err)
	}

	s.mu.Lock()
	s.metrics.StartTime = time.Now()
	s.mu.Unlock()

	handles := s.Handles()
	for tick := 0; tick < s.config.Ticks && !s.Done() && !s.AllBlocked(); tick++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		tensors, err := observer.Compute(handles)
		if err != nil {
			return nil, fmt.Errorf("tick %d: %w", tick, err)
		}
		s.record(tensors)
		if sink != nil {
			if err := sink(tick, tensors); err != nil {
				return nil, fmt.Errorf("tick %d: %w", tick, err)
			}
		}
		if err := s.Step(); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.metrics.EndTime = time.Now()
	s.metrics.AllBlocked = s.allBlocked()
	m := s.metrics
	s.mu.Unlock()

	s.log.Info("simulation finished",
		"ticks", m.Ticks, "arrivals", m.Arrivals, "malfunctions", m.Malfunctions,
		"deadlock_ticks", m.DeadlockTicks, "max_deadlocks", m.MaxDeadlocks,
		"deadlocked", m.Deadlocked, "all_blocked", m.AllBlocked)
	return &m, nil
}

func (s *Simulator) record(tensors map[core.Handle]*obs.Tensor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	worst := 0
	for _, t := range tensors {
		worst = max(worst, t.Deadlocks)
	}
	if worst > 0 {
		s.metrics.DeadlockTicks++
	}
	s.metrics.MaxDeadlocks = max(s.metrics.MaxDeadlocks, worst)
}

// Step advances the simulation by one tick. Trains act in handle order.
func (s *Simulator) Step() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.agents {
		if err := s.advance(&s.agents[i]); err != nil {
			return fmt.Errorf("tick %d: train %d: %w", s.tick, i, err)
		}
	}
	s.tick++
	s.metrics.Ticks = s.tick
	return s.detectDeadlocks()
}

func (s *Simulator) advance(a *core.AgentState) error {
	switch {
	case a.Status.Finished():
		return nil
	case a.Malfunction > 0:
		a.Malfunction--
		return nil
	}

	if a.Status == core.ReadyToDepart {
		if s.occupied(a.Handle, a.Position.Cell()) {
			return nil
		}
		a.Status = core.Active
		a.Placed = true
		a.PositionFraction = 0
		return nil
	}

	if s.rng.Float64() < s.config.MalfunctionRate {
		a.Malfunction = s.config.MinMalfunction + s.rng.Intn(s.config.MaxMalfunction-s.config.MinMalfunction+1)
		s.metrics.Malfunctions++
		s.log.Debug("train malfunction", "tick", s.tick, "train", a.Handle, "turns", a.Malfunction)
		return nil
	}

	a.PositionFraction = min(a.PositionFraction+a.Speed, 1)
	if a.PositionFraction < 1-fractionEpsilon {
		return nil
	}

	next, ok, err := s.nextPosition(*a)
	if err != nil || !ok {
		return err
	}
	if s.occupied(a.Handle, next.Cell()) {
		s.metrics.BlockedMoves++
		return nil
	}

	a.Position = next
	a.PositionFraction = 0
	if next.Cell() == a.Target {
		a.Status = core.DoneRemoved
		a.Placed = false
		s.metrics.Arrivals++
		s.log.Debug("train arrived", "tick", s.tick, "train", a.Handle)
	}
	return nil
}

// nextPosition returns the cell entered next along the shortest route. ok is
// false when the target cannot be reached.
func (s *Simulator) nextPosition(a core.AgentState) (core.Node, bool, error) {
	route, err := s.router.Route(a)
	if err != nil {
		return core.Node{}, false, err
	}
	if len(route.Shortest.Nodes) < 2 {
		return core.Node{}, false, nil
	}
	next, err := s.graph.Step(a.Position, route.Shortest.Nodes[1])
	return next, err == nil, err
}

func (s *Simulator) occupied(self core.Handle, c core.Cell) bool {
	return s.occupant(self, c) >= 0
}

// Metrics returns current simulation metrics
func (s *Simulator) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// ExportMetrics writes metrics to a JSON file
func (s *Simulator) ExportMetrics(path string) error {
	metrics := s.Metrics()

	data, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Deadlocks returns the actual deadlock state of every train.
func (s *Simulator) Deadlocks() []Deadlock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Deadlock(nil), s.deadlocks...)
}

// AllBlocked reports whether every unfinished train is deadlocked. False
// when every train finished.
func (s *Simulator) AllBlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allBlocked()
}

func (s *Simulator) allBlocked() bool {
	waiting := 0
	for i, a := range s.agents {
		if a.Status.Finished() {
			continue
		}
		if !s.deadlocks[i].Deadlocked {
			return false
		}
		waiting++
	}
	return waiting > 0
}

// detectDeadlocks builds the wait-for relation (train -> train occupying the
// cell it wants next) and marks every train whose chain of blockers ends in
// a cycle. Such trains can never move again, so the flag is sticky.
func (s *Simulator) detectDeadlocks() error {
	blockers := make([]core.Handle, len(s.agents))
	for i, a := range s.agents {
		blockers[i] = -1
		if a.Status.Finished() {
			continue
		}
		want := a.Position
		if a.Status != core.ReadyToDepart {
			next, ok, err := s.nextPosition(a)
			if err != nil {
				return fmt.Errorf("tick %d: train %d: %w", s.tick, i, err)
			}
			if !ok {
				continue
			}
			want = next
		}
		blockers[i] = s.occupant(a.Handle, want.Cell())
	}

	for i := range s.agents {
		if s.deadlocks[i].Deadlocked || !waitsOnCycle(blockers, core.Handle(i)) {
			continue
		}
		s.deadlocks[i] = Deadlock{Deadlocked: true, Since: s.tick}
		s.metrics.Deadlocked++
		if s.metrics.FirstDeadlock < 0 {
			s.metrics.FirstDeadlock = s.tick
		}
		s.log.Debug("train deadlocked", "tick", s.tick, "train", i)
	}
	return nil
}

// waitsOnCycle follows blockers from h and reports whether it loops.
func waitsOnCycle(blockers []core.Handle, h core.Handle) bool {
	seen := make(map[core.Handle]bool)
	for h >= 0 {
		if seen[h] {
			return true
		}
		seen[h] = true
		h = blockers[h]
	}
	return false
}

// occupant returns the placed train on c other than self, or -1.
func (s *Simulator) occupant(self core.Handle, c core.Cell) core.Handle {
	for _, other := range s.agents {
		if other.Handle != self && other.Placed && other.Position.Cell() == c {
			return other.Handle
		}
	}
	return -1
}
