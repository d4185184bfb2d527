// Package obs computes per-agent observation tensors describing conflicts,
// bottlenecks and predicted deadlocks along each agent's shortest route and
// its deviation routes.
//
// Every tick the engine ingests all shortest-path predictions, freezes them
// into a Snapshot, and then computes each agent's tensor as a pure function
// of that snapshot and the agent's own predictions.
package obs

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/elektrokombinacija/railobs/internal/core"
)

// Graph is the routing-graph collaborator.
type Graph interface {
	// Successors returns the nodes reachable from n in one hop, in a stable order.
	Successors(n core.Node) []core.Node
	// NodesAt returns every node (any heading) located at c, in a stable order.
	NodesAt(c core.Cell) []core.Node
	// HasNode reports whether pos is a routing-graph node.
	HasNode(pos core.Node) bool
	// Previous returns the last node before pos and the cells between them.
	Previous(pos core.Node) (core.Node, int, bool)
	// Next returns the next node from pos and the progress toward it.
	Next(pos core.Node) (core.Node, float64, bool)
}

// Predictor is the path-prediction collaborator. Agents without a
// prediction (e.g. already at target) are absent from the map or nil.
type Predictor interface {
	Predict() (map[core.Handle]*core.AgentPrediction, error)
}

// Fleet reports the live state of every agent, indexed by handle.
type Fleet interface {
	Agents() []core.AgentState
}

// Config holds engine parameters.
type Config struct {
	MaxDepth               int // Rows and entries per row of every tensor
	Workers                int // Parallel per-agent computations; 1 = sequential
	MaxMalfunctionDuration int // Upper bound for malfunction normalization
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		MaxDepth:               8,
		Workers:                4,
		MaxMalfunctionDuration: 20,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxDepth < 2 {
		return precondition("config", "max depth %d must be at least 2", c.MaxDepth)
	}
	if c.Workers < 1 {
		return precondition("config", "workers %d must be at least 1", c.Workers)
	}
	if c.MaxMalfunctionDuration < 0 {
		return precondition("config", "negative max malfunction duration %d", c.MaxMalfunctionDuration)
	}
	return nil
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// Engine computes observation tensors tick by tick.
type Engine struct {
	mu sync.Mutex

	graph     Graph
	predictor Predictor
	fleet     Fleet
	cfg       Config
	log       *slog.Logger

	// Episode state, persisted across ticks.
	episode   uuid.UUID
	tick      int
	speeds    []SpeedData
	anchors   []Anchor
	positions []core.Node

	snapshot *Snapshot
}

// NewEngine creates an engine. Reset must be called before Compute.
func NewEngine(graph Graph, predictor Predictor, fleet Fleet, cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		graph:     graph,
		predictor: predictor,
		fleet:     fleet,
		cfg:       cfg,
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Reset starts a new episode: per-agent speed data and anchors are rebuilt
// from the fleet.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	agents := e.fleet.Agents()
	speeds := make([]SpeedData, len(agents))
	anchors := make([]Anchor, len(agents))
	positions := make([]core.Node, len(agents))

	for i, a := range agents {
		if a.Handle != core.Handle(i) {
			return precondition("reset", "agent at index %d has handle %d", i, a.Handle)
		}
		speed, err := NewSpeedData(a.Speed)
		if err != nil {
			return fmt.Errorf("agent %d: %w", a.Handle, err)
		}
		speeds[i] = speed

		anchors[i] = Anchor{Node: a.Position}
		if prev, cells, ok := e.graph.Previous(a.Position); ok {
			anchors[i] = Anchor{Node: prev, Elapsed: cells * speed.Times}
		}
		positions[i] = a.Position
	}

	e.speeds, e.anchors, e.positions = speeds, anchors, positions
	e.episode = uuid.New()
	e.tick = 0
	e.snapshot = nil

	e.log.Info("engine reset", "episode", e.episode, "agents", len(agents), "max_depth", e.cfg.MaxDepth)
	return nil
}

// Episode returns the identifier of the current episode.
func (e *Engine) Episode() uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.episode
}

// Snapshot returns the snapshot of the last computed tick, or nil.
func (e *Engine) Snapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot
}

// Compute returns the normalized tensor of every requested agent for the
// current tick.
func (e *Engine) Compute(handles []core.Handle) (map[core.Handle]*Tensor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.speeds == nil {
		return nil, precondition("compute", "Reset must be called before Compute")
	}

	predictions, err := e.predictor.Predict()
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	agents := e.fleet.Agents()
	if len(agents) != len(e.speeds) {
		return nil, precondition("compute", "fleet has %d agents, episode started with %d", len(agents), len(e.speeds))
	}

	own, err := e.validate(predictions)
	if err != nil {
		return nil, err
	}

	for _, h := range handles {
		if h < 0 || int(h) >= len(agents) {
			return nil, precondition("compute", "unknown handle %d", h)
		}
	}

	snap := e.synchronize(agents, own)
	e.snapshot = snap

	tensors, err := e.observeAll(handles, own, snap)
	if err != nil {
		return nil, err
	}

	deadlocks := 0
	for _, t := range tensors {
		deadlocks += t.Deadlocks
	}
	e.log.Debug("tick computed",
		"episode", e.episode, "tick", snap.Tick, "agents", len(handles),
		"active", snap.Active, "deadlocks", deadlocks)

	e.tick++
	return tensors, nil
}

// validate checks prediction shapes and truncates paths to MaxDepth nodes.
func (e *Engine) validate(predictions map[core.Handle]*core.AgentPrediction) ([]*core.AgentPrediction, error) {
	own := make([]*core.AgentPrediction, len(e.speeds))
	depth := e.cfg.MaxDepth

	for h, p := range predictions {
		if h < 0 || int(h) >= len(own) {
			return nil, precondition("predict", "prediction for unknown handle %d", h)
		}
		if p == nil || p.Shortest.Empty() {
			continue
		}
		if len(p.Deviations) > depth-1 {
			return nil, precondition("predict", "agent %d has %d deviations, want at most %d", h, len(p.Deviations), depth-1)
		}

		clipped := &core.AgentPrediction{
			Shortest:   p.Shortest.Truncate(depth),
			Deviations: make([]*core.Prediction, len(p.Deviations)),
		}
		if err := checkEdges(h, -1, clipped.Shortest); err != nil {
			return nil, err
		}
		for i, d := range p.Deviations {
			if d.Empty() {
				continue
			}
			if i >= len(clipped.Shortest.Nodes) {
				return nil, precondition("predict", "agent %d deviation %d rooted beyond its shortest path", h, i)
			}
			clipped.Deviations[i] = d.Truncate(depth)
			if err := checkEdges(h, i, clipped.Deviations[i]); err != nil {
				return nil, err
			}
		}
		own[h] = clipped
	}
	return own, nil
}

func checkEdges(h core.Handle, deviation int, p *core.Prediction) error {
	if len(p.Edges) != len(p.Nodes)-1 {
		return precondition("predict", "agent %d path %d has %d nodes and %d edges", h, deviation, len(p.Nodes), len(p.Edges))
	}
	return nil
}

// synchronize ingests every shortest prediction (speed, anchor, packed path)
// and freezes the result. It must complete before any tensor is computed.
func (e *Engine) synchronize(agents []core.AgentState, own []*core.AgentPrediction) *Snapshot {
	snap := &Snapshot{Tick: e.tick, Agents: make([]AgentView, len(agents))}

	for i, a := range agents {
		h := core.Handle(i)
		if !a.Status.Finished() {
			snap.Active++
		}

		view := AgentView{Handle: h, Malfunction: a.Malfunction}
		if a.Live() {
			view.Next, view.Offset, view.Live = e.graph.Next(a.Position)
		}

		if p := own[h]; p != nil {
			e.speeds[h] = e.speeds[h].Update(a.Speed, a.PositionFraction)
			shortest := p.Shortest
			view.Shortest = CumulativeWeights(float64(e.speeds[h].Remaining), shortest.Edges, e.speeds[h].Times)
			e.advance(h, shortest.Nodes[0])
			view.Packed = pack(shortest, view.Shortest, e.anchors[h], e.speeds[h])
		}
		view.Speed = e.speeds[h]
		snap.Agents[i] = view
	}
	return snap
}

// advance moves the anchor of h when its observed position changed.
func (e *Engine) advance(h core.Handle, pos core.Node) {
	if e.positions[h] == pos {
		return
	}
	if e.graph.HasNode(pos) {
		e.anchors[h] = Anchor{Node: pos}
	} else {
		e.anchors[h].Elapsed += e.speeds[h].Times
	}
	e.positions[h] = pos
}

// observeAll fans the per-agent computations out over at most Workers
// goroutines. Results do not depend on the number of workers.
func (e *Engine) observeAll(handles []core.Handle, own []*core.AgentPrediction, snap *Snapshot) (map[core.Handle]*Tensor, error) {
	results := make([]*Tensor, len(handles))
	norm := Normalizer{Active: snap.Active, MaxMalfunction: e.cfg.MaxMalfunctionDuration, Depth: e.cfg.MaxDepth}

	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for i, h := range handles {
		g.Go(func() error {
			job := &pathJob{
				graph: e.graph,
				snap:  snap,
				self:  h,
				speed: snap.Agent(h).Speed,
				depth: e.cfg.MaxDepth,
			}
			t, err := job.observe(own[h], norm)
			if err != nil {
				return fmt.Errorf("agent %d: %w", h, err)
			}
			results[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tensors := make(map[core.Handle]*Tensor, len(handles))
	for i, h := range handles {
		tensors[h] = results[i]
	}
	return tensors, nil
}
