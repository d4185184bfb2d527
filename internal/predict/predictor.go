// Package predict forecasts each train's shortest route to its target and
// the deviation routes branching off it.
package predict

import (
	"fmt"
	"math"
	"sync"

	"github.com/elektrokombinacija/railobs/internal/core"
	"github.com/elektrokombinacija/railobs/internal/railway"
)

// Fleet reports the live state of every agent.
type Fleet interface {
	Agents() []core.AgentState
}

// Predictor computes shortest and deviation routes on a rail graph.
type Predictor struct {
	graph *railway.RailGraph
	fleet Fleet
	depth int

	mu    sync.Mutex
	costs map[core.Cell]map[core.Node]float64 // Cost-to-go per target
}

// New creates a predictor producing routes of at most depth nodes and
// depth-1 deviations.
func New(graph *railway.RailGraph, fleet Fleet, depth int) *Predictor {
	return &Predictor{
		graph: graph,
		fleet: fleet,
		depth: depth,
		costs: make(map[core.Cell]map[core.Node]float64),
	}
}

// Predict returns the routes of every agent that has not reached its target.
func (p *Predictor) Predict() (map[core.Handle]*core.AgentPrediction, error) {
	out := make(map[core.Handle]*core.AgentPrediction)
	for _, a := range p.fleet.Agents() {
		if a.Status.Finished() {
			continue
		}
		pred, err := p.Route(a)
		if err != nil {
			return nil, fmt.Errorf("agent %d: %w", a.Handle, err)
		}
		out[a.Handle] = pred
	}
	return out, nil
}

// Route predicts the routes of a single agent.
func (p *Predictor) Route(a core.AgentState) (*core.AgentPrediction, error) {
	dist := p.cost(a.Target)

	shortest, err := p.shortest(a.Position, dist)
	if err != nil {
		return nil, err
	}

	n := min(p.depth-1, len(shortest.Nodes))
	pred := &core.AgentPrediction{Shortest: shortest, Deviations: make([]*core.Prediction, n)}
	for i := 0; i < n; i++ {
		pred.Deviations[i] = p.deviation(shortest, i, dist)
	}
	return pred, nil
}

// CostToGo returns the cells left from n to target, +Inf if unreachable.
func (p *Predictor) CostToGo(target core.Cell, n core.Node) float64 {
	return lookup(p.cost(target), n)
}

func (p *Predictor) cost(target core.Cell) map[core.Node]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	dist, ok := p.costs[target]
	if !ok {
		dist = costToGo(p.graph, target)
		p.costs[target] = dist
	}
	return dist
}

// shortest follows decreasing cost-to-go from pos. A mid-track position
// starts with the remainder of its track.
func (p *Predictor) shortest(pos core.Node, dist map[core.Node]float64) (*core.Prediction, error) {
	loc, ok := p.graph.Locate(pos)
	if !ok {
		return nil, fmt.Errorf("predict: position %v is not on the network", pos)
	}

	path := &core.Prediction{Nodes: []core.Node{pos}}
	start, offset := pos, 0.0
	if t := loc.Track; t != nil {
		rest := t.Weight() - loc.Covered
		path.Nodes = append(path.Nodes, t.To)
		path.Edges = append(path.Edges, core.Edge{From: pos, To: t.To, Weight: rest, Length: rest})
		start, offset = t.To, float64(rest)
	}

	path.Length = offset + lookup(dist, start)
	if path.Unreachable() {
		return &core.Prediction{Nodes: []core.Node{pos}, Length: math.Inf(1)}, nil
	}
	p.follow(path, dist)
	return path, nil
}

// deviation forces the cheapest alternative to the shortest route at node i.
func (p *Predictor) deviation(shortest *core.Prediction, i int, dist map[core.Node]float64) *core.Prediction {
	root := shortest.Nodes[i]
	none := &core.Prediction{Nodes: []core.Node{root}, Length: math.Inf(1)}
	if i+1 >= len(shortest.Nodes) || !p.graph.HasNode(root) {
		return none
	}

	taken := shortest.Nodes[i+1]
	best, bestCost := core.Node{}, math.Inf(1)
	found := false
	for _, v := range p.graph.Successors(root) {
		if v == taken {
			continue
		}
		t, _ := p.graph.Track(root, v)
		c := float64(t.Weight()) + lookup(dist, v)
		if !found || c < bestCost {
			best, bestCost, found = v, c, true
		}
	}
	if !found {
		return none
	}

	t, _ := p.graph.Track(root, best)
	path := &core.Prediction{
		Nodes:  []core.Node{root, best},
		Edges:  []core.Edge{t.Edge()},
		Length: bestCost,
	}
	if !path.Unreachable() {
		p.follow(path, dist)
	}
	return path
}

// follow extends path greedily along decreasing cost-to-go until the target
// or depth nodes.
func (p *Predictor) follow(path *core.Prediction, dist map[core.Node]float64) {
	for len(path.Nodes) < p.depth {
		u := path.Nodes[len(path.Nodes)-1]
		du := lookup(dist, u)
		if du == 0 || math.IsInf(du, 1) {
			return
		}

		var next *railway.Track
		for _, v := range p.graph.Successors(u) {
			t, _ := p.graph.Track(u, v)
			if float64(t.Weight())+lookup(dist, v) == du {
				next = t
				break
			}
		}
		if next == nil {
			return
		}
		path.Nodes = append(path.Nodes, next.To)
		path.Edges = append(path.Edges, next.Edge())
	}
}
