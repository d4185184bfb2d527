package obs

import (
	"sort"

	"github.com/elektrokombinacija/railobs/internal/core"
)

// stubGraph is a routing graph where every position is a node.
type stubGraph struct {
	succ  map[core.Node][]core.Node
	nodes map[core.Node]struct{}
}

func newStubGraph(edges ...[2]core.Node) *stubGraph {
	g := &stubGraph{succ: map[core.Node][]core.Node{}, nodes: map[core.Node]struct{}{}}
	for _, e := range edges {
		g.succ[e[0]] = append(g.succ[e[0]], e[1])
		g.nodes[e[0]] = struct{}{}
		g.nodes[e[1]] = struct{}{}
	}
	return g
}

func (g *stubGraph) Successors(n core.Node) []core.Node { return g.succ[n] }

func (g *stubGraph) NodesAt(c core.Cell) []core.Node {
	var out []core.Node
	for n := range g.nodes {
		if n.Cell() == c {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Orientation < out[j].Orientation })
	return out
}

func (g *stubGraph) HasNode(pos core.Node) bool {
	_, ok := g.nodes[pos]
	return ok
}

func (g *stubGraph) Previous(pos core.Node) (core.Node, int, bool) {
	return pos, 0, g.HasNode(pos)
}

func (g *stubGraph) Next(pos core.Node) (core.Node, float64, bool) {
	return pos, 0, g.HasNode(pos)
}

type stubPredictor map[core.Handle]*core.AgentPrediction

func (p stubPredictor) Predict() (map[core.Handle]*core.AgentPrediction, error) {
	return p, nil
}

type stubFleet []core.AgentState

func (f stubFleet) Agents() []core.AgentState { return f }

// route builds a prediction through nodes with unit edge weights.
func route(nodes ...core.Node) *core.Prediction {
	p := &core.Prediction{Nodes: nodes, Length: float64(len(nodes) - 1)}
	for i := 0; i+1 < len(nodes); i++ {
		p.Edges = append(p.Edges, core.Edge{From: nodes[i], To: nodes[i+1], Weight: 1, Length: 1})
	}
	return p
}

func node(row, col int, o core.Orientation) core.Node {
	return core.Node{Row: row, Col: col, Orientation: o}
}

func train(h core.Handle, pos core.Node) core.AgentState {
	return core.AgentState{
		Handle:   h,
		Speed:    1,
		Position: pos,
		Placed:   true,
		Status:   core.Active,
	}
}

// rawTensor recomputes the unnormalized tensor of h from the engine's last
// snapshot.
func rawTensor(e *Engine, h core.Handle, p *core.AgentPrediction) *Tensor {
	snap := e.Snapshot()
	job := &pathJob{graph: e.graph, snap: snap, self: h, speed: snap.Agent(h).Speed, depth: e.cfg.MaxDepth}
	t := NewTensor(e.cfg.MaxDepth)
	job.fillAll(t, p)
	return t
}
