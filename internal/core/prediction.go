package core

import "math"

// Prediction is a predicted route: the nodes visited (root first) and the
// edges between consecutive nodes.
type Prediction struct {
	Nodes  []Node
	Edges  []Edge
	Length float64 // Total cells to target, +Inf if unreachable
}

// Unreachable reports whether the target cannot be reached along this route.
func (p *Prediction) Unreachable() bool {
	return math.IsInf(p.Length, 1)
}

// Empty reports whether the prediction carries no nodes at all.
func (p *Prediction) Empty() bool {
	return p == nil || len(p.Nodes) == 0
}

// Cells returns the node cells in path order.
func (p *Prediction) Cells() []Cell {
	cells := make([]Cell, len(p.Nodes))
	for i, n := range p.Nodes {
		cells[i] = n.Cell()
	}
	return cells
}

// Index returns the position of n in the path, or -1.
func (p *Prediction) Index(n Node) int {
	for i, v := range p.Nodes {
		if v == n {
			return i
		}
	}
	return -1
}

// Truncate keeps at most max nodes (and the edges between them).
// Length is left untouched: it always refers to the full route.
func (p *Prediction) Truncate(max int) *Prediction {
	if p == nil || len(p.Nodes) <= max {
		return p
	}
	edges := p.Edges
	if len(edges) > max-1 {
		edges = edges[:max-1]
	}
	return &Prediction{Nodes: p.Nodes[:max], Edges: edges, Length: p.Length}
}

// AgentPrediction bundles the shortest route with its deviation routes.
// Deviations[i] is rooted at Shortest.Nodes[i]; nil entries mean no
// deviation exists there.
type AgentPrediction struct {
	Shortest   *Prediction
	Deviations []*Prediction
}
