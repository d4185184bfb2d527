package obs

import "github.com/elektrokombinacija/railobs/internal/core"

// Anchor is the last routing-graph node an agent passed, with the ticks
// accumulated since it left that node. Elapsed is 0 while the agent sits on
// Node.
type Anchor struct {
	Node    core.Node
	Elapsed int
}

// Between reports whether an agent observed at pos is strictly between two
// graph nodes, i.e. it already left the anchor node.
func (a Anchor) Between(pos core.Node) bool {
	return pos != a.Node
}

// Packed is a shortest path whose leading node is aligned to the graph
// lattice, with the matching cumulative weights.
type Packed struct {
	Cells   []core.Cell
	Weights []float64
}

// pack re-roots a shortest path on the agent's anchor when the agent is
// mid-edge. The leading weight then becomes the (negative) ticks owed to
// finish leaving the anchor node.
func pack(path *core.Prediction, weights []float64, anchor Anchor, speed SpeedData) Packed {
	cells := path.Cells()
	packed := make([]float64, len(weights))
	copy(packed, weights)

	if anchor.Between(path.Nodes[0]) {
		cells[0] = anchor.Node.Cell()
		packed[0] = -float64(anchor.Elapsed + speed.Times - speed.Remaining)
	}
	return Packed{Cells: cells, Weights: packed}
}

// AgentView is the read-only per-tick state of one agent as seen by every
// other agent's computation.
type AgentView struct {
	Handle      core.Handle
	Speed       SpeedData
	Malfunction int

	// Live position, translated to the routing graph.
	Live   bool
	Next   core.Node
	Offset float64

	// Shortest-path state; empty when the agent has no prediction.
	Shortest []float64
	Packed   Packed
}

// HasPath reports whether the agent contributed a packed shortest path.
func (v *AgentView) HasPath() bool {
	return len(v.Packed.Cells) > 0
}

// Snapshot is the immutable state shared by all per-agent computations of
// one tick. It is built once, after every agent's shortest path has been
// ingested.
type Snapshot struct {
	Tick   int
	Active int // Agents not yet at their target
	Agents []AgentView
}

// Agent returns the view of handle h.
func (s *Snapshot) Agent(h core.Handle) *AgentView {
	return &s.Agents[h]
}
