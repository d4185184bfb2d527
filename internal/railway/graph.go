// Package railway models a rail network as a directed routing graph whose
// nodes are switch or endpoint cells entered with a heading, and whose edges
// are the plain track segments between them.
package railway

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tidwall/rtree"

	"github.com/elektrokombinacija/railobs/internal/core"
)

var (
	ErrDuplicateTrack = errors.New("railway: duplicate track")
	ErrPositionInUse  = errors.New("railway: position already used by another track")
	ErrNoTrack        = errors.New("railway: no track between nodes")
)

// Track is a directed segment between two routing nodes. Steps are the
// positions strictly between From and To, in travel order.
type Track struct {
	From, To core.Node
	Steps    []core.Node
}

// Weight is the number of cells moved along the track.
func (t *Track) Weight() int {
	return len(t.Steps) + 1
}

// Edge converts the track to a path edge.
func (t *Track) Edge() core.Edge {
	return core.Edge{From: t.From, To: t.To, Weight: t.Weight(), Length: t.Weight()}
}

// stepRef locates a mid-track position.
type stepRef struct {
	track *Track
	index int
	pos   core.Node
}

// Location is a live position translated onto the routing graph.
type Location struct {
	Track   *Track // Nil when the position is a node
	Covered int    // Cells moved since Track.From
}

// RailGraph is the routing graph of a rail network.
type RailGraph struct {
	nodes  map[core.Node]struct{}
	byCell map[core.Cell][]core.Node
	succ   map[core.Node][]core.Node
	pred   map[core.Node][]core.Node
	tracks map[[2]core.Node]*Track
	steps  map[core.Node]struct{}

	// Mid-track positions, indexed by cell.
	index rtree.RTreeG[stepRef]
}

// New creates an empty rail graph.
func New() *RailGraph {
	return &RailGraph{
		nodes:  make(map[core.Node]struct{}),
		byCell: make(map[core.Cell][]core.Node),
		succ:   make(map[core.Node][]core.Node),
		pred:   make(map[core.Node][]core.Node),
		tracks: make(map[[2]core.Node]*Track),
		steps:  make(map[core.Node]struct{}),
	}
}

// AddTrack adds a directed track from -> to through steps.
func (g *RailGraph) AddTrack(from, to core.Node, steps []core.Node) error {
	key := [2]core.Node{from, to}
	if _, ok := g.tracks[key]; ok {
		return fmt.Errorf("%w: %v -> %v", ErrDuplicateTrack, from, to)
	}
	for _, n := range []core.Node{from, to} {
		if _, ok := g.steps[n]; ok {
			return fmt.Errorf("%w: node %v", ErrPositionInUse, n)
		}
	}
	seen := make(map[core.Node]struct{}, len(steps))
	for _, s := range steps {
		_, isNode := g.nodes[s]
		_, isStep := g.steps[s]
		_, dup := seen[s]
		if isNode || isStep || dup || s == from || s == to {
			return fmt.Errorf("%w: step %v", ErrPositionInUse, s)
		}
		seen[s] = struct{}{}
	}

	t := &Track{From: from, To: to, Steps: append([]core.Node(nil), steps...)}
	g.tracks[key] = t
	g.addNode(from)
	g.addNode(to)
	g.succ[from] = insertSorted(g.succ[from], to)
	g.pred[to] = insertSorted(g.pred[to], from)

	for i, s := range t.Steps {
		g.steps[s] = struct{}{}
		pt := [2]float64{float64(s.Row), float64(s.Col)}
		g.index.Insert(pt, pt, stepRef{track: t, index: i, pos: s})
	}
	return nil
}

func (g *RailGraph) addNode(n core.Node) {
	if _, ok := g.nodes[n]; ok {
		return
	}
	g.nodes[n] = struct{}{}
	c := n.Cell()
	g.byCell[c] = insertSorted(g.byCell[c], n)
}

// insertSorted keeps nodes ordered by row, column, then orientation.
func insertSorted(nodes []core.Node, n core.Node) []core.Node {
	i := sort.Search(len(nodes), func(i int) bool { return !less(nodes[i], n) })
	if i < len(nodes) && nodes[i] == n {
		return nodes
	}
	nodes = append(nodes, core.Node{})
	copy(nodes[i+1:], nodes[i:])
	nodes[i] = n
	return nodes
}

func less(a, b core.Node) bool {
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	if a.Col != b.Col {
		return a.Col < b.Col
	}
	return a.Orientation < b.Orientation
}

// Nodes returns every routing node in a stable order.
func (g *RailGraph) Nodes() []core.Node {
	out := make([]core.Node, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Successors returns the nodes reachable from n over one track.
func (g *RailGraph) Successors(n core.Node) []core.Node {
	return g.succ[n]
}

// Predecessors returns the nodes with a track leading to n.
func (g *RailGraph) Predecessors(n core.Node) []core.Node {
	return g.pred[n]
}

// NodesAt returns the nodes located at c, ordered by orientation.
func (g *RailGraph) NodesAt(c core.Cell) []core.Node {
	return g.byCell[c]
}

// HasNode reports whether pos is a routing node.
func (g *RailGraph) HasNode(pos core.Node) bool {
	_, ok := g.nodes[pos]
	return ok
}

// Track returns the track between two nodes.
func (g *RailGraph) Track(from, to core.Node) (*Track, bool) {
	t, ok := g.tracks[[2]core.Node{from, to}]
	return t, ok
}

// EdgeBetween returns the path edge between two nodes.
func (g *RailGraph) EdgeBetween(from, to core.Node) (core.Edge, error) {
	t, ok := g.Track(from, to)
	if !ok {
		return core.Edge{}, fmt.Errorf("%w: %v -> %v", ErrNoTrack, from, to)
	}
	return t.Edge(), nil
}

// Locate translates a live position onto the graph.
func (g *RailGraph) Locate(pos core.Node) (Location, bool) {
	if g.HasNode(pos) {
		return Location{}, true
	}
	var loc Location
	found := false
	pt := [2]float64{float64(pos.Row), float64(pos.Col)}
	g.index.Search(pt, pt, func(_, _ [2]float64, ref stepRef) bool {
		if ref.pos != pos {
			return true
		}
		loc = Location{Track: ref.track, Covered: ref.index + 1}
		found = true
		return false
	})
	return loc, found
}

// Previous returns the last node before pos and the cells moved since.
func (g *RailGraph) Previous(pos core.Node) (core.Node, int, bool) {
	loc, ok := g.Locate(pos)
	switch {
	case !ok:
		return core.Node{}, 0, false
	case loc.Track == nil:
		return pos, 0, true
	}
	return loc.Track.From, loc.Covered, true
}

// Next returns the next node from pos and the fraction of the track
// already covered.
func (g *RailGraph) Next(pos core.Node) (core.Node, float64, bool) {
	loc, ok := g.Locate(pos)
	switch {
	case !ok:
		return core.Node{}, 0, false
	case loc.Track == nil:
		return pos, 0, true
	}
	return loc.Track.To, float64(loc.Covered) / float64(loc.Track.Weight()), true
}

// Step returns the position one cell further from pos toward the node
// toward. pos may be a node or a mid-track position.
func (g *RailGraph) Step(pos, toward core.Node) (core.Node, error) {
	loc, ok := g.Locate(pos)
	if !ok {
		return core.Node{}, fmt.Errorf("railway: position %v is not on the network", pos)
	}
	t := loc.Track
	if t == nil {
		if t, ok = g.Track(pos, toward); !ok {
			return core.Node{}, fmt.Errorf("%w: %v -> %v", ErrNoTrack, pos, toward)
		}
	} else if t.To != toward {
		return core.Node{}, fmt.Errorf("%w: %v is on %v -> %v, not toward %v", ErrNoTrack, pos, t.From, t.To, toward)
	}
	if loc.Covered < len(t.Steps) {
		return t.Steps[loc.Covered], nil
	}
	return t.To, nil
}

// Positions returns every node and mid-track position, ordered by row,
// column, then orientation.
func (g *RailGraph) Positions() []core.Node {
	out := g.Nodes()
	for s := range g.steps {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
