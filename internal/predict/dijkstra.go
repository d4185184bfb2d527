package predict

import (
	"container/heap"
	"math"

	"github.com/elektrokombinacija/railobs/internal/core"
	"github.com/elektrokombinacija/railobs/internal/railway"
)

// distItem for priority queue.
type distItem struct {
	node  core.Node
	dist  float64
	index int // heap index
}

// distHeap implements heap.Interface.
type distHeap []*distItem

func (h distHeap) Len() int           { return len(h) }
func (h distHeap) Less(i, j int) bool { return h[i].dist < h[j].dist }
func (h distHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *distHeap) Push(x any) {
	n := x.(*distItem)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *distHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return x
}

// costToGo runs Dijkstra over reversed tracks from every node at target and
// returns the cells left to reach target from each node. Nodes that cannot
// reach target are absent.
func costToGo(g *railway.RailGraph, target core.Cell) map[core.Node]float64 {
	dist := make(map[core.Node]float64)
	open := &distHeap{}
	heap.Init(open)

	for _, n := range g.NodesAt(target) {
		dist[n] = 0
		heap.Push(open, &distItem{node: n})
	}

	for open.Len() > 0 {
		current := heap.Pop(open).(*distItem)
		if current.dist > dist[current.node] {
			continue // Stale entry
		}
		for _, prev := range g.Predecessors(current.node) {
			t, _ := g.Track(prev, current.node)
			d := current.dist + float64(t.Weight())
			if old, ok := dist[prev]; ok && old <= d {
				continue
			}
			dist[prev] = d
			heap.Push(open, &distItem{node: prev, dist: d})
		}
	}
	return dist
}

// lookup returns the cost-to-go of n, +Inf if unreachable.
func lookup(dist map[core.Node]float64, n core.Node) float64 {
	if d, ok := dist[n]; ok {
		return d
	}
	return math.Inf(1)
}
