package predict

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/railobs/internal/core"
	"github.com/elektrokombinacija/railobs/internal/railway"
)

type fleet []core.AgentState

func (f fleet) Agents() []core.AgentState { return f }

var (
	nodeA  = core.Node{Row: 0, Col: 0, Orientation: core.East}
	nodeB  = core.Node{Row: 0, Col: 2, Orientation: core.East}
	nodeC  = core.Node{Row: 0, Col: 5, Orientation: core.East}
	nodeE  = core.Node{Row: 1, Col: 2, Orientation: core.South}
	target = core.Cell{Row: 0, Col: 5}
)

// loopGraph: A -2-> B -3-> C on the main line, with a loop B -1-> E -3-> C.
func loopGraph(t *testing.T) *railway.RailGraph {
	t.Helper()
	g := railway.New()
	require.NoError(t, g.AddTrack(nodeA, nodeB, []core.Node{{Row: 0, Col: 1, Orientation: core.East}}))
	require.NoError(t, g.AddTrack(nodeB, nodeC, []core.Node{
		{Row: 0, Col: 3, Orientation: core.East},
		{Row: 0, Col: 4, Orientation: core.East},
	}))
	require.NoError(t, g.AddTrack(nodeB, nodeE, nil))
	require.NoError(t, g.AddTrack(nodeE, nodeC, []core.Node{
		{Row: 1, Col: 3, Orientation: core.East},
		{Row: 1, Col: 4, Orientation: core.East},
	}))
	return g
}

func agentAt(h core.Handle, pos core.Node, target core.Cell) core.AgentState {
	return core.AgentState{Handle: h, Speed: 1, Position: pos, Placed: true, Status: core.Active, Target: target}
}

func TestShortestAndDeviations(t *testing.T) {
	g := loopGraph(t)
	p := New(g, fleet{agentAt(0, nodeA, target)}, 4)

	pred, err := p.Route(agentAt(0, nodeA, target))
	require.NoError(t, err)

	assert.Equal(t, []core.Node{nodeA, nodeB, nodeC}, pred.Shortest.Nodes)
	require.Len(t, pred.Shortest.Edges, 2)
	assert.Equal(t, 2, pred.Shortest.Edges[0].Weight)
	assert.Equal(t, 3, pred.Shortest.Edges[1].Weight)
	assert.Equal(t, 5.0, pred.Shortest.Length)

	require.Len(t, pred.Deviations, 3)

	assert.Equal(t, []core.Node{nodeA}, pred.Deviations[0].Nodes, "no alternative at A")
	assert.True(t, pred.Deviations[0].Unreachable())

	assert.Equal(t, []core.Node{nodeB, nodeE, nodeC}, pred.Deviations[1].Nodes)
	assert.Equal(t, 4.0, pred.Deviations[1].Length)

	assert.Equal(t, []core.Node{nodeC}, pred.Deviations[2].Nodes, "already at target")
}

func TestShortestFromMidTrack(t *testing.T) {
	g := loopGraph(t)
	mid := core.Node{Row: 0, Col: 1, Orientation: core.East}
	p := New(g, nil, 4)

	pred, err := p.Route(agentAt(0, mid, target))
	require.NoError(t, err)

	assert.Equal(t, []core.Node{mid, nodeB, nodeC}, pred.Shortest.Nodes)
	assert.Equal(t, 1, pred.Shortest.Edges[0].Weight)
	assert.Equal(t, 4.0, pred.Shortest.Length)
	assert.True(t, pred.Deviations[0].Unreachable(), "cannot branch mid-track")
}

func TestTruncationKeepsFullLength(t *testing.T) {
	g := loopGraph(t)
	p := New(g, nil, 2)

	pred, err := p.Route(agentAt(0, nodeA, target))
	require.NoError(t, err)
	assert.Equal(t, []core.Node{nodeA, nodeB}, pred.Shortest.Nodes)
	assert.Equal(t, 5.0, pred.Shortest.Length)
	assert.Len(t, pred.Deviations, 1)
}

func TestUnreachableTarget(t *testing.T) {
	g := loopGraph(t)
	p := New(g, nil, 4)

	pred, err := p.Route(agentAt(0, nodeA, core.Cell{Row: 9, Col: 9}))
	require.NoError(t, err)
	assert.Equal(t, []core.Node{nodeA}, pred.Shortest.Nodes)
	assert.True(t, math.IsInf(pred.Shortest.Length, 1))
	assert.Len(t, pred.Deviations, 1)
}

func TestPredictSkipsFinishedAgents(t *testing.T) {
	g := loopGraph(t)
	done := agentAt(1, nodeC, target)
	done.Status = core.DoneRemoved
	done.Placed = false
	p := New(g, fleet{agentAt(0, nodeA, target), done}, 4)

	preds, err := p.Predict()
	require.NoError(t, err)
	assert.Contains(t, preds, core.Handle(0))
	assert.NotContains(t, preds, core.Handle(1))

	assert.Equal(t, 5.0, p.CostToGo(target, nodeA))
	assert.Equal(t, 3.0, p.CostToGo(target, nodeE))
}

func TestPredictRejectsOffNetworkPosition(t *testing.T) {
	g := loopGraph(t)
	p := New(g, fleet{agentAt(0, core.Node{Row: 7, Col: 7}, target)}, 4)

	_, err := p.Predict()
	require.Error(t, err)
}
