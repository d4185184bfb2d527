package obs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/railobs/internal/core"
	"github.com/elektrokombinacija/railobs/internal/railway"
)

// railLine is a two-way line (0,0)..(0,5) with a junction at (0,3) and a
// spur leaving (0,0) westbound to (1,0).
func railLine(t *testing.T) *railway.RailGraph {
	t.Helper()
	g := railway.New()
	require.NoError(t, g.AddTrack(node(0, 0, core.East), node(0, 3, core.East),
		[]core.Node{node(0, 1, core.East), node(0, 2, core.East)}))
	require.NoError(t, g.AddTrack(node(0, 3, core.East), node(0, 5, core.East),
		[]core.Node{node(0, 4, core.East)}))
	require.NoError(t, g.AddTrack(node(0, 5, core.West), node(0, 3, core.West),
		[]core.Node{node(0, 4, core.West)}))
	require.NoError(t, g.AddTrack(node(0, 3, core.West), node(0, 0, core.West),
		[]core.Node{node(0, 2, core.West), node(0, 1, core.West)}))
	require.NoError(t, g.AddTrack(node(0, 0, core.West), node(1, 0, core.South), nil))
	return g
}

func cell(row, col int) core.Cell {
	return core.Cell{Row: row, Col: col}
}

// weighted builds a prediction through nodes with the given edge weights.
func weighted(nodes []core.Node, weights ...int) *core.Prediction {
	p := &core.Prediction{Nodes: nodes}
	for i, w := range weights {
		p.Edges = append(p.Edges, core.Edge{From: nodes[i], To: nodes[i+1], Weight: w, Length: w})
		p.Length += float64(w)
	}
	return p
}

// crowdedLine puts train 0 at the western end heading east, and around it:
// train 1 ahead in the same direction (slow, broken down), train 2 coming
// the other way (broken down) and train 3 about to reach train 0's start
// from the east.
func crowdedLine(t *testing.T) (*railway.RailGraph, stubPredictor, stubFleet) {
	g := railLine(t)

	p := stubPredictor{
		0: {Shortest: weighted([]core.Node{node(0, 0, core.East), node(0, 3, core.East), node(0, 5, core.East)}, 3, 2)},
		1: {Shortest: weighted([]core.Node{node(0, 4, core.East), node(0, 5, core.East)}, 1)},
		2: {Shortest: weighted([]core.Node{node(0, 4, core.West), node(0, 3, core.West), node(0, 0, core.West)}, 1, 3)},
		3: {Shortest: weighted([]core.Node{node(0, 1, core.West), node(0, 0, core.West)}, 1)},
	}

	f := stubFleet{
		train(0, node(0, 0, core.East)),
		train(1, node(0, 4, core.East)),
		train(2, node(0, 4, core.West)),
		train(3, node(0, 1, core.West)),
	}
	f[1].Speed = 0.5
	f[1].Malfunction = 4
	f[2].Malfunction = 6
	return g, p, f
}

func TestEngineRawChannelsOnRailGraph(t *testing.T) {
	g, p, f := crowdedLine(t)
	e := newTestEngine(t, g, p, f, testConfig(3, 2))
	_, err := e.Compute([]core.Handle{0, 1, 2, 3})
	require.NoError(t, err)

	row := rawTensor(e, 0, p[0]).Shortest()
	require.Equal(t, 3, row.Length)
	inf := math.Inf(1)

	// Train 1 meets the path at (0,5) heading the same way.
	assert.Equal(t, []float64{0, 0, 1}, row.Channel(FeatSameAgents))
	assert.Equal(t, []float64{0, 0, 1}, row.Channel(FeatSameMalfunctioning))
	assert.Equal(t, []float64{0, 0, 4}, row.Channel(FeatSameMalfunction))
	// 5 ticks to (0,5), minus the half cell train 1 still owes: same
	// direction turns are subtracted.
	assert.Equal(t, []float64{inf, inf, 4.5}, row.Channel(FeatSameDistance))

	// Train 3 meets the path at (0,0), train 2 at (0,3), both head-on.
	assert.Equal(t, []float64{1, 2, 2}, row.Channel(FeatOppositeAgents))
	assert.Equal(t, []float64{0, 1, 1}, row.Channel(FeatOppositeMalfunctioning))
	assert.Equal(t, []float64{0, 6, 0}, row.Channel(FeatOppositeMalfunction))

	opposite := row.Channel(FeatOppositeDistance)
	// At the root the weight is below one cell, so the distance starts from
	// Remaining-Times = -1 instead of 0, plus the 2/3 cell train 3 covered.
	assert.InDelta(t, -1.0/3, opposite[0], 1e-12)
	assert.Equal(t, 3.5, opposite[1])
	assert.True(t, math.IsInf(opposite[2], 1))

	// Trains 2 and 3 both swap with train 0 on the first edge.
	assert.Equal(t, []float64{2, 2, 2}, row.Channel(FeatDeadlocks))
	assert.Equal(t, []float64{0, inf, inf}, row.Channel(FeatDeadlockTurns))
	assert.Equal(t, []float64{2, 3, 2}, row.Channel(FeatPopularity))
	assert.Equal(t, []float64{5, 2, 0}, row.Channel(FeatTargetDistance))
}

func TestDeadlockCountsNeverDecrease(t *testing.T) {
	g, p, f := crowdedLine(t)
	e := newTestEngine(t, g, p, f, testConfig(3, 1))
	handles := []core.Handle{0, 1, 2, 3}
	_, err := e.Compute(handles)
	require.NoError(t, err)

	for _, h := range handles {
		raw := rawTensor(e, h, p[h])
		for r := range raw.Rows {
			counts := raw.Rows[r].Channel(FeatDeadlocks)
			for k := 1; k < len(counts); k++ {
				assert.GreaterOrEqual(t, counts[k], counts[k-1], "agent %d row %d node %d", h, r, k)
			}
		}
	}
}

func TestEngineAnchorFollowsTrainBetweenNodes(t *testing.T) {
	g := railLine(t)
	a0, a3, a5 := node(0, 0, core.East), node(0, 3, core.East), node(0, 5, core.East)
	f := stubFleet{train(0, a0)}
	p := stubPredictor{}
	e := newTestEngine(t, g, p, f, testConfig(3, 1))

	steps := []struct {
		pos    core.Node
		path   *core.Prediction
		cells  []core.Cell
		packed []float64
	}{
		{a0, weighted([]core.Node{a0, a3, a5}, 3, 2), []core.Cell{cell(0, 0), cell(0, 3), cell(0, 5)}, []float64{0, 3, 5}},
		// Between nodes the path is re-rooted at (0,0) with the ticks
		// already spent since leaving it.
		{node(0, 1, core.East), weighted([]core.Node{node(0, 1, core.East), a3, a5}, 2, 2), []core.Cell{cell(0, 0), cell(0, 3), cell(0, 5)}, []float64{-2, 2, 4}},
		{node(0, 1, core.East), weighted([]core.Node{node(0, 1, core.East), a3, a5}, 2, 2), []core.Cell{cell(0, 0), cell(0, 3), cell(0, 5)}, []float64{-2, 2, 4}},
		{node(0, 2, core.East), weighted([]core.Node{node(0, 2, core.East), a3, a5}, 1, 2), []core.Cell{cell(0, 0), cell(0, 3), cell(0, 5)}, []float64{-3, 1, 3}},
		{a3, weighted([]core.Node{a3, a5}, 2), []core.Cell{cell(0, 3), cell(0, 5)}, []float64{0, 2}},
	}
	for tick, s := range steps {
		f[0].Position = s.pos
		p[0] = &core.AgentPrediction{Shortest: s.path}
		_, err := e.Compute([]core.Handle{0})
		require.NoError(t, err)

		packed := e.Snapshot().Agent(0).Packed
		assert.Equal(t, s.cells, packed.Cells, "tick %d", tick)
		assert.Equal(t, s.packed, packed.Weights, "tick %d", tick)
	}
}

func TestEngineResetAnchorsTrainBetweenNodes(t *testing.T) {
	g := railLine(t)
	f := stubFleet{train(0, node(0, 2, core.East))}
	f[0].Speed = 0.5
	p := stubPredictor{0: {Shortest: weighted([]core.Node{node(0, 2, core.East), node(0, 3, core.East)}, 1)}}
	e := newTestEngine(t, g, p, f, testConfig(3, 1))

	_, err := e.Compute([]core.Handle{0})
	require.NoError(t, err)

	// Two cells covered at two ticks each, and the current cell is not
	// started yet.
	packed := e.Snapshot().Agent(0).Packed
	assert.Equal(t, []core.Cell{cell(0, 0), cell(0, 3)}, packed.Cells)
	assert.Equal(t, []float64{-4, 4}, packed.Weights)
}
