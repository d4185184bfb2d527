package obs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/railobs/internal/core"
)

// swapScenario places train 0 heading east on (0,0)->(0,1)->(0,2) and train 1
// heading west on (0,1)->(0,0): both want the same edge in opposite
// directions.
func swapScenario() (*stubGraph, stubPredictor, stubFleet) {
	a0, a1, a2 := node(0, 0, core.East), node(0, 1, core.East), node(0, 2, core.East)
	b0, b1 := node(0, 1, core.West), node(0, 0, core.West)
	s1, s2 := node(1, 1, core.South), node(1, 2, core.South)

	g := newStubGraph(
		[2]core.Node{a0, a1},
		[2]core.Node{a1, a2},
		[2]core.Node{a1, s1},
		[2]core.Node{a2, s2},
		[2]core.Node{b0, b1},
	)
	p := stubPredictor{
		0: {
			Shortest:   route(a0, a1, a2),
			Deviations: []*core.Prediction{nil, route(a1, s1), route(a2, s2)},
		},
		1: {Shortest: route(b0, b1)},
	}
	f := stubFleet{train(0, a0), train(1, b0)}
	return g, p, f
}

func newTestEngine(t *testing.T, g Graph, p Predictor, f Fleet, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(g, p, f, cfg)
	require.NoError(t, err)
	require.NoError(t, e.Reset())
	return e
}

func testConfig(depth, workers int) Config {
	cfg := DefaultConfig()
	cfg.MaxDepth = depth
	cfg.Workers = workers
	return cfg
}

func TestEngineSingleAgent(t *testing.T) {
	a0, a1, a2 := node(0, 0, core.East), node(0, 1, core.East), node(0, 2, core.East)
	g := newStubGraph([2]core.Node{a0, a1}, [2]core.Node{a1, a2})
	p := stubPredictor{0: {Shortest: route(a0, a1, a2)}}
	f := stubFleet{train(0, a0)}

	e := newTestEngine(t, g, p, f, testConfig(4, 1))
	tensors, err := e.Compute([]core.Handle{0})
	require.NoError(t, err)

	tensor := tensors[0]
	require.Equal(t, 4, tensor.Depth())
	row := tensor.Shortest()
	assert.Equal(t, 3, row.Length)

	// No other agents: counts and deadlocks sit at the bottom of their
	// range, distances are absent.
	for j := 0; j < row.Length; j++ {
		assert.Equal(t, Lower, tensor.At(0, j, FeatSameAgents))
		assert.Equal(t, Lower, tensor.At(0, j, FeatOppositeMalfunctioning))
		assert.Equal(t, Over, tensor.At(0, j, FeatSameDistance))
		assert.Equal(t, Over, tensor.At(0, j, FeatOppositeDistance))
		assert.Equal(t, Lower, tensor.At(0, j, FeatSameMalfunction))
		assert.Equal(t, Lower, tensor.At(0, j, FeatPopularity))
		assert.Equal(t, Lower, tensor.At(0, j, FeatDeadlocks))
		assert.Equal(t, Over, tensor.At(0, j, FeatDeadlockTurns))
	}
	assert.Equal(t, []float64{Upper, 0, Lower}, row.Channel(FeatTargetDistance))
	assert.Equal(t, Under, tensor.At(0, 3, FeatTargetDistance), "padding")
	assert.Equal(t, Under, tensor.At(1, 0, FeatSameAgents), "missing deviation")
	assert.Zero(t, tensor.Deadlocks)
}

func TestEngineSwapDeadlock(t *testing.T) {
	g, p, f := swapScenario()
	e := newTestEngine(t, g, p, f, testConfig(4, 2))

	tensors, err := e.Compute([]core.Handle{0, 1})
	require.NoError(t, err)

	for _, h := range []core.Handle{0, 1} {
		assert.Equal(t, 1, tensors[h].Deadlocks, "agent %d", h)
		// One deadlock among two active agents.
		assert.Equal(t, 0.0, tensors[h].At(0, 0, FeatDeadlocks), "agent %d", h)

		raw := rawTensor(e, h, p[h])
		assert.Equal(t, 1.0, raw.At(0, 0, FeatDeadlocks))
		turns := raw.At(0, 0, FeatDeadlockTurns)
		assert.False(t, math.IsInf(turns, 0))
		assert.GreaterOrEqual(t, turns, 0.0)
	}

	raw := rawTensor(e, 0, p[0])
	assert.Equal(t, 2.0, raw.At(0, 0, FeatDeadlockTurns))
	assert.Equal(t, []float64{0, 1, 1}, raw.Shortest().Channel(FeatOppositeAgents))
	assert.Equal(t, []float64{1, 1, 0}, raw.Shortest().Channel(FeatPopularity))
}

func TestEngineTrainWaitingToDepart(t *testing.T) {
	g, p, f := swapScenario()
	f[1].Status = core.ReadyToDepart
	f[1].Placed = false
	e := newTestEngine(t, g, p, f, testConfig(4, 1))

	tensors, err := e.Compute([]core.Handle{0})
	require.NoError(t, err)
	assert.Equal(t, 1, tensors[0].Deadlocks)

	raw := rawTensor(e, 0, p[0])
	assert.Equal(t, 1.0, raw.At(0, 0, FeatDeadlocks))
	assert.Equal(t, []float64{0, 1, 1}, raw.Shortest().Channel(FeatOppositeAgents))
	assert.True(t, e.Snapshot().Agent(1).Live)
}

func TestEngineRemovedTrainIsIgnored(t *testing.T) {
	g, p, f := swapScenario()
	f[1].Status = core.DoneRemoved
	f[1].Placed = false
	e := newTestEngine(t, g, p, f, testConfig(4, 1))

	tensors, err := e.Compute([]core.Handle{0})
	require.NoError(t, err)
	assert.Zero(t, tensors[0].Deadlocks)

	raw := rawTensor(e, 0, p[0])
	assert.Equal(t, []float64{0, 0, 0}, raw.Shortest().Channel(FeatOppositeAgents))
	assert.False(t, e.Snapshot().Agent(1).Live)
}

func TestEngineDeviationSeeding(t *testing.T) {
	g, p, f := swapScenario()
	e := newTestEngine(t, g, p, f, testConfig(4, 1))
	_, err := e.Compute([]core.Handle{0})
	require.NoError(t, err)

	raw := rawTensor(e, 0, p[0])
	shortest := raw.Shortest()

	assert.Zero(t, raw.Deviation(0).Length, "no deviation at the first node")

	// Deviation 1 inherits the shortest prefix up to node 0 and adds train 1
	// arriving head-on at its root.
	dev1 := raw.Deviation(1)
	require.Equal(t, 2, dev1.Length)
	assert.Equal(t, []float64{1, 1}, dev1.Channel(FeatOppositeAgents))
	assert.Equal(t, []float64{0, 0}, dev1.Channel(FeatSameAgents))
	assert.Equal(t, []float64{1, 1}, dev1.Channel(FeatDeadlocks))

	// Deviation 2 is never crossed: it only carries the prefix up to node 1.
	dev2 := raw.Deviation(2)
	require.Equal(t, 2, dev2.Length)
	for j := 0; j < dev2.Length; j++ {
		for f := FeatSameAgents; f <= FeatOppositeMalfunctioning; f++ {
			assert.Equal(t, shortest.Cells[1][f], dev2.Cells[j][f])
		}
		assert.Equal(t, shortest.Cells[1][FeatDeadlocks], dev2.Cells[j][FeatDeadlocks])
	}

	// Deviation targets include the ticks needed to reach the root.
	assert.Equal(t, []float64{1, 0}, dev1.Channel(FeatTargetDistance))
}

func TestEngineDeterministic(t *testing.T) {
	g, p, f := swapScenario()
	handles := []core.Handle{0, 1}

	sequential := newTestEngine(t, g, p, f, testConfig(4, 1))
	first, err := sequential.Compute(handles)
	require.NoError(t, err)
	again, err := sequential.Compute(handles)
	require.NoError(t, err)
	assert.Equal(t, first, again, "same input must give the same tensors")

	parallel := newTestEngine(t, g, p, f, testConfig(4, 8))
	concurrent, err := parallel.Compute(handles)
	require.NoError(t, err)
	assert.Equal(t, first, concurrent, "results must not depend on worker count")
}

func TestEngineNoPrediction(t *testing.T) {
	g, _, f := swapScenario()
	e := newTestEngine(t, g, stubPredictor{}, f, testConfig(3, 1))

	tensors, err := e.Compute([]core.Handle{0})
	require.NoError(t, err)
	for _, row := range tensors[0].Dense() {
		for _, cell := range row {
			for _, v := range cell {
				assert.Equal(t, Under, v)
			}
		}
	}
}

func TestEngineEpisode(t *testing.T) {
	g, p, f := swapScenario()
	e := newTestEngine(t, g, p, f, testConfig(4, 1))
	first := e.Episode()
	require.NoError(t, e.Reset())
	assert.NotEqual(t, first, e.Episode())
	assert.Nil(t, e.Snapshot())

	_, err := e.Compute(nil)
	require.NoError(t, err)
	snap := e.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, 2, snap.Active)
	assert.Len(t, snap.Agents, 2)
}

func TestEnginePreconditions(t *testing.T) {
	g, p, f := swapScenario()

	t.Run("invalid config", func(t *testing.T) {
		_, err := NewEngine(g, p, f, testConfig(1, 1))
		require.ErrorIs(t, err, ErrPrecondition)
	})

	t.Run("compute before reset", func(t *testing.T) {
		e, err := NewEngine(g, p, f, testConfig(4, 1))
		require.NoError(t, err)
		_, err = e.Compute([]core.Handle{0})
		require.ErrorIs(t, err, ErrPrecondition)
	})

	t.Run("unknown handle", func(t *testing.T) {
		e := newTestEngine(t, g, p, f, testConfig(4, 1))
		_, err := e.Compute([]core.Handle{0, 1})
		require.NoError(t, err)
		before := e.Snapshot()

		_, err = e.Compute([]core.Handle{7})
		require.ErrorIs(t, err, ErrPrecondition)
		// The failed tick leaves the last snapshot and the anchors alone.
		assert.Same(t, before, e.Snapshot())
		_, err = e.Compute([]core.Handle{0, 1})
		require.NoError(t, err)
		assert.Equal(t, before.Tick+1, e.Snapshot().Tick)
	})

	t.Run("fewer deviations than nodes", func(t *testing.T) {
		short := stubPredictor{0: {Shortest: p[0].Shortest, Deviations: p[0].Deviations[:2]}, 1: p[1]}
		e := newTestEngine(t, g, short, f, testConfig(4, 1))
		tensors, err := e.Compute([]core.Handle{0})
		require.NoError(t, err)
		assert.Equal(t, 2, tensors[0].Deviation(1).Length)
		assert.Zero(t, tensors[0].Deviation(2).Length)
		assert.Equal(t, Under, tensors[0].At(3, 0, FeatSameAgents), "missing trailing deviation")
	})

	t.Run("too many deviations", func(t *testing.T) {
		e := newTestEngine(t, g, p, f, testConfig(3, 1))
		_, err := e.Compute([]core.Handle{0})
		require.ErrorIs(t, err, ErrPrecondition)
	})

	t.Run("edges do not match nodes", func(t *testing.T) {
		bad := stubPredictor{0: {Shortest: &core.Prediction{
			Nodes:  []core.Node{node(0, 0, core.East), node(0, 1, core.East)},
			Length: 1,
		}}}
		e := newTestEngine(t, g, bad, f, testConfig(4, 1))
		_, err := e.Compute([]core.Handle{0})
		require.ErrorIs(t, err, ErrPrecondition)
		var pe *PreconditionError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "predict", pe.Op)
	})

	t.Run("invalid speed", func(t *testing.T) {
		slow := stubFleet{train(0, node(0, 0, core.East))}
		slow[0].Speed = 0
		e, err := NewEngine(g, p, slow, testConfig(4, 1))
		require.NoError(t, err)
		require.ErrorIs(t, e.Reset(), ErrPrecondition)
	})

	t.Run("handles out of order", func(t *testing.T) {
		swapped := stubFleet{train(1, node(0, 0, core.East)), train(0, node(0, 1, core.West))}
		e, err := NewEngine(g, p, swapped, testConfig(4, 1))
		require.NoError(t, err)
		require.ErrorIs(t, e.Reset(), ErrPrecondition)
	})
}
