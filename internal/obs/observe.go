package obs

import (
	"github.com/elektrokombinacija/railobs/internal/core"
)

// pathJob computes the tensor of one agent against a frozen snapshot.
type pathJob struct {
	graph Graph
	snap  *Snapshot
	self  core.Handle
	speed SpeedData
	depth int
}

// rowInput describes one path to analyze.
type rowInput struct {
	path    *core.Prediction
	weights []float64 // Cumulative weights aligned with path.Nodes
	toRoot  float64   // Ticks to reach the path root

	// Deadlock scans run on cells; the shortest row uses the packed path.
	cells       []core.Cell
	cellWeights []float64

	// Baseline inherited from the shortest-path prefix.
	seedAgents    [4]float64
	seedDeadlocks float64
}

// observe builds and normalizes the tensor for prediction p. A nil
// prediction yields an all-sentinel tensor.
func (j *pathJob) observe(p *core.AgentPrediction, norm Normalizer) (*Tensor, error) {
	t := NewTensor(j.depth)
	if p != nil {
		j.fillAll(t, p)
	}
	if err := norm.Normalize(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (j *pathJob) fillAll(t *Tensor, p *core.AgentPrediction) {
	view := j.snap.Agent(j.self)
	shortest := t.Shortest()
	j.fill(shortest, rowInput{
		path:        p.Shortest,
		weights:     view.Shortest,
		cells:       view.Packed.Cells,
		cellWeights: view.Packed.Weights,
	})
	t.Deadlocks = int(shortest.Cells[shortest.Length-1][FeatDeadlocks])

	// Deviation i branches at shortest node i and inherits the values the
	// shortest row accumulated up to node i-1.
	for i, dev := range p.Deviations {
		if dev.Empty() {
			continue
		}
		in := rowInput{
			path:   dev,
			toRoot: view.Shortest[i],
		}
		in.weights = CumulativeWeights(in.toRoot, dev.Edges, j.speed.Times)
		in.cells = dev.Cells()
		in.cellWeights = in.weights
		if i >= 1 {
			prefix := shortest.Cells[i-1]
			copy(in.seedAgents[:], prefix[FeatSameAgents:FeatOppositeMalfunctioning+1])
			in.seedDeadlocks = prefix[FeatDeadlocks]
		}
		j.fill(t.Deviation(i), in)
	}
}

// fill writes the raw features of one path into row.
func (j *pathJob) fill(row *Row, in rowInput) {
	conflicts := j.conflicts(in.path, in.weights, in.seedAgents)
	target := targetDistances(in.path, in.weights, j.speed.Times, in.toRoot)
	pop := j.popularity(in.cells)
	deadlocks, crash := j.deadlocks(in.cells, in.cellWeights, in.seedDeadlocks)

	row.Length = len(in.path.Nodes)
	for k := 0; k < row.Length; k++ {
		c := &row.Cells[k]
		copy(c[FeatSameAgents:], conflicts.counts[k][:])
		copy(c[FeatSameDistance:], conflicts.distances[k][:])
		copy(c[FeatSameMalfunction:], conflicts.malfunctions[k][:])
		c[FeatTargetDistance] = target[k]
		c[FeatPopularity] = pop[k]
		c[FeatDeadlocks] = deadlocks[k]
		c[FeatDeadlockTurns] = crash[k]
	}
}
