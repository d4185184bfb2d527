package obs

import (
	"math"

	"github.com/elektrokombinacija/railobs/internal/core"
)

// targetDistances returns the ticks left to the target from every node of
// path. toRoot is the tick distance to the path root (0 for the shortest
// path).
func targetDistances(path *core.Prediction, weights []float64, times int, toRoot float64) []float64 {
	d := make([]float64, len(path.Nodes))
	if path.Unreachable() {
		for i := range d {
			d[i] = math.Inf(1)
		}
		return d
	}

	total := path.Length*float64(times) + toRoot
	for i := range d {
		d[i] = total - weights[i]
	}
	return d
}

// popularity counts, for every cell of the path, the other agents whose
// packed shortest path uses that cell.
func (j *pathJob) popularity(cells []core.Cell) []float64 {
	pop := make([]float64, len(cells))

	for i := range j.snap.Agents {
		other := &j.snap.Agents[i]
		if other.Handle == j.self || !other.HasPath() {
			continue
		}

		used := make(map[core.Cell]struct{}, len(other.Packed.Cells))
		for _, c := range other.Packed.Cells {
			used[c] = struct{}{}
		}
		for k, c := range cells {
			if _, ok := used[c]; ok {
				pop[k]++
			}
		}
	}
	return pop
}
