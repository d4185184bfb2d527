package obs

import (
	"math"

	"github.com/elektrokombinacija/railobs/internal/core"
)

// deadlocks predicts swap conflicts between this path and every other
// agent's packed shortest path: both agents scheduled on the same edge in
// opposite directions with overlapping tick windows.
//
// counts[k] is the number of deadlocks found at or before node k, starting
// from baseline; crash[k] is the minimum estimated turns to a crash on the
// edge leaving node k.
func (j *pathJob) deadlocks(cells []core.Cell, weights []float64, baseline float64) (counts, crash []float64) {
	n := len(cells)
	counts = make([]float64, n)
	crash = make([]float64, n)
	for k := range counts {
		counts[k] = baseline
		crash[k] = math.Inf(1)
	}

	for i := range j.snap.Agents {
		other := &j.snap.Agents[i]
		if other.Handle == j.self || !other.Live || !other.HasPath() {
			continue
		}
		j.firstSwap(other, cells, weights, counts, crash)
	}
	return counts, crash
}

// firstSwap records at most one deadlock per pair of agents.
func (j *pathJob) firstSwap(other *AgentView, cells []core.Cell, weights, counts, crash []float64) {
	oc, ow := other.Packed.Cells, other.Packed.Weights

	for i := 0; i+1 < len(oc); i++ {
		for k := 0; k+1 < len(cells); k++ {
			// Swap: my edge is the reverse of theirs.
			if cells[k] != oc[i+1] || cells[k+1] != oc[i] {
				continue
			}
			// Tick windows must overlap.
			if weights[k] > ow[i+1] || weights[k+1] < ow[i] {
				continue
			}

			turn := crashTurn(weights[k], weights[k+1], ow[i], j.speed.Times, other.Speed.Times)
			if crash[k] > turn {
				crash[k] = turn
			}
			for m := k; m < len(cells); m++ {
				counts[m]++
			}
			return
		}
	}
}

// crashTurn estimates the turns until two agents entering the same edge from
// opposite ends meet. enter/exit are my weights at the edge endpoints,
// otherEnter the other agent's weight at its entry node.
func crashTurn(enter, exit, otherEnter float64, times, otherTimes int) float64 {
	mt, ot := float64(times), float64(otherTimes)
	space := (exit - enter) / mt

	switch {
	case enter < 0 && otherEnter < 0:
		// Both already on the edge: remove what each has covered.
		space += enter / mt
		space += otherEnter / ot
	case enter > otherEnter:
		// I enter later: the other agent has advanced meanwhile.
		space -= math.Abs(enter-math.Abs(otherEnter)) / ot
	case otherEnter > enter:
		space += math.Abs(otherEnter-math.Abs(enter)) / ot
	}

	return math.Ceil(math.Max(enter, 0) + space/closingRate(ot, mt))
}

// closingRate combines two per-cell tick counts of agents moving toward
// each other.
func closingRate(a, b float64) float64 {
	return a * b / (a + b)
}
