package obs

import (
	"math"

	"github.com/elektrokombinacija/railobs/internal/core"
)

// Conflict directions. Malfunctioning counts live at direction+2.
const (
	sameDirection     = 0
	oppositeDirection = 1
)

// conflictFeatures accumulates, per path node, what other agents crossing
// the path look like.
type conflictFeatures struct {
	counts       [][4]float64 // Agents at or before this node, by direction and malfunction
	distances    [][2]float64 // Minimum signed distance, by direction
	malfunctions [][2]float64 // Maximum malfunction turns, by direction
}

func newConflictFeatures(n int, seed [4]float64) conflictFeatures {
	f := conflictFeatures{
		counts:       make([][4]float64, n),
		distances:    make([][2]float64, n),
		malfunctions: make([][2]float64, n),
	}
	for i := 0; i < n; i++ {
		f.counts[i] = seed
		f.distances[i] = [2]float64{math.Inf(1), math.Inf(1)}
	}
	return f
}

// conflicts scans every other live agent and records where its next node
// meets path. weights are the cumulative weights aligned with path.Nodes.
func (j *pathJob) conflicts(path *core.Prediction, weights []float64, seed [4]float64) conflictFeatures {
	n := len(path.Nodes)
	f := newConflictFeatures(n, seed)
	times := float64(j.speed.Times)

	for i := range j.snap.Agents {
		other := &j.snap.Agents[i]
		if other.Handle == j.self || !other.Live {
			continue
		}

		successors := j.graph.Successors(other.Next)
		for _, candidate := range j.graph.NodesAt(other.Next.Cell()) {
			index := path.Index(candidate)
			if index < 0 {
				continue
			}

			distance := weights[index]
			if weights[index] < times {
				distance = float64(j.speed.Remaining - j.speed.Times)
			}
			turns := math.Abs(
				(other.Offset - float64(other.Speed.Remaining)/float64(other.Speed.Times)) * times,
			)

			direction := sameDirection
			if opposite(candidate, other.Next, successors, path.Nodes, index) {
				direction = oppositeDirection
			} else {
				turns = -turns
			}

			for k := index; k < n; k++ {
				f.counts[k][direction]++
			}

			distance += turns
			if closer(distance, f.distances[index][direction]) {
				f.distances[index][direction] = distance
			}

			malfunction := float64(other.Malfunction)
			if other.Malfunction > 0 {
				for k := index; k < n; k++ {
					f.counts[k][direction+2]++
				}
			}
			if f.malfunctions[index][direction] < malfunction {
				f.malfunctions[index][direction] = malfunction
			}
			break
		}
	}

	return f
}

// opposite classifies a match between path[index] and another agent's next
// node. The branch order matters and must not be simplified.
func opposite(match, next core.Node, successors, path []core.Node, index int) bool {
	if match == next {
		return false
	}
	lastInPath := len(path) <= index+1
	diverges := !lastInPath && len(successors) > 0 && successors[0] != path[index+1]
	return len(successors) > 1 || lastInPath || diverges
}

// closer decides whether candidate replaces the stored distance: +Inf is
// always replaced, a negative candidate replaces a non-negative value, and
// within the same sign bucket the smaller magnitude wins.
func closer(candidate, stored float64) bool {
	switch {
	case math.IsInf(stored, 1):
		return true
	case candidate < 0 && stored >= 0:
		return true
	case candidate >= 0 && stored >= 0:
		return candidate < stored
	case candidate <= 0 && stored <= 0:
		return candidate > stored
	}
	return false
}
