package obs

import "github.com/elektrokombinacija/railobs/internal/core"

// CumulativeWeights returns the tick distance from the agent to every node of
// a path. Element 0 is initial; each edge adds Weight*times ticks.
func CumulativeWeights(initial float64, edges []core.Edge, times int) []float64 {
	weights := make([]float64, len(edges)+1)
	weights[0] = initial
	for i, e := range edges {
		weights[i+1] = weights[i] + float64(e.Weight*times)
	}
	return weights
}
