package obs

import (
	"fmt"
	"math"
)

// Normalized ranges: in-range values land in [Lower, Upper], values outside
// their known window in the wider [Under, Over] band. Absent features map to
// Under (-Inf) or Over (+Inf).
const (
	Lower = -1.0
	Upper = 1.0
	Under = -2.0
	Over  = 2.0
)

// bounds is a min-max window. Empirical windows are measured on the tensor.
type bounds struct {
	min, max  float64
	empirical bool
}

type featureGroup struct {
	channels []int
	bounds   bounds
}

// Normalizer scales a raw tensor feature group by feature group.
type Normalizer struct {
	Active         int // Agents not yet at their target
	MaxMalfunction int
	Depth          int
}

func (n Normalizer) groups() []featureGroup {
	agents := bounds{min: 0, max: float64(n.Active)}
	return []featureGroup{
		{[]int{FeatSameAgents, FeatOppositeAgents, FeatSameMalfunctioning, FeatOppositeMalfunctioning}, agents},
		{[]int{FeatSameDistance, FeatOppositeDistance}, bounds{empirical: true}},
		{[]int{FeatSameMalfunction, FeatOppositeMalfunction}, bounds{min: 0, max: float64(n.MaxMalfunction)}},
		{[]int{FeatTargetDistance}, bounds{empirical: true}},
		{[]int{FeatPopularity}, bounds{min: 0, max: float64(n.Depth)}},
		{[]int{FeatDeadlocks}, agents},
		{[]int{FeatDeadlockTurns}, bounds{empirical: true}},
	}
}

// Normalize rewrites t in place and checks that every value ends up in
// [Under, Over].
func (n Normalizer) Normalize(t *Tensor) error {
	for _, g := range n.groups() {
		b := g.bounds
		if b.empirical {
			var ok bool
			if b, ok = measure(t, g.channels); !ok {
				continue
			}
		}
		for r := range t.Rows {
			cells := t.Rows[r].Cells
			for j := range cells {
				for _, f := range g.channels {
					cells[j][f] = scale(cells[j][f], b)
				}
			}
		}
	}

	for r := range t.Rows {
		cells := t.Rows[r].Cells
		for j := range cells {
			for f, v := range cells[j] {
				switch {
				case math.IsInf(v, -1):
					cells[j][f] = Under
				case math.IsInf(v, 1):
					cells[j][f] = Over
				}
				if v := cells[j][f]; !(v >= Under && v <= Over) {
					return fmt.Errorf("%w: row %d node %d feature %d = %v",
						ErrInvariantViolation, r, j, f, v)
				}
			}
		}
	}
	return nil
}

// measure returns the finite min/max of the given channels.
func measure(t *Tensor, channels []int) (bounds, bool) {
	b := bounds{min: math.Inf(1), max: math.Inf(-1)}
	found := false
	for r := range t.Rows {
		for _, cell := range t.Rows[r].Cells {
			for _, f := range channels {
				v := cell[f]
				if math.IsInf(v, 0) || math.IsNaN(v) {
					continue
				}
				b.min = math.Min(b.min, v)
				b.max = math.Max(b.max, v)
				found = true
			}
		}
	}
	return b, found
}

// scale maps v from [b.min, b.max] to [Lower, Upper], clamped to
// [Under, Over]. Infinities pass through untouched.
func scale(v float64, b bounds) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}

	var s float64
	if b.max == b.min {
		switch {
		case v < b.min:
			s = Under
		case v > b.max:
			s = Over
		default:
			s = Lower
		}
	} else {
		s = Lower + (v-b.min)*(Upper-Lower)/(b.max-b.min)
	}
	return clamp(s, Under, Over)
}
