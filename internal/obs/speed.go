package obs

import "math"

// SpeedData converts a continuous speed into discrete tick counts.
type SpeedData struct {
	Times     int // Ticks needed to cross one cell
	Remaining int // Ticks left in the current cell
}

// NewSpeedData computes the per-cell tick count for speed in (0, 1].
func NewSpeedData(speed float64) (SpeedData, error) {
	if !(speed > 0) || speed > 1 {
		return SpeedData{}, precondition("speed", "speed %v outside (0, 1]", speed)
	}
	return SpeedData{Times: int(math.Round(1 / speed))}, nil
}

// Update recomputes Remaining from the fractional progress in the current cell.
func (s SpeedData) Update(speed, fraction float64) SpeedData {
	s.Remaining = 0
	if speed < 1.0 {
		s.Remaining = int(math.Floor((1 - clamp(fraction, 0, 1)) / speed))
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
