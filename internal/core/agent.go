package core

// Handle is a unique agent identifier. Handles are dense: 0..n-1.
type Handle int

// Status is the lifecycle stage of a train.
type Status int

const (
	ReadyToDepart Status = iota // Waiting at its initial cell
	Active                      // Moving on the rail network
	Done                        // Reached its target, still on the map
	DoneRemoved                 // Reached its target and left the map
)

func (s Status) String() string {
	return [...]string{"ReadyToDepart", "Active", "Done", "DoneRemoved"}[s]
}

// Finished reports whether the agent reached its target.
func (s Status) Finished() bool {
	return s == Done || s == DoneRemoved
}

// AgentState is the live view of one train as the environment reports it.
type AgentState struct {
	Handle           Handle
	Speed            float64 // Cells per tick, in (0, 1]
	PositionFraction float64 // Progress inside the current cell
	Position         Node    // Current cell and heading (initial cell before departure)
	Placed           bool    // Occupies its cell; false before departure and after removal
	Malfunction      int     // Remaining malfunction turns, 0 if healthy
	Status           Status
	Target           Cell
}

// Live reports whether the train has a position on the network. Trains
// waiting to depart are live; only removed trains are not.
func (a *AgentState) Live() bool {
	return a.Status != DoneRemoved
}

// Malfunctioning reports whether the train is currently broken down.
func (a *AgentState) Malfunctioning() bool {
	return a.Malfunction > 0
}
