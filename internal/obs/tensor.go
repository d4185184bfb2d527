package obs

import "math"

// Features is the number of channels per path node.
const Features = 12

// Feature channels.
const (
	FeatSameAgents             = 0
	FeatOppositeAgents         = 1
	FeatSameMalfunctioning     = 2
	FeatOppositeMalfunctioning = 3
	FeatSameDistance           = 4
	FeatOppositeDistance       = 5
	FeatSameMalfunction        = 6
	FeatOppositeMalfunction    = 7
	FeatTargetDistance         = 8
	FeatPopularity             = 9
	FeatDeadlocks              = 10
	FeatDeadlockTurns          = 11
)

// FeatureNames labels the feature channels.
var FeatureNames = [Features]string{
	"same_agents",
	"opposite_agents",
	"same_malfunctioning",
	"opposite_malfunctioning",
	"same_distance",
	"opposite_distance",
	"same_malfunction",
	"opposite_malfunction",
	"target_distance",
	"popularity",
	"deadlocks",
	"deadlock_turns",
}

// RowKind tags a tensor row.
type RowKind int

const (
	ShortestRow RowKind = iota
	DeviationRow
)

func (k RowKind) String() string {
	return [...]string{"shortest", "deviation"}[k]
}

// Row holds the features of one path, one entry per path node.
type Row struct {
	Kind   RowKind
	Index  int // Deviation index; 0 for the shortest row
	Branch int // Shortest-path node index the row is rooted at
	Length int // Populated entries; the rest hold sentinels
	Cells  [][Features]float64
}

// Tensor is the observation of one agent: row 0 is the shortest path, row
// i+1 the deviation rooted at shortest-path node i.
type Tensor struct {
	Rows []Row

	// Deadlocks is the raw number of deadlocks predicted along the
	// shortest path, kept for diagnostics before normalization.
	Deadlocks int
}

// NewTensor allocates a depth x depth tensor filled with -Inf.
func NewTensor(depth int) *Tensor {
	t := &Tensor{Rows: make([]Row, depth)}
	for i := range t.Rows {
		row := &t.Rows[i]
		row.Cells = make([][Features]float64, depth)
		if i > 0 {
			row.Kind = DeviationRow
			row.Index = i - 1
			row.Branch = i - 1
		}
		for j := range row.Cells {
			for f := range row.Cells[j] {
				row.Cells[j][f] = math.Inf(-1)
			}
		}
	}
	return t
}

// Depth returns the number of rows (and of entries per row).
func (t *Tensor) Depth() int {
	return len(t.Rows)
}

// At returns one feature value.
func (t *Tensor) At(row, node, feature int) float64 {
	return t.Rows[row].Cells[node][feature]
}

// Shortest returns the shortest-path row.
func (t *Tensor) Shortest() *Row {
	return &t.Rows[0]
}

// Deviation returns the row of deviation i.
func (t *Tensor) Deviation(i int) *Row {
	return &t.Rows[i+1]
}

// Dense copies the tensor into the depth x depth x Features layout consumed
// by policies.
func (t *Tensor) Dense() [][][]float64 {
	out := make([][][]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = make([][]float64, len(row.Cells))
		for j := range row.Cells {
			out[i][j] = append([]float64(nil), row.Cells[j][:]...)
		}
	}
	return out
}

// Channel returns one feature of a row over its populated entries.
func (r *Row) Channel(feature int) []float64 {
	out := make([]float64, r.Length)
	for j := 0; j < r.Length; j++ {
		out[j] = r.Cells[j][feature]
	}
	return out
}
