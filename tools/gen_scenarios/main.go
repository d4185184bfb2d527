// Package main generates deterministic rail scenarios: a two-way corridor
// with passing sidings and trains running in both directions.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/elektrokombinacija/railobs/internal/scenario"
)

// sidingSpan is the number of main-line cells a siding bypasses.
const sidingSpan = 3

// ScenarioParams defines parameters for scenario generation.
type ScenarioParams struct {
	Seed    int64 `json:"seed"`
	Length  int   `json:"length"`  // Corridor length in cells
	Sidings int   `json:"sidings"` // Passing sidings along the corridor
	Trains  int   `json:"trains"`
}

// Train speeds drawn for generated trains.
var speeds = []float64{1, 1, 0.5, 1.0 / 3, 0.25}

func (p ScenarioParams) validate() error {
	if p.Length < 2 {
		return fmt.Errorf("corridor length %d too short", p.Length)
	}
	if p.Trains > p.Length {
		return fmt.Errorf("%d trains do not fit a corridor of %d cells", p.Trains, p.Length)
	}
	if p.Sidings > 0 && p.Length < (sidingSpan+1)*p.Sidings+1 {
		return fmt.Errorf("%d sidings do not fit a corridor of %d cells", p.Sidings, p.Length)
	}
	return nil
}

// generateScenario creates a corridor scenario from parameters.
func generateScenario(params ScenarioParams) (*scenario.Scenario, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(params.Seed))

	sc := &scenario.Scenario{
		Name: fmt.Sprintf("corridor_%d_%d_%d_%d", params.Length, params.Sidings, params.Trains, params.Seed),
		Description: fmt.Sprintf("Two-way corridor of %d cells with %d passing sidings and %d trains.",
			params.Length, params.Sidings, params.Trains),
		Generated: time.Now().UTC().Format(time.RFC3339),
	}

	sidings := placeSidings(rng, params)
	if len(sidings) < params.Sidings {
		return nil, fmt.Errorf("placed %d of %d sidings", len(sidings), params.Sidings)
	}

	// Main line, split at every siding junction
	junctions := []int{0, params.Length}
	for _, a := range sidings {
		junctions = append(junctions, a, a+sidingSpan)
	}
	sort.Ints(junctions)
	for i := 1; i < len(junctions); i++ {
		east := mainTrack(junctions[i-1], junctions[i])
		sc.Tracks = append(sc.Tracks, east, east.Reverse())
	}

	for _, a := range sidings {
		for _, t := range sidingTracks(a) {
			sc.Tracks = append(sc.Tracks, t, t.Reverse())
		}
	}

	// Trains: eastbound from the western half, westbound from the eastern half
	used := make(map[int]bool)
	for i := 0; i < params.Trains; i++ {
		eastbound := i%2 == 0
		col := startColumn(rng, params.Length, eastbound, used)
		if col < 0 {
			return nil, fmt.Errorf("no free start column for train %d", i)
		}
		used[col] = true

		train := scenario.Train{
			Handle: i,
			Speed:  speeds[rng.Intn(len(speeds))],
		}
		if eastbound {
			train.Start = scenario.Position{Row: 0, Col: col, Dir: "E"}
			train.Target = scenario.Cell{Row: 0, Col: params.Length}
		} else {
			train.Start = scenario.Position{Row: 0, Col: col, Dir: "W"}
			train.Target = scenario.Cell{Row: 0, Col: 0}
		}
		sc.Trains = append(sc.Trains, train)
	}

	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// placeSidings picks non-overlapping siding start columns.
func placeSidings(rng *rand.Rand, params ScenarioParams) []int {
	if params.Sidings == 0 {
		return nil
	}
	var sidings []int
	for _, a := range rng.Perm(params.Length - sidingSpan) {
		if len(sidings) == params.Sidings {
			break
		}
		if a == 0 {
			continue
		}
		free := true
		for _, b := range sidings {
			if a-b <= sidingSpan && b-a <= sidingSpan {
				free = false
				break
			}
		}
		if free {
			sidings = append(sidings, a)
		}
	}
	sort.Ints(sidings)
	return sidings
}

// mainTrack runs east along row 0 from column from to column to.
func mainTrack(from, to int) scenario.Track {
	t := scenario.Track{
		From: scenario.Position{Row: 0, Col: from, Dir: "E"},
		To:   scenario.Position{Row: 0, Col: to, Dir: "E"},
	}
	for c := from + 1; c < to; c++ {
		t.Steps = append(t.Steps, scenario.Position{Row: 0, Col: c, Dir: "E"})
	}
	return t
}

// sidingTracks leaves the main line at column a, runs along row 1 and
// rejoins at a+sidingSpan, with a routing node at (1, a+1).
func sidingTracks(a int) []scenario.Track {
	down := scenario.Track{
		From:  scenario.Position{Row: 0, Col: a, Dir: "E"},
		To:    scenario.Position{Row: 1, Col: a + 1, Dir: "E"},
		Steps: []scenario.Position{{Row: 1, Col: a, Dir: "S"}},
	}
	up := scenario.Track{
		From: scenario.Position{Row: 1, Col: a + 1, Dir: "E"},
		To:   scenario.Position{Row: 0, Col: a + sidingSpan, Dir: "E"},
	}
	for c := a + 2; c < a+sidingSpan; c++ {
		up.Steps = append(up.Steps, scenario.Position{Row: 1, Col: c, Dir: "E"})
	}
	up.Steps = append(up.Steps, scenario.Position{Row: 1, Col: a + sidingSpan, Dir: "N"})
	return []scenario.Track{down, up}
}

// startColumn picks a free main-line column, preferring the train's own half.
// Eastbound trains never start on the eastern terminus and westbound trains
// never on the western one.
func startColumn(rng *rand.Rand, length int, eastbound bool, used map[int]bool) int {
	half := (length + 1) / 2
	for attempt := 0; attempt < 100; attempt++ {
		col := rng.Intn(half)
		if !eastbound {
			col = length - col
		}
		if !used[col] {
			return col
		}
	}
	for c := 0; c < length; c++ {
		col := c
		if !eastbound {
			col = length - c
		}
		if !used[col] {
			return col
		}
	}
	return -1
}

func main() {
	seed := flag.Int64("seed", 42, "Random seed for deterministic generation")
	length := flag.Int("length", 24, "Corridor length in cells")
	sidings := flag.Int("sidings", 2, "Number of passing sidings")
	trains := flag.Int("trains", 4, "Number of trains")
	outputDir := flag.String("output", "scenarios", "Output directory")
	scalingMode := flag.Bool("scaling", false, "Generate scaling scenarios (2, 4, 8, 16, 32 trains)")

	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	var params []ScenarioParams
	if *scalingMode {
		for _, n := range []int{2, 4, 8, 16, 32} {
			params = append(params, ScenarioParams{
				Seed:    *seed,
				Length:  n * 6,
				Sidings: n / 2,
				Trains:  n,
			})
		}
	} else {
		params = append(params, ScenarioParams{
			Seed:    *seed,
			Length:  *length,
			Sidings: *sidings,
			Trains:  *trains,
		})
	}

	failed := false
	for _, p := range params {
		sc, err := generateScenario(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating %+v: %v\n", p, err)
			failed = true
			continue
		}

		filename := filepath.Join(*outputDir, sc.Name+".json")
		if err := sc.Save(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing scenario %s: %v\n", filename, err)
			failed = true
			continue
		}

		fmt.Printf("Generated: %s (%d tracks, %d trains, %d sidings)\n",
			filename, len(sc.Tracks), len(sc.Trains), p.Sidings)
	}
	if failed {
		os.Exit(1)
	}
}
