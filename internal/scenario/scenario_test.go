package scenario

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/railobs/internal/core"
)

func TestLoadPassingSiding(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "passing_siding.json"))
	require.NoError(t, err)
	assert.Equal(t, "passing_siding", s.Name)
	assert.Len(t, s.Tracks, 10)
	assert.Len(t, s.Trains, 2)

	g, trains, err := s.Build()
	require.NoError(t, err)

	switchEast := core.Node{Row: 0, Col: 2, Orientation: core.East}
	assert.Equal(t, []core.Node{
		{Row: 0, Col: 5, Orientation: core.East},
		{Row: 1, Col: 3, Orientation: core.East},
	}, g.Successors(switchEast))

	require.Len(t, trains, 2)
	assert.Equal(t, core.Handle(1), trains[1].Handle)
	assert.Equal(t, core.Node{Row: 0, Col: 7, Orientation: core.West}, trains[1].Start)
	assert.Equal(t, core.Cell{Row: 0, Col: 0}, trains[1].Target)
	assert.Equal(t, 0.5, trains[1].Speed)
}

func TestTrackReverse(t *testing.T) {
	track := Track{
		From:  Position{Row: 0, Col: 2, Dir: "E"},
		To:    Position{Row: 1, Col: 3, Dir: "E"},
		Steps: []Position{{Row: 1, Col: 2, Dir: "S"}},
	}
	assert.Equal(t, Track{
		From:  Position{Row: 1, Col: 3, Dir: "W"},
		To:    Position{Row: 0, Col: 2, Dir: "W"},
		Steps: []Position{{Row: 1, Col: 2, Dir: "N"}},
	}, track.Reverse())
}

func TestSaveRoundTrip(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "passing_siding.json"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "copy.json")
	require.NoError(t, s.Save(path))
	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s, again)
}

func validScenario() *Scenario {
	return &Scenario{
		Name: "line",
		Tracks: []Track{{
			From:  Position{Row: 0, Col: 0, Dir: "E"},
			To:    Position{Row: 0, Col: 2, Dir: "E"},
			Steps: []Position{{Row: 0, Col: 1, Dir: "E"}},
		}},
		Trains: []Train{{Handle: 0, Start: Position{Row: 0, Col: 0, Dir: "E"}, Target: Cell{Row: 0, Col: 2}, Speed: 1}},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validScenario().Validate())

	tests := []struct {
		name   string
		mutate func(*Scenario)
	}{
		{"missing name", func(s *Scenario) { s.Name = "" }},
		{"no tracks", func(s *Scenario) { s.Tracks = nil }},
		{"bad direction", func(s *Scenario) { s.Tracks[0].To.Dir = "X" }},
		{"gap in track", func(s *Scenario) { s.Tracks[0].Steps[0].Col = 3 }},
		{"handle mismatch", func(s *Scenario) { s.Trains[0].Handle = 4 }},
		{"zero speed", func(s *Scenario) { s.Trains[0].Speed = 0 }},
		{"bad start direction", func(s *Scenario) { s.Trains[0].Start.Dir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validScenario()
			tt.mutate(s)
			require.ErrorIs(t, s.Validate(), ErrInvalid)
		})
	}
}

func TestBuildRejectsUnreachableTrains(t *testing.T) {
	s := validScenario()
	s.Trains[0].Target = Cell{Row: 0, Col: 1}
	_, _, err := s.Build()
	require.ErrorIs(t, err, ErrInvalid)

	s = validScenario()
	s.Trains[0].Start = Position{Row: 4, Col: 4, Dir: "N"}
	_, _, err = s.Build()
	require.ErrorIs(t, err, ErrInvalid)
}
