// Package state manages the inspector state.
package state

import (
	"fmt"

	"github.com/elektrokombinacija/railobs/internal/core"
	"github.com/elektrokombinacija/railobs/internal/obs"
	"github.com/elektrokombinacija/railobs/internal/railway"
	"github.com/elektrokombinacija/railobs/internal/sim"
)

// State holds all inspector state.
type State struct {
	Graph    *railway.RailGraph
	Sim      *sim.Simulator
	Engine   *obs.Engine
	Playback *PlaybackState

	Tensors  map[core.Handle]*obs.Tensor
	Selected core.Handle
	Err      error // Last engine or simulator error; stepping stops
}

// NewState creates the inspector state and observes the first tick.
func NewState(graph *railway.RailGraph, simulator *sim.Simulator, engine *obs.Engine) *State {
	s := &State{
		Graph:    graph,
		Sim:      simulator,
		Engine:   engine,
		Playback: NewPlaybackState(4),
	}
	s.Reset()
	return s
}

// Reset restarts the episode.
func (s *State) Reset() {
	s.Err = nil
	s.Playback.Pause()
	s.Sim.Reset()
	if err := s.Engine.Reset(); err != nil {
		s.Err = fmt.Errorf("reset engine: %w", err)
		return
	}
	s.observe()
}

// Step advances the simulation one tick and observes the result.
func (s *State) Step() {
	if s.Err != nil || s.Sim.Done() {
		s.Playback.Pause()
		return
	}
	if err := s.Sim.Step(); err != nil {
		s.Err = err
		return
	}
	s.observe()
}

func (s *State) observe() {
	tensors, err := s.Engine.Compute(s.Sim.Handles())
	if err != nil {
		s.Err = fmt.Errorf("tick %d: %w", s.Sim.Tick(), err)
		return
	}
	s.Tensors = tensors
}

// SelectNext selects the next agent, wrapping around.
func (s *State) SelectNext() {
	if n := len(s.Sim.Handles()); n > 0 {
		s.Selected = (s.Selected + 1) % core.Handle(n)
	}
}

// SelectPrev selects the previous agent, wrapping around.
func (s *State) SelectPrev() {
	if n := len(s.Sim.Handles()); n > 0 {
		s.Selected = (s.Selected + core.Handle(n) - 1) % core.Handle(n)
	}
}

// Tensor returns the tensor of the selected agent, or nil.
func (s *State) Tensor() *obs.Tensor {
	return s.Tensors[s.Selected]
}

// Deadlocks returns the predicted deadlocks of every agent this tick.
func (s *State) Deadlocks() int {
	total := 0
	for _, t := range s.Tensors {
		total += t.Deadlocks
	}
	return total
}
