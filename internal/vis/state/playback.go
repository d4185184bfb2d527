package state

import "time"

// PlaybackState manages automatic tick stepping.
type PlaybackState struct {
	Rate       float64 // Ticks per second
	Playing    bool    // Whether playback is active
	lastUpdate time.Time
	pending    float64
}

// NewPlaybackState creates a paused playback at rate ticks per second.
func NewPlaybackState(rate float64) *PlaybackState {
	return &PlaybackState{Rate: rate}
}

// TogglePlay toggles playback on/off.
func (p *PlaybackState) TogglePlay(now time.Time) {
	if p.Playing {
		p.Pause()
		return
	}
	p.Playing = true
	p.lastUpdate = now
	p.pending = 0
}

// Pause stops playback.
func (p *PlaybackState) Pause() {
	p.Playing = false
	p.pending = 0
}

// Advance returns the number of ticks due since the last update.
func (p *PlaybackState) Advance(now time.Time) int {
	if !p.Playing {
		return 0
	}
	p.pending += now.Sub(p.lastUpdate).Seconds() * p.Rate
	p.lastUpdate = now

	due := int(p.pending)
	p.pending -= float64(due)
	return due
}

// SetRate sets the playback rate, clamped to [0.5, 30] ticks per second.
func (p *PlaybackState) SetRate(rate float64) {
	if rate < 0.5 {
		rate = 0.5
	}
	if rate > 30 {
		rate = 30
	}
	p.Rate = rate
}
