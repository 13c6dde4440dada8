package playback

import (
	"time"

	"karolbroda.com/lyrisync/internal/track"
)

// Reading is what a playback source reports for a single query, before the
// poller stamps it with capture instants.
type Reading struct {
	// Track is nil when nothing is loaded in the player.
	Track      *track.Identity
	PositionMs int64
	DurationMs int64
	Playing    bool
}

// Snapshot is one observation of the remote player.
type Snapshot struct {
	Track      *track.Identity
	PositionMs int64
	DurationMs int64
	Playing    bool
	// ObservedAt is when the response arrived.
	ObservedAt time.Time
	// ServerTimestamp is when PositionMs was valid on the remote side.
	ServerTimestamp time.Time
}

// Instant is the moment PositionMs refers to.
func (s Snapshot) Instant() time.Time {
	if !s.ServerTimestamp.IsZero() {
		return s.ServerTimestamp
	}
	return s.ObservedAt
}

// State is the authoritative playback model. AnchorPositionMs always comes
// straight from a snapshot; extrapolation happens in Estimate only.
type State struct {
	Track            *track.Identity
	Playing          bool
	AnchorPositionMs int64
	AnchorInstant    time.Time
	DurationMs       int64
}

type Phase int

const (
	PhaseIdle Phase = iota
	PhasePlaying
	PhasePaused
)

func (p Phase) String() string {
	switch p {
	case PhasePlaying:
		return "playing"
	case PhasePaused:
		return "paused"
	default:
		return "idle"
	}
}

func (s State) Phase() Phase {
	switch {
	case s.Track == nil:
		return PhaseIdle
	case s.Playing:
		return PhasePlaying
	default:
		return PhasePaused
	}
}

func (s State) IsIdle() bool {
	return s.Track == nil
}

// Estimate extrapolates the playback position at now. Paused clocks do not
// advance; playing clocks advance with wall time and are clamped to
// [0, DurationMs]. An unknown duration (zero) disables the upper clamp.
func Estimate(state State, now time.Time) int64 {
	pos := state.AnchorPositionMs
	if state.Playing && !state.AnchorInstant.IsZero() {
		pos += now.Sub(state.AnchorInstant).Milliseconds()
	}

	if pos < 0 {
		return 0
	}
	if state.DurationMs > 0 && pos > state.DurationMs {
		return state.DurationMs
	}
	return pos
}
