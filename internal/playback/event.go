package playback

import (
	"fmt"

	"karolbroda.com/lyrisync/internal/track"
)

type EventKind int

const (
	EventStarted EventKind = iota
	EventStopped
	EventTrackChanged
	EventPositionResynced
	// EventAuthExpired is raised when the source rejects our credentials.
	// The poller keeps retrying; a token refresher may react to it.
	EventAuthExpired
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventStopped:
		return "stopped"
	case EventTrackChanged:
		return "track_changed"
	case EventPositionResynced:
		return "position_resynced"
	case EventAuthExpired:
		return "auth_expired"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a one-shot playback transition. Only the fields relevant to Kind
// are set: Track for Started and TrackChanged (the new track), From for
// TrackChanged, Err for AuthExpired.
type Event struct {
	Kind       EventKind
	Track      *track.Identity
	From       *track.Identity
	PositionMs int64
	DurationMs int64
	Err        error
}

func (e Event) String() string {
	switch e.Kind {
	case EventTrackChanged:
		return fmt.Sprintf("%s %s -> %s @%dms", e.Kind, e.From, e.Track, e.PositionMs)
	case EventStarted, EventStopped, EventPositionResynced:
		return fmt.Sprintf("%s @%dms", e.Kind, e.PositionMs)
	case EventAuthExpired:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}
