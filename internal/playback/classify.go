package playback

import "time"

const DefaultDriftThreshold = 1500 * time.Millisecond

// Classify folds a snapshot into the previous state and reports the
// transition, if any. The returned state is always rebuilt from the snapshot
// so the anchor stays ground truth even when no event fires.
func Classify(previous State, snap Snapshot, driftThreshold time.Duration) (State, *Event) {
	next := State{
		Track:            snap.Track,
		Playing:          snap.Playing,
		AnchorPositionMs: snap.PositionMs,
		AnchorInstant:    snap.Instant(),
		DurationMs:       snap.DurationMs,
	}

	if snap.Track == nil {
		next.Playing = false
		if previous.IsIdle() {
			return next, nil
		}
		return next, &Event{Kind: EventStopped, PositionMs: snap.PositionMs, DurationMs: snap.DurationMs}
	}

	if !previous.Track.IsSameTrack(snap.Track) {
		return next, &Event{
			Kind:       EventTrackChanged,
			From:       previous.Track,
			Track:      snap.Track,
			PositionMs: snap.PositionMs,
			DurationMs: snap.DurationMs,
		}
	}

	if previous.Playing != snap.Playing {
		kind := EventStopped
		if snap.Playing {
			kind = EventStarted
		}
		return next, &Event{Kind: kind, Track: snap.Track, PositionMs: snap.PositionMs, DurationMs: snap.DurationMs}
	}

	if driftExceeded(previous, snap, driftThreshold) {
		return next, &Event{Kind: EventPositionResynced, Track: snap.Track, PositionMs: snap.PositionMs, DurationMs: snap.DurationMs}
	}

	return next, nil
}

func driftExceeded(previous State, snap Snapshot, threshold time.Duration) bool {
	if threshold <= 0 {
		threshold = DefaultDriftThreshold
	}

	drift := snap.PositionMs - Estimate(previous, snap.Instant())
	if drift < 0 {
		drift = -drift
	}
	return drift > threshold.Milliseconds()
}
