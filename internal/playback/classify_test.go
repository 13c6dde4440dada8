package playback

import (
	"testing"
	"time"

	"karolbroda.com/lyrisync/internal/track"
)

var base = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func song(id string) *track.Identity {
	return &track.Identity{Source: "test", ID: id, Title: "Song " + id, Artist: "Band", DurationMs: 200_000}
}

func snapAt(trk *track.Identity, posMs int64, playing bool, at time.Time) Snapshot {
	return Snapshot{
		Track:           trk,
		PositionMs:      posMs,
		DurationMs:      200_000,
		Playing:         playing,
		ObservedAt:      at,
		ServerTimestamp: at,
	}
}

func TestClassifyIdleToTrack(t *testing.T) {
	a := song("a")
	state, ev := Classify(State{}, snapAt(a, 5000, true, base), DefaultDriftThreshold)

	if ev == nil || ev.Kind != EventTrackChanged {
		t.Fatalf("Classify() event = %v, want track_changed", ev)
	}
	if ev.From != nil || ev.Track != a || ev.PositionMs != 5000 || ev.DurationMs != 200_000 {
		t.Fatalf("unexpected event payload: %+v", ev)
	}
	if state.Phase() != PhasePlaying || state.AnchorPositionMs != 5000 || !state.AnchorInstant.Equal(base) {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestClassifyTrackChange(t *testing.T) {
	a, b := song("a"), song("b")
	prev, _ := Classify(State{}, snapAt(a, 0, true, base), DefaultDriftThreshold)

	state, ev := Classify(prev, snapAt(b, 300, false, base.Add(2*time.Second)), DefaultDriftThreshold)
	if ev == nil || ev.Kind != EventTrackChanged {
		t.Fatalf("Classify() event = %v, want track_changed", ev)
	}
	if ev.From != a || ev.Track != b || ev.PositionMs != 300 {
		t.Fatalf("unexpected event payload: %+v", ev)
	}
	if state.Phase() != PhasePaused {
		t.Fatalf("state phase = %v, want paused", state.Phase())
	}
}

func TestClassifyStopToIdle(t *testing.T) {
	a := song("a")
	prev, _ := Classify(State{}, snapAt(a, 0, true, base), DefaultDriftThreshold)

	state, ev := Classify(prev, Snapshot{ObservedAt: base.Add(time.Second)}, DefaultDriftThreshold)
	if ev == nil || ev.Kind != EventStopped {
		t.Fatalf("Classify() event = %v, want stopped", ev)
	}
	if !state.IsIdle() || state.Playing {
		t.Fatalf("state should be idle: %+v", state)
	}

	_, ev = Classify(state, Snapshot{ObservedAt: base.Add(2 * time.Second)}, DefaultDriftThreshold)
	if ev != nil {
		t.Fatalf("idle to idle should not emit, got %v", ev)
	}
}

func TestClassifySteadyStateIsQuiet(t *testing.T) {
	a := song("a")
	state, _ := Classify(State{}, snapAt(a, 10_000, true, base), DefaultDriftThreshold)

	// Reported positions stay within the threshold of the extrapolation.
	offsets := []int64{0, 900, -1200, 1500, -1500, 300}
	for i, off := range offsets {
		at := base.Add(time.Duration(i+1) * 2 * time.Second)
		expected := Estimate(state, at)
		var ev *Event
		state, ev = Classify(state, snapAt(a, expected+off, true, at), DefaultDriftThreshold)
		if ev != nil {
			t.Fatalf("poll %d with drift %dms emitted %v", i, off, ev)
		}
		if state.AnchorPositionMs != expected+off || !state.AnchorInstant.Equal(at) {
			t.Fatalf("anchor not refreshed on poll %d: %+v", i, state)
		}
	}
}

func TestClassifyResyncOnSeek(t *testing.T) {
	a := song("a")
	state, _ := Classify(State{}, snapAt(a, 10_000, true, base), DefaultDriftThreshold)

	at := base.Add(2 * time.Second)
	_, ev := Classify(state, snapAt(a, 90_000, true, at), DefaultDriftThreshold)
	if ev == nil || ev.Kind != EventPositionResynced || ev.PositionMs != 90_000 {
		t.Fatalf("Classify() event = %v, want position_resynced at 90000", ev)
	}

	// Seeking backwards while paused is also a resync.
	paused, _ := Classify(state, snapAt(a, 12_000, false, at), DefaultDriftThreshold)
	_, ev = Classify(paused, snapAt(a, 1_000, false, at.Add(2*time.Second)), DefaultDriftThreshold)
	if ev == nil || ev.Kind != EventPositionResynced {
		t.Fatalf("Classify() event = %v, want position_resynced", ev)
	}
}

func TestClassifyOneEventPerEdge(t *testing.T) {
	a := song("a")
	state, _ := Classify(State{}, snapAt(a, 0, true, base), DefaultDriftThreshold)

	pattern := []bool{true, true, false, false, false, true, true, false, true}
	var started, stopped int
	pos := int64(0)
	at := base
	for _, playing := range pattern {
		at = at.Add(time.Second)
		if state.Playing {
			pos += 1000
		}
		var ev *Event
		state, ev = Classify(state, snapAt(a, pos, playing, at), DefaultDriftThreshold)
		if ev == nil {
			continue
		}
		switch ev.Kind {
		case EventStarted:
			started++
		case EventStopped:
			stopped++
		default:
			t.Fatalf("unexpected event %v", ev)
		}
	}

	// Edges: true->false, false->true, true->false, false->true.
	if started != 2 || stopped != 2 {
		t.Fatalf("started=%d stopped=%d, want 2 and 2", started, stopped)
	}
}

func TestClassifyUsesServerTimestamp(t *testing.T) {
	a := song("a")
	state, _ := Classify(State{}, Snapshot{
		Track:           a,
		PositionMs:      10_000,
		DurationMs:      200_000,
		Playing:         true,
		ObservedAt:      base.Add(200 * time.Millisecond),
		ServerTimestamp: base.Add(100 * time.Millisecond),
	}, DefaultDriftThreshold)

	if !state.AnchorInstant.Equal(base.Add(100 * time.Millisecond)) {
		t.Fatalf("anchor instant = %v, want server timestamp", state.AnchorInstant)
	}
	if got := Estimate(state, base.Add(200*time.Millisecond)); got != 10_100 {
		t.Fatalf("Estimate() = %d, want 10100", got)
	}
}
