package ui

import (
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/playback"
)

var errNoSyncedLyrics = errors.New("no synced lyrics available")

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case PlaybackEventMsg:
		return m.handlePlaybackEvent(msg.Event)

	case LyricsResultMsg:
		return m.handleLyricsResult(msg.Result)

	case TickMsg:
		return m.handleTick(time.Time(msg))
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "up", "k", "+", "=":
		m.shiftOffset(offsetStep)

	case "down", "j", "-":
		m.shiftOffset(-offsetStep)

	case "right", "l":
		m.shiftOffset(offsetJump)

	case "left", "h":
		m.shiftOffset(-offsetJump)

	case "0":
		m.syncOffset = 0
		m.updateLyricIndex()

	case "tab", "i":
		m.hideHeader = !m.hideHeader
	}

	return m, nil
}

func (m *Model) shiftOffset(d time.Duration) {
	m.syncOffset += d
	m.updateLyricIndex()
}

func (m Model) handlePlaybackEvent(ev playback.Event) (tea.Model, tea.Cmd) {
	next := listenForEvents(m.events)

	if m.clock != nil {
		m.state = m.clock.CurrentState()
		m.positionMs = m.clock.EstimatedPosition(m.now())
	}

	switch ev.Kind {
	case playback.EventTrackChanged:
		m.authExpired = false
		// the fetcher does not republish a track it already loaded
		if !m.display.Track.IsSameTrack(ev.Track) || m.display.Doc == nil {
			m.resetForNewTrack(ev.Track)
		}

	case playback.EventStarted:
		m.authExpired = false
		// a failed lookup is retried when playback starts again
		if m.display.Doc == nil && m.err != nil && ev.Track != nil {
			m.resetForNewTrack(ev.Track)
		}

	case playback.EventPositionResynced:
		m.animState.Reset()

	case playback.EventAuthExpired:
		m.authExpired = true
	}

	if m.updateLyricIndex() {
		m.animState.Update(true, 8)
	}
	return m, next
}

func (m Model) handleLyricsResult(r lyrics.Result) (tea.Model, tea.Cmd) {
	next := listenForResults(m.results)

	// results for a track we already moved past are stale
	if r.Track == nil || !r.Track.IsSameTrack(m.display.Track) {
		return m, next
	}

	m.loading = false
	switch {
	case r.Err != nil && errors.Is(r.Err, lyrics.ErrNotFound):
		m.err = errNoSyncedLyrics
		m.display.Doc = nil
	case r.Err != nil:
		m.err = r.Err
		m.display.Doc = nil
	case r.Doc == nil || len(r.Doc.Lines) == 0:
		m.err = errNoSyncedLyrics
		m.display.Doc = nil
	default:
		m.err = nil
		m.display.Doc = r.Doc
	}

	m.display.CurrentIndex = -1
	m.display.PrevIndex = -1
	m.updateLyricIndex()
	return m, next
}

func (m Model) handleTick(now time.Time) (tea.Model, tea.Cmd) {
	m.tickCount++

	if m.clock != nil {
		m.state = m.clock.CurrentState()
		m.positionMs = m.clock.EstimatedPosition(now)
	}

	lineChanged := m.updateLyricIndex()
	m.animState.Update(lineChanged, 8)

	return m, tickCmd(m.frame)
}
