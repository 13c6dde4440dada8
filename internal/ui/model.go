package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/playback"
	"karolbroda.com/lyrisync/internal/track"
)

const (
	defaultFramerate = 30
	offsetStep       = 100 * time.Millisecond
	offsetJump       = 500 * time.Millisecond
)

// Clock is the read side of the sync engine.
type Clock interface {
	CurrentState() playback.State
	EstimatedPosition(now time.Time) int64
}

type TickMsg time.Time

type PlaybackEventMsg struct {
	Event playback.Event
}

type LyricsResultMsg struct {
	Result lyrics.Result
}

type TrackDisplay struct {
	Track        *track.Identity
	Doc          *lyrics.Document
	CurrentIndex int
	PrevIndex    int
}

type Model struct {
	clock      Clock
	events     <-chan playback.Event
	results    <-chan lyrics.Result
	frame      time.Duration
	now        func() time.Time
	palette    Palette
	syncOffset time.Duration
	hideHeader bool

	state       playback.State
	display     TrackDisplay
	positionMs  int64
	loading     bool
	authExpired bool
	err         error
	quitting    bool
	width       int
	height      int
	tickCount   int
	animState   AnimState
}

type ModelConfig struct {
	Clock      Clock
	Events     <-chan playback.Event
	Results    <-chan lyrics.Result
	Framerate  int
	SyncOffset time.Duration
	HideHeader bool
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewModel(cfg ModelConfig) Model {
	framerate := cfg.Framerate
	if framerate <= 0 {
		framerate = defaultFramerate
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	m := Model{
		clock:      cfg.Clock,
		events:     cfg.Events,
		results:    cfg.Results,
		frame:      time.Second / time.Duration(framerate),
		now:        now,
		palette:    DefaultPalette(),
		syncOffset: cfg.SyncOffset,
		hideHeader: cfg.HideHeader,
	}
	m.resetForNewTrack(nil)
	m.animState.Reset()

	if m.clock != nil {
		m.state = m.clock.CurrentState()
		m.display.Track = m.state.Track
		m.loading = m.state.Track != nil
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(m.frame),
		listenForEvents(m.events),
		listenForResults(m.results),
	)
}

func tickCmd(frame time.Duration) tea.Cmd {
	return tea.Tick(frame, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func listenForEvents(events <-chan playback.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return PlaybackEventMsg{Event: ev}
	}
}

func listenForResults(results <-chan lyrics.Result) tea.Cmd {
	if results == nil {
		return nil
	}
	return func() tea.Msg {
		r, ok := <-results
		if !ok {
			return nil
		}
		return LyricsResultMsg{Result: r}
	}
}

func (m *Model) resetForNewTrack(id *track.Identity) {
	m.display = TrackDisplay{Track: id, CurrentIndex: -1, PrevIndex: -1}
	m.loading = id != nil
	m.err = nil
	m.animState.Reset()
}

// displayPosition is the estimated position shifted by the user's offset.
func (m Model) displayPosition() int64 {
	return max(m.positionMs+m.syncOffset.Milliseconds(), 0)
}

func (m *Model) updateLyricIndex() bool {
	if m.display.Doc == nil {
		return false
	}

	idx := m.display.Doc.LineIndexAt(m.displayPosition())
	if idx == m.display.CurrentIndex {
		return false
	}
	m.display.PrevIndex = m.display.CurrentIndex
	m.display.CurrentIndex = idx
	return true
}

func (m Model) Width() int  { return m.width }
func (m Model) Height() int { return m.height }

func (m Model) Track() *track.Identity     { return m.display.Track }
func (m Model) Document() *lyrics.Document { return m.display.Doc }
func (m Model) Position() int64            { return m.positionMs }
func (m Model) CurrentIndex() int          { return m.display.CurrentIndex }
func (m Model) SyncOffset() time.Duration  { return m.syncOffset }
func (m Model) HideHeader() bool           { return m.hideHeader }
func (m Model) Err() error                 { return m.err }
func (m Model) IsQuitting() bool           { return m.quitting }
func (m Model) IsLoadingLyrics() bool      { return m.loading }
func (m Model) AuthExpired() bool          { return m.authExpired }
