package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
)

func (m Model) View() string {
	width := m.width
	height := m.height
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}

	if m.quitting {
		return ""
	}

	if m.state.Track == nil && m.display.Doc == nil {
		return m.renderWaitingScreen(width, height)
	}

	return m.renderMainScreen(width, height)
}

func (m Model) renderWaitingScreen(width int, height int) string {
	lines := make([]string, 0, height)
	centerY := height / 2

	for y := 0; y < height; y++ {
		switch y {
		case centerY - 1:
			text := "awaiting music"
			if m.authExpired {
				text = "authorization expired"
			}
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(m.palette.Dim)).Italic(true)
			lines = append(lines, lipgloss.PlaceHorizontal(width, lipgloss.Center, style.Render(text)))
		case centerY:
			pulseChars := []string{"·", "•", "●", "•"}
			pulseIdx := (m.tickCount / 4) % len(pulseChars)
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(m.palette.Secondary))
			lines = append(lines, lipgloss.PlaceHorizontal(width, lipgloss.Center, style.Render(pulseChars[pulseIdx])))
		default:
			lines = append(lines, "")
		}
	}

	return strings.Join(lines, "\n")
}

func (m Model) renderMainScreen(width int, height int) string {
	var lines []string

	if !m.hideHeader {
		lines = append(lines, m.renderHeader(width)...)
	}

	lyricsHeight := height - len(lines)

	switch {
	case m.err != nil:
		lines = append(lines, m.renderErrorSection(lyricsHeight, width)...)
	case m.display.Doc != nil:
		lines = append(lines, m.renderLyrics(lyricsHeight, width)...)
	default:
		lines = append(lines, m.renderWaitingForLyrics(lyricsHeight, width)...)
	}

	for len(lines) < height {
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[:height]
	}

	return strings.Join(lines, "\n")
}

func (m Model) renderHeader(width int) []string {
	trk := m.display.Track
	if trk == nil {
		trk = m.state.Track
	}
	if trk == nil {
		return nil
	}

	maxWidth := max(width-4, 20)
	titleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.palette.Primary)).Bold(true)
	artistStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.palette.Secondary))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.palette.Dim))

	lines := []string{""}
	lines = append(lines, "  "+titleStyle.Render(truncate.StringWithTail(trk.Title, uint(maxWidth), "…")))

	info := trk.Artist
	if trk.Album != "" {
		info += " · " + trk.Album
	}
	lines = append(lines, "  "+artistStyle.Render(truncate.StringWithTail(info, uint(maxWidth), "…")))

	var status []string
	if !m.state.Playing {
		status = append(status, "paused")
	}
	if m.syncOffset != 0 {
		status = append(status, fmt.Sprintf("offset %+.1fs", m.syncOffset.Seconds()))
	}
	if m.authExpired {
		status = append(status, "authorization expired")
	}
	if len(status) > 0 {
		lines = append(lines, "  "+dimStyle.Render(strings.Join(status, " · ")))
	}

	lines = append(lines, "")
	if m.state.DurationMs > 0 {
		lines = append(lines, m.renderProgress(width), "")
	}

	return lines
}

func (m Model) renderProgress(width int) string {
	barWidth := max(width-20, 20)

	progress := clamp(float64(m.positionMs)/float64(m.state.DurationMs), 0, 1)
	filledWidth := int(float64(barWidth) * progress)

	filledStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.palette.Primary))
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.palette.Dim)).Faint(true)

	var bar strings.Builder
	for i := 0; i < barWidth; i++ {
		switch {
		case i < filledWidth:
			bar.WriteString(filledStyle.Render("━"))
		case i == filledWidth:
			bar.WriteString(filledStyle.Render("●"))
		default:
			bar.WriteString(emptyStyle.Render("─"))
		}
	}

	timeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.palette.Dim))
	return fmt.Sprintf("  %s  %s  %s",
		timeStyle.Render(formatTime(m.positionMs)),
		bar.String(),
		timeStyle.Render(formatTime(m.state.DurationMs)))
}

// renderLyrics keeps the active line vertically centered with neighbours
// fading out above and below it.
func (m Model) renderLyrics(height int, width int) []string {
	doc := m.display.Doc
	renderer := NewTextRenderer(m.palette, width)
	pos := m.displayPosition()

	contextCount := 3
	if height < 20 {
		contextCount = 1
	}

	current := m.display.CurrentIndex
	fade := m.animState.Fade()

	type block struct {
		rows   []string
		offset int
	}
	var blocks []block
	focus := -1

	for offset := -contextCount; offset <= contextCount; offset++ {
		idx := current + offset
		if idx < 0 || idx >= len(doc.Lines) {
			continue
		}
		line := doc.Lines[idx]

		var rows []string
		switch {
		case offset == 0:
			rows = renderer.RenderFocusLyric(line.Text, line.RevealedRunes(pos), m.animState.GlowIntensity)
			focus = len(blocks)
		case offset == -1 && idx == m.display.PrevIndex:
			// the line just left fades from focus to context
			rows = renderer.RenderContextLyric(line.Text, lerp(0.9, 0.5, fade), true)
		default:
			dist := max(offset, -offset)
			rows = renderer.RenderContextLyric(line.Text, 0.6-float64(dist-1)*0.2, offset < 0)
		}
		blocks = append(blocks, block{rows: rows, offset: offset})
	}

	// before the first line only the upcoming lines are shown
	if current < 0 {
		intro := renderer.RenderContextLyric("♪", 1, false)
		blocks = append([]block{{rows: intro}}, blocks...)
		focus = 0
	}
	if focus < 0 {
		return nil
	}

	output := make([]string, height)
	const spacing = 1

	y := (height - len(blocks[focus].rows)) / 2
	for i := focus - 1; i >= 0; i-- {
		y -= len(blocks[i].rows) + spacing
	}
	for _, b := range blocks {
		for j, row := range b.rows {
			if r := y + j; r >= 0 && r < height {
				output[r] = row
			}
		}
		y += len(b.rows) + spacing
	}

	return output
}

func (m Model) renderErrorSection(height int, width int) []string {
	lines := make([]string, 0, height)
	for i := 0; i < height/2-1; i++ {
		lines = append(lines, "")
	}

	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.palette.Error))
	lines = append(lines, lipgloss.PlaceHorizontal(width, lipgloss.Center, errStyle.Render(m.err.Error())))
	return lines
}

func (m Model) renderWaitingForLyrics(height int, width int) []string {
	lines := make([]string, 0, height)
	for i := 0; i < height/2-1; i++ {
		lines = append(lines, "")
	}

	if m.loading {
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		idx := m.tickCount % len(frames)
		spinnerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.palette.Secondary))
		textStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.palette.Dim))
		msg := spinnerStyle.Render(frames[idx]) + textStyle.Render(" loading")
		lines = append(lines, lipgloss.PlaceHorizontal(width, lipgloss.Center, msg))
	} else {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(m.palette.Dim))
		lines = append(lines, lipgloss.PlaceHorizontal(width, lipgloss.Center, style.Render("♪")))
	}

	return lines
}

func formatTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	secs := ms / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
