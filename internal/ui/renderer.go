package ui

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"karolbroda.com/lyrisync/internal/colors"
)

type Palette struct {
	Primary   string
	Secondary string
	Dim       string
	Error     string
}

func DefaultPalette() Palette {
	return Palette{
		Primary:   "#8BA4E8",
		Secondary: "#E8A4C8",
		Dim:       "#6272A4",
		Error:     "#FF6B6B",
	}
}

// TextRenderer turns lyric lines into centered, styled terminal rows.
type TextRenderer struct {
	palette     Palette
	screenWidth int
}

func NewTextRenderer(palette Palette, screenWidth int) *TextRenderer {
	return &TextRenderer{palette: palette, screenWidth: screenWidth}
}

// RenderFocusLyric draws the active line: the first revealed runes in the
// sung color, the rest dimmed. glow brightens the sung part right after a
// line change.
func (r *TextRenderer) RenderFocusLyric(text string, revealed int, glow float64) []string {
	if text == "" {
		text = "♪"
		revealed = 0
	}

	sung := lipgloss.NewStyle().
		Foreground(lipgloss.Color(colors.AddGlow(r.palette.Secondary, glow))).
		Bold(true)
	unsung := lipgloss.NewStyle().
		Foreground(lipgloss.Color(r.palette.Primary))

	var rows []string
	remaining := revealed
	for _, row := range r.wrapText(text) {
		runes := []rune(row)
		cut := min(max(remaining, 0), len(runes))
		remaining -= len(runes) + 1

		var line strings.Builder
		if cut > 0 {
			line.WriteString(sung.Render(string(runes[:cut])))
		}
		if cut < len(runes) {
			line.WriteString(unsung.Render(string(runes[cut:])))
		}
		rows = append(rows, r.center(line.String()))
	}
	return rows
}

// RenderContextLyric draws a neighbouring line faded towards the dim color.
// brightness 1 is full primary, 0 is fully dim.
func (r *TextRenderer) RenderContextLyric(text string, brightness float64, isPast bool) []string {
	if text == "" {
		text = "···"
	}

	base := r.palette.Primary
	if isPast {
		base = r.palette.Secondary
	}
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color(colors.Blend(r.palette.Dim, base, clamp(brightness, 0, 1))))

	var rows []string
	for _, row := range r.wrapText(text) {
		rows = append(rows, r.center(style.Render(row)))
	}
	return rows
}

func (r *TextRenderer) wrapText(text string) []string {
	limit := r.screenWidth - 8
	if limit < 10 {
		limit = 10
	}

	wrapped := wordwrap.String(text, limit)
	var rows []string
	for _, row := range strings.Split(wrapped, "\n") {
		// wordwrap keeps words longer than the limit intact
		for utf8.RuneCountInString(row) > limit {
			runes := []rune(row)
			rows = append(rows, string(runes[:limit]))
			row = string(runes[limit:])
		}
		rows = append(rows, row)
	}
	return rows
}

func (r *TextRenderer) center(s string) string {
	return lipgloss.PlaceHorizontal(r.screenWidth, lipgloss.Center, s)
}
