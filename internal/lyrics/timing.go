package lyrics

import (
	"sort"
	"unicode/utf8"
)

// DefaultLineDurationMs bounds the open-ended last line when computing
// progress.
const DefaultLineDurationMs = 5000

// LineIndexAt returns the index of the last line starting at or before
// positionMs, or -1 before the first line.
func (d *Document) LineIndexAt(positionMs int64) int {
	if d == nil {
		return -1
	}
	idx := sort.Search(len(d.Lines), func(i int) bool {
		return d.Lines[i].StartMs > positionMs
	})
	return idx - 1
}

// VisibleLines returns up to before lines ahead of the current one and after
// lines following it. Before the first line the window starts at index 0.
func (d *Document) VisibleLines(positionMs int64, before, after int) []Line {
	if d == nil || len(d.Lines) == 0 {
		return nil
	}
	current := max(d.LineIndexAt(positionMs), 0)
	start := max(current-before, 0)
	end := min(current+after+1, len(d.Lines))
	return d.Lines[start:end]
}

// EffectiveEndMs is EndMs, or a fixed window after the start for the last
// line.
func (l Line) EffectiveEndMs() int64 {
	if l.HasEnd {
		return l.EndMs
	}
	end := l.StartMs + DefaultLineDurationMs
	if n := len(l.Words); n > 0 && l.Words[n-1].StartMs >= end {
		end = l.Words[n-1].StartMs + 1
	}
	return end
}

// Progress is how far positionMs is through the line, in [0, 1].
func (l Line) Progress(positionMs int64) float64 {
	return fraction(l.StartMs, l.EffectiveEndMs(), positionMs)
}

// RevealedRunes counts the runes of Text that should be highlighted at
// positionMs. With word timing each word fills over its own window;
// otherwise the whole line fills linearly.
func (l Line) RevealedRunes(positionMs int64) int {
	total := utf8.RuneCountInString(l.Text)
	if total == 0 || positionMs < l.StartMs {
		return 0
	}

	if len(l.Words) == 0 {
		return int(l.Progress(positionMs) * float64(total))
	}

	lineEnd := l.EffectiveEndMs()
	revealed := 0
	for i, w := range l.Words {
		n := utf8.RuneCountInString(w.Text)
		if positionMs < w.StartMs {
			return revealed
		}

		end := lineEnd
		if w.HasEnd {
			end = w.EndMs
		}
		if positionMs < end {
			return revealed + int(fraction(w.StartMs, end, positionMs)*float64(n))
		}

		revealed += n
		if i+1 < len(l.Words) {
			revealed++
		}
	}
	return min(revealed, total)
}

func fraction(start, end, pos int64) float64 {
	if pos < start {
		return 0
	}
	if end <= start || pos >= end {
		return 1
	}
	return float64(pos-start) / float64(end-start)
}
