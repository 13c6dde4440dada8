package lyrics

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrNoValidLines = errors.New("no valid timed lines")
)

type Format int

const (
	FormatSimple Format = iota
	FormatEnhanced
)

func (f Format) String() string {
	if f == FormatEnhanced {
		return "enhanced"
	}
	return "simple"
}

type Metadata struct {
	Title    string
	Artist   string
	Album    string
	Author   string
	By       string
	LengthMs int64
}

// Word is one <mm:ss.xx> run inside an enhanced line. EndMs is the next
// word's start, or the line end for the last word.
type Word struct {
	StartMs int64
	EndMs   int64
	HasEnd  bool
	Text    string
}

// Line is one timed lyric line. Lines without HasEnd are open-ended (the last
// line of a document).
type Line struct {
	StartMs int64
	EndMs   int64
	HasEnd  bool
	Text    string
	Words   []Word
}

// Document is an immutable parsed lyrics file. Raw keeps the source text so
// caches can store it verbatim and re-parse.
type Document struct {
	Lines    []Line
	Metadata Metadata
	OffsetMs int64
	Format   Format
	Provider string
	Raw      string
}

// Parse reads simple ([mm:ss.xx]text) and enhanced (<mm:ss.xx>word) LRC.
// Malformed lines are skipped; the parse only fails when no timed line
// survives.
func Parse(raw string) (*Document, error) {
	doc := &Document{Raw: raw}

	for _, physical := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(physical)
		if trimmed == "" {
			continue
		}

		stamps, body := splitTimestamps(trimmed)
		if len(stamps) == 0 {
			if tag, value, ok := splitIDTag(trimmed); ok {
				doc.applyTag(tag, value)
			}
			continue
		}

		text := strings.TrimSpace(body)
		words := parseWords(text)
		if len(words) > 0 {
			// tags out of order are sung in time order
			sort.SliceStable(words, func(i, j int) bool {
				return words[i].StartMs < words[j].StartMs
			})
			parts := make([]string, len(words))
			for i, w := range words {
				parts[i] = w.Text
			}
			text = strings.Join(parts, " ")
			doc.Format = FormatEnhanced
		}

		first := stamps[0]
		for _, start := range stamps {
			line := Line{StartMs: start, Text: text}
			if len(words) > 0 {
				// repeated timestamps reuse the word rhythm relative to the first one
				shift := start - first
				line.Words = make([]Word, len(words))
				for i, w := range words {
					w.StartMs = max(w.StartMs+shift, start)
					line.Words[i] = w
				}
			}
			doc.Lines = append(doc.Lines, line)
		}
	}

	if len(doc.Lines) == 0 {
		return nil, ErrNoValidLines
	}

	if doc.OffsetMs != 0 {
		doc.shift(doc.OffsetMs)
	}

	sort.SliceStable(doc.Lines, func(i, j int) bool {
		return doc.Lines[i].StartMs < doc.Lines[j].StartMs
	})

	doc.closeLines()
	return doc, nil
}

func (d *Document) applyTag(tag, value string) {
	switch strings.ToLower(tag) {
	case "ti":
		d.Metadata.Title = value
	case "ar":
		d.Metadata.Artist = value
	case "al":
		d.Metadata.Album = value
	case "au":
		d.Metadata.Author = value
	case "by":
		d.Metadata.By = value
	case "length":
		if ms, ok := parseTimestamp(value); ok {
			d.Metadata.LengthMs = ms
		}
	case "offset":
		if offset, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			d.OffsetMs = offset
		}
	}
}

func (d *Document) shift(offset int64) {
	for i := range d.Lines {
		line := &d.Lines[i]
		line.StartMs = max(line.StartMs+offset, 0)
		for j := range line.Words {
			line.Words[j].StartMs = max(line.Words[j].StartMs+offset, 0)
		}
	}
}

// closeLines fills end times once the lines are in order.
func (d *Document) closeLines() {
	for i := range d.Lines {
		line := &d.Lines[i]

		if i+1 < len(d.Lines) {
			line.EndMs = d.Lines[i+1].StartMs
			line.HasEnd = true
			// words are sorted, so the last one starts latest
			if n := len(line.Words); n > 0 && line.Words[n-1].StartMs > line.EndMs {
				line.EndMs = line.Words[n-1].StartMs
			}
		}

		for j := range line.Words {
			word := &line.Words[j]
			if j+1 < len(line.Words) {
				word.EndMs = line.Words[j+1].StartMs
				word.HasEnd = true
			} else if line.HasEnd {
				word.EndMs = line.EndMs
				word.HasEnd = true
			}
		}
	}
}

// splitTimestamps consumes every leading [timestamp] tag.
func splitTimestamps(line string) ([]int64, string) {
	var stamps []int64
	rest := line
	for strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			break
		}
		ms, ok := parseTimestamp(rest[1:end])
		if !ok {
			break
		}
		stamps = append(stamps, ms)
		rest = rest[end+1:]
	}
	return stamps, rest
}

// splitIDTag recognizes [tag:value] where tag is not numeric.
func splitIDTag(line string) (string, string, bool) {
	if !strings.HasPrefix(line, "[") {
		return "", "", false
	}
	end := strings.IndexByte(line, ']')
	if end < 0 {
		return "", "", false
	}
	content := line[1:end]
	colon := strings.IndexByte(content, ':')
	if colon <= 0 {
		return "", "", false
	}
	tag := content[:colon]
	if isDigits(tag) {
		return "", "", false
	}
	return strings.TrimSpace(tag), strings.TrimSpace(content[colon+1:]), true
}

func parseWords(body string) []Word {
	if !strings.Contains(body, "<") {
		return nil
	}

	var words []Word
	rest := body
	for rest != "" {
		open := strings.IndexByte(rest, '<')
		if open < 0 {
			break
		}
		rest = rest[open:]
		end := strings.IndexByte(rest, '>')
		if end < 0 {
			break
		}
		ms, ok := parseTimestamp(rest[1:end])
		rest = rest[end+1:]
		if !ok {
			continue
		}

		next := strings.IndexByte(rest, '<')
		if next < 0 {
			next = len(rest)
		}
		text := strings.TrimSpace(rest[:next])
		rest = rest[next:]
		if text == "" {
			continue
		}
		words = append(words, Word{StartMs: ms, Text: text})
	}
	return words
}

// parseTimestamp accepts mm:ss, mm:ss.xx, mm:ss:xx (hundredths) and
// hh:mm:ss.xx.
func parseTimestamp(raw string) (int64, bool) {
	parts := strings.Split(strings.TrimSpace(raw), ":")

	switch len(parts) {
	case 2:
		minutes, ok := parseUint(parts[0])
		if !ok {
			return 0, false
		}
		secMs, ok := parseSeconds(parts[1])
		if !ok {
			return 0, false
		}
		return minutes*60_000 + secMs, true

	case 3:
		if strings.Contains(parts[2], ".") {
			hours, ok1 := parseUint(parts[0])
			minutes, ok2 := parseUint(parts[1])
			secMs, ok3 := parseSeconds(parts[2])
			if !ok1 || !ok2 || !ok3 {
				return 0, false
			}
			return hours*3_600_000 + minutes*60_000 + secMs, true
		}
		minutes, ok1 := parseUint(parts[0])
		seconds, ok2 := parseUint(parts[1])
		hundredths, ok3 := parseUint(parts[2])
		if !ok1 || !ok2 || !ok3 {
			return 0, false
		}
		return minutes*60_000 + seconds*1000 + hundredths*10, true
	}
	return 0, false
}

// parseSeconds turns "ss" or "ss.f..." into milliseconds. Fractions are
// read as decimal, so .5 is 500ms and .34 is 340ms.
func parseSeconds(raw string) (int64, bool) {
	whole, frac, hasFrac := strings.Cut(raw, ".")
	seconds, ok := parseUint(whole)
	if !ok {
		return 0, false
	}
	ms := seconds * 1000
	if !hasFrac {
		return ms, true
	}
	if frac == "" || !isDigits(frac) {
		return 0, false
	}
	if len(frac) > 3 {
		frac = frac[:3]
	}
	for len(frac) < 3 {
		frac += "0"
	}
	fracMs, _ := strconv.ParseInt(frac, 10, 64)
	return ms + fracMs, true
}

func parseUint(raw string) (int64, bool) {
	if !isDigits(raw) {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
