package lyrics

import (
	"errors"
	"testing"
)

func mustParse(t *testing.T, raw string) *Document {
	t.Helper()
	doc, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return doc
}

func TestParseSimple(t *testing.T) {
	doc := mustParse(t, "[00:05.00]First line\n[00:10.50]Second line\r\n[00:15.00]Third line\n")

	if len(doc.Lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(doc.Lines))
	}
	if doc.Format != FormatSimple {
		t.Fatalf("Format = %v, want simple", doc.Format)
	}

	wantStarts := []int64{5000, 10500, 15000}
	wantTexts := []string{"First line", "Second line", "Third line"}
	for i, line := range doc.Lines {
		if line.StartMs != wantStarts[i] || line.Text != wantTexts[i] {
			t.Fatalf("line %d = {%d %q}, want {%d %q}", i, line.StartMs, line.Text, wantStarts[i], wantTexts[i])
		}
	}

	if !doc.Lines[0].HasEnd || doc.Lines[0].EndMs != 10500 {
		t.Fatalf("line 0 end = %d (has=%v), want 10500", doc.Lines[0].EndMs, doc.Lines[0].HasEnd)
	}
	if doc.Lines[2].HasEnd {
		t.Fatalf("last line should be open-ended")
	}
}

func TestParseTimestampForms(t *testing.T) {
	cases := map[string]int64{
		"[00:12.34]x":    12_340,
		"[00:12.3]x":     12_300,
		"[00:12.345]x":   12_345,
		"[01:02]x":       62_000,
		"[00:12:34]x":    12_340,
		"[01:00:01.50]x": 3_601_500,
	}
	for raw, want := range cases {
		doc := mustParse(t, raw)
		if doc.Lines[0].StartMs != want {
			t.Fatalf("Parse(%q) start = %d, want %d", raw, doc.Lines[0].StartMs, want)
		}
	}
}

func TestParseRepeatedTimestamps(t *testing.T) {
	doc := mustParse(t, "[00:05.00][00:15.00]Chorus\n[00:10.00]Verse")

	if len(doc.Lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(doc.Lines))
	}
	want := []struct {
		start int64
		text  string
	}{{5000, "Chorus"}, {10_000, "Verse"}, {15_000, "Chorus"}}
	for i, w := range want {
		if doc.Lines[i].StartMs != w.start || doc.Lines[i].Text != w.text {
			t.Fatalf("line %d = {%d %q}, want {%d %q}", i, doc.Lines[i].StartMs, doc.Lines[i].Text, w.start, w.text)
		}
	}
}

func TestParseStableOrderOnTies(t *testing.T) {
	doc := mustParse(t, "[00:05.00]first\n[00:01.00]early\n[00:05.00]second")

	got := []string{doc.Lines[0].Text, doc.Lines[1].Text, doc.Lines[2].Text}
	want := []string{"early", "first", "second"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestParseMetadataAndOffset(t *testing.T) {
	raw := `[ti:Song Title]
[ar:Artist Name]
[al:Album Name]
[au:Writer]
[by:Someone]
[length:03:25]
[offset:500]
[00:10.00]Test`
	doc := mustParse(t, raw)

	md := doc.Metadata
	if md.Title != "Song Title" || md.Artist != "Artist Name" || md.Album != "Album Name" || md.Author != "Writer" || md.By != "Someone" {
		t.Fatalf("Metadata = %+v", md)
	}
	if md.LengthMs != 205_000 {
		t.Fatalf("LengthMs = %d, want 205000", md.LengthMs)
	}
	if doc.OffsetMs != 500 {
		t.Fatalf("OffsetMs = %d, want 500", doc.OffsetMs)
	}
	if doc.Lines[0].StartMs != 10_500 {
		t.Fatalf("start = %d, want 10500", doc.Lines[0].StartMs)
	}
}

func TestParseNegativeOffsetClampsAtZero(t *testing.T) {
	doc := mustParse(t, "[offset:-2000]\n[00:01.00]a\n[00:10.00]b")

	if doc.Lines[0].StartMs != 0 {
		t.Fatalf("first start = %d, want 0", doc.Lines[0].StartMs)
	}
	if doc.Lines[1].StartMs != 8000 {
		t.Fatalf("second start = %d, want 8000", doc.Lines[1].StartMs)
	}
}

func TestParseSkipsMalformedLines(t *testing.T) {
	raw := "garbage without tags\n[xx:yy]broken\n[00:01.00]good\n[00:aa.00]bad\n[#comment]\n[00:02.00]also good"
	doc := mustParse(t, raw)

	if len(doc.Lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(doc.Lines))
	}
}

func TestParseNoValidLines(t *testing.T) {
	for _, raw := range []string{"", "\n\n", "[ti:Only metadata]\n[ar:Someone]", "plain lyrics\nwith no tags"} {
		if _, err := Parse(raw); !errors.Is(err, ErrNoValidLines) {
			t.Fatalf("Parse(%q) error = %v, want ErrNoValidLines", raw, err)
		}
	}
}

func TestParseEnhanced(t *testing.T) {
	doc := mustParse(t, "[00:12.00] <00:12.00> Hello <00:13.00> big <00:14.50> world\n[00:20.00]next")

	if doc.Format != FormatEnhanced {
		t.Fatalf("Format = %v, want enhanced", doc.Format)
	}
	line := doc.Lines[0]
	if line.Text != "Hello big world" {
		t.Fatalf("Text = %q", line.Text)
	}
	if len(line.Words) != 3 {
		t.Fatalf("got %d words, want 3", len(line.Words))
	}

	wantStarts := []int64{12_000, 13_000, 14_500}
	wantEnds := []int64{13_000, 14_500, 20_000}
	for i, w := range line.Words {
		if w.StartMs != wantStarts[i] || !w.HasEnd || w.EndMs != wantEnds[i] {
			t.Fatalf("word %d = %+v, want start %d end %d", i, w, wantStarts[i], wantEnds[i])
		}
		if w.StartMs < line.StartMs || w.StartMs >= line.EndMs {
			t.Fatalf("word %d outside line window", i)
		}
	}
}

func TestParseEnhancedWordPastNextLine(t *testing.T) {
	doc := mustParse(t, "[00:01.00]<00:01.00>a <00:06.00>b\n[00:05.00]c")

	if doc.Lines[0].EndMs != 6000 {
		t.Fatalf("EndMs = %d, want latest word tag 6000", doc.Lines[0].EndMs)
	}
}

func TestParseEnhancedRepeatedShiftsWords(t *testing.T) {
	doc := mustParse(t, "[00:10.00][00:30.00]<00:10.00>la <00:11.00>la")

	if len(doc.Lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(doc.Lines))
	}
	second := doc.Lines[1]
	if second.Words[0].StartMs != 30_000 || second.Words[1].StartMs != 31_000 {
		t.Fatalf("repeated words = %+v, want 30000/31000", second.Words)
	}
}

func TestParseKeepsUnicodeAndEmptyLines(t *testing.T) {
	doc := mustParse(t, "[00:05.00]你好世界\n[00:08.00]\n[00:09.00]ok")

	if doc.Lines[0].Text != "你好世界" {
		t.Fatalf("Text = %q", doc.Lines[0].Text)
	}
	if len(doc.Lines) != 3 || doc.Lines[1].Text != "" {
		t.Fatalf("empty spacer line lost: %+v", doc.Lines)
	}
}

func TestParseEnhancedOutOfOrderWords(t *testing.T) {
	doc := mustParse(t, "[00:01.00]<00:03.00>a <00:02.00>b <00:06.00>c\n[00:05.00]next\n")

	line := doc.Lines[0]
	if line.Text != "b a c" {
		t.Fatalf("Text = %q, want words in time order", line.Text)
	}
	for i, w := range line.Words {
		if i > 0 && w.StartMs < line.Words[i-1].StartMs {
			t.Fatalf("word %d starts at %d before word %d at %d", i, w.StartMs, i-1, line.Words[i-1].StartMs)
		}
		if w.HasEnd && w.EndMs < w.StartMs {
			t.Fatalf("word %q ends at %d before it starts at %d", w.Text, w.EndMs, w.StartMs)
		}
	}
	if line.EndMs != 6000 {
		t.Fatalf("EndMs = %d, want the latest word start 6000", line.EndMs)
	}
}
