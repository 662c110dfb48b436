package chunking

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitEmpty(t *testing.T) {
	if got := NewSplitter(10, 2).Split("   \n "); got != nil {
		t.Fatalf("expected nil for blank text, got %v", got)
	}
}

func TestSplitShortTextIsSingleChunk(t *testing.T) {
	got := NewSplitter(500, 50).Split("  Diabetes affects blood sugar.  ")
	if len(got) != 1 || got[0] != "Diabetes affects blood sugar." {
		t.Fatalf("unexpected chunks: %q", got)
	}
}

func TestSplitRespectsSizeAndOverlap(t *testing.T) {
	text := strings.Repeat("abcdefghij", 10)
	chunks := NewSplitter(30, 10).Split(text)

	if len(chunks) != 5 {
		t.Fatalf("expected 5 chunks, got %d: %q", len(chunks), chunks)
	}
	for i, chunk := range chunks {
		if utf8.RuneCountInString(chunk) > 30 {
			t.Fatalf("chunk %d exceeds size: %d", i, utf8.RuneCountInString(chunk))
		}
	}
	for i := 1; i < len(chunks); i++ {
		prevTail := chunks[i-1][len(chunks[i-1])-10:]
		if !strings.HasPrefix(chunks[i], prevTail) {
			t.Fatalf("chunk %d does not overlap previous: %q / %q", i, chunks[i-1], chunks[i])
		}
	}
}

func TestSplitPrefersWhitespace(t *testing.T) {
	text := "insulin regulates glucose levels in blood"
	chunks := NewSplitter(20, 0).Split(text)

	for _, chunk := range chunks {
		if !strings.Contains(text, chunk) {
			t.Fatalf("chunk %q not in source", chunk)
		}
		for _, word := range strings.Fields(chunk) {
			if !strings.Contains(" "+text+" ", " "+word+" ") {
				t.Fatalf("word split across chunks: %q in %q", word, chunks)
			}
		}
	}
}

func TestSplitMultibyte(t *testing.T) {
	text := strings.Repeat("ж", 25)
	chunks := NewSplitter(10, 3).Split(text)
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}
	if !utf8.ValidString(chunks[0]) || utf8.RuneCountInString(chunks[0]) != 10 {
		t.Fatalf("unexpected first chunk %q", chunks[0])
	}
}

func TestNewSplitterClampsOverlap(t *testing.T) {
	s := NewSplitter(100, 100)
	if s.Overlap >= s.ChunkSize {
		t.Fatalf("expected overlap < size, got %d/%d", s.Overlap, s.ChunkSize)
	}
	d := NewSplitter(0, -1)
	if d.ChunkSize != DefaultChunkSize || d.Overlap != 0 {
		t.Fatalf("unexpected defaults: %+v", d)
	}
}
