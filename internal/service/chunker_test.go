package service

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitChunksShortText(t *testing.T) {
	chunks := SplitChunks("short text", 2000, 250)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "short text" {
		t.Fatalf("expected text unchanged, got %q", chunks[0])
	}
}

func TestSplitChunksEmpty(t *testing.T) {
	if chunks := SplitChunks("", 2000, 250); chunks != nil {
		t.Fatalf("expected nil for empty text, got %v", chunks)
	}
}

func TestSplitChunksOverlap(t *testing.T) {
	text := strings.Repeat("a", 2000) + strings.Repeat("b", 2000)

	chunks := SplitChunks(text, 2000, 250)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}

	for i := 0; i < len(chunks)-1; i++ {
		if len(chunks[i]) != 2000 {
			t.Fatalf("chunk %d has length %d, want 2000", i, len(chunks[i]))
		}
		tail := chunks[i][len(chunks[i])-250:]
		head := chunks[i+1][:250]
		if tail != head {
			t.Fatalf("chunks %d and %d do not share 250 characters", i, i+1)
		}
	}
}

func TestSplitChunksCoversWholeText(t *testing.T) {
	text := strings.Repeat("0123456789", 700)

	chunks := SplitChunks(text, 2000, 250)

	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0])
	for _, chunk := range chunks[1:] {
		rebuilt.WriteString(chunk[250:])
	}
	if rebuilt.String() != text {
		t.Fatal("reassembled chunks do not reproduce the original text")
	}
}

func TestSplitChunksFinalShorter(t *testing.T) {
	text := strings.Repeat("x", 2100)

	chunks := SplitChunks(text, 2000, 250)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if len(chunks[1]) != 2100-1750 {
		t.Fatalf("final chunk has length %d, want %d", len(chunks[1]), 2100-1750)
	}
}

func TestSplitChunksMultiByteRunes(t *testing.T) {
	// Em-dashes are 3 bytes each; windows must count runes so no chunk
	// splits mid-rune and the overlap is 250 runes, not 250 bytes.
	text := strings.Repeat("—", 2500)

	chunks := SplitChunks(text, 2000, 250)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if !utf8.ValidString(chunk) {
			t.Fatalf("chunk %d is not valid UTF-8", i)
		}
	}
	if n := utf8.RuneCountInString(chunks[0]); n != 2000 {
		t.Fatalf("first chunk has %d runes, want 2000", n)
	}
	if n := utf8.RuneCountInString(chunks[1]); n != 2500-1750 {
		t.Fatalf("final chunk has %d runes, want %d", n, 2500-1750)
	}
	tail := []rune(chunks[0])[2000-250:]
	head := []rune(chunks[1])[:250]
	if string(tail) != string(head) {
		t.Fatal("chunks do not share 250 runes")
	}
}

func TestSplitChunksInvalidOverlap(t *testing.T) {
	// An overlap at or above the window would never advance; it is ignored.
	chunks := SplitChunks(strings.Repeat("x", 30), 10, 10)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 non-overlapping chunks, got %d", len(chunks))
	}
}
