package ingest

import (
	"fmt"
	"strings"
	"testing"
)

func TestSplitEmptyInput(t *testing.T) {
	c := NewChunker()
	if chunks := c.Split(""); chunks != nil {
		t.Fatalf("empty input should yield no chunks, got %v", chunks)
	}
	if chunks := c.Split("   \n\n  "); chunks != nil {
		t.Fatalf("blank input should yield no chunks, got %v", chunks)
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	c := NewChunker()
	text := "A short paragraph that easily fits in one chunk."
	chunks := c.Split(text)
	if len(chunks) != 1 {
		t.Fatalf("expected a single chunk, got %d", len(chunks))
	}
	if chunks[0] != text {
		t.Fatalf("short text should pass through intact, got %q", chunks[0])
	}
}

func TestSplitRespectsChunkSize(t *testing.T) {
	c := NewChunker()
	var builder strings.Builder
	for i := 0; i < 600; i++ {
		fmt.Fprintf(&builder, "word%04d ", i)
	}
	chunks := c.Split(builder.String())
	if len(chunks) < 2 {
		t.Fatalf("long text should split into multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > defaultChunkSize {
			t.Fatalf("chunk %d exceeds size limit: %d chars", i, len(chunk))
		}
	}
}

func TestSplitOverlapsNeighbors(t *testing.T) {
	c := NewChunker()
	var builder strings.Builder
	for i := 0; i < 600; i++ {
		fmt.Fprintf(&builder, "word%04d ", i)
	}
	chunks := c.Split(builder.String())
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		head := strings.Fields(chunks[i])[0]
		if !strings.Contains(chunks[i-1], head) {
			t.Fatalf("chunk %d should start inside chunk %d's tail, head %q", i, i-1, head)
		}
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	c := NewChunker()
	first := strings.Repeat("alpha ", 120)
	second := strings.Repeat("beta ", 120)
	chunks := c.Split(first + "\n\n" + second)
	if len(chunks) != 2 {
		t.Fatalf("expected a chunk per paragraph, got %d: %v", len(chunks), chunks)
	}
	if strings.Contains(chunks[0], "beta") {
		t.Fatalf("first chunk should stop at the paragraph break")
	}
}

func TestSplitUnbrokenText(t *testing.T) {
	c := NewChunker()
	text := strings.Repeat("x", 2500)
	chunks := c.Split(text)
	if strings.Join(chunks, "") != text {
		t.Fatalf("unbroken text must be fully covered")
	}
	for i, chunk := range chunks {
		if len(chunk) > defaultChunkSize {
			t.Fatalf("chunk %d exceeds size limit: %d chars", i, len(chunk))
		}
	}
}
