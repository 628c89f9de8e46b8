package ingest

import "strings"

// Chunker splits document text into overlapping chunks sized for
// embedding. Separators are tried in order; when a piece is still too
// large it is re-split with the next, finer separator.
type Chunker struct {
	chunkSize  int
	overlap    int
	separators []string
}

const (
	defaultChunkSize = 1000
	defaultOverlap   = 200
)

func NewChunker() *Chunker {
	return &Chunker{
		chunkSize:  defaultChunkSize,
		overlap:    defaultOverlap,
		separators: []string{"\n\n", "\n", " ", ""},
	}
}

// Split breaks text into chunks of at most chunkSize characters with
// roughly overlap characters shared between neighbors. Blank-only
// input produces no chunks.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.split(text, c.separators)
}

func (c *Chunker) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	rest := separators
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var pieces []string
	if separator == "" {
		pieces = splitRunes(text, c.chunkSize)
	} else {
		pieces = strings.Split(text, separator)
	}

	var chunks []string
	var pending []string
	flush := func() {
		if len(pending) == 0 {
			return
		}
		chunks = append(chunks, c.merge(pending, separator)...)
		pending = nil
	}
	for _, piece := range pieces {
		if len(piece) <= c.chunkSize {
			pending = append(pending, piece)
			continue
		}
		flush()
		if len(rest) == 0 {
			chunks = append(chunks, splitRunes(piece, c.chunkSize)...)
			continue
		}
		chunks = append(chunks, c.split(piece, rest)...)
	}
	flush()

	out := chunks[:0]
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk) != "" {
			out = append(out, chunk)
		}
	}
	return out
}

// merge joins small pieces back together up to chunkSize, carrying an
// overlap tail between consecutive chunks.
func (c *Chunker) merge(pieces []string, separator string) []string {
	var chunks []string
	var window []string
	total := 0
	sepLen := len(separator)

	for _, piece := range pieces {
		if total+len(piece)+sepLen*len(window) > c.chunkSize && len(window) > 0 {
			chunks = append(chunks, strings.Join(window, separator))
			// drop from the front until the tail fits the overlap
			for total > c.overlap || (total+len(piece)+sepLen*len(window) > c.chunkSize && total > 0) {
				total -= len(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += len(piece)
	}
	if len(window) > 0 {
		chunks = append(chunks, strings.Join(window, separator))
	}
	return chunks
}

func splitRunes(text string, size int) []string {
	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
