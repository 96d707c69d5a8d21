package chunker

import (
	"strings"
	"unicode"

	"lexrag/internal/domain"
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the number of characters consecutive chunks
	// share.
	DefaultChunkOverlap = 200

	// maxChunks bounds the output so a latent advance bug degrades into a
	// truncated result instead of unbounded memory growth. The advance
	// rule already guarantees termination; this is defense in depth.
	maxChunks = 1_000_000
)

// SentenceChunker splits extracted document text into overlapping chunks,
// preferring to cut just after a sentence terminator near the target
// size. Offsets are rune offsets into the original text. Page numbers are
// estimated proportionally from the character offset.
type SentenceChunker struct {
	size    int
	overlap int
}

func NewSentenceChunker(size, overlap int) *SentenceChunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	return &SentenceChunker{size: size, overlap: overlap}
}

// Chunk splits text into ordered chunks. It is pure and deterministic;
// pageCount <= 0 disables page estimation.
func (c *SentenceChunker) Chunk(text string, pageCount int) []domain.DocumentChunk {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	var chunks []domain.DocumentChunk
	start := 0
	index := 0

	for start < n && len(chunks) < maxChunks {
		end := start + c.size
		if end > n {
			end = n
		}

		// Not the final chunk: try to land the cut on a sentence boundary.
		if end < n {
			if cut, ok := c.sentenceCut(runes, start, end); ok {
				end = cut
			}
		}

		// Force at least one character of progress.
		if end <= start {
			end = start + 1
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunk := domain.DocumentChunk{
				Index:     index,
				Text:      piece,
				CharStart: start,
				CharEnd:   end,
			}
			if pageCount > 0 {
				chunk.PageStart = estimatePage(start, n, pageCount)
				chunk.PageEnd = estimatePage(end-1, n, pageCount)
			}
			chunks = append(chunks, chunk)
			index++
		}

		// Advance by the maximum of the overlap-based, half-chunk and
		// minimum-progress positions. Sentence snapping can pull end back
		// toward start; the three-way max keeps the cursor moving forward
		// regardless.
		next := end - c.overlap
		if half := start + c.size/2; half > next {
			next = half
		}
		if min := start + 1; min > next {
			next = min
		}
		start = next
	}

	return chunks
}

// sentenceCut searches the window [start+size-100, end+50) for the last
// sentence terminator followed by whitespace. The boundary is accepted
// only when it lies no earlier than start+size-200, so a chunk never
// shrinks by more than 200 characters to reach it.
func (c *SentenceChunker) sentenceCut(runes []rune, start, end int) (int, bool) {
	n := len(runes)

	from := start + c.size - 100
	if from < start {
		from = start
	}
	to := end + 50
	if to > n {
		to = n
	}
	earliest := start + c.size - 200
	if earliest < start {
		earliest = start
	}

	for i := to - 2; i >= from; i-- {
		if isTerminator(runes[i]) && unicode.IsSpace(runes[i+1]) {
			if i >= earliest {
				return i + 1, true
			}
			return 0, false
		}
	}
	return 0, false
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// estimatePage maps a character offset to a 1-based page number by linear
// interpolation. Approximate by design; never exact page breaks.
func estimatePage(offset, totalLen, pageCount int) int {
	if totalLen <= 0 || pageCount <= 0 {
		return 1
	}
	page := offset*pageCount/totalLen + 1
	if page > pageCount {
		page = pageCount
	}
	return page
}
