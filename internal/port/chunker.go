package port

import "lexrag/internal/domain"

// Chunker splits extracted document text into overlapping chunks.
// Implementations must be pure and deterministic; pageCount <= 0 disables
// page estimation.
type Chunker interface {
	Chunk(text string, pageCount int) []domain.DocumentChunk
}
