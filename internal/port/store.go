package port

import "lexrag/internal/domain"

// DocumentStore persists documents, their chunks and their analysis.
// Chunks are write-once at indexing time and deleted with the document.
type DocumentStore interface {
	PutDoc(doc domain.Document) error

	GetDoc(id string) (domain.Document, error)

	// DeleteDoc removes the document and cascades to its chunks and
	// analysis.
	DeleteDoc(id string) error

	ListDocs() ([]domain.Document, error)

	// PutChunks replaces the chunk set of a document.
	PutChunks(docID string, chunks []domain.DocumentChunk) error

	// GetChunksByDoc returns chunks ordered by chunk index.
	GetChunksByDoc(docID string) ([]domain.DocumentChunk, error)

	PutAnalysis(docID string, analysis domain.Analysis) error

	// GetAnalysis returns nil without error when no analysis is stored.
	GetAnalysis(docID string) (*domain.Analysis, error)

	GetStats() (domain.Stats, error)

	Close() error
}
