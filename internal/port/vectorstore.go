package port

import "lexrag/internal/domain"

// VectorResult is one similarity search hit.
type VectorResult struct {
	ChunkIndex int
	Score      float64
}

// VectorStore stores chunk embeddings and ranks them against a query
// vector with a linear cosine scan. Results are sorted by descending
// score; equal scores keep ascending chunk-index order.
type VectorStore interface {
	// Upsert stores the embeddings of one document's chunks.
	Upsert(docID string, embeddings []domain.ChunkEmbedding) error

	// Search returns up to topK results for the document with
	// score >= minScore. Returns domain.ErrDimensionMismatch when the
	// query dimension differs from the stored vectors.
	Search(docID string, query []float32, topK int, minScore float64) ([]VectorResult, error)

	// DeleteByDoc removes all vectors of a document.
	DeleteByDoc(docID string) error

	// Count returns the total number of stored vectors.
	Count() (int, error)
}
