package usecase

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lexrag/internal/adapter/cache"
	"lexrag/internal/domain"
	"lexrag/internal/port"
)

// IndexUseCase chunks extracted document text, embeds the chunks and
// persists both. Embedding is best-effort: a failed embedding call
// leaves the document saved without vectors, answerable from its
// analysis metadata only.
type IndexUseCase struct {
	docs     port.DocumentStore
	vectors  port.VectorStore
	chunker  port.Chunker
	embedder port.Embedder
	cache    *cache.RetrievalCache
	logger   *slog.Logger
}

func NewIndexUseCase(
	docs port.DocumentStore,
	vectors port.VectorStore,
	chunker port.Chunker,
	embedder port.Embedder,
	retrievalCache *cache.RetrievalCache,
	logger *slog.Logger,
) *IndexUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexUseCase{
		docs:     docs,
		vectors:  vectors,
		chunker:  chunker,
		embedder: embedder,
		cache:    retrievalCache,
		logger:   logger,
	}
}

// IndexDocument stores a document and its chunks, embeds the chunk
// texts and upserts the vectors. Returns the number of chunks created.
func (u *IndexUseCase) IndexDocument(docID, title, text string, pageCount int) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, domain.ErrEmptyDocument
	}

	chunks := u.chunker.Chunk(text, pageCount)

	doc := domain.Document{
		ID:         docID,
		Title:      title,
		PageCount:  pageCount,
		TextLength: len([]rune(text)),
		CreatedAt:  time.Now(),
	}
	if err := u.docs.PutDoc(doc); err != nil {
		return 0, fmt.Errorf("failed to store document: %w", err)
	}
	if err := u.docs.PutChunks(docID, chunks); err != nil {
		return 0, fmt.Errorf("failed to store chunks: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := u.embedder.Embed(texts)
	if err != nil {
		u.logger.Warn("embedding failed, document saved without vectors",
			"doc_id", docID, "chunks", len(chunks), "error", err)
		u.invalidate()
		return len(chunks), nil
	}

	embeddings := make([]domain.ChunkEmbedding, 0, len(chunks))
	for i, vector := range vectors {
		if vector == nil {
			u.logger.Warn("provider omitted embedding for chunk, skipping",
				"doc_id", docID, "chunk_index", chunks[i].Index)
			continue
		}
		embeddings = append(embeddings, domain.ChunkEmbedding{
			DocID:      docID,
			ChunkIndex: chunks[i].Index,
			Vector:     vector,
		})
	}

	if err := u.vectors.Upsert(docID, embeddings); err != nil {
		return len(chunks), fmt.Errorf("failed to store embeddings: %w", err)
	}

	doc.EmbeddingModel = u.embedder.ModelName()
	if err := u.docs.PutDoc(doc); err != nil {
		return len(chunks), fmt.Errorf("failed to update document: %w", err)
	}

	u.invalidate()
	u.logger.Info("document indexed",
		"doc_id", docID, "chunks", len(chunks), "vectors", len(embeddings))
	return len(chunks), nil
}

// SaveAnalysis attaches structured analysis metadata to a document.
func (u *IndexUseCase) SaveAnalysis(docID string, analysis domain.Analysis) error {
	if err := u.docs.PutAnalysis(docID, analysis); err != nil {
		return fmt.Errorf("failed to store analysis: %w", err)
	}
	return nil
}

// DeleteDocument removes a document, its chunks, its analysis and its
// vectors.
func (u *IndexUseCase) DeleteDocument(docID string) error {
	if err := u.vectors.DeleteByDoc(docID); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	if err := u.docs.DeleteDoc(docID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	u.invalidate()
	return nil
}

func (u *IndexUseCase) invalidate() {
	if u.cache != nil {
		u.cache.Invalidate()
	}
}
