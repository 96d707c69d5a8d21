package usecase

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexrag/internal/adapter/chunker"
	"lexrag/internal/adapter/embedding"
	"lexrag/internal/adapter/memstore"
	"lexrag/internal/domain"
)

// stubEmbedder returns a fixed vector per input, or fails outright.
type stubEmbedder struct {
	vec      []float32
	err      error
	nilAt    map[int]bool
	requests [][]string
}

func (e *stubEmbedder) Embed(texts []string) ([][]float32, error) {
	e.requests = append(e.requests, texts)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		if e.nilAt[i] {
			continue
		}
		out[i] = e.vec
	}
	return out, nil
}

func (e *stubEmbedder) Dimension() int    { return len(e.vec) }
func (e *stubEmbedder) ModelName() string { return "stub-model" }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIndexDocumentEmptyText(t *testing.T) {
	u := NewIndexUseCase(
		memstore.NewMemoryStore(),
		memstore.NewMemoryVectorStore(8),
		chunker.NewSentenceChunker(1000, 200),
		embedding.NewMockEmbedder(8),
		nil,
		discardLogger(),
	)

	_, err := u.IndexDocument("doc1", "t", "   \n\t ", 1)
	assert.ErrorIs(t, err, domain.ErrEmptyDocument)
}

func TestIndexDocumentStoresChunksAndVectors(t *testing.T) {
	docs := memstore.NewMemoryStore()
	vectors := memstore.NewMemoryVectorStore(8)
	u := NewIndexUseCase(docs, vectors, chunker.NewSentenceChunker(1000, 200),
		embedding.NewMockEmbedder(8), nil, discardLogger())

	text := strings.Repeat("The tenant shall pay rent monthly. ", 100)
	count, err := u.IndexDocument("doc1", "lease.txt", text, 4)
	require.NoError(t, err)
	require.Greater(t, count, 1)

	doc, err := docs.GetDoc("doc1")
	require.NoError(t, err)
	assert.Equal(t, "lease.txt", doc.Title)
	assert.Equal(t, 4, doc.PageCount)
	assert.Equal(t, "mock", doc.EmbeddingModel)

	chunks, err := docs.GetChunksByDoc("doc1")
	require.NoError(t, err)
	assert.Len(t, chunks, count)

	stored, err := vectors.Count()
	require.NoError(t, err)
	assert.Equal(t, count, stored)
}

func TestIndexDocumentEmbeddingFailureSavesDocument(t *testing.T) {
	docs := memstore.NewMemoryStore()
	vectors := memstore.NewMemoryVectorStore(3)
	embedder := &stubEmbedder{err: errors.New("provider down")}
	u := NewIndexUseCase(docs, vectors, chunker.NewSentenceChunker(1000, 200),
		embedder, nil, discardLogger())

	count, err := u.IndexDocument("doc1", "lease.txt", "Some document text.", 1)
	require.NoError(t, err, "embedding failure must not fail indexing")
	assert.Equal(t, 1, count)

	doc, err := docs.GetDoc("doc1")
	require.NoError(t, err)
	assert.Empty(t, doc.EmbeddingModel, "document saved without an index")

	stored, _ := vectors.Count()
	assert.Zero(t, stored)
}

func TestIndexDocumentSkipsOmittedVectors(t *testing.T) {
	docs := memstore.NewMemoryStore()
	vectors := memstore.NewMemoryVectorStore(3)
	embedder := &stubEmbedder{vec: []float32{1, 0, 0}, nilAt: map[int]bool{1: true}}
	u := NewIndexUseCase(docs, vectors, chunker.NewSentenceChunker(100, 20),
		embedder, nil, discardLogger())

	text := strings.Repeat("Clause text here. ", 30)
	count, err := u.IndexDocument("doc1", "t", text, 1)
	require.NoError(t, err)
	require.Greater(t, count, 2)

	stored, _ := vectors.Count()
	assert.Equal(t, count-1, stored, "one omitted vector is skipped, the rest persist")
}

func TestDeleteDocumentCascades(t *testing.T) {
	docs := memstore.NewMemoryStore()
	vectors := memstore.NewMemoryVectorStore(8)
	u := NewIndexUseCase(docs, vectors, chunker.NewSentenceChunker(1000, 200),
		embedding.NewMockEmbedder(8), nil, discardLogger())

	_, err := u.IndexDocument("doc1", "t", "Some document text to index.", 1)
	require.NoError(t, err)
	require.NoError(t, u.SaveAnalysis("doc1", domain.Analysis{Summary: "s"}))

	require.NoError(t, u.DeleteDocument("doc1"))

	_, err = docs.GetDoc("doc1")
	assert.Error(t, err)
	stored, _ := vectors.Count()
	assert.Zero(t, stored)
	analysis, err := docs.GetAnalysis("doc1")
	require.NoError(t, err)
	assert.Nil(t, analysis)
}
