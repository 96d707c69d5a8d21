package store

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"lexrag/internal/domain"
)

func newTestVectorStore(t *testing.T) *BoltVectorStore {
	t.Helper()
	st := newTestStore(t)
	vs, err := NewBoltVectorStore(st.DB(), "test-model", 3)
	if err != nil {
		t.Fatal(err)
	}
	return vs
}

func TestCosineBounds(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-3, 1, 2}

	sim, err := Cosine(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if sim < -1.0001 || sim > 1.0001 {
		t.Errorf("similarity out of bounds: %f", sim)
	}

	self, err := Cosine(a, a)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(self-1.0) > 1e-9 {
		t.Errorf("self similarity should be 1.0, got %f", self)
	}
}

func TestCosineZeroVector(t *testing.T) {
	sim, err := Cosine([]float32{0, 0, 0}, []float32{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if sim != 0 {
		t.Errorf("zero vector similarity should be 0, got %f", sim)
	}
}

func TestCosineDimensionMismatch(t *testing.T) {
	_, err := Cosine([]float32{1, 2}, []float32{1, 2, 3})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSearchTopKOrderingAndThreshold(t *testing.T) {
	vs := newTestVectorStore(t)

	// One aligned vector, the rest nearly orthogonal to the query.
	embeddings := []domain.ChunkEmbedding{
		{DocID: "doc1", ChunkIndex: 0, Vector: []float32{0, 1, 0}},
		{DocID: "doc1", ChunkIndex: 1, Vector: []float32{0.9, 0.1, 0}},
		{DocID: "doc1", ChunkIndex: 2, Vector: []float32{0, 0, 1}},
		{DocID: "doc1", ChunkIndex: 3, Vector: []float32{0.05, 1, 0}},
	}
	if err := vs.Upsert("doc1", embeddings); err != nil {
		t.Fatal(err)
	}

	results, err := vs.Search("doc1", []float32{1, 0, 0}, 5, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly 1 result above threshold, got %d", len(results))
	}
	if results[0].ChunkIndex != 1 {
		t.Errorf("expected chunk 1, got %d", results[0].ChunkIndex)
	}
	if results[0].Score < 0.5 {
		t.Errorf("score below threshold: %f", results[0].Score)
	}
}

func TestSearchSortedDescendingTruncated(t *testing.T) {
	vs := newTestVectorStore(t)

	embeddings := []domain.ChunkEmbedding{
		{DocID: "doc1", ChunkIndex: 0, Vector: []float32{1, 0, 0}},
		{DocID: "doc1", ChunkIndex: 1, Vector: []float32{1, 0.2, 0}},
		{DocID: "doc1", ChunkIndex: 2, Vector: []float32{1, 0.5, 0}},
		{DocID: "doc1", ChunkIndex: 3, Vector: []float32{1, 1, 0}},
	}
	if err := vs.Upsert("doc1", embeddings); err != nil {
		t.Fatal(err)
	}

	results, err := vs.Search("doc1", []float32{1, 0, 0}, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected topK=3 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted descending at %d", i)
		}
	}
	if results[0].ChunkIndex != 0 {
		t.Errorf("best match should be chunk 0, got %d", results[0].ChunkIndex)
	}
}

func TestSearchTiesKeepChunkOrder(t *testing.T) {
	vs := newTestVectorStore(t)

	// Identical vectors score identically; ascending chunk index must win.
	v := []float32{1, 1, 0}
	embeddings := []domain.ChunkEmbedding{
		{DocID: "doc1", ChunkIndex: 0, Vector: v},
		{DocID: "doc1", ChunkIndex: 1, Vector: v},
		{DocID: "doc1", ChunkIndex: 2, Vector: v},
	}
	if err := vs.Upsert("doc1", embeddings); err != nil {
		t.Fatal(err)
	}

	results, err := vs.Search("doc1", []float32{1, 1, 0}, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range results {
		if r.ChunkIndex != i {
			t.Errorf("tie order broken: position %d has chunk %d", i, r.ChunkIndex)
		}
	}
}

func TestSearchQueryDimensionMismatch(t *testing.T) {
	vs := newTestVectorStore(t)

	if err := vs.Upsert("doc1", []domain.ChunkEmbedding{{DocID: "doc1", ChunkIndex: 0, Vector: []float32{1, 0, 0}}}); err != nil {
		t.Fatal(err)
	}

	_, err := vs.Search("doc1", []float32{1, 0}, 5, 0)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestUpsertDimensionMismatch(t *testing.T) {
	vs := newTestVectorStore(t)

	err := vs.Upsert("doc1", []domain.ChunkEmbedding{{DocID: "doc1", ChunkIndex: 0, Vector: []float32{1, 0}}})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSearchUnknownDocEmpty(t *testing.T) {
	vs := newTestVectorStore(t)

	results, err := vs.Search("nope", []float32{1, 0, 0}, 5, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestVectorsReloadFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	st, err := NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	vs, err := NewBoltVectorStore(st.DB(), "test-model", 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := vs.Upsert("doc1", []domain.ChunkEmbedding{
		{DocID: "doc1", ChunkIndex: 0, Vector: []float32{1, 0, 0}},
		{DocID: "doc1", ChunkIndex: 1, Vector: []float32{0, 1, 0}},
	}); err != nil {
		t.Fatal(err)
	}
	st.Close()

	st, err = NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	vs, err = NewBoltVectorStore(st.DB(), "test-model", 3)
	if err != nil {
		t.Fatal(err)
	}

	count, err := vs.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2 vectors after reload, got %d", count)
	}

	results, err := vs.Search("doc1", []float32{1, 0, 0}, 1, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ChunkIndex != 0 {
		t.Errorf("unexpected results after reload: %+v", results)
	}
}

func TestIncompatibleModelRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	st, err := NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewBoltVectorStore(st.DB(), "model-a", 3); err != nil {
		t.Fatal(err)
	}
	st.Close()

	st, err = NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	_, err = NewBoltVectorStore(st.DB(), "model-b", 3)
	var incompatible *IncompatibleIndexError
	if !errors.As(err, &incompatible) {
		t.Fatalf("expected IncompatibleIndexError, got %v", err)
	}
	if incompatible.Stored.EmbeddingModel != "model-a" {
		t.Errorf("unexpected stored model: %s", incompatible.Stored.EmbeddingModel)
	}
}

func TestDeleteByDoc(t *testing.T) {
	vs := newTestVectorStore(t)

	vs.Upsert("doc1", []domain.ChunkEmbedding{{DocID: "doc1", ChunkIndex: 0, Vector: []float32{1, 0, 0}}})
	vs.Upsert("doc2", []domain.ChunkEmbedding{{DocID: "doc2", ChunkIndex: 0, Vector: []float32{0, 1, 0}}})

	if err := vs.DeleteByDoc("doc1"); err != nil {
		t.Fatal(err)
	}

	count, _ := vs.Count()
	if count != 1 {
		t.Errorf("expected 1 vector after delete, got %d", count)
	}
	results, err := vs.Search("doc1", []float32{1, 0, 0}, 5, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("doc1 vectors should be gone")
	}
}
