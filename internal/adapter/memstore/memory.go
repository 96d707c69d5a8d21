package memstore

import (
	"fmt"
	"sort"
	"sync"

	"lexrag/internal/adapter/store"
	"lexrag/internal/domain"
	"lexrag/internal/port"
)

// MemoryStore is an in-memory DocumentStore for tests and ephemeral runs.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string]domain.Document
	chunks   map[string][]domain.DocumentChunk
	analysis map[string]domain.Analysis
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]domain.Document),
		chunks:   make(map[string][]domain.DocumentChunk),
		analysis: make(map[string]domain.Analysis),
	}
}

func (s *MemoryStore) PutDoc(doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	return nil
}

func (s *MemoryStore) GetDoc(id string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.Document{}, fmt.Errorf("document not found: %s", id)
	}
	return doc, nil
}

func (s *MemoryStore) DeleteDoc(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	delete(s.chunks, id)
	delete(s.analysis, id)
	return nil
}

func (s *MemoryStore) ListDocs() ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *MemoryStore) PutChunks(docID string, chunks []domain.DocumentChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]domain.DocumentChunk, len(chunks))
	copy(cp, chunks)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Index < cp[j].Index })
	s.chunks[docID] = cp
	return nil
}

func (s *MemoryStore) GetChunksByDoc(docID string) ([]domain.DocumentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := make([]domain.DocumentChunk, len(s.chunks[docID]))
	copy(chunks, s.chunks[docID])
	return chunks, nil
}

func (s *MemoryStore) PutAnalysis(docID string, analysis domain.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analysis[docID] = analysis
	return nil
}

func (s *MemoryStore) GetAnalysis(docID string) (*domain.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.analysis[docID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *MemoryStore) GetStats() (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := domain.Stats{TotalDocs: len(s.docs)}
	for _, chunks := range s.chunks {
		stats.TotalChunks += len(chunks)
	}
	return stats, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// MemoryVectorStore is an in-memory VectorStore with the same scan and
// ordering semantics as the BoltDB-backed store.
type MemoryVectorStore struct {
	mu        sync.RWMutex
	dimension int
	docs      map[string][]domain.ChunkEmbedding
}

func NewMemoryVectorStore(dimension int) *MemoryVectorStore {
	return &MemoryVectorStore{
		dimension: dimension,
		docs:      make(map[string][]domain.ChunkEmbedding),
	}
}

func (s *MemoryVectorStore) Upsert(docID string, embeddings []domain.ChunkEmbedding) error {
	for _, emb := range embeddings {
		if len(emb.Vector) != s.dimension {
			return fmt.Errorf("chunk %d has dimension %d, store expects %d: %w",
				emb.ChunkIndex, len(emb.Vector), s.dimension, domain.ErrDimensionMismatch)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]domain.ChunkEmbedding, len(embeddings))
	copy(cp, embeddings)
	sort.Slice(cp, func(i, j int) bool { return cp[i].ChunkIndex < cp[j].ChunkIndex })
	s.docs[docID] = cp
	return nil
}

func (s *MemoryVectorStore) Search(docID string, query []float32, topK int, minScore float64) ([]port.VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(query) != s.dimension {
		return nil, fmt.Errorf("query has dimension %d, store expects %d: %w",
			len(query), s.dimension, domain.ErrDimensionMismatch)
	}

	entries := s.docs[docID]
	if len(entries) == 0 {
		return nil, nil
	}

	results := make([]port.VectorResult, 0, len(entries))
	for _, emb := range entries {
		score, err := store.Cosine(query, emb.Vector)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", emb.ChunkIndex, err)
		}
		results = append(results, port.VectorResult{ChunkIndex: emb.ChunkIndex, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	filtered := results[:0]
	for _, r := range results {
		if r.Score >= minScore {
			filtered = append(filtered, r)
		}
	}
	if topK > 0 && len(filtered) > topK {
		filtered = filtered[:topK]
	}
	return filtered, nil
}

func (s *MemoryVectorStore) DeleteByDoc(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, docID)
	return nil
}

func (s *MemoryVectorStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, entries := range s.docs {
		total += len(entries)
	}
	return total, nil
}
