package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.etcd.io/bbolt"

	"lexrag/internal/domain"
	"lexrag/internal/port"
)

var (
	bucketVectors    = []byte("vectors")
	bucketVectorMeta = []byte("vector_meta")
	keyIndexMeta     = []byte("index_meta")
)

// CurrentSchemaVersion identifies the vector storage format. Increment on
// breaking changes.
const CurrentSchemaVersion = 1

// IndexMeta records which embedding model produced the stored vectors.
// Vectors from a different model are incompatible even at the same
// dimensionality; the check is loud instead of silently returning
// meaningless scores.
type IndexMeta struct {
	SchemaVersion  int    `json:"schema_version"`
	EmbeddingModel string `json:"embedding_model"`
	Dimension      int    `json:"dimension"`
}

// IncompatibleIndexError reports that the stored vectors were built with
// a different embedding model than the one configured. Re-indexing is
// required.
type IncompatibleIndexError struct {
	Stored     IndexMeta
	Configured IndexMeta
}

func (e *IncompatibleIndexError) Error() string {
	return fmt.Sprintf(
		"vector index built with model %s (dim %d, schema v%d) but %s (dim %d, schema v%d) is configured: re-index required",
		e.Stored.EmbeddingModel, e.Stored.Dimension, e.Stored.SchemaVersion,
		e.Configured.EmbeddingModel, e.Configured.Dimension, e.Configured.SchemaVersion,
	)
}

// BoltVectorStore persists chunk embeddings in BoltDB and answers
// similarity queries with a brute-force cosine scan over an in-memory
// cache. Vectors are grouped per document and kept in ascending
// chunk-index order, which makes equal-score ordering deterministic.
type BoltVectorStore struct {
	db    *bbolt.DB
	meta  IndexMeta
	mu    sync.RWMutex
	docs  map[string][]vectorEntry
	total int
}

type vectorEntry struct {
	chunkIndex int
	vector     []float32
}

type storedVector struct {
	ChunkIndex int       `json:"i"`
	Vector     []float32 `json:"v"`
}

// NewBoltVectorStore opens the vector buckets in a shared BoltDB handle.
// When the store already holds vectors from a different embedding model
// it returns an *IncompatibleIndexError.
func NewBoltVectorStore(db *bbolt.DB, model string, dimension int) (*BoltVectorStore, error) {
	configured := IndexMeta{
		SchemaVersion:  CurrentSchemaVersion,
		EmbeddingModel: model,
		Dimension:      dimension,
	}

	var stored *IndexMeta
	err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketVectors); err != nil {
			return err
		}
		metaBucket, err := tx.CreateBucketIfNotExists(bucketVectorMeta)
		if err != nil {
			return err
		}
		if data := metaBucket.Get(keyIndexMeta); data != nil {
			var m IndexMeta
			if err := json.Unmarshal(data, &m); err == nil {
				stored = &m
			}
		}
		if stored == nil {
			data, err := json.Marshal(configured)
			if err != nil {
				return err
			}
			return metaBucket.Put(keyIndexMeta, data)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare vector buckets: %w", err)
	}

	if stored != nil && (stored.EmbeddingModel != model || stored.Dimension != dimension || stored.SchemaVersion != CurrentSchemaVersion) {
		return nil, &IncompatibleIndexError{Stored: *stored, Configured: configured}
	}

	s := &BoltVectorStore{
		db:   db,
		meta: configured,
		docs: make(map[string][]vectorEntry),
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	return s, nil
}

// load reads all vectors into memory. Keys are docID/%08d, so iteration
// order already gives ascending chunk index per document.
func (s *BoltVectorStore) load() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVectors).ForEach(func(k, v []byte) error {
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // skip corrupted entries
			}
			docID := docIDFromKey(k)
			s.docs[docID] = append(s.docs[docID], vectorEntry{
				chunkIndex: stored.ChunkIndex,
				vector:     stored.Vector,
			})
			s.total++
			return nil
		})
	})
}

// Upsert replaces the stored embeddings of one document.
func (s *BoltVectorStore) Upsert(docID string, embeddings []domain.ChunkEmbedding) error {
	for _, emb := range embeddings {
		if len(emb.Vector) != s.meta.Dimension {
			return fmt.Errorf("chunk %d has dimension %d, store expects %d: %w",
				emb.ChunkIndex, len(emb.Vector), s.meta.Dimension, domain.ErrDimensionMismatch)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if err := deletePrefix(b, chunkPrefix(docID)); err != nil {
			return err
		}
		for _, emb := range embeddings {
			data, err := json.Marshal(storedVector{ChunkIndex: emb.ChunkIndex, Vector: emb.Vector})
			if err != nil {
				return err
			}
			if err := b.Put(chunkKey(docID, emb.ChunkIndex), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.total -= len(s.docs[docID])
	entries := make([]vectorEntry, 0, len(embeddings))
	for _, emb := range embeddings {
		entries = append(entries, vectorEntry{chunkIndex: emb.ChunkIndex, vector: emb.Vector})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].chunkIndex < entries[j].chunkIndex })
	s.docs[docID] = entries
	s.total += len(entries)
	return nil
}

// Search ranks one document's chunks against the query vector. Results
// are sorted by descending score, filtered to score >= minScore and
// truncated to topK. Ties keep ascending chunk-index order.
func (s *BoltVectorStore) Search(docID string, query []float32, topK int, minScore float64) ([]port.VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(query) != s.meta.Dimension {
		return nil, fmt.Errorf("query has dimension %d, store expects %d: %w",
			len(query), s.meta.Dimension, domain.ErrDimensionMismatch)
	}

	entries := s.docs[docID]
	if len(entries) == 0 {
		return nil, nil
	}

	results := make([]port.VectorResult, 0, len(entries))
	for _, entry := range entries {
		score, err := Cosine(query, entry.vector)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", entry.chunkIndex, err)
		}
		results = append(results, port.VectorResult{ChunkIndex: entry.chunkIndex, Score: score})
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

// DeleteByDoc removes all vectors of a document.
func (s *BoltVectorStore) DeleteByDoc(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return deletePrefix(tx.Bucket(bucketVectors), chunkPrefix(docID))
	})
	if err != nil {
		return err
	}

	s.total -= len(s.docs[docID])
	delete(s.docs, docID)
	return nil
}

// Count returns the total number of stored vectors.
func (s *BoltVectorStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total, nil
}

// Clear drops all vectors and rewrites the index metadata for the
// configured model. Used when re-indexing after a model change.
func (s *BoltVectorStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketVectors); err != nil {
			return err
		}
		if _, err := tx.CreateBucket(bucketVectors); err != nil {
			return err
		}
		data, err := json.Marshal(s.meta)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketVectorMeta).Put(keyIndexMeta, data)
	})
	if err != nil {
		return err
	}

	s.docs = make(map[string][]vectorEntry)
	s.total = 0
	return nil
}

// Meta returns the index metadata the store was opened with.
func (s *BoltVectorStore) Meta() IndexMeta {
	return s.meta
}

func docIDFromKey(k []byte) string {
	if i := bytes.LastIndexByte(k, '/'); i >= 0 {
		return string(k[:i])
	}
	return string(k)
}

// Cosine computes the cosine similarity of two equal-length vectors. A
// zero-norm vector yields 0. Differing lengths are a caller contract
// violation and return domain.ErrDimensionMismatch.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors of length %d and %d: %w", len(a), len(b), domain.ErrDimensionMismatch)
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
