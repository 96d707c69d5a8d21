package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"lexrag/internal/domain"
)

var (
	bucketDocs     = []byte("docs")
	bucketChunks   = []byte("chunks")
	bucketAnalysis = []byte("analysis")
)

// BoltStore persists documents, chunks and analysis in a BoltDB file.
// Chunk keys are docID/%08d so a prefix cursor yields chunks in index
// order without a secondary index.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDocs, bucketChunks, bucketAnalysis} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// DB exposes the underlying handle so the vector store can share the
// same file.
func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

type docMeta struct {
	Title          string `json:"title"`
	PageCount      int    `json:"page_count"`
	TextLength     int    `json:"text_length"`
	CreatedAt      int64  `json:"created_at"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
}

func chunkKey(docID string, index int) []byte {
	return []byte(fmt.Sprintf("%s/%08d", docID, index))
}

func chunkPrefix(docID string) []byte {
	return []byte(docID + "/")
}

func (s *BoltStore) PutDoc(doc domain.Document) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		meta := docMeta{
			Title:          doc.Title,
			PageCount:      doc.PageCount,
			TextLength:     doc.TextLength,
			CreatedAt:      doc.CreatedAt.Unix(),
			EmbeddingModel: doc.EmbeddingModel,
		}
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketDocs).Put([]byte(doc.ID), data)
	})
}

func (s *BoltStore) GetDoc(id string) (domain.Document, error) {
	var doc domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocs).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("document not found: %s", id)
		}
		var meta docMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		doc = domain.Document{
			ID:             id,
			Title:          meta.Title,
			PageCount:      meta.PageCount,
			TextLength:     meta.TextLength,
			CreatedAt:      time.Unix(meta.CreatedAt, 0),
			EmbeddingModel: meta.EmbeddingModel,
		}
		return nil
	})
	return doc, err
}

// DeleteDoc removes the document and cascades to chunks and analysis.
func (s *BoltStore) DeleteDoc(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketDocs).Delete([]byte(id)); err != nil {
			return err
		}
		if err := deletePrefix(tx.Bucket(bucketChunks), chunkPrefix(id)); err != nil {
			return err
		}
		return tx.Bucket(bucketAnalysis).Delete([]byte(id))
	})
}

func (s *BoltStore) ListDocs() ([]domain.Document, error) {
	var docs []domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			var meta docMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return err
			}
			docs = append(docs, domain.Document{
				ID:             string(k),
				Title:          meta.Title,
				PageCount:      meta.PageCount,
				TextLength:     meta.TextLength,
				CreatedAt:      time.Unix(meta.CreatedAt, 0),
				EmbeddingModel: meta.EmbeddingModel,
			})
			return nil
		})
	})
	return docs, err
}

// PutChunks replaces the chunk set of a document.
func (s *BoltStore) PutChunks(docID string, chunks []domain.DocumentChunk) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		if err := deletePrefix(b, chunkPrefix(docID)); err != nil {
			return err
		}
		for _, chunk := range chunks {
			data, err := json.Marshal(chunk)
			if err != nil {
				return err
			}
			if err := b.Put(chunkKey(docID, chunk.Index), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetChunksByDoc returns the document's chunks ordered by chunk index.
func (s *BoltStore) GetChunksByDoc(docID string) ([]domain.DocumentChunk, error) {
	var chunks []domain.DocumentChunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketChunks).Cursor()
		prefix := chunkPrefix(docID)
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var chunk domain.DocumentChunk
			if err := json.Unmarshal(v, &chunk); err != nil {
				return err
			}
			chunks = append(chunks, chunk)
		}
		return nil
	})
	return chunks, err
}

func (s *BoltStore) PutAnalysis(docID string, analysis domain.Analysis) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(analysis)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketAnalysis).Put([]byte(docID), data)
	})
}

// GetAnalysis returns nil without error when no analysis is stored.
func (s *BoltStore) GetAnalysis(docID string) (*domain.Analysis, error) {
	var analysis *domain.Analysis
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketAnalysis).Get([]byte(docID))
		if data == nil {
			return nil
		}
		var a domain.Analysis
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		analysis = &a
		return nil
	})
	return analysis, err
}

func (s *BoltStore) GetStats() (domain.Stats, error) {
	var stats domain.Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		stats.TotalDocs = tx.Bucket(bucketDocs).Stats().KeyN
		stats.TotalChunks = tx.Bucket(bucketChunks).Stats().KeyN
		return nil
	})
	return stats, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func deletePrefix(b *bbolt.Bucket, prefix []byte) error {
	c := b.Cursor()
	var keys [][]byte
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
