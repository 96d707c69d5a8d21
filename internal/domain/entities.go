package domain

import (
	"errors"
	"time"
)

var (
	// ErrEmptyDocument is returned when indexing is attempted on empty text.
	ErrEmptyDocument = errors.New("document text is empty")

	// ErrEmptyQuery is returned when a question contains no user text.
	ErrEmptyQuery = errors.New("query text is empty")

	// ErrDimensionMismatch indicates vectors from different embedding models
	// were compared. This is a configuration bug, not a runtime condition.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Document is an uploaded legal document after text extraction.
type Document struct {
	ID         string
	Title      string
	PageCount  int
	TextLength int
	CreatedAt  time.Time
	// EmbeddingModel is the model the stored vectors were produced with.
	// Empty when the document has no vector index (degraded mode).
	EmbeddingModel string
}

// DocumentChunk is a contiguous slice of one document's extracted text.
// CharStart/CharEnd form a half-open interval into the original text.
// PageStart/PageEnd are proportional estimates; 0 means unknown.
type DocumentChunk struct {
	DocID     string `json:"doc_id"`
	Index     int    `json:"index"`
	Text      string `json:"text"`
	CharStart int    `json:"char_start"`
	CharEnd   int    `json:"char_end"`
	PageStart int    `json:"page_start,omitempty"`
	PageEnd   int    `json:"page_end,omitempty"`
}

// ChunkEmbedding associates a chunk with its embedding vector.
type ChunkEmbedding struct {
	DocID      string
	ChunkIndex int
	Vector     []float32
}

// ScoredChunk is an ephemeral retrieval result.
type ScoredChunk struct {
	Chunk DocumentChunk
	Score float64
}

// Deadline is a critical date extracted by document analysis.
type Deadline struct {
	Date  string `json:"date" yaml:"date"`
	Event string `json:"event" yaml:"event"`
}

// Parties names the parties identified in a document.
type Parties struct {
	Plaintiff string   `json:"plaintiff,omitempty" yaml:"plaintiff,omitempty"`
	Defendant string   `json:"defendant,omitempty" yaml:"defendant,omitempty"`
	Others    []string `json:"others,omitempty" yaml:"others,omitempty"`
}

// Analysis is the structured result of AI document analysis. All fields
// are optional; absent fields are omitted from assembled context.
type Analysis struct {
	Summary       string     `json:"summary,omitempty" yaml:"summary,omitempty"`
	Deadlines     []Deadline `json:"deadlines,omitempty" yaml:"deadlines,omitempty"`
	Parties       *Parties   `json:"parties,omitempty" yaml:"parties,omitempty"`
	LegalCategory string     `json:"legal_category,omitempty" yaml:"legal_category,omitempty"`
	KeyPoints     []string   `json:"key_points,omitempty" yaml:"key_points,omitempty"`
}

// PageRange cites the estimated pages a retrieved excerpt came from.
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// AssembledContext is the bounded text block handed to answer generation.
type AssembledContext struct {
	Text      string
	Truncated bool
	Citations []PageRange
}

// Stats summarizes the contents of a store.
type Stats struct {
	TotalDocs    int
	TotalChunks  int
	TotalVectors int
}
