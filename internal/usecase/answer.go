package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"lexrag/internal/adapter/cache"
	"lexrag/internal/adapter/lexical"
	"lexrag/internal/domain"
	"lexrag/internal/port"
)

// AnswerUseCase runs the per-query pipeline: embed the latest user
// question, retrieve the most similar chunks of one document, assemble
// a bounded context and stream a generated answer. When retrieval is
// unavailable the answer degrades to metadata-only context instead of
// failing the conversation.
type AnswerUseCase struct {
	docs      port.DocumentStore
	vectors   port.VectorStore
	embedder  port.Embedder
	generator port.Generator
	cache     *cache.RetrievalCache
	scorer    *lexical.Scorer
	logger    *slog.Logger

	topK          int
	minSimilarity float64
	maxChars      int
}

func NewAnswerUseCase(
	docs port.DocumentStore,
	vectors port.VectorStore,
	embedder port.Embedder,
	generator port.Generator,
	retrievalCache *cache.RetrievalCache,
	logger *slog.Logger,
	topK int,
	minSimilarity float64,
	maxChars int,
) *AnswerUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if topK <= 0 {
		topK = 5
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxContextChars
	}
	return &AnswerUseCase{
		docs:          docs,
		vectors:       vectors,
		embedder:      embedder,
		generator:     generator,
		cache:         retrievalCache,
		scorer:        lexical.NewScorer(),
		logger:        logger,
		topK:          topK,
		minSimilarity: minSimilarity,
		maxChars:      maxChars,
	}
}

// Answer is a streamed response plus what went into its context.
type Answer struct {
	Fragments <-chan port.Fragment
	Citations []domain.PageRange
	Truncated bool
	Degraded  bool // retrieval failed, context is metadata-only
}

// AnswerQuery answers the latest user message in history against one
// document. History is passed to the generator unmodified apart from
// the injected system instruction.
func (u *AnswerUseCase) AnswerQuery(ctx context.Context, docID string, history []domain.Message) (*Answer, error) {
	query, ok := domain.LatestUserText(history)
	if !ok || query == "" {
		return nil, domain.ErrEmptyQuery
	}

	doc, err := u.docs.GetDoc(docID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	analysis, err := u.docs.GetAnalysis(docID)
	if err != nil {
		u.logger.Warn("failed to load analysis", "doc_id", docID, "error", err)
		analysis = nil
	}

	scored, degraded := u.retrieve(docID, query)

	assembled := BuildContext(analysis, scored)
	text, truncated := Truncate(assembled.Text, u.maxChars)
	if truncated {
		u.logger.Info("context truncated", "doc_id", docID, "max_chars", u.maxChars)
	}

	systemPrompt := buildSystemPrompt(doc, text, degraded)

	fragments, err := u.generator.Stream(ctx, systemPrompt, history)
	if err != nil {
		return nil, fmt.Errorf("failed to start generation: %w", err)
	}

	return &Answer{
		Fragments: fragments,
		Citations: assembled.Citations,
		Truncated: truncated,
		Degraded:  degraded,
	}, nil
}

// retrieve returns the ranked chunks for the query. The second return
// reports degraded retrieval: vector search was unavailable and the
// excerpts (if any) came from the keyword fallback instead.
func (u *AnswerUseCase) retrieve(docID, query string) ([]domain.ScoredChunk, bool) {
	if u.cache != nil {
		if cached, ok := u.cache.Get(docID, query, u.topK); ok {
			return cached, false
		}
	}

	vectors, err := u.embedder.Embed([]string{query})
	if err != nil || len(vectors) == 0 || vectors[0] == nil {
		u.logger.Warn("query embedding failed, using keyword fallback",
			"doc_id", docID, "error", err)
		return u.keywordFallback(docID, query), true
	}

	results, err := u.vectors.Search(docID, vectors[0], u.topK, u.minSimilarity)
	if err != nil {
		u.logger.Warn("vector search failed, using keyword fallback",
			"doc_id", docID, "error", err)
		return u.keywordFallback(docID, query), true
	}
	if len(results) == 0 {
		return nil, false
	}

	chunks, err := u.docs.GetChunksByDoc(docID)
	if err != nil {
		u.logger.Warn("failed to load chunks, falling back to metadata-only context",
			"doc_id", docID, "error", err)
		return nil, true
	}
	byIndex := make(map[int]domain.DocumentChunk, len(chunks))
	for _, chunk := range chunks {
		byIndex[chunk.Index] = chunk
	}

	scored := make([]domain.ScoredChunk, 0, len(results))
	for _, r := range results {
		chunk, ok := byIndex[r.ChunkIndex]
		if !ok {
			u.logger.Warn("vector refers to missing chunk",
				"doc_id", docID, "chunk_index", r.ChunkIndex)
			continue
		}
		scored = append(scored, domain.ScoredChunk{Chunk: chunk, Score: r.Score})
	}

	if u.cache != nil {
		u.cache.Put(docID, query, u.topK, scored)
	}
	return scored, false
}

// keywordFallback ranks the document's chunks by BM25 keyword overlap.
// Results are never cached: once vector retrieval recovers it should
// take over immediately.
func (u *AnswerUseCase) keywordFallback(docID, query string) []domain.ScoredChunk {
	chunks, err := u.docs.GetChunksByDoc(docID)
	if err != nil {
		u.logger.Warn("failed to load chunks for keyword fallback",
			"doc_id", docID, "error", err)
		return nil
	}
	return u.scorer.Rank(query, chunks, u.topK)
}

func buildSystemPrompt(doc domain.Document, contextText string, degraded bool) string {
	var b strings.Builder
	b.WriteString("You are a legal assistant answering questions about one document: ")
	b.WriteString(doc.Title)
	b.WriteString(".\n")
	b.WriteString("Answer only from the provided document context. ")
	b.WriteString("When an excerpt carries a page annotation, cite the page in your answer. ")
	b.WriteString("If the context does not contain the answer, say so instead of guessing.\n")
	if degraded {
		b.WriteString("Semantic retrieval is temporarily unavailable; any excerpts below were selected by keyword match only, so qualify your answers accordingly.\n")
	}
	if contextText != "" {
		b.WriteString("\n# Document context\n\n")
		b.WriteString(contextText)
	}
	return b.String()
}
