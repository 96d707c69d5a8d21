package lexical

import (
	"math"
	"sort"

	"lexrag/internal/domain"
)

// BM25 parameters, standard values.
const (
	k1 = 1.2
	b  = 0.75
)

// Scorer ranks one document's chunks against a query by BM25 over
// on-the-fly tokenization. It is the keyword fallback for documents
// without vectors; scores are keyword-overlap weights, not cosine
// similarities, so no minimum-similarity threshold applies.
type Scorer struct {
	tokenizer *Tokenizer
}

func NewScorer() *Scorer {
	return &Scorer{tokenizer: NewTokenizer()}
}

// Rank scores every chunk against the query and returns the topK best
// matches in descending score order. Chunks with no matching terms are
// dropped.
func (s *Scorer) Rank(query string, chunks []domain.DocumentChunk, topK int) []domain.ScoredChunk {
	queryTokens := s.tokenizer.Tokenize(query)
	if len(queryTokens) == 0 || len(chunks) == 0 {
		return nil
	}

	chunkTokens := make([][]string, len(chunks))
	totalLen := 0
	for i, chunk := range chunks {
		chunkTokens[i] = s.tokenizer.Tokenize(chunk.Text)
		totalLen += len(chunkTokens[i])
	}
	avgLen := float64(totalLen) / float64(len(chunks))
	if avgLen == 0 {
		return nil
	}

	// Document frequency of each query term across this document's chunks.
	df := make(map[string]int, len(queryTokens))
	for _, tokens := range chunkTokens {
		seen := make(map[string]bool)
		for _, tok := range tokens {
			seen[tok] = true
		}
		for _, term := range queryTokens {
			if seen[term] {
				df[term]++
			}
		}
	}

	n := float64(len(chunks))
	results := make([]domain.ScoredChunk, 0, len(chunks))
	for i, chunk := range chunks {
		tf := make(map[string]int, len(chunkTokens[i]))
		for _, tok := range chunkTokens[i] {
			tf[tok]++
		}

		score := 0.0
		dl := float64(len(chunkTokens[i]))
		for _, term := range queryTokens {
			freq := float64(tf[term])
			if freq == 0 {
				continue
			}
			idf := math.Log((n-float64(df[term])+0.5)/(float64(df[term])+0.5) + 1)
			score += idf * (freq * (k1 + 1)) / (freq + k1*(1-b+b*dl/avgLen))
		}
		if score > 0 {
			results = append(results, domain.ScoredChunk{Chunk: chunk, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}
