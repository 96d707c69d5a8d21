package lexical

import (
	"testing"

	"lexrag/internal/domain"
)

func TestTokenizeStemsAndDropsStopwords(t *testing.T) {
	tok := NewTokenizer()

	tokens := tok.Tokenize("The tenant is paying the monthly rents")
	want := map[string]bool{"tenant": true, "pai": true, "monthli": true, "rent": true}
	if len(tokens) != len(want) {
		t.Fatalf("unexpected tokens: %v", tokens)
	}
	for _, tk := range tokens {
		if !want[tk] {
			t.Errorf("unexpected token %q in %v", tk, tokens)
		}
	}
}

func TestTokenizeKeepsShall(t *testing.T) {
	// "shall" carries meaning in contract language and is not a stopword.
	tok := NewTokenizer()
	tokens := tok.Tokenize("the tenant shall pay")
	found := false
	for _, tk := range tokens {
		if tk == "shall" {
			found = true
		}
	}
	if !found {
		t.Errorf("shall should survive tokenization: %v", tokens)
	}
}

func TestRankPrefersMatchingChunk(t *testing.T) {
	s := NewScorer()

	chunks := []domain.DocumentChunk{
		{Index: 0, Text: "The security deposit equals two months of rent."},
		{Index: 1, Text: "This agreement is governed by the laws of the state."},
		{Index: 2, Text: "Notices must be delivered in writing."},
	}

	results := s.Rank("how much is the security deposit", chunks, 5)
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0].Chunk.Index != 0 {
		t.Errorf("expected deposit chunk first, got %d", results[0].Chunk.Index)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted descending at %d", i)
		}
	}
}

func TestRankDropsNonMatching(t *testing.T) {
	s := NewScorer()

	chunks := []domain.DocumentChunk{
		{Index: 0, Text: "Completely unrelated clause about parking."},
	}
	results := s.Rank("arbitration venue", chunks, 5)
	if len(results) != 0 {
		t.Errorf("expected no results, got %+v", results)
	}
}

func TestRankEmptyQuery(t *testing.T) {
	s := NewScorer()
	if results := s.Rank("the and of", nil, 5); results != nil {
		t.Errorf("expected nil for stopword-only query, got %+v", results)
	}
}

func TestRankTopKTruncation(t *testing.T) {
	s := NewScorer()

	chunks := []domain.DocumentChunk{
		{Index: 0, Text: "rent rent rent"},
		{Index: 1, Text: "rent rent"},
		{Index: 2, Text: "rent"},
	}
	results := s.Rank("rent", chunks, 2)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}
