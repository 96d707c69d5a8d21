package usecase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexrag/internal/domain"
)

func TestBuildContextSectionOrder(t *testing.T) {
	analysis := &domain.Analysis{
		Summary:   "Commercial lease between Acme Corp and Beta LLC.",
		Deadlines: []domain.Deadline{{Date: "2026-06-30", Event: "lease expiry"}},
		Parties:   &domain.Parties{Plaintiff: "Acme Corp", Defendant: "Beta LLC", Others: []string{"Gamma Bank"}},
		KeyPoints: []string{"12 month term", "rent due on the 1st"},
	}
	chunks := []domain.ScoredChunk{
		{Chunk: domain.DocumentChunk{Index: 0, Text: "The term of this lease is twelve months.", PageStart: 2, PageEnd: 2}, Score: 0.9},
		{Chunk: domain.DocumentChunk{Index: 3, Text: "Rent is due on the first of each month.", PageStart: 4, PageEnd: 5}, Score: 0.8},
	}

	ctx := BuildContext(analysis, chunks)

	order := []string{
		"## Document summary",
		"## Critical dates",
		"## Parties",
		"## Key points",
		"## Relevant excerpts",
	}
	pos := -1
	for _, header := range order {
		idx := strings.Index(ctx.Text, header)
		require.GreaterOrEqual(t, idx, 0, "missing section %q", header)
		assert.Greater(t, idx, pos, "section %q out of order", header)
		pos = idx
	}

	assert.Contains(t, ctx.Text, "- 2026-06-30: lease expiry")
	assert.Contains(t, ctx.Text, "Plaintiff: Acme Corp")
	assert.Contains(t, ctx.Text, "Other parties: Gamma Bank")
	assert.Contains(t, ctx.Text, "[1] (page 2)")
	assert.Contains(t, ctx.Text, "[2] (pages 4-5)")
	assert.Contains(t, ctx.Text, "The term of this lease is twelve months.")

	require.Len(t, ctx.Citations, 2)
	assert.Equal(t, domain.PageRange{Start: 2, End: 2}, ctx.Citations[0])
	assert.Equal(t, domain.PageRange{Start: 4, End: 5}, ctx.Citations[1])
}

func TestBuildContextNilAnalysis(t *testing.T) {
	chunks := []domain.ScoredChunk{
		{Chunk: domain.DocumentChunk{Index: 0, Text: "excerpt text"}, Score: 0.7},
	}

	ctx := BuildContext(nil, chunks)

	assert.NotContains(t, ctx.Text, "## Document summary")
	assert.Contains(t, ctx.Text, "## Relevant excerpts")
	assert.Contains(t, ctx.Text, "excerpt text")
	assert.Empty(t, ctx.Citations, "chunks without pages produce no citations")
}

func TestBuildContextEmpty(t *testing.T) {
	ctx := BuildContext(nil, nil)
	assert.Empty(t, ctx.Text)
	assert.False(t, ctx.Truncated)
}

func TestBuildContextOmitsUnknownPages(t *testing.T) {
	chunks := []domain.ScoredChunk{
		{Chunk: domain.DocumentChunk{Index: 0, Text: "no pages here"}, Score: 0.7},
	}

	ctx := BuildContext(nil, chunks)
	assert.Contains(t, ctx.Text, "[1]\n")
	assert.NotContains(t, ctx.Text, "(page")
}

func TestTruncateWithinBudget(t *testing.T) {
	text := "short text."
	got, truncated := Truncate(text, 100)
	assert.False(t, truncated)
	assert.Equal(t, text, got)
}

func TestTruncateCutsAtSentenceBoundary(t *testing.T) {
	sentence := strings.Repeat("x", 79) + "."
	text := strings.Repeat(sentence, 2000) // 160k chars

	got, truncated := Truncate(text, 100_000)
	require.True(t, truncated)

	runes := []rune(got)
	assert.LessOrEqual(t, len(runes), 100_000)
	assert.True(t, strings.HasSuffix(got, TruncationNotice))

	body := strings.TrimSuffix(got, TruncationNotice)
	assert.True(t, strings.HasSuffix(body, "."), "cut should land just after a sentence terminator")
}

func TestTruncateNoBoundaryFallsBackToHardCut(t *testing.T) {
	text := strings.Repeat("x", 150_000)

	got, truncated := Truncate(text, 100_000)
	require.True(t, truncated)

	runes := []rune(got)
	assert.LessOrEqual(t, len(runes), 100_000)

	body := strings.TrimSuffix(got, TruncationNotice)
	assert.Len(t, []rune(body), 100_000-len([]rune(TruncationNotice)))
}

func TestTruncateIdempotent(t *testing.T) {
	sentence := strings.Repeat("y", 99) + "."
	text := strings.Repeat(sentence, 1500) // 150k chars

	once, truncated := Truncate(text, 100_000)
	require.True(t, truncated)

	twice, truncatedAgain := Truncate(once, 100_000)
	assert.False(t, truncatedAgain)
	assert.Equal(t, once, twice)
}
