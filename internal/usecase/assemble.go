package usecase

import (
	"fmt"
	"strings"

	"lexrag/internal/domain"
)

// DefaultMaxContextChars approximates the generation model's usable
// context window at roughly 4 characters per token.
const DefaultMaxContextChars = 100_000

// TruncationNotice is appended to a context that had to be cut down.
// Its length is reserved out of the budget, so a truncated context
// never exceeds maxChars and re-truncating it is a no-op.
const TruncationNotice = "\n\n[Note: the document context was truncated to fit the context window. Some excerpts may be missing.]"

// BuildContext renders analysis metadata and retrieved excerpts into a
// single text block for the generation prompt. Sections appear in a
// fixed order and are omitted entirely when their source field is
// absent. A nil analysis yields excerpts only.
func BuildContext(analysis *domain.Analysis, chunks []domain.ScoredChunk) domain.AssembledContext {
	var b strings.Builder

	if analysis != nil {
		if analysis.Summary != "" {
			b.WriteString("## Document summary\n")
			b.WriteString(analysis.Summary)
			b.WriteString("\n\n")
		}
		if len(analysis.Deadlines) > 0 {
			b.WriteString("## Critical dates\n")
			for _, d := range analysis.Deadlines {
				fmt.Fprintf(&b, "- %s: %s\n", d.Date, d.Event)
			}
			b.WriteString("\n")
		}
		if p := analysis.Parties; p != nil {
			var lines []string
			if p.Plaintiff != "" {
				lines = append(lines, "Plaintiff: "+p.Plaintiff)
			}
			if p.Defendant != "" {
				lines = append(lines, "Defendant: "+p.Defendant)
			}
			if len(p.Others) > 0 {
				lines = append(lines, "Other parties: "+strings.Join(p.Others, ", "))
			}
			if len(lines) > 0 {
				b.WriteString("## Parties\n")
				b.WriteString(strings.Join(lines, "\n"))
				b.WriteString("\n\n")
			}
		}
		if len(analysis.KeyPoints) > 0 {
			b.WriteString("## Key points\n")
			for _, point := range analysis.KeyPoints {
				fmt.Fprintf(&b, "- %s\n", point)
			}
			b.WriteString("\n")
		}
	}

	var citations []domain.PageRange
	if len(chunks) > 0 {
		b.WriteString("## Relevant excerpts\n")
		for i, scored := range chunks {
			fmt.Fprintf(&b, "[%d]", i+1)
			if annotation := pageAnnotation(scored.Chunk); annotation != "" {
				b.WriteString(" ")
				b.WriteString(annotation)
			}
			b.WriteString("\n")
			b.WriteString(scored.Chunk.Text)
			b.WriteString("\n\n")

			if scored.Chunk.PageStart > 0 {
				citations = append(citations, domain.PageRange{
					Start: scored.Chunk.PageStart,
					End:   scored.Chunk.PageEnd,
				})
			}
		}
	}

	return domain.AssembledContext{
		Text:      strings.TrimRight(b.String(), "\n"),
		Citations: citations,
	}
}

func pageAnnotation(chunk domain.DocumentChunk) string {
	if chunk.PageStart <= 0 {
		return ""
	}
	if chunk.PageEnd > chunk.PageStart {
		return fmt.Sprintf("(pages %d-%d)", chunk.PageStart, chunk.PageEnd)
	}
	return fmt.Sprintf("(page %d)", chunk.PageStart)
}

// Truncate cuts text to at most maxChars runes, preferring the last
// sentence terminator or newline within the budget as long as it is
// not more than 1000 runes back. The notice is included in the budget.
func Truncate(text string, maxChars int) (string, bool) {
	if maxChars <= 0 {
		maxChars = DefaultMaxContextChars
	}

	runes := []rune(text)
	if len(runes) <= maxChars {
		return text, false
	}

	notice := []rune(TruncationNotice)
	budget := maxChars - len(notice)
	if budget < 0 {
		budget = 0
	}

	cut := budget
	earliest := budget - 1000
	if earliest < 0 {
		earliest = 0
	}
	for i := budget - 1; i >= earliest; i-- {
		if runes[i] == '.' || runes[i] == '\n' {
			cut = i + 1
			break
		}
	}

	return string(runes[:cut]) + TruncationNotice, true
}
