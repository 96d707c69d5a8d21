package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"lexrag/internal/domain"
	"lexrag/internal/usecase"
)

var askQuestion string

var askCmd = &cobra.Command{
	Use:   "ask <doc-id>",
	Short: "Ask a question about one indexed document",
	Long: `Retrieve the most relevant chunks of a document for a question and
stream a generated answer with page citations.

Examples:
  lexrag ask 3f2a... -q "when does the lease expire?"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askQuestion, "question", "q", "", "question to ask (required)")
	askCmd.MarkFlagRequired("question")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	docID := args[0]
	cfg := GetConfig()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	generator, err := newGenerator(cfg.Generation)
	if err != nil {
		return err
	}

	answerUC := usecase.NewAnswerUseCase(
		a.store,
		a.vectors,
		a.embedder,
		generator,
		a.cache,
		slog.Default(),
		cfg.Retrieval.TopK,
		cfg.Retrieval.MinSimilarity,
		cfg.Context.MaxChars,
	)

	// Ctrl-C cancels the stream mid-answer.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	history := []domain.Message{domain.NewUserMessage(askQuestion)}
	answer, err := answerUC.AnswerQuery(ctx, docID, history)
	if err != nil {
		return fmt.Errorf("failed to answer: %w", err)
	}

	for fragment := range answer.Fragments {
		if fragment.Err != nil {
			fmt.Println()
			return fmt.Errorf("generation failed: %w", fragment.Err)
		}
		fmt.Print(fragment.Text)
	}
	fmt.Println()

	if answer.Degraded {
		fmt.Println("\n(Document excerpts were unavailable; answered from summary metadata only.)")
	}
	if answer.Truncated {
		fmt.Println("\n(The document context was truncated to fit the context window.)")
	}
	if len(answer.Citations) > 0 {
		fmt.Printf("\nSources: %s\n", formatCitations(answer.Citations))
	}
	return nil
}

func formatCitations(citations []domain.PageRange) string {
	parts := make([]string, 0, len(citations))
	seen := make(map[string]bool)
	for _, c := range citations {
		var s string
		if c.End > c.Start {
			s = fmt.Sprintf("pages %d-%d", c.Start, c.End)
		} else {
			s = fmt.Sprintf("page %d", c.Start)
		}
		if !seen[s] {
			seen[s] = true
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
