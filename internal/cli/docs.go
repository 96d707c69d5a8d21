package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"lexrag/internal/adapter/chunker"
	"lexrag/internal/usecase"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage indexed documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	Args:  cobra.NoArgs,
	RunE:  runDocsList,
}

var docsShowCmd = &cobra.Command{
	Use:   "show <doc-id>",
	Short: "Show one document and its analysis metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsShow,
}

var docsDeleteCmd = &cobra.Command{
	Use:   "delete <doc-id>",
	Short: "Delete a document, its chunks and its vectors",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsDelete,
}

func init() {
	docsCmd.AddCommand(docsListCmd, docsShowCmd, docsDeleteCmd)
	rootCmd.AddCommand(docsCmd)
}

func runDocsList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	docs, err := a.store.ListDocs()
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if len(docs) == 0 {
		fmt.Println("No documents indexed.")
		return nil
	}

	fmt.Printf("%-36s  %-30s  %5s  %8s  %s\n", "ID", "TITLE", "PAGES", "CHARS", "MODEL")
	for _, doc := range docs {
		model := doc.EmbeddingModel
		if model == "" {
			model = "(no index)"
		}
		fmt.Printf("%-36s  %-30s  %5d  %8d  %s\n",
			doc.ID, doc.Title, doc.PageCount, doc.TextLength, model)
	}
	return nil
}

func runDocsShow(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	doc, err := a.store.GetDoc(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("ID:         %s\n", doc.ID)
	fmt.Printf("Title:      %s\n", doc.Title)
	fmt.Printf("Pages:      %d\n", doc.PageCount)
	fmt.Printf("Characters: %d\n", doc.TextLength)
	fmt.Printf("Created:    %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	if doc.EmbeddingModel != "" {
		fmt.Printf("Embedding:  %s\n", doc.EmbeddingModel)
	} else {
		fmt.Println("Embedding:  none (metadata-only Q&A)")
	}

	chunks, err := a.store.GetChunksByDoc(doc.ID)
	if err == nil {
		fmt.Printf("Chunks:     %d\n", len(chunks))
	}

	analysis, err := a.store.GetAnalysis(doc.ID)
	if err != nil {
		return err
	}
	if analysis == nil {
		fmt.Println("\nNo analysis metadata.")
		return nil
	}

	fmt.Println("\nAnalysis:")
	if analysis.Summary != "" {
		fmt.Printf("  Summary:  %s\n", analysis.Summary)
	}
	if analysis.LegalCategory != "" {
		fmt.Printf("  Category: %s\n", analysis.LegalCategory)
	}
	for _, d := range analysis.Deadlines {
		fmt.Printf("  Deadline: %s - %s\n", d.Date, d.Event)
	}
	if p := analysis.Parties; p != nil {
		if p.Plaintiff != "" {
			fmt.Printf("  Plaintiff: %s\n", p.Plaintiff)
		}
		if p.Defendant != "" {
			fmt.Printf("  Defendant: %s\n", p.Defendant)
		}
	}
	for _, point := range analysis.KeyPoints {
		fmt.Printf("  - %s\n", point)
	}
	return nil
}

func runDocsDelete(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	indexUC := usecase.NewIndexUseCase(
		a.store,
		a.vectors,
		chunker.NewSentenceChunker(cfg.Chunking.Size, cfg.Chunking.Overlap),
		a.embedder,
		a.cache,
		slog.Default(),
	)

	if err := indexUC.DeleteDocument(args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}
