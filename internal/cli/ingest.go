package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"lexrag/internal/adapter/chunker"
	"lexrag/internal/adapter/fs"
	"lexrag/internal/domain"
	"lexrag/internal/usecase"
)

// charsPerPage approximates page counts for plain-text sources that
// carry no page structure of their own.
const charsPerPage = 3000

var ingestPages int

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Index extracted-text documents for question answering",
	Long: `Index extracted-text files (.txt, .md) in the given directory. Each
file becomes one document, chunked and embedded. A sidecar
<name>.analysis.yaml next to a file is stored as its structured
analysis metadata.

Examples:
  lexrag ingest ./extracted
  lexrag ingest ./extracted --pages 12`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().IntVar(&ingestPages, "pages", 0, "page count for every file (default: estimated from length)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	cfg := GetConfig()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)
	files, err := walker.Walk(path)
	if err != nil {
		return fmt.Errorf("failed to walk directory: %w", err)
	}
	if len(files) == 0 {
		fmt.Println("No documents found.")
		return nil
	}

	indexUC := usecase.NewIndexUseCase(
		a.store,
		a.vectors,
		chunker.NewSentenceChunker(cfg.Chunking.Size, cfg.Chunking.Overlap),
		a.embedder,
		a.cache,
		slog.Default(),
	)

	// Re-ingesting a file with a known title replaces the existing doc.
	existing, err := a.store.ListDocs()
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	byTitle := make(map[string]string, len(existing))
	for _, doc := range existing {
		byTitle[doc.Title] = doc.ID
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	var ingested, failed, totalChunks int
	for _, file := range files {
		count, err := ingestFile(indexUC, byTitle, file)
		if err != nil {
			slog.Warn("failed to ingest file", "file", file.Name, "error", err)
			failed++
		} else {
			ingested++
			totalChunks += count
		}
		bar.Add(1)
	}

	fmt.Printf("\nIngest complete:\n")
	fmt.Printf("  Documents: %d\n", ingested)
	fmt.Printf("  Chunks:    %d\n", totalChunks)
	if failed > 0 {
		fmt.Printf("  Failed:    %d\n", failed)
	}
	return nil
}

func ingestFile(indexUC *usecase.IndexUseCase, byTitle map[string]string, file fs.DocumentFile) (int, error) {
	text, err := fs.ReadDocument(file.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to read file: %w", err)
	}

	docID, ok := byTitle[file.Name]
	if !ok {
		docID = uuid.NewString()
		byTitle[file.Name] = docID
	}

	pages := ingestPages
	if pages <= 0 {
		pages = len([]rune(text))/charsPerPage + 1
	}

	count, err := indexUC.IndexDocument(docID, file.Name, text, pages)
	if err != nil {
		return 0, err
	}

	if analysis, err := loadSidecar(file.Path); err != nil {
		slog.Warn("failed to read analysis sidecar", "file", file.Name, "error", err)
	} else if analysis != nil {
		if err := indexUC.SaveAnalysis(docID, *analysis); err != nil {
			slog.Warn("failed to store analysis", "file", file.Name, "error", err)
		}
	}

	return count, nil
}

// loadSidecar returns the parsed <name>.analysis.yaml, or nil when the
// document has none.
func loadSidecar(docPath string) (*domain.Analysis, error) {
	data, err := os.ReadFile(fs.SidecarPath(docPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var analysis domain.Analysis
	if err := yaml.Unmarshal(data, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}
