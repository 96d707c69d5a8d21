package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"lexrag/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index statistics",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	stats, err := a.store.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}
	vectors, err := a.vectors.Count()
	if err != nil {
		return fmt.Errorf("failed to count vectors: %w", err)
	}
	meta := a.vectors.Meta()

	fmt.Printf("Index:       %s\n", config.IndexDBPath(GetRootDir()))
	fmt.Printf("Documents:   %d\n", stats.TotalDocs)
	fmt.Printf("Chunks:      %d\n", stats.TotalChunks)
	fmt.Printf("Vectors:     %d\n", vectors)
	fmt.Printf("Embedding:   %s (dim %d, schema v%d)\n",
		meta.EmbeddingModel, meta.Dimension, meta.SchemaVersion)
	return nil
}
