package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"lexrag/config"
	"lexrag/internal/adapter/embedding"
	"lexrag/internal/adapter/store"
	"lexrag/internal/port"
)

// Retrieval-quality check against an existing index: embeds a query,
// ranks one document's chunks and rates the similarity scores.
func main() {
	indexPath := flag.String("index", ".", "Path to the indexed directory")
	docID := flag.String("doc", "", "Document ID to search")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 5, "Number of results")
	flag.Parse()

	if *query == "" || *docID == "" {
		fmt.Println("Usage: go run cmd/benchmark/main.go -index . -doc <doc-id> -q \"query\"")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*indexPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.NewBoltStore(config.IndexDBPath(*indexPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening index: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	embedder, vectorStore, err := setupEmbedding(st, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Semantic search not available: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))

	count, _ := vectorStore.Count()
	fmt.Printf("Vectors indexed: %d\n", count)
	fmt.Printf("Model: %s (dim %d)\n", embedder.ModelName(), embedder.Dimension())
	fmt.Println()

	doc, err := st.GetDoc(*docID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unknown document: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document: %s (%d pages)\n", doc.Title, doc.PageCount)
	fmt.Printf("Query: %q\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	queryVec, err := embedder.Embed([]string{*query})
	if err != nil || len(queryVec) == 0 || queryVec[0] == nil {
		fmt.Fprintf(os.Stderr, "Embedding error: %v\n", err)
		os.Exit(1)
	}

	results, err := vectorStore.Search(*docID, queryVec[0], *topK, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Println("No chunks found for this document.")
		os.Exit(1)
	}

	chunks, err := st.GetChunksByDoc(*docID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading chunks: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Top %d matches:\n\n", len(results))

	totalScore := 0.0
	for i, r := range results {
		totalScore += r.Score

		rating := "LOW"
		if r.Score > 0.7 {
			rating = "HIGH"
		} else if r.Score > 0.5 {
			rating = "GOOD"
		} else if r.Score > 0.3 {
			rating = "OK"
		}

		preview := ""
		pages := ""
		for _, c := range chunks {
			if c.Index == r.ChunkIndex {
				preview = strings.ReplaceAll(c.Text, "\n", " ")
				if len(preview) > 150 {
					preview = preview[:150] + "..."
				}
				if c.PageEnd > c.PageStart {
					pages = fmt.Sprintf("pages %d-%d", c.PageStart, c.PageEnd)
				} else {
					pages = fmt.Sprintf("page %d", c.PageStart)
				}
				break
			}
		}

		fmt.Printf("%d. [%s %.3f] chunk %d (%s)\n", i+1, rating, r.Score, r.ChunkIndex, pages)
		fmt.Printf("   %s\n\n", preview)
	}

	avgScore := totalScore / float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Score)

	if avgScore > 0.5 {
		fmt.Println("  Status: GOOD - retrieval working well")
	} else if avgScore > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - consider re-ingesting or a different model")
	}
}

func setupEmbedding(st *store.BoltStore, cfg *config.Config) (port.Embedder, *store.BoltVectorStore, error) {
	var embedder port.Embedder
	var err error

	switch cfg.Embedding.Provider {
	case "openai":
		if cfg.Embedding.BaseURL != "" {
			embedder, err = embedding.NewOpenAICompatibleEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, cfg.Embedding.BaseURL, cfg.Embedding.BatchSize)
		} else {
			embedder, err = embedding.NewOpenAIEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, cfg.Embedding.BatchSize)
		}
	case "mock":
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimension)
	default:
		return nil, nil, fmt.Errorf("unsupported provider: %s", cfg.Embedding.Provider)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("embedder init failed: %w", err)
	}

	vectorStore, err := store.NewBoltVectorStore(st.DB(), embedder.ModelName(), embedder.Dimension())
	if err != nil {
		return nil, nil, fmt.Errorf("vector store failed: %w", err)
	}

	count, _ := vectorStore.Count()
	if count == 0 {
		return nil, nil, fmt.Errorf("no vectors - run 'lexrag ingest' first")
	}

	return embedder, vectorStore, nil
}
