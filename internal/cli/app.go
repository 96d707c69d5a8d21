package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lexrag/config"
	"lexrag/internal/adapter/cache"
	"lexrag/internal/adapter/embedding"
	"lexrag/internal/adapter/generation"
	"lexrag/internal/adapter/store"
	"lexrag/internal/port"
)

// app wires the stores and providers for one command invocation.
type app struct {
	store    *store.BoltStore
	vectors  *store.BoltVectorStore
	embedder port.Embedder
	cache    *cache.RetrievalCache
}

func openApp() (*app, error) {
	cfg := GetConfig()
	dir := GetRootDir()

	if err := config.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create .lexrag directory: %w", err)
	}

	st, err := store.NewBoltStore(config.IndexDBPath(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to open index store: %w", err)
	}

	embedder, err := newEmbedder(cfg.Embedding)
	if err != nil {
		st.Close()
		return nil, err
	}

	vectors, err := store.NewBoltVectorStore(st.DB(), embedder.ModelName(), embedder.Dimension())
	if err != nil {
		st.Close()
		var incompatible *store.IncompatibleIndexError
		if errors.As(err, &incompatible) {
			slog.Error("embedding model changed, delete the index and re-ingest",
				"stored", incompatible.Stored.EmbeddingModel,
				"configured", incompatible.Configured.EmbeddingModel)
		}
		return nil, err
	}

	retrievalCache := cache.NewRetrievalCache(
		cfg.Retrieval.CacheSize,
		time.Duration(cfg.Retrieval.CacheTTLSec)*time.Second,
	)

	return &app{
		store:    st,
		vectors:  vectors,
		embedder: embedder,
		cache:    retrievalCache,
	}, nil
}

func (a *app) close() {
	a.store.Close()
}

func newEmbedder(ec config.EmbeddingConfig) (port.Embedder, error) {
	switch ec.Provider {
	case "openai":
		if ec.BaseURL != "" {
			return embedding.NewOpenAICompatibleEmbedder(ec.APIKeyEnv, ec.Model, ec.BaseURL, ec.BatchSize)
		}
		return embedding.NewOpenAIEmbedder(ec.APIKeyEnv, ec.Model, ec.BatchSize)
	case "mock":
		return embedding.NewMockEmbedder(ec.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", ec.Provider)
	}
}

func newGenerator(gc config.GenerationConfig) (port.Generator, error) {
	switch gc.Provider {
	case "openai":
		if gc.BaseURL != "" {
			return generation.NewOpenAICompatibleGenerator(gc.APIKeyEnv, gc.Model, gc.BaseURL, gc.Temperature, gc.MaxTokens)
		}
		return generation.NewOpenAIGenerator(gc.APIKeyEnv, gc.Model, gc.Temperature, gc.MaxTokens)
	case "mock":
		return generation.NewMockGenerator("This is a mock answer."), nil
	default:
		return nil, fmt.Errorf("unsupported generation provider: %s", gc.Provider)
	}
}
