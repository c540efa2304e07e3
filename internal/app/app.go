// Package app assembles components from an AppConfig for the commands.
package app

import (
	"fmt"
	"os"
	"time"

	"reimburse/internal/chunker"
	"reimburse/internal/config"
	"reimburse/internal/embedding"
	"reimburse/internal/embedding/local"
	"reimburse/internal/embedding/openai"
	"reimburse/internal/indexer"
	"reimburse/internal/retriever"
	"reimburse/internal/service"
)

// LoadConfig loads path, or the default locations when path is empty.
func LoadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(path)
}

// NewEmbedder builds the configured embedder. The same configuration must be
// used for ingestion and retrieval.
func NewEmbedder(cfg *config.AppConfig) (embedding.Embedder, error) {
	switch cfg.Embedder.Type {
	case "local":
		dim := 0
		if cfg.Embedder.Local != nil {
			dim = cfg.Embedder.Local.Dimension
		}
		return local.NewEmbedder(dim), nil
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
			BatchSize: cfg.Embedder.OpenAI.BatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}

// OpenRetriever loads the persisted index named by cfg.
func OpenRetriever(cfg *config.AppConfig, emb embedding.Embedder) (*retriever.Retriever, error) {
	return retriever.Open(retriever.Config{
		IndexPath: cfg.Index.Path,
		MetaPath:  cfg.Index.MetaPath,
		TopK:      cfg.Retrieval.TopK,
	}, emb)
}

// ServiceOptions maps the retrieval and index sections onto service options.
func ServiceOptions(cfg *config.AppConfig) service.Options {
	return service.Options{
		Paths:       indexer.Paths{Index: cfg.Index.Path, Meta: cfg.Index.MetaPath},
		TopK:        cfg.Retrieval.TopK,
		MaxQueries:  cfg.Retrieval.MaxQueries,
		MaxExcerpts: cfg.Retrieval.MaxExcerpts,
	}
}

// NewChunker builds the heading chunker with the configured size bound.
func NewChunker(cfg *config.AppConfig) *chunker.HeadingChunker {
	return chunker.NewHeadingChunker(cfg.Chunker.MaxChars)
}

// OpenInput returns stdin for "-" or an empty name, otherwise the named file.
func OpenInput(name string) (*os.File, error) {
	if name == "" || name == "-" {
		return os.Stdin, nil
	}
	return os.Open(name)
}
