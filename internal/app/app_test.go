package app_test

import (
	"path/filepath"
	"testing"

	"reimburse/internal/app"
	"reimburse/internal/config"
)

func TestNewEmbedder(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.AppConfig
		wantName string
		wantErr  bool
	}{
		{
			name:     "local",
			cfg:      config.AppConfig{Embedder: config.EmbedderConfig{Type: "local", Local: &config.LocalEmbedderConfig{Dimension: 32}}},
			wantName: "local",
		},
		{
			name:     "openai",
			cfg:      config.AppConfig{Embedder: config.EmbedderConfig{Type: "openai", OpenAI: &config.OpenAIEmbedderConfig{APIKeyEnv: "APP_TEST_KEY"}}},
			wantName: "openai",
		},
		{
			name:    "openai without section",
			cfg:     config.AppConfig{Embedder: config.EmbedderConfig{Type: "openai"}},
			wantErr: true,
		},
		{
			name:    "unknown",
			cfg:     config.AppConfig{Embedder: config.EmbedderConfig{Type: "bert"}},
			wantErr: true,
		},
	}
	t.Setenv("APP_TEST_KEY", "sk-test")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb, err := app.NewEmbedder(&tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewEmbedder: %v", err)
			}
			if emb.Name() != tt.wantName {
				t.Errorf("name: got %s, want %s", emb.Name(), tt.wantName)
			}
		})
	}
}

func TestOpenRetrieverMissingArtifacts(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.AppConfig{
		Embedder: config.EmbedderConfig{Type: "local"},
		Index:    config.IndexConfig{Path: filepath.Join(dir, "x.index"), MetaPath: filepath.Join(dir, "x.json")},
	}
	emb, err := app.NewEmbedder(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := app.OpenRetriever(cfg, emb); err == nil {
		t.Fatal("expected error for missing artifacts")
	}
}

func TestServiceOptions(t *testing.T) {
	cfg := &config.AppConfig{
		Index:     config.IndexConfig{Path: "i", MetaPath: "m"},
		Retrieval: config.RetrievalConfig{TopK: 3, MaxQueries: 4, MaxExcerpts: 5},
	}
	opts := app.ServiceOptions(cfg)
	if opts.Paths.Index != "i" || opts.Paths.Meta != "m" || opts.TopK != 3 || opts.MaxQueries != 4 || opts.MaxExcerpts != 5 {
		t.Errorf("unexpected options: %+v", opts)
	}
}
