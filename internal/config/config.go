package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Environment overrides, applied after the file is parsed.
const (
	EnvEmbedModel    = "OPENAI_EMBED_MODEL"
	EnvIndexPath     = "VECTOR_INDEX_PATH"
	EnvMetaPath      = "VECTOR_META_PATH"
	EnvTopK          = "RAG_TOP_K"
	EnvMaxChunkChars = "MAX_POLICY_CHUNK_CHARS"
	EnvPolicyDir     = "POLICY_DIR"
	EnvLogLevel      = "LOG_LEVEL"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

// LocalEmbedderConfig configures the offline hashing embedder.
type LocalEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Local  *LocalEmbedderConfig  `yaml:"local,omitempty"`
}

// ChunkerConfig configures how policy documents are split into chunks.
type ChunkerConfig struct {
	MaxChars int `yaml:"max_chars"`
}

// IndexConfig locates the persisted similarity index and its metadata.
type IndexConfig struct {
	Path     string `yaml:"path"`
	MetaPath string `yaml:"meta_path"`
}

// RetrievalConfig bounds evidence gathering per claim.
type RetrievalConfig struct {
	TopK        int `yaml:"top_k"`
	MaxQueries  int `yaml:"max_queries"`
	MaxExcerpts int `yaml:"max_excerpts"`
}

// PoliciesConfig locates the policy corpus.
type PoliciesConfig struct {
	Dir string `yaml:"dir"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Policies  PoliciesConfig  `yaml:"policies"`
	Log       LogConfig       `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return finalize(defaultConfig())
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return finalize(&cfg)
}

// LoadDefault tries ./config.yaml first, then ~/.config/reimburse/config.yaml.
// If neither exists, it writes defaults to ~/.config/reimburse/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	cfg, err = finalize(cfg)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects configurations the components cannot run with.
func (c *AppConfig) Validate() error {
	switch c.Embedder.Type {
	case "openai", "local":
	default:
		return fmt.Errorf("unknown embedder: %q", c.Embedder.Type)
	}
	if c.Chunker.MaxChars <= 0 {
		return fmt.Errorf("chunker.max_chars must be positive")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive")
	}
	if c.Index.Path == "" || c.Index.MetaPath == "" {
		return fmt.Errorf("index.path and index.meta_path required")
	}
	return nil
}

func finalize(cfg *AppConfig) (*AppConfig, error) {
	applyEnv(cfg)
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "reimburse", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:  EmbedderConfig{Type: "openai", OpenAI: &OpenAIEmbedderConfig{}},
		Chunker:   ChunkerConfig{MaxChars: 2400},
		Index:     IndexConfig{Path: "data/index/policy.index", MetaPath: "data/index/meta.json"},
		Retrieval: RetrievalConfig{TopK: 6, MaxQueries: 8, MaxExcerpts: 10},
		Policies:  PoliciesConfig{Dir: "data/policies"},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv(EnvEmbedModel); v != "" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		cfg.Embedder.OpenAI.Model = v
	}
	if v := os.Getenv(EnvIndexPath); v != "" {
		cfg.Index.Path = v
	}
	if v := os.Getenv(EnvMetaPath); v != "" {
		cfg.Index.MetaPath = v
	}
	if v := os.Getenv(EnvTopK); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Retrieval.TopK = n
		}
	}
	if v := os.Getenv(EnvMaxChunkChars); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Chunker.MaxChars = n
		}
	}
	if v := os.Getenv(EnvPolicyDir); v != "" {
		cfg.Policies.Dir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "openai"
	}
	if cfg.Chunker.MaxChars == 0 {
		cfg.Chunker.MaxChars = 2400
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = "data/index/policy.index"
	}
	if cfg.Index.MetaPath == "" {
		cfg.Index.MetaPath = "data/index/meta.json"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 6
	}
	if cfg.Retrieval.MaxQueries == 0 {
		cfg.Retrieval.MaxQueries = 8
	}
	if cfg.Retrieval.MaxExcerpts == 0 {
		cfg.Retrieval.MaxExcerpts = 10
	}
	if cfg.Policies.Dir == "" {
		cfg.Policies.Dir = "data/policies"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-large"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
	if cfg.Embedder.Type == "local" {
		if cfg.Embedder.Local == nil {
			cfg.Embedder.Local = &LocalEmbedderConfig{}
		}
		if cfg.Embedder.Local.Dimension == 0 {
			cfg.Embedder.Local.Dimension = 256
		}
	}
}
