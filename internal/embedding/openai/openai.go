package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"reimburse/internal/embedding"
)

// Client is an OpenAI-compatible embeddings client implementing the Embedder interface.
// It does not retry; a failed request fails the whole Embed call.
type Client struct {
	baseURL   string
	apiKey    string
	model     string
	batchSize int
	client    *http.Client
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
	// BatchSize caps the inputs sent per request; zero sends all inputs in one request.
	BatchSize int
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-large"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    key,
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
		client:    &http.Client{Timeout: t},
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai" }

// Embed returns one embedding vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	size := c.batchSize
	if size <= 0 || size > len(texts) {
		size = len(texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vecs, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	type reqBody struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}
	data, err := json.Marshal(reqBody{Input: inputs, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("encode embeddings request: %w", err)
	}
	url := fmt.Sprintf("%s/embeddings", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embedding.ErrProvider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embedding.ErrProvider, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", embedding.ErrProvider, err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: openai embeddings: %s: %s", embedding.ErrProvider, resp.Status, snippet(payload))
	}

	vecs, err := decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embedding.ErrProvider, err)
	}
	if len(vecs) != len(inputs) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", embedding.ErrProvider, len(vecs), len(inputs))
	}
	return vecs, nil
}

// decode accepts the OpenAI shape and falls back to the Ollama batch shape.
func decode(payload []byte) ([][]float32, error) {
	var openaiOut struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &openaiOut); err == nil && len(openaiOut.Data) > 0 {
		sort.SliceStable(openaiOut.Data, func(i, j int) bool {
			return openaiOut.Data[i].Index < openaiOut.Data[j].Index
		})
		vecs := make([][]float32, len(openaiOut.Data))
		for i, d := range openaiOut.Data {
			vecs[i] = d.Embedding
		}
		return vecs, nil
	}
	var ollamaOut struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(payload, &ollamaOut); err == nil && len(ollamaOut.Embeddings) > 0 {
		return ollamaOut.Embeddings, nil
	}
	return nil, fmt.Errorf("no embeddings in response: %s", snippet(payload))
}

func snippet(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
