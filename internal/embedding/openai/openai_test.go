package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"reimburse/internal/embedding"
	"reimburse/internal/embedding/openai"
)

func newClient(t *testing.T, url string, batchSize int) *openai.Client {
	t.Helper()
	t.Setenv("TEST_EMBED_KEY", "sk-test")
	c, err := openai.NewClient(openai.Config{
		BaseURL:   url,
		APIKeyEnv: "TEST_EMBED_KEY",
		Model:     "test-model",
		BatchSize: batchSize,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

// echoServer answers with vector [len(input), position] per input, in
// reverse index order to exercise reordering.
func echoServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/embeddings" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization: got %q", got)
		}
		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Model != "test-model" {
			t.Errorf("model: got %s", body.Model)
		}
		type item struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		data := make([]item, 0, len(body.Input))
		for i := len(body.Input) - 1; i >= 0; i-- {
			data = append(data, item{Index: i, Embedding: []float32{float32(len(body.Input[i])), float32(i)}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
}

func TestEmbedSingleBatch(t *testing.T) {
	var calls atomic.Int32
	srv := echoServer(t, &calls)
	defer srv.Close()

	c := newClient(t, srv.URL, 0)
	vecs, err := c.Embed(context.Background(), []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("requests: got %d, want 1", calls.Load())
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vecs))
	}
	for i, v := range vecs {
		if v[0] != float32(i+1) {
			t.Errorf("vector %d out of order: %v", i, v)
		}
	}
}

func TestEmbedSplitsBatches(t *testing.T) {
	var calls atomic.Int32
	srv := echoServer(t, &calls)
	defer srv.Close()

	c := newClient(t, srv.URL, 2)
	vecs, err := c.Embed(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("requests: got %d, want 3", calls.Load())
	}
	for i, v := range vecs {
		if v[0] != float32(i+1) {
			t.Errorf("vector %d out of order: %v", i, v)
		}
	}
}

func TestEmbedOllamaShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings": [[1, 0], [0, 1]]}`))
	}))
	defer srv.Close()

	vecs, err := newClient(t, srv.URL, 0).Embed(context.Background(), []string{"x", "y"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 || vecs[1][1] != 1 {
		t.Errorf("got %v", vecs)
	}
}

func TestEmbedProviderErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error": "slow down"}`},
		{"server error", http.StatusInternalServerError, `oops`},
		{"count mismatch", http.StatusOK, `{"data": [{"index": 0, "embedding": [1]}]}`},
		{"empty body", http.StatusOK, `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer srv.Close()

			_, err := newClient(t, srv.URL, 0).Embed(context.Background(), []string{"x", "y"})
			if !errors.Is(err, embedding.ErrProvider) {
				t.Fatalf("expected ErrProvider, got %v", err)
			}
			if calls.Load() != 1 {
				t.Errorf("requests: got %d, want 1 (no retries)", calls.Load())
			}
		})
	}
}

func TestNewClientMissingKey(t *testing.T) {
	t.Setenv("TEST_EMPTY_KEY", "")
	if _, err := openai.NewClient(openai.Config{APIKeyEnv: "TEST_EMPTY_KEY"}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}
