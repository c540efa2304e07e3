// Package embeddingtest provides embedders for tests.
package embeddingtest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"reimburse/internal/embedding"
)

// Static returns a fixed vector per known text and counts calls.
// Unknown texts get Fallback, or an error when Fallback is nil.
type Static struct {
	Vectors  map[string][]float32
	Fallback []float32
	// Err, when set, is returned from every Embed call wrapped in ErrProvider.
	Err error

	mu    sync.Mutex
	calls [][]string
}

func (s *Static) Name() string { return "static" }

func (s *Static) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	s.calls = append(s.calls, slices.Clone(texts))
	s.mu.Unlock()

	if s.Err != nil {
		return nil, fmt.Errorf("%w: %v", embedding.ErrProvider, s.Err)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := s.Vectors[t]
		if !ok {
			if s.Fallback == nil {
				return nil, fmt.Errorf("%w: no vector for %q", embedding.ErrProvider, t)
			}
			v = s.Fallback
		}
		out[i] = slices.Clone(v)
	}
	return out, nil
}

// Calls returns the batches passed to Embed, in call order.
func (s *Static) Calls() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// Short drops the last vector of every response.
type Short struct {
	Inner embedding.Embedder
}

func (s Short) Name() string { return "short" }

func (s Short) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := s.Inner.Embed(ctx, texts)
	if err != nil || len(out) == 0 {
		return out, err
	}
	return out[:len(out)-1], nil
}
