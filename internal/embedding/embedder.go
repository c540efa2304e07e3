package embedding

import (
	"context"
	"errors"
	"math"
)

// ErrProvider marks failures of the embedding provider, as opposed to an
// empty search result.
var ErrProvider = errors.New("embedding provider failed")

// Embedder converts free text into fixed-dimension vectors. Implementations
// return exactly one vector per input text, in input order.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Normalize scales v in place to unit L2 length so that inner product equals
// cosine similarity. Zero vectors are left unchanged.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
