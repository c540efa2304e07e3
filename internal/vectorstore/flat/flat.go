// Package flat provides an exact, exhaustive inner-product index.
package flat

import (
	"errors"
	"fmt"
	"slices"

	"reimburse/internal/vectorstore"
)

var (
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrCorruptIndex      = errors.New("corrupt index file")
)

// Index stores vectors contiguously and scores every one of them per query.
// It is immutable once built and safe for concurrent searches.
type Index struct {
	dimension int
	data      []float32
}

var _ vectorstore.Index = (*Index)(nil)

// New creates an empty index for vectors of the given dimension.
func New(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, errors.New("invalid dimension")
	}
	return &Index{dimension: dimension}, nil
}

// Add appends vectors; the first added vector gets the next free position.
func (x *Index) Add(vectors ...[]float32) error {
	for i, v := range vectors {
		if len(v) != x.dimension {
			return fmt.Errorf("%w: vector %d has %d, want %d", ErrDimensionMismatch, i, len(v), x.dimension)
		}
	}
	for _, v := range vectors {
		x.data = append(x.data, v...)
	}
	return nil
}

func (x *Index) Dimension() int { return x.dimension }

func (x *Index) Len() int { return len(x.data) / x.dimension }

// Vector returns a copy of the vector stored at position i.
func (x *Index) Vector(i int) []float32 {
	return slices.Clone(x.data[i*x.dimension : (i+1)*x.dimension])
}

// Search returns up to topK hits ordered by descending score. Ties keep
// insertion order. Fewer than topK hits are returned when the index is smaller.
func (x *Index) Search(query []float32, topK int) ([]vectorstore.Hit, error) {
	if len(query) != x.dimension {
		return nil, fmt.Errorf("%w: query has %d, want %d", ErrDimensionMismatch, len(query), x.dimension)
	}
	if topK <= 0 {
		return nil, nil
	}
	n := x.Len()
	hits := make([]vectorstore.Hit, n)
	for i := 0; i < n; i++ {
		hits[i] = vectorstore.Hit{Position: i, Score: dot(x.data[i*x.dimension:(i+1)*x.dimension], query)}
	}
	slices.SortStableFunc(hits, func(a, b vectorstore.Hit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}

func dot(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
