package vectorstore

// Hit is a single nearest-neighbour match: the position of the stored vector
// and its inner-product score against the query.
type Hit struct {
	Position int
	Score    float64
}

// Index is nearest-neighbour search over a fixed set of embeddings.
// Positions are assigned in insertion order starting at zero.
type Index interface {
	Dimension() int
	Len() int
	Search(query []float32, topK int) ([]Hit, error)
}
