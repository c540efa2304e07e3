// Package retriever answers free-text queries against persisted policy index
// artifacts.
package retriever

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"reimburse/internal/domain"
	"reimburse/internal/embedding"
	"reimburse/internal/vectorstore"
	"reimburse/internal/vectorstore/flat"
)

// DefaultTopK is used when neither the call nor the config sets top_k.
const DefaultTopK = 6

var (
	ErrArtifactsMissing = errors.New("policy index artifacts unavailable; run ingestion first")
	ErrIndexMismatch    = errors.New("index and metadata are out of lockstep")
)

// Config locates the artifacts and sets the default result count.
type Config struct {
	IndexPath string
	MetaPath  string
	TopK      int
}

// Retriever owns a loaded index and its metadata for its whole lifetime. Both
// are read-only after construction, so Search is safe for concurrent use.
type Retriever struct {
	embedder embedding.Embedder
	index    vectorstore.Index
	meta     []domain.PolicyChunk
	topK     int
}

// Open loads the persisted index and metadata. It fails if either is absent,
// unreadable, or if their lengths disagree.
func Open(cfg Config, emb embedding.Embedder) (*Retriever, error) {
	idx, err := flat.Load(cfg.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("%w: index %s: %v", ErrArtifactsMissing, cfg.IndexPath, err)
	}
	data, err := os.ReadFile(cfg.MetaPath)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata %s: %v", ErrArtifactsMissing, cfg.MetaPath, err)
	}
	var meta []domain.PolicyChunk
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: metadata %s: %v", ErrArtifactsMissing, cfg.MetaPath, err)
	}
	return New(idx, meta, emb, cfg.TopK)
}

// New wraps an already loaded index. meta[i] must describe the vector at position i.
func New(idx vectorstore.Index, meta []domain.PolicyChunk, emb embedding.Embedder, topK int) (*Retriever, error) {
	if idx.Len() != len(meta) {
		return nil, fmt.Errorf("%w: %d vectors, %d metadata entries", ErrIndexMismatch, idx.Len(), len(meta))
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{embedder: emb, index: idx, meta: meta, topK: topK}, nil
}

// Len returns the number of indexed chunks.
func (r *Retriever) Len() int { return len(r.meta) }

// Search embeds query and returns up to topK chunks by descending similarity.
// A non-positive topK uses the configured default. Provider failures are
// returned wrapped in embedding.ErrProvider.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = r.topK
	}
	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: got %d vectors for one query", embedding.ErrProvider, len(vecs))
	}
	qv := vecs[0]
	embedding.Normalize(qv)

	hits, err := r.index.Search(qv, topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	out := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		if h.Position < 0 || h.Position >= len(r.meta) {
			continue
		}
		m := r.meta[h.Position]
		out = append(out, domain.SearchResult{
			Score:        h.Score,
			SourcePath:   m.SourcePath,
			SectionTitle: m.SectionTitle,
			RuleIDs:      m.RuleIDs,
			Text:         m.Text,
		})
	}
	return out, nil
}
