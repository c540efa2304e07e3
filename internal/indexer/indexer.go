// Package indexer embeds policy chunks, builds the similarity index and
// persists it with the parallel metadata list.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"reimburse/internal/domain"
	"reimburse/internal/embedding"
	"reimburse/internal/vectorstore/flat"
)

var (
	ErrNoChunks           = errors.New("no policy chunks to index")
	ErrEmbeddingMismatch  = errors.New("embedding count does not match chunk count")
	ErrInconsistentVector = errors.New("embedding dimensions differ")
)

// Paths locates the persisted artifacts.
type Paths struct {
	Index string
	Meta  string
}

// Build embeds all chunk texts in one batched call, normalizes the vectors and
// adds them to a flat index in chunk order. The returned metadata is the chunk
// list itself: position i in the index describes chunks[i].
func Build(ctx context.Context, chunks []domain.PolicyChunk, emb embedding.Embedder) (*flat.Index, []domain.PolicyChunk, error) {
	if len(chunks) == 0 {
		return nil, nil, ErrNoChunks
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := emb.Embed(ctx, texts)
	if err != nil {
		return nil, nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, nil, fmt.Errorf("%w: %d vectors for %d chunks", ErrEmbeddingMismatch, len(vectors), len(chunks))
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, nil, fmt.Errorf("%w: empty vector", ErrInconsistentVector)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, nil, fmt.Errorf("%w: vector %d has %d, want %d", ErrInconsistentVector, i, len(v), dim)
		}
		embedding.Normalize(v)
	}
	idx, err := flat.New(dim)
	if err != nil {
		return nil, nil, err
	}
	if err := idx.Add(vectors...); err != nil {
		return nil, nil, err
	}
	meta := make([]domain.PolicyChunk, len(chunks))
	copy(meta, chunks)
	for i := range meta {
		if meta[i].RuleIDs == nil {
			meta[i].RuleIDs = []string{}
		}
	}
	return idx, meta, nil
}

// Persist writes the index and metadata. Both are staged in temporary files
// next to their targets. Metadata is committed first and the previous
// metadata is kept aside until the index rename succeeds; if it fails, the old
// metadata is put back so the old pair stays consistent. A crash between the
// two renames can still leave new metadata beside the old index, which the
// retriever detects only when the counts differ. Concurrent runs against the
// same paths must be serialized by the caller.
func Persist(paths Paths, idx *flat.Index, meta []domain.PolicyChunk) error {
	if idx.Len() != len(meta) {
		return fmt.Errorf("%w: index has %d vectors, metadata has %d entries", ErrEmbeddingMismatch, idx.Len(), len(meta))
	}
	var indexBuf bytes.Buffer
	if _, err := idx.WriteTo(&indexBuf); err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	indexTmp, err := stage(paths.Index, indexBuf.Bytes())
	if err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	metaTmp, err := stage(paths.Meta, metaData)
	if err != nil {
		_ = os.Remove(indexTmp)
		return fmt.Errorf("write metadata: %w", err)
	}

	prevMeta := paths.Meta + ".prev"
	hadMeta := true
	if err := os.Rename(paths.Meta, prevMeta); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			_ = os.Remove(indexTmp)
			_ = os.Remove(metaTmp)
			return fmt.Errorf("set aside metadata: %w", err)
		}
		hadMeta = false
	}
	restore := func() {
		if hadMeta {
			_ = os.Rename(prevMeta, paths.Meta)
		} else {
			_ = os.Remove(paths.Meta)
		}
	}

	if err := os.Rename(metaTmp, paths.Meta); err != nil {
		_ = os.Remove(indexTmp)
		_ = os.Remove(metaTmp)
		restore()
		return fmt.Errorf("commit metadata: %w", err)
	}
	if err := os.Rename(indexTmp, paths.Index); err != nil {
		_ = os.Remove(indexTmp)
		restore()
		return fmt.Errorf("commit index: %w", err)
	}
	if hadMeta {
		_ = os.Remove(prevMeta)
	}
	return nil
}

func stage(path string, data []byte) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
