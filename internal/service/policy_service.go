package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"reimburse/internal/claim"
	"reimburse/internal/domain"
	"reimburse/internal/embedding"
	"reimburse/internal/indexer"
	"reimburse/internal/rules"
)

var (
	ErrNoDocuments          = errors.New("no policy documents found")
	ErrRetrievalUnavailable = errors.New("policy retrieval unavailable")
)

// GeneralQuery is always the first retrieval query of an assessment.
const GeneralQuery = "General reimbursement eligibility, receipts, documentation, approvals"

// dedupePrefix is how many leading characters of an excerpt take part in deduplication.
const dedupePrefix = 120

// Searcher is the retrieval contract the service depends on.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error)
}

// Options bounds ingestion and evidence gathering.
type Options struct {
	Paths       indexer.Paths
	TopK        int
	MaxQueries  int
	MaxExcerpts int
}

// IngestSummary describes a completed ingestion run.
type IngestSummary struct {
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`
	Dimension int    `json:"dimension"`
	IndexPath string `json:"index_path"`
	MetaPath  string `json:"meta_path"`
}

// Citation links a rule id to the first retrieved excerpt that mentions it.
type Citation struct {
	RuleID       string `json:"rule_id"`
	SectionTitle string `json:"section_title"`
	SourcePath   string `json:"source_path"`
}

// Assessment is the deterministic verdict plus the policy evidence gathered
// for the downstream reasoning step.
type Assessment struct {
	ID         string                 `json:"id"`
	ClaimID    string                 `json:"claim_id"`
	Evaluation rules.EvaluationResult `json:"deterministic"`
	Excerpts   []domain.SearchResult  `json:"policy_excerpts"`
	Citations  []Citation             `json:"citations"`
}

type PolicyService struct {
	chunker  domain.Chunker
	embedder embedding.Embedder
	searcher Searcher
	opts     Options
	logger   *slog.Logger
}

// NewPolicyService wires the service. searcher may be nil for ingestion-only
// use; Assess then fails with ErrRetrievalUnavailable.
func NewPolicyService(chunker domain.Chunker, embedder embedding.Embedder, searcher Searcher, opts Options, logger *slog.Logger) *PolicyService {
	if opts.MaxQueries <= 0 {
		opts.MaxQueries = 8
	}
	if opts.MaxExcerpts <= 0 {
		opts.MaxExcerpts = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PolicyService{chunker: chunker, embedder: embedder, searcher: searcher, opts: opts, logger: logger}
}

// Ingest reads every markdown document under paths (files, globs or
// directories), chunks them, builds the index and persists it. Documents are
// processed in lexical path order so positions are reproducible.
func (s *PolicyService) Ingest(ctx context.Context, paths []string) (IngestSummary, error) {
	files, err := collectMarkdown(paths)
	if err != nil {
		return IngestSummary{}, err
	}
	if len(files) == 0 {
		return IngestSummary{}, fmt.Errorf("%w in %v", ErrNoDocuments, paths)
	}

	var allChunks []domain.PolicyChunk
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return IngestSummary{}, err
		}
		chunks, err := s.chunker.Chunk(domain.Document{Path: f, Content: string(data)})
		if err != nil {
			return IngestSummary{}, fmt.Errorf("chunk %s: %w", f, err)
		}
		s.logger.Debug("chunked policy document", "path", f, "chunks", len(chunks))
		allChunks = append(allChunks, chunks...)
	}

	idx, meta, err := indexer.Build(ctx, allChunks, s.embedder)
	if err != nil {
		return IngestSummary{}, err
	}
	if err := indexer.Persist(s.opts.Paths, idx, meta); err != nil {
		return IngestSummary{}, err
	}

	summary := IngestSummary{
		Documents: len(files),
		Chunks:    len(meta),
		Dimension: idx.Dimension(),
		IndexPath: s.opts.Paths.Index,
		MetaPath:  s.opts.Paths.Meta,
	}
	s.logger.Info("ingested policies",
		"documents", summary.Documents,
		"chunks", summary.Chunks,
		"dimension", summary.Dimension,
		"embedder", s.embedder.Name(),
		"index", summary.IndexPath,
		"meta", summary.MetaPath,
	)
	return summary, nil
}

// Assess evaluates c with the rules engine and, concurrently, retrieves
// policy excerpts for it. Any evaluation or retrieval failure fails the
// whole assessment.
func (s *PolicyService) Assess(ctx context.Context, c claim.Claim) (Assessment, error) {
	if s.searcher == nil {
		return Assessment{}, ErrRetrievalUnavailable
	}
	queries := BuildQueries(c, s.opts.MaxQueries)
	hits := make([][]domain.SearchResult, len(queries))
	var eval rules.EvaluationResult

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(min(runtime.NumCPU(), len(queries)+1), 1))

	g.Go(func() error {
		res, err := rules.Evaluate(c)
		if err != nil {
			return err
		}
		eval = res
		return nil
	})
	for i, q := range queries {
		g.Go(func() error {
			res, err := s.searcher.Search(gctx, q, s.opts.TopK)
			if err != nil {
				return fmt.Errorf("retrieve %q: %w", q, err)
			}
			hits[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Assessment{}, err
	}

	excerpts := MergeExcerpts(hits, s.opts.MaxExcerpts)
	a := Assessment{
		ID:         uuid.NewString(),
		ClaimID:    c.ClaimID,
		Evaluation: eval,
		Excerpts:   excerpts,
		Citations:  Citations(excerpts),
	}
	s.logger.Info("assessed claim",
		"assessment_id", a.ID,
		"claim_id", a.ClaimID,
		"decision", a.Evaluation.Decision,
		"claim_total", a.Evaluation.ClaimTotal,
		"queries", len(queries),
		"excerpts", len(a.Excerpts),
	)
	return a, nil
}

// BuildQueries returns the general policy query followed by one query per
// claim line, truncated to limit queries.
func BuildQueries(c claim.Claim, limit int) []string {
	queries := []string{GeneralQuery}
	for _, ln := range c.Lines {
		queries = append(queries, fmt.Sprintf("Rules for category=%s, amount=%s %s, vendor=%s, desc=%s",
			ln.Category, strconv.FormatFloat(ln.Amount, 'f', -1, 64), ln.Currency, ln.Vendor, ln.Description))
	}
	if limit > 0 && len(queries) > limit {
		queries = queries[:limit]
	}
	return queries
}

// MergeExcerpts flattens per-query results in query order, drops repeats of
// the same source, section and leading text, and keeps at most limit excerpts.
func MergeExcerpts(perQuery [][]domain.SearchResult, limit int) []domain.SearchResult {
	type key struct{ source, section, prefix string }
	seen := make(map[key]struct{})
	out := []domain.SearchResult{}
	for _, results := range perQuery {
		for _, r := range results {
			k := key{r.SourcePath, r.SectionTitle, prefix(r.Text, dedupePrefix)}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Citations maps each rule id to the first excerpt that carries it, in order
// of first appearance.
func Citations(excerpts []domain.SearchResult) []Citation {
	out := []Citation{}
	seen := make(map[string]struct{})
	for _, ex := range excerpts {
		for _, id := range ex.RuleIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, Citation{RuleID: id, SectionTitle: ex.SectionTitle, SourcePath: ex.SourcePath})
		}
	}
	return out
}

func collectMarkdown(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("policy path %q: %w", p, err)
		}
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, err
			}
			if !info.IsDir() {
				if isMarkdown(m) {
					files = append(files, m)
				}
				continue
			}
			err = filepath.WalkDir(m, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && isMarkdown(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

func isMarkdown(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".md")
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
